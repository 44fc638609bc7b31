package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/securevault/securevault/internal/rates"
)

// RegisterRateRoutes wires the exchange-rate proxy.
func RegisterRateRoutes(r fiber.Router, h *rates.Handler) {
	r.Get("/rate", h.Get)
}
