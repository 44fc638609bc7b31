package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/securevault/securevault/internal/identity"
)

// RegisterIdentityRoutes wires user endpoints. Registration is rate limited
// per client IP.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler, limiter fiber.Handler) {
	r.Post("/users", limiter, h.Register)
	r.Get("/users", h.List)
}
