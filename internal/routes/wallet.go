package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/securevault/securevault/internal/wallet"
)

// RegisterWalletRoutes wires wallet read endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/users/:userId/wallet", h.Get)
	r.Get("/users/:userId/transactions", h.Transactions)
}
