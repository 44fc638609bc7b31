package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/securevault/securevault/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get returns the wallet of the user in the path.
func (h *Handler) Get(c *fiber.Ctx) error {
	w, err := h.service.Get(c.UserContext(), c.Params("userId"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(NewResponse(w))
}

// Transactions lists the ledger rows touching the user's wallet.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	txns, err := h.service.Transactions(c.UserContext(), c.Params("userId"))
	if err != nil {
		return mapError(err)
	}
	out := make([]TransactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, NewTransactionResponse(txn))
	}
	return c.Status(http.StatusOK).JSON(out)
}

func mapError(err error) error {
	if errors.Is(err, ledger.ErrWalletNotFound) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return fiber.NewError(http.StatusInternalServerError, err.Error())
}
