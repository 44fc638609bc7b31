package payments

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/securevault/securevault/internal/wallet"
)

// Handler exposes transfer endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	SenderID   string          `json:"senderId"`
	ReceiverID string          `json:"receiverId"`
	Amount     decimal.Decimal `json:"amount"`
}

type transferResponse struct {
	Success     bool                        `json:"success"`
	Message     string                      `json:"message"`
	Kind        Kind                        `json:"kind"`
	Retryable   bool                        `json:"retryable"`
	Transaction *wallet.TransactionResponse `json:"transaction"`
}

// Transfer moves funds between two users. Every well-formed request is
// answered with 200 and a result body; success=false carries the reason.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res := h.service.Transfer(c.UserContext(), TransferInput{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Amount:     req.Amount,
	})

	out := transferResponse{
		Success:   res.Success(),
		Message:   res.Message,
		Kind:      res.Kind,
		Retryable: res.Retryable(),
	}
	if res.Transaction != nil {
		txn := wallet.NewTransactionResponse(*res.Transaction)
		out.Transaction = &txn
	}
	return c.Status(http.StatusOK).JSON(out)
}
