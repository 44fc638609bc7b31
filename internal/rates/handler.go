package rates

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the exchange-rate endpoint.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a rate handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Get answers GET /rate?base=XXX&target=YYY.
func (h *Handler) Get(c *fiber.Ctx) error {
	base, target := c.Query("base"), c.Query("target")
	if base == "" || target == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "base and target query parameters are required",
		})
	}

	q, err := h.service.Rate(c.UserContext(), base, target)
	if err == nil {
		return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": q})
	}

	h.logger.Error("exchange rate lookup failed", slog.String("base", base), slog.String("target", target), slog.Any("error", err))
	switch {
	case errors.Is(err, ErrUnsupportedCode):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "unsupported currency code",
			"message": err.Error(),
		})
	case errors.Is(err, ErrInvalidKey):
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   ErrInvalidKey.Error(),
		})
	default:
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to fetch exchange rate data",
			"message": err.Error(),
		})
	}
}
