package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/securevault/securevault/internal/auth"
	"github.com/securevault/securevault/internal/metrics"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Signature"

// Signature rejects mutation requests whose raw body is not signed with
// secret. It runs before any body parsing and never touches storage.
func Signature(secret []byte, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isSafeMethod(c.Method()) {
			return c.Next()
		}

		err := auth.Verify(secret, c.Body(), strings.TrimSpace(c.Get(SignatureHeader)))
		if err == nil {
			return c.Next()
		}

		var (
			status int
			reason string
		)
		switch {
		case errors.Is(err, auth.ErrMissingBody):
			status, reason = http.StatusUnauthorized, "missing_body"
		case errors.Is(err, auth.ErrMissingSignature):
			status, reason = http.StatusUnauthorized, "missing_signature"
		case errors.Is(err, auth.ErrSignatureLength):
			status, reason = http.StatusForbidden, "length"
		default:
			status, reason = http.StatusForbidden, "mismatch"
		}
		metrics.SignatureRejectionsTotal.WithLabelValues(reason).Inc()
		logger.Warn("signature rejected",
			slog.String("path", c.Path()),
			slog.String("reason", reason),
			slog.String("ip", c.IP()),
		)
		return fiber.NewError(status, err.Error())
	}
}

func isSafeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return true
	default:
		return false
	}
}
