package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/securevault/securevault/internal/cache"
)

// RateLimit caps requests per client IP within window using a shared
// counter. It fails open when the cache is unavailable.
func RateLimit(store cache.Cache, prefix string, maxPerWindow int, window time.Duration, logger *slog.Logger) fiber.Handler {
	if maxPerWindow <= 0 {
		maxPerWindow = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return func(c *fiber.Ctx) error {
		if store == nil {
			return c.Next()
		}
		key := "rl:" + prefix + ":" + c.IP()
		cnt, err := store.Incr(c.UserContext(), key, window)
		if err != nil {
			logger.Warn("rate limit counter unavailable", slog.String("key", key), slog.Any("error", err))
			return c.Next()
		}
		if cnt > int64(maxPerWindow) {
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}
