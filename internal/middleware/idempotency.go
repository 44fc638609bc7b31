package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/securevault/securevault/internal/cache"
	"github.com/securevault/securevault/internal/metrics"
)

const (
	// IdempotencyKeyHeader names the client-chosen request token.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader is set on responses served from the idempotency cache.
	ReplayedHeader = "Idempotency-Replayed"

	idempotencyPrefix = "idempotency:"
	inFlightMarker    = "__in_flight__"
	cacheOpTimeout    = 2 * time.Second
)

// IdempotencyConfig controls how long responses and claims are kept.
type IdempotencyConfig struct {
	// TTL is how long a successful response is replayed.
	TTL time.Duration
	// Lease bounds how long a claim blocks duplicates if the owner dies.
	Lease time.Duration
}

// storedResponse is what a successful request leaves under its token.
type storedResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// A token is claimed atomically before the handler runs, so a duplicate that
// arrives mid-flight is answered with 409 instead of executing twice. Cache
// failures are logged and the request proceeds uncached.
func Idempotency(store cache.Cache, cfg IdempotencyConfig, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isSafeMethod(c.Method()) {
			return c.Next()
		}
		token := strings.TrimSpace(c.Get(IdempotencyKeyHeader))
		if token == "" {
			return c.Next()
		}
		key := idempotencyPrefix + token

		ctx, cancel := context.WithTimeout(c.UserContext(), cacheOpTimeout)
		cached, err := store.Get(ctx, key)
		cancel()
		switch {
		case err == nil && string(cached) == inFlightMarker:
			metrics.IdempotencyEventsTotal.WithLabelValues("in_flight").Inc()
			return fiber.NewError(http.StatusConflict, "request already in flight")
		case err == nil:
			var stored storedResponse
			if err := json.Unmarshal(cached, &stored); err != nil || stored.Status == 0 {
				logger.Warn("failed to decode stored idempotent response", slog.String("key", token), slog.Any("error", err))
				return fiber.NewError(http.StatusConflict, "duplicate request")
			}
			metrics.IdempotencyEventsTotal.WithLabelValues("hit").Inc()
			logger.Info("serving idempotent replay", slog.String("key", token), slog.Int("status", stored.Status))
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			c.Set(ReplayedHeader, "true")
			return c.Status(stored.Status).SendString(stored.Body)
		case !errors.Is(err, cache.ErrMiss):
			return failOpen(c, logger, token, "lookup", err)
		}

		ctx, cancel = context.WithTimeout(c.UserContext(), cacheOpTimeout)
		claimed, err := store.SetNX(ctx, key, []byte(inFlightMarker), cfg.Lease)
		cancel()
		if err != nil {
			return failOpen(c, logger, token, "claim", err)
		}
		if !claimed {
			metrics.IdempotencyEventsTotal.WithLabelValues("in_flight").Inc()
			return fiber.NewError(http.StatusConflict, "request already in flight")
		}
		metrics.IdempotencyEventsTotal.WithLabelValues("miss").Inc()

		// A panicking handler must not keep the token blocked until the lease expires.
		defer func() {
			if r := recover(); r != nil {
				release(store, logger, key, token)
				panic(r)
			}
		}()

		if err := c.Next(); err != nil {
			release(store, logger, key, token)
			return err
		}

		status := c.Response().StatusCode()
		body := append([]byte(nil), c.Response().Body()...)
		if !succeeded(status, body) {
			release(store, logger, key, token)
			return nil
		}

		record, err := json.Marshal(storedResponse{Status: status, Body: string(body)})
		if err != nil {
			release(store, logger, key, token)
			return nil
		}

		// The response is already built; a failed write only loses the replay.
		ctx, cancel = context.WithTimeout(context.Background(), cacheOpTimeout)
		defer cancel()
		if err := store.Set(ctx, key, record, cfg.TTL); err != nil {
			metrics.IdempotencyEventsTotal.WithLabelValues("cache_error").Inc()
			logger.Error("failed to persist idempotent response", slog.String("key", token), slog.Any("error", err))
			_ = store.Delete(ctx, key)
			return nil
		}
		metrics.IdempotencyEventsTotal.WithLabelValues("stored").Inc()
		return nil
	}
}

// succeeded treats a 2xx response as final unless its JSON body reports
// success=false.
func succeeded(status int, body []byte) bool {
	if status < 200 || status >= 300 {
		return false
	}
	var probe struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.Success == nil {
		return true
	}
	return *probe.Success
}

func release(store cache.Cache, logger *slog.Logger, key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := store.Delete(ctx, key); err != nil {
		logger.Warn("failed to release idempotency claim", slog.String("key", token), slog.Any("error", err))
		return
	}
	metrics.IdempotencyEventsTotal.WithLabelValues("released").Inc()
}

func failOpen(c *fiber.Ctx, logger *slog.Logger, token, op string, err error) error {
	metrics.IdempotencyEventsTotal.WithLabelValues("cache_error").Inc()
	logger.Error("idempotency "+op+" failed, continuing uncached", slog.String("key", token), slog.Any("error", err))
	return c.Next()
}
