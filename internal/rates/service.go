// Package rates proxies currency exchange rates with a shared TTL cache.
// Rates are informational only; transfers never convert currencies.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/securevault/securevault/internal/cache"
	"github.com/securevault/securevault/internal/metrics"
)

var (
	ErrUnsupportedCode = errors.New("unsupported currency code")
	ErrInvalidKey      = errors.New("invalid API key provided for exchange rate service")
	ErrUpstream        = errors.New("exchange rate provider error")
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// Quote is a single conversion rate observation.
type Quote struct {
	Base      string    `json:"base"`
	Target    string    `json:"target"`
	Rate      float64   `json:"rate"`
	Timestamp time.Time `json:"timestamp"`
}

// Service looks up rates, consulting the cache before the provider.
type Service struct {
	provider Provider
	cache    cache.Cache
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a rate service. Cached quotes expire after ttl.
func NewService(provider Provider, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		cache:    c,
		ttl:      ttl,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Rate returns the conversion rate from base to target. Codes are
// case-insensitive.
func (s *Service) Rate(ctx context.Context, base, target string) (Quote, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	target = strings.ToUpper(strings.TrimSpace(target))
	if !currencyCode.MatchString(base) || !currencyCode.MatchString(target) {
		return Quote{}, fmt.Errorf("%w: %s or %s", ErrUnsupportedCode, base, target)
	}
	if base == target {
		metrics.RateLookupsTotal.WithLabelValues("identity").Inc()
		return Quote{Base: base, Target: target, Rate: 1, Timestamp: s.now()}, nil
	}

	key := "rate:" + base + "_" + target
	if q, ok := s.cached(ctx, key); ok {
		metrics.RateLookupsTotal.WithLabelValues("hit").Inc()
		return q, nil
	}
	metrics.RateLookupsTotal.WithLabelValues("miss").Inc()

	rate, err := s.provider.Pair(ctx, base, target)
	if err != nil {
		metrics.RateLookupsTotal.WithLabelValues("error").Inc()
		return Quote{}, err
	}
	q := Quote{Base: base, Target: target, Rate: rate, Timestamp: s.now()}

	if payload, err := json.Marshal(q); err == nil {
		if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
			s.logger.Warn("rate cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return q, nil
}

func (s *Service) cached(ctx context.Context, key string) (Quote, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("rate cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return Quote{}, false
	}
	var q Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		s.logger.Warn("discarding undecodable cached rate", slog.String("key", key), slog.Any("error", err))
		return Quote{}, false
	}
	return q, true
}
