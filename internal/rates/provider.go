package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider is a connector to an external exchange-rate source.
type Provider interface {
	Pair(ctx context.Context, base, target string) (float64, error)
}

// ExchangeRateAPI queries the exchangerate-api.com v6 pair endpoint.
type ExchangeRateAPI struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewExchangeRateAPI builds a provider rooted at baseURL.
func NewExchangeRateAPI(baseURL, apiKey string, timeout time.Duration) *ExchangeRateAPI {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ExchangeRateAPI{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type pairResponse struct {
	Result         string  `json:"result"`
	ErrorType      string  `json:"error-type"`
	ConversionRate float64 `json:"conversion_rate"`
}

// Pair returns how many units of target one unit of base buys.
func (p *ExchangeRateAPI) Pair(ctx context.Context, base, target string) (float64, error) {
	if p.apiKey == "" {
		return 0, ErrInvalidKey
	}
	endpoint := p.baseURL + url.PathEscape(p.apiKey) + "/pair/" + base + "/" + target
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	var out pairResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("%w: status %d: %v", ErrUpstream, resp.StatusCode, err)
	}
	if out.Result != "success" {
		switch out.ErrorType {
		case "unsupported-code":
			return 0, fmt.Errorf("%w: %s or %s", ErrUnsupportedCode, base, target)
		case "invalid-key", "inactive-account":
			return 0, ErrInvalidKey
		case "":
			return 0, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
		default:
			return 0, fmt.Errorf("%w: %s", ErrUpstream, out.ErrorType)
		}
	}
	return out.ConversionRate, nil
}
