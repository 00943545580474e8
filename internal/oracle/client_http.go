package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	dErrors "mizan/pkg/domain-errors"
	"mizan/pkg/platform/circuit"
)

// HTTPClient fetches metal prices from an external JSON feed. A circuit
// breaker sheds calls while the feed is failing so request paths degrade to
// the resolver's last-good threshold instead of stacking up timeouts.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewHTTPClient constructs a feed client. baseURL is the feed endpoint; the
// currency is passed as a query parameter.
func NewHTTPClient(baseURL string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: circuit.New("price-feed", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(2)),
		logger:  logger,
	}
}

// feedResponse mirrors the feed's wire format. Prices come as strings to
// avoid float precision loss.
type feedResponse struct {
	GoldPerGram   string `json:"gold_per_gram"`
	SilverPerGram string `json:"silver_per_gram"`
	Currency      string `json:"currency"`
	AsOf          string `json:"as_of"`
}

// GetMetalPrices implements PriceOracle.
func (c *HTTPClient) GetMetalPrices(ctx context.Context, currency string) (MetalPrices, error) {
	if c.breaker.IsOpen() {
		// Probe anyway; RecordSuccess below closes the breaker once the
		// feed recovers. A single in-flight probe is cheap.
		c.logger.DebugContext(ctx, "price feed breaker open, probing", "breaker", c.breaker.Name())
	}

	prices, err := c.fetch(ctx, currency)
	if err != nil {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "price feed circuit opened", "error", err)
		}
		return MetalPrices{}, dErrors.Wrap(err, dErrors.CodePriceUnavailable, "price feed unavailable")
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "price feed circuit closed")
	}
	return prices, nil
}

func (c *HTTPClient) fetch(ctx context.Context, currency string) (MetalPrices, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return MetalPrices{}, fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("currency", currency)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return MetalPrices{}, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return MetalPrices{}, fmt.Errorf("call price feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return MetalPrices{}, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	var body feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return MetalPrices{}, fmt.Errorf("decode feed response: %w", err)
	}
	return body.toPrices(currency)
}

func (r feedResponse) toPrices(requested string) (MetalPrices, error) {
	gold, err := decimal.NewFromString(r.GoldPerGram)
	if err != nil {
		return MetalPrices{}, fmt.Errorf("parse gold price %q: %w", r.GoldPerGram, err)
	}
	silver, err := decimal.NewFromString(r.SilverPerGram)
	if err != nil {
		return MetalPrices{}, fmt.Errorf("parse silver price %q: %w", r.SilverPerGram, err)
	}
	if gold.LessThanOrEqual(decimal.Zero) || silver.LessThanOrEqual(decimal.Zero) {
		return MetalPrices{}, fmt.Errorf("non-positive price in feed response")
	}
	asOf, err := time.Parse(time.RFC3339, r.AsOf)
	if err != nil {
		return MetalPrices{}, fmt.Errorf("parse quote timestamp %q: %w", r.AsOf, err)
	}
	currency := r.Currency
	if currency == "" {
		currency = requested
	}
	return MetalPrices{Gold: gold, Silver: silver, Currency: currency, AsOf: asOf}, nil
}
