package service

import (
	"context"
	"time"

	"trade_gateway/internal/models"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// Venue is the capability every market adapter exposes to the core.
type Venue interface {
	Name() models.Venue
	// Instruments returns current snapshots. symbols is a watch-list hint;
	// venues that list their own markets ignore it.
	Instruments(ctx context.Context, symbols []string) ([]models.Instrument, error)
	Balance(ctx context.Context) (map[string]any, error)
	PlaceOrder(ctx context.Context, s models.Suggestion) (models.OrderResult, error)
}

func newRestClient(baseURL string, timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetTimeout(timeout)
	c.SetJSONMarshaler(sonic.Marshal)
	c.SetJSONUnmarshaler(sonic.Unmarshal)
	c.SetHeader("User-Agent", "trade-gateway/1.0")
	return c
}
