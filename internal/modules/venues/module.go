package venues

import (
	"trade_gateway/internal/models"
	"trade_gateway/internal/modules/config"
	"trade_gateway/internal/modules/venues/service"

	"go.uber.org/fx"
)

// NewRegistry поднимает оба адаптера; без ключей сервис всё равно стартует.
func NewRegistry(cfg *config.Config) *service.Registry {
	r := service.NewRegistry()

	kalshi, err := service.NewKalshi(service.KalshiConfig{
		BaseURL:        cfg.Venues.Kalshi.BaseURL,
		KeyID:          cfg.Venues.Kalshi.KeyID,
		PrivateKeyPath: cfg.Venues.Kalshi.PrivateKeyPath,
		Timeout:        cfg.Venues.Timeout,
	})
	r.Register(models.VenuePrediction, kalshi, err)

	kraken, err := service.NewKraken(service.KrakenConfig{
		BaseURL:   cfg.Venues.Kraken.BaseURL,
		APIKey:    cfg.Venues.Kraken.APIKey,
		APISecret: cfg.Venues.Kraken.APISecret,
		Timeout:   cfg.Venues.Timeout,
	})
	r.Register(models.VenueSpot, kraken, err)

	return r
}

func Module() fx.Option {
	return fx.Module("venues",
		fx.Provide(
			NewRegistry,
		),
	)
}
