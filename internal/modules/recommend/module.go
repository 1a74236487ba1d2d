package recommend

import (
	"trade_gateway/internal/modules/config"
	"trade_gateway/internal/modules/recommend/service"
	trading "trade_gateway/internal/modules/trading/service"
	venues "trade_gateway/internal/modules/venues/service"

	"go.uber.org/fx"
)

func NewEngine(cfg *config.Config, reg *venues.Registry, settings *trading.Settings) *service.Engine {
	return service.NewEngine(reg, settings, cfg.Venues.Timeout)
}

func Module() fx.Option {
	return fx.Module("recommend",
		fx.Provide(
			NewEngine,
		),
	)
}
