package trading

import (
	"trade_gateway/internal/models"
	"trade_gateway/internal/modules/config"
	"trade_gateway/internal/modules/trading/service"
	venues "trade_gateway/internal/modules/venues/service"

	"go.uber.org/fx"
)

// SinkGroup is the fx value group every trade event sink is provided into.
const SinkGroup = `group:"trade_sinks"`

// AsSink annotates a constructor so its result joins the sink group.
func AsSink(f any) any {
	return fx.Annotate(f,
		fx.As(new(service.EventSink)),
		fx.ResultTags(SinkGroup),
	)
}

func NewSettings(cfg *config.Config) *service.Settings {
	return service.NewSettings(models.TradingSettings{
		TradeSize:     cfg.Trading.TradeSize,
		ConfirmTrades: cfg.Trading.ConfirmTrades,
		Enabled:       cfg.Trading.Enabled,
	})
}

type managerParams struct {
	fx.In

	Config   *config.Config
	Registry *venues.Registry
	Settings *service.Settings
	Sinks    []service.EventSink `group:"trade_sinks"`
}

func NewManager(p managerParams) *service.Manager {
	return service.NewManager(p.Registry, p.Settings, p.Config.Venues.Timeout, p.Sinks...)
}

func Module() fx.Option {
	return fx.Module("trading",
		fx.Provide(
			NewSettings,
			NewManager,
		),
	)
}
