package notify

import (
	"context"

	"trade_gateway/internal/modules/config"
	"trade_gateway/internal/modules/notify/service"
	"trade_gateway/internal/modules/trading"
	tradingsvc "trade_gateway/internal/modules/trading/service"
	"trade_gateway/pkg/logger"

	"go.uber.org/fx"
)

// NewNotifier: Telegram при наличии токена и chat_id, иначе лог.
func NewNotifier(cfg *config.Config) service.Notifier {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		logger.Info("Telegram is not configured, trade events go to the log")
		return service.NewLog()
	}
	t, err := service.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		logger.Error("Telegram init failed, trade events go to the log: %v", err)
		return service.NewLog()
	}
	return t
}

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			NewNotifier,
			trading.AsSink(func(n service.Notifier) service.Notifier { return n }),
		),
		fx.Invoke(
			func(lc fx.Lifecycle, n service.Notifier, m *tradingsvc.Manager) {
				n.Bind(m)
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						return n.Start()
					},
					OnStop: func(context.Context) error {
						n.Stop()
						return nil
					},
				})
			},
		),
	)
}
