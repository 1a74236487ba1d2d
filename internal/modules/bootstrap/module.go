package bootstrap

import (
	"context"

	"trade_gateway/internal/modules/config"
	"trade_gateway/pkg/logger"
	"trade_gateway/pkg/tracing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const serviceName = "trade-gateway"

// NewLogger поднимает zap из log.level и делает его логгером пакета logger.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	logger.SetServiceName(serviceName)
	return logger.Init(cfg.Log.Level)
}

// FxLogger routes fx's own lifecycle events through zap.
func FxLogger(l *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: l.WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
}

// initTracing depends on the logger so that zap is up before any other invoke.
func initTracing(lc fx.Lifecycle, cfg *config.Config, _ *zap.Logger) error {
	tracing.SetServiceName(serviceName)
	_, closer, err := tracing.InitTracer(tracing.Config{
		Host: cfg.Tracing.Host,
		Port: cfg.Tracing.Port,
	})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closer()
			logger.Sync()
			return nil
		},
	})
	return nil
}

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			NewLogger,
		),
		fx.Invoke(initTracing),
	)
}
