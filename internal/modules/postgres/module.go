package postgres

import (
	"context"
	"fmt"

	"trade_gateway/internal/modules/config"
	"trade_gateway/internal/modules/postgres/service"
	"trade_gateway/internal/modules/trading"
	"trade_gateway/pkg/db"
	"trade_gateway/pkg/logger"

	"go.uber.org/fx"
)

// NewTxManager returns nil when db_dsn is empty; the journal is then disabled.
func NewTxManager(lc fx.Lifecycle, cfg *config.Config) (*db.PgTxManager, error) {
	if cfg.DB == "" {
		logger.Info("db_dsn is not set, trade journal is disabled")
		return nil, nil
	}

	ctx := context.Background()
	poolMaster, err := db.NewPool(ctx, db.PoolConfig{
		DSN: cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create poolMaster: %w", err)
	}

	err = poolMaster.Ping(ctx)
	if err != nil {
		poolMaster.Close()
		return nil, err
	}

	m := db.NewPgTxManager(poolMaster)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			m.Close()
			return nil
		},
	})
	return m, nil
}

func NewJournal(m *db.PgTxManager) *service.Journal {
	if m == nil {
		return service.NewJournal(nil)
	}
	return service.NewJournal(m)
}

func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			NewTxManager,
			NewJournal,
			trading.AsSink(func(j *service.Journal) *service.Journal { return j }),
		),
		fx.Invoke(func(lc fx.Lifecycle, j *service.Journal) {
			lc.Append(fx.Hook{
				OnStart: j.Start,
				OnStop: func(context.Context) error {
					j.Stop()
					return nil
				},
			})
		}),
	)
}
