package auth

import (
	"trade_gateway/internal/modules/auth/service"
	"trade_gateway/internal/modules/config"
	"trade_gateway/pkg/logger"

	"go.uber.org/fx"
)

func NewVerifier(cfg *config.Config) (service.Verifier, error) {
	v, err := service.LoadUsers(cfg.Auth.UsersFile)
	if err != nil {
		return nil, err
	}
	if v.Len() == 0 {
		logger.Warn("No users loaded from %s, login is disabled", cfg.Auth.UsersFile)
	}
	return v, nil
}

func Module() fx.Option {
	return fx.Module("auth",
		fx.Provide(
			NewVerifier,
			service.NewSessions,
		),
	)
}
