package health

import (
	"context"
	"net/http"
	"time"

	"trade_gateway/internal/modules/config"
	"trade_gateway/internal/modules/health/service"
	venues "trade_gateway/internal/modules/venues/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

func NewState(cfg *config.Config, reg *venues.Registry) *service.State {
	return service.NewState(reg, cfg.CommandCenterURL)
}

// Register mounts the probes on the API router.
func Register(r gin.IRoutes, state *service.State) {
	r.GET("/livez", func(c *gin.Context) {
		// liveness: процесс жив
		c.String(http.StatusOK, "ok")
	})

	r.GET("/readyz", func(c *gin.Context) {
		// readiness: сервис готов обслуживать трафик
		if !state.Ready() {
			c.String(http.StatusServiceUnavailable, "not ready")
			return
		}
		c.String(http.StatusOK, "ready")
	})

	r.GET("/api/trading/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":             "healthy",
			"trading_available":  state.TradingAvailable(),
			"timestamp":          time.Now().Format(time.RFC3339),
			"uptime_sec":         int64(state.Uptime().Seconds()),
			"command_center_url": state.CommandCenterURL(),
		})
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			NewState,
		),
		fx.Invoke(func(lc fx.Lifecycle, state *service.State) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					state.SetReady(true)
					return nil
				},
				OnStop: func(context.Context) error {
					state.SetReady(false)
					return nil
				},
			})
		}),
	)
}
