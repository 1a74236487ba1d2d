package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	authsvc "trade_gateway/internal/modules/auth/service"
	"trade_gateway/internal/modules/config"
	"trade_gateway/internal/modules/health"
	healthsvc "trade_gateway/internal/modules/health/service"
	apisvc "trade_gateway/internal/modules/httpapi/service"
	recommendsvc "trade_gateway/internal/modules/recommend/service"
	"trade_gateway/internal/modules/trading"
	tradingsvc "trade_gateway/internal/modules/trading/service"
	venues "trade_gateway/internal/modules/venues/service"
	"trade_gateway/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

func NewHandler(
	sessions *authsvc.Sessions,
	engine *recommendsvc.Engine,
	manager *tradingsvc.Manager,
	settings *tradingsvc.Settings,
	registry *venues.Registry,
	hub *apisvc.Hub,
) *apisvc.Handler {
	return apisvc.NewHandler(sessions, engine, manager, settings, registry, hub)
}

func NewRouter(h *apisvc.Handler, state *healthsvc.State) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(apisvc.Recovery(), apisvc.RequestLog(), apisvc.CORS())
	health.Register(r, state)
	h.Register(r)
	return r
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, router *gin.Engine, hub *apisvc.Hub) {
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server: %v", err)
				}
			}()
			banner(cfg)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			hub.Close()
			return srv.Shutdown(ctx)
		},
	})
}

func banner(cfg *config.Config) {
	logger.Info("Trade gateway running on http://%s", cfg.Addr())
	logger.Info("Command center: %s", cfg.CommandCenterURL)
	for _, line := range []string{
		"POST   /api/auth/login              - Login",
		"GET    /api/auth/verify             - Verify session",
		"GET    /api/trading/recommendations - Trading recommendations",
		"GET    /api/trading/balances        - Venue balances",
		"GET    /api/trading/config          - Get config",
		"POST   /api/trading/config          - Update config",
		"GET    /api/trading/health          - Health",
		"POST   /api/trading/execute         - Execute trade",
		"POST   /api/trading/confirm         - Confirm trade",
		"POST   /api/trading/cancel          - Cancel trade",
		"GET    /api/trading/pending         - Pending trades",
		"GET    /api/trading/history         - Executed trades",
		"GET    /api/trading/stream          - Trade events (websocket)",
	} {
		logger.Info("  %s", line)
	}
}

func Module() fx.Option {
	return fx.Module("httpapi",
		fx.Provide(
			apisvc.NewHub,
			trading.AsSink(func(h *apisvc.Hub) *apisvc.Hub { return h }),
			NewHandler,
			NewRouter,
		),
		fx.Invoke(RunHTTP),
	)
}
