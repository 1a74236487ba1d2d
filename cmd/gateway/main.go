package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"trade_gateway/internal/modules/auth"
	authsvc "trade_gateway/internal/modules/auth/service"
	"trade_gateway/internal/modules/bootstrap"
	"trade_gateway/internal/modules/config"
	"trade_gateway/internal/modules/health"
	"trade_gateway/internal/modules/httpapi"
	"trade_gateway/internal/modules/notify"
	"trade_gateway/internal/modules/postgres"
	"trade_gateway/internal/modules/recommend"
	"trade_gateway/internal/modules/trading"
	"trade_gateway/internal/modules/venues"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var port int

	serve := func(cmd *cobra.Command, args []string) error {
		// как у старого сервиса: порт можно передать первым аргументом
		if len(args) == 1 {
			p, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("bad port %q: %w", args[0], err)
			}
			port = p
		}
		app := newApp(port)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	}

	root := &cobra.Command{
		Use:          "gateway [port]",
		Short:        "HTTP trade gateway for prediction-market and spot venues",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         serve,
	}
	root.PersistentFlags().IntVar(&port, "port", 0, "listen port (overrides service.port)")

	root.AddCommand(&cobra.Command{
		Use:   "serve [port]",
		Short: "Run the API server",
		Args:  cobra.MaximumNArgs(1),
		RunE:  serve,
	})
	root.AddCommand(&cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for the users file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := ""
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return fmt.Errorf("empty password")
			}
			h, err := authsvc.HashPassword(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), h)
			return err
		},
	})
	return root
}

func newApp(port int) *fx.App {
	return fx.New(
		fx.WithLogger(bootstrap.FxLogger),
		config.Module(),
		fx.Decorate(func(cfg *config.Config) (*config.Config, error) {
			if port > 0 {
				cfg.Service.Port = port
			}
			return cfg, cfg.Validate()
		}),
		bootstrap.Module(),
		postgres.Module(),
		venues.Module(),
		trading.Module(),
		recommend.Module(),
		auth.Module(),
		notify.Module(),
		health.Module(),
		httpapi.Module(),
	)
}
