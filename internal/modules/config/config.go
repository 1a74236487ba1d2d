package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"

	defaultConfigFile = "values_local.yaml"
	defaultConfigDir  = "configs"
)

// Config ...
type Config struct {
	Service struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"service"`

	// Дашборд оркестратора, только для информации в логах/health.
	CommandCenterURL string `mapstructure:"command_center_url"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Trading struct {
		TradeSize     float64 `mapstructure:"trade_size"`
		ConfirmTrades bool    `mapstructure:"confirm_trades"`
		Enabled       bool    `mapstructure:"enabled"`
	} `mapstructure:"trading"`

	Venues struct {
		Timeout time.Duration `mapstructure:"timeout"`
		Kalshi  struct {
			BaseURL        string `mapstructure:"base_url"`
			KeyID          string `mapstructure:"key_id"`
			PrivateKeyPath string `mapstructure:"private_key_path"`
		} `mapstructure:"kalshi"`
		Kraken struct {
			BaseURL   string `mapstructure:"base_url"`
			APIKey    string `mapstructure:"api_key"`
			APISecret string `mapstructure:"api_secret"`
		} `mapstructure:"kraken"`
	} `mapstructure:"venues"`

	Auth struct {
		UsersFile string `mapstructure:"users_file"`
	} `mapstructure:"auth"`

	DB string `mapstructure:"db_dsn"`

	Telegram struct {
		Token  string `mapstructure:"token"`
		ChatID int64  `mapstructure:"chat_id"`
	} `mapstructure:"telegram"`

	Tracing struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"tracing"`
}

// Addr is the listen address of the API server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.host", "localhost")
	v.SetDefault("service.port", 3457)
	v.SetDefault("command_center_url", "http://localhost:3456")
	v.SetDefault("log.level", "info")

	v.SetDefault("trading.trade_size", 100.0)
	v.SetDefault("trading.confirm_trades", true)
	v.SetDefault("trading.enabled", true)

	v.SetDefault("venues.timeout", "5s")
	v.SetDefault("venues.kalshi.base_url", "https://api.elections.kalshi.com/trade-api/v2")
	v.SetDefault("venues.kalshi.key_id", "")
	v.SetDefault("venues.kalshi.private_key_path", "")
	v.SetDefault("venues.kraken.base_url", "https://api.kraken.com")
	v.SetDefault("venues.kraken.api_key", "")
	v.SetDefault("venues.kraken.api_secret", "")

	v.SetDefault("auth.users_file", "configs/users.yaml")
	v.SetDefault("db_dsn", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("tracing.host", "")
	v.SetDefault("tracing.port", 6831)
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()
	return Load(viper.New())
}

// Load reads defaults, the optional yaml file and env overrides into Config.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// legacy names of the python service
	_ = v.BindEnv("command_center_url", "COMMAND_CENTER_URL")
	_ = v.BindEnv("service.port", "SERVICE_PORT", "PORT")
	_ = v.BindEnv("venues.kalshi.key_id", "KALSHI_API_KEY_ID")
	_ = v.BindEnv("venues.kalshi.private_key_path", "KALSHI_PRIVATE_KEY")
	_ = v.BindEnv("venues.kraken.api_key", "KRAKEN_API_KEY")
	_ = v.BindEnv("venues.kraken.api_secret", "KRAKEN_PRIVATE_KEY")
	_ = v.BindEnv("trading.trade_size", "DEFAULT_TRADE_SIZE_USD")
	_ = v.BindEnv("trading.confirm_trades", "CONFIRM_TRADES")
	_ = v.BindEnv("telegram.token", "TELEGRAM_TOKEN")
	_ = v.BindEnv("db_dsn", "DATABASE_DSN")

	file := getenvDefault(configFilePathENV, defaultConfigFile)
	v.SetConfigFile(filepath.Join(getenvDefault(configDirENV, defaultConfigDir), file))
	if err := v.ReadInConfig(); err != nil {
		// файл конфига не обязателен, всё можно задать через env
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port must be in 1..65535, got %d", c.Service.Port)
	}
	if c.Trading.TradeSize <= 0 {
		return fmt.Errorf("trading.trade_size must be > 0")
	}
	if c.Venues.Timeout <= 0 {
		return fmt.Errorf("venues.timeout must be > 0")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
