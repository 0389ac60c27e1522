// Package config loads crossx configuration with viper, following the
// teacher's internal/config/config.go layout: a nested struct with
// mapstructure tags, defaults applied before the file is read, and
// environment variable overrides under a CROSSX_ prefix.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config is the full crossx process configuration.
type Config struct {
	TCP struct {
		Port           int           `mapstructure:"port"`
		SocketTimeout  time.Duration `mapstructure:"socket_timeout"`
		WorkerPoolSize int           `mapstructure:"worker_pool_size"`
	} `mapstructure:"tcp"`

	Admin struct {
		Port        int    `mapstructure:"port"`
		JWTSecret   string `mapstructure:"jwt_secret"`
		TokenMinute int    `mapstructure:"token_minutes"`
	} `mapstructure:"admin"`

	Notify struct {
		UnicastPath  string `mapstructure:"unicast_path"`
		GroupSubject string `mapstructure:"group_subject"`
		NATSUrl      string `mapstructure:"nats_url"`
	} `mapstructure:"notify"`

	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	TradeLog struct {
		Path            string        `mapstructure:"path"`
		CompactAfter    time.Duration `mapstructure:"compact_after"`
		BreakerMaxFails uint32        `mapstructure:"breaker_max_fails"`
	} `mapstructure:"trade_log"`

	RateLimit struct {
		LoginPerMinute int `mapstructure:"login_per_minute"`
		OrdersPerMinute int `mapstructure:"orders_per_minute"`
	} `mapstructure:"rate_limit"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

var (
	cfg  *Config
	once sync.Once
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("tcp.port", 7000)
	v.SetDefault("tcp.socket_timeout", "30s")
	v.SetDefault("tcp.worker_pool_size", 64)

	v.SetDefault("admin.port", 8080)
	v.SetDefault("admin.jwt_secret", "change-me")
	v.SetDefault("admin.token_minutes", 60)

	v.SetDefault("notify.unicast_path", "/ws/fills")
	v.SetDefault("notify.group_subject", "crossx.price-threshold")
	v.SetDefault("notify.nats_url", "nats://127.0.0.1:4222")

	v.SetDefault("database.dsn", "host=localhost user=crossx password=crossx dbname=crossx sslmode=disable")

	v.SetDefault("trade_log.path", "data/StoricoOrdini.json")
	v.SetDefault("trade_log.compact_after", "720h")
	v.SetDefault("trade_log.breaker_max_fails", 5)

	v.SetDefault("rate_limit.login_per_minute", 10)
	v.SetDefault("rate_limit.orders_per_minute", 120)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads config.yaml from the directory configPath (or, when it is
// empty, from ".", "./config" and "/etc/crossx") plus environment
// variables, applying defaults first, so a key missing from the file takes
// its default. A value that does not decode into its field, or a
// non-positive tcp.port or admin.port, makes Load return an error.
func Load(configPath string) (*Config, error) {
	var err error

	once.Do(func() {
		cfg = &Config{}

		v := viper.New()
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		setDefaults(v)

		if configPath != "" {
			v.AddConfigPath(configPath)
		} else {
			v.AddConfigPath(".")
			v.AddConfigPath("./config")
			v.AddConfigPath("/etc/crossx")
		}

		v.SetEnvPrefix("CROSSX")
		v.AutomaticEnv()

		if readErr := v.ReadInConfig(); readErr != nil {
			if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
				err = fmt.Errorf("read config: %w", readErr)
				return
			}
		}

		if unmarshalErr := v.Unmarshal(cfg); unmarshalErr != nil {
			err = fmt.Errorf("unmarshal config: %w", unmarshalErr)
			return
		}

		if cfg.TCP.Port <= 0 || cfg.Admin.Port <= 0 {
			err = fmt.Errorf("tcp.port and admin.port must be positive integers")
			return
		}
	})

	return cfg, err
}
