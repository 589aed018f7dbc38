package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	DatabaseURL     string        `mapstructure:"database_url"`
	TelegramToken   string        `mapstructure:"telegram_token"`
	Storage         string        `mapstructure:"storage"`
	ScanInterval    time.Duration `mapstructure:"scan_interval"`
	StoreTimeout    time.Duration `mapstructure:"store_timeout"`
	SendTimeout     time.Duration `mapstructure:"send_timeout"`
	ScanConcurrency int           `mapstructure:"scan_concurrency"`
	DBMaxConns      int32         `mapstructure:"db_max_conns"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	LogFile         string        `mapstructure:"log_file"`
	LogLevel        string        `mapstructure:"log_level"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
}

var defaults = map[string]any{
	"storage":          StoragePostgres,
	"scan_interval":    "30s",
	"store_timeout":    "5s",
	"send_timeout":     "10s",
	"scan_concurrency": 10,
	"db_max_conns":     10,
	"migrations_path":  "file://migrations",
	"log_file":         "bot.log",
	"log_level":        "info",
	"metrics_addr":     "",
	"database_url":     "",
	"telegram_token":   "",
}

// Load reads defaults, then the optional file at path, then environment
// variables named after the upper-cased keys (DATABASE_URL, TELEGRAM_TOKEN, ...).
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required keys and bounds.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url is required for postgres storage"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q", c.Storage))
	}
	if c.TelegramToken == "" {
		errs = append(errs, errors.New("telegram_token is required"))
	}
	if c.ScanInterval <= 0 {
		errs = append(errs, errors.New("scan_interval must be positive"))
	}
	if c.StoreTimeout <= 0 || c.SendTimeout <= 0 {
		errs = append(errs, errors.New("store_timeout and send_timeout must be positive"))
	}
	if c.ScanConcurrency < 1 {
		errs = append(errs, errors.New("scan_concurrency must be at least 1"))
	}
	if c.DBMaxConns < 1 || c.DBMaxConns > 10 {
		errs = append(errs, fmt.Errorf("db_max_conns must be within [1, 10], got %d", c.DBMaxConns))
	}
	return errors.Join(errs...)
}
