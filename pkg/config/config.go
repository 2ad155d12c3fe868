// Package config loads application configuration with Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xhit/go-str2duration/v2"
)

// Defaults applied when the config file or keys are absent.
const (
	DefaultPercentage    = 5.0
	DefaultATRPeriod     = 14
	DefaultATRMultiplier = 2.0
	DefaultStoragePath   = ".data/price_history.db"
	DefaultBackend       = "buntdb"
	DefaultCacheTTL      = time.Minute
	DefaultLogLevel      = "info"
)

// Config holds the application settings.
type Config struct {
	Tickers         []string
	Percentage      float64
	TrailingEnabled bool
	ATRPeriod       int
	ATRMultiplier   float64
	StorageBackend  string
	StoragePath     string
	CacheTTL        time.Duration
	LogLevel        string
	Telegram        TelegramConfig
}

// TelegramConfig holds Telegram notification settings.
type TelegramConfig struct {
	Enabled bool
	Token   string
	ChatID  int64
}

// Load reads configuration from the given file, falling back to
// ./stoploss.yaml, and applies STOPLOSS_* environment overrides.
// A missing default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("STOPLOSS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("percentage", DefaultPercentage)
	v.SetDefault("trailing_enabled", false)
	v.SetDefault("atr_period", DefaultATRPeriod)
	v.SetDefault("atr_multiplier", DefaultATRMultiplier)
	v.SetDefault("storage_backend", DefaultBackend)
	v.SetDefault("storage_path", DefaultStoragePath)
	v.SetDefault("cache_ttl", DefaultCacheTTL.String())
	v.SetDefault("log_level", DefaultLogLevel)

	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stoploss")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	ttl, err := str2duration.ParseDuration(v.GetString("cache_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid cache_ttl %q: %w", v.GetString("cache_ttl"), err)
	}

	cfg := &Config{
		Tickers:         v.GetStringSlice("tickers"),
		Percentage:      v.GetFloat64("percentage"),
		TrailingEnabled: v.GetBool("trailing_enabled"),
		ATRPeriod:       v.GetInt("atr_period"),
		ATRMultiplier:   v.GetFloat64("atr_multiplier"),
		StorageBackend:  v.GetString("storage_backend"),
		StoragePath:     v.GetString("storage_path"),
		CacheTTL:        ttl,
		LogLevel:        v.GetString("log_level"),
		Telegram: TelegramConfig{
			Enabled: v.GetBool("telegram.enabled"),
			Token:   v.GetString("telegram.token"),
			ChatID:  v.GetInt64("telegram.chat_id"),
		},
	}

	if cfg.Percentage <= 0 || cfg.Percentage >= 100 {
		return nil, fmt.Errorf("percentage must be between 0 and 100, got %v", cfg.Percentage)
	}
	if cfg.ATRPeriod <= 0 {
		return nil, fmt.Errorf("atr_period must be positive, got %d", cfg.ATRPeriod)
	}

	return cfg, nil
}
