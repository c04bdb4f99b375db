// Package config loads runtime configuration from the environment.
// A .env file is honored when present, matching how the service is run
// in development.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds everything the server needs to start.
type Config struct {
	// DatabaseURL is a MySQL DSN or a mysql:// URI.
	DatabaseURL string
	// Addr is the HTTP listen address.
	Addr string
	// AdminAPIKey, when set, bootstraps an ADMIN user before the server
	// accepts traffic.
	AdminAPIKey string
	// AdminName names the bootstrapped admin user.
	AdminName string
	// InitialCash is the cash balance seeded on registration.
	InitialCash int64
	// AllowSelfTrade permits a user's order to match their own resting
	// orders. When false, own makers are skipped.
	AllowSelfTrade bool
	// Debug switches logging to development mode.
	Debug bool
}

// Load reads configuration from the environment (prefix EXCHANGE_), with
// the legacy unprefixed names DB_DSN, ADMIN_API_KEY and ADMIN_NAME also
// accepted.
func Load() (*Config, error) {
	// Non-fatal, same as the server has always treated a missing .env.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EXCHANGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("admin_name", "admin")
	v.SetDefault("initial_cash", int64(100000))
	v.SetDefault("allow_self_trade", true)
	v.SetDefault("debug", false)

	if err := v.BindEnv("database_url", "EXCHANGE_DATABASE_URL", "DB_DSN"); err != nil {
		return nil, errors.Wrap(err, "bind database_url")
	}
	if err := v.BindEnv("admin_api_key", "EXCHANGE_ADMIN_API_KEY", "ADMIN_API_KEY"); err != nil {
		return nil, errors.Wrap(err, "bind admin_api_key")
	}
	if err := v.BindEnv("admin_name", "EXCHANGE_ADMIN_NAME", "ADMIN_NAME"); err != nil {
		return nil, errors.Wrap(err, "bind admin_name")
	}

	cfg := &Config{
		DatabaseURL:    v.GetString("database_url"),
		Addr:           v.GetString("addr"),
		AdminAPIKey:    v.GetString("admin_api_key"),
		AdminName:      v.GetString("admin_name"),
		InitialCash:    v.GetInt64("initial_cash"),
		AllowSelfTrade: v.GetBool("allow_self_trade"),
		Debug:          v.GetBool("debug"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required (set DB_DSN or EXCHANGE_DATABASE_URL)")
	}
	if cfg.InitialCash < 0 {
		return nil, errors.New("initial cash must not be negative")
	}
	return cfg, nil
}
