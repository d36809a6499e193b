package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is loaded from the environment with sane development defaults.
type Config struct {
	DBSource        string
	Port            string
	Env             string
	DefaultCurrency string

	JWTSecret     string
	JWTIssuer     string
	JWTExpirySecs int64
}

func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("DEFAULT_CURRENCY", "CAD")
	v.SetDefault("JWT_ISSUER", "digibank")
	v.SetDefault("JWT_EXPIRATION_SECONDS", 3600)

	cfg := &Config{
		DBSource:        v.GetString("DB_SOURCE"),
		Port:            v.GetString("SERVER_PORT"),
		Env:             v.GetString("ENVIRONMENT"),
		DefaultCurrency: v.GetString("DEFAULT_CURRENCY"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		JWTIssuer:       v.GetString("JWT_ISSUER"),
		JWTExpirySecs:   v.GetInt64("JWT_EXPIRATION_SECONDS"),
	}

	if cfg.DBSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if len(cfg.DefaultCurrency) != 3 {
		return nil, fmt.Errorf("DEFAULT_CURRENCY must be a 3-letter code")
	}

	return cfg, nil
}
