package main

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// serviceConfig holds everything the daemon needs that the engine does not
// configure itself: listeners, backing stores, and mail delivery.
type serviceConfig struct {
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	GinMode     string `mapstructure:"GIN_MODE"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	TokenSecret     string        `mapstructure:"TOKEN_SECRET"`
	TokenIssuer     string        `mapstructure:"TOKEN_ISSUER"`
	TokenAccessTTL  time.Duration `mapstructure:"TOKEN_ACCESS_TTL"`
	TokenRefreshTTL time.Duration `mapstructure:"TOKEN_REFRESH_TTL"`

	OTPTTL       time.Duration `mapstructure:"OTP_TTL"`
	ResetTTL     time.Duration `mapstructure:"RESET_TTL"`
	ResetURLBase string        `mapstructure:"RESET_URL_BASE"`

	MaxLoginAttempts int           `mapstructure:"MAX_LOGIN_ATTEMPTS"`
	LoginCooldown    time.Duration `mapstructure:"LOGIN_COOLDOWN"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	AuditLog bool `mapstructure:"AUDIT_LOG"`
}

// loadConfig reads .env when present, then the environment. Env vars win.
func loadConfig() (*serviceConfig, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TOKEN_SECRET", "")
	v.SetDefault("TOKEN_ISSUER", "authcore")
	v.SetDefault("TOKEN_ACCESS_TTL", "15m")
	v.SetDefault("TOKEN_REFRESH_TTL", "24h")
	v.SetDefault("OTP_TTL", "300s")
	v.SetDefault("RESET_TTL", "15m")
	v.SetDefault("RESET_URL_BASE", "http://localhost:8000/api/v1/user/password/reset/")
	v.SetDefault("MAX_LOGIN_ATTEMPTS", 10)
	v.SetDefault("LOGIN_COOLDOWN", "5m")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("AUDIT_LOG", false)

	var cfg serviceConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL must be set")
	}
	if len(cfg.TokenSecret) < 32 {
		return nil, errors.New("config: TOKEN_SECRET must be at least 32 bytes")
	}
	return &cfg, nil
}
