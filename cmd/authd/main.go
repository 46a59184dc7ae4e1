// authd serves the user auth API: registration, password and OTP login,
// token refresh, and password reset, backed by Postgres and Redis.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"authcore"
	"authcore/httpapi"
	"authcore/notify"
	"authcore/store/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("authd exiting", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("redis ready", "addr", cfg.RedisAddr)

	engine, err := buildEngine(cfg, db, redisClient, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	server, err := httpapi.New(engine, httpapi.Config{
		Addr: cfg.HTTPAddr,
		Mode: cfg.GinMode,
	}, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildEngine(cfg *serviceConfig, db *sql.DB, redisClient *redis.Client, logger *slog.Logger) (*authcore.Engine, error) {
	engineCfg := authcore.DefaultConfig()
	engineCfg.Token.Secret = []byte(cfg.TokenSecret)
	engineCfg.Token.Issuer = cfg.TokenIssuer
	engineCfg.Token.AccessTTL = cfg.TokenAccessTTL
	engineCfg.Token.RefreshTTL = cfg.TokenRefreshTTL
	engineCfg.OTP.TTL = cfg.OTPTTL
	engineCfg.PasswordReset.TTL = cfg.ResetTTL
	engineCfg.PasswordReset.URLBase = cfg.ResetURLBase
	engineCfg.Security.MaxLoginAttempts = cfg.MaxLoginAttempts
	engineCfg.Security.LoginCooldown = cfg.LoginCooldown

	builder := authcore.New().
		WithConfig(engineCfg).
		WithRedis(redisClient).
		WithUserStore(postgres.NewStore(db)).
		WithLogger(logger).
		WithMetricsEnabled(true)

	if cfg.SMTPHost != "" {
		mailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			return nil, err
		}
		builder = builder.WithMailer(mailer)
	} else {
		builder = builder.WithMailer(notify.NewLogMailer(logger))
		logger.Warn("SMTP_HOST not set, emails go to the log")
	}

	if cfg.AuditLog {
		builder = builder.WithAuditSink(authcore.NewJSONWriterSink(os.Stdout))
	}

	return builder.Build()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
