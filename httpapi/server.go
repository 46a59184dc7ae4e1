// Package httpapi exposes the auth engine over HTTP with a gin router.
// It is a thin edge: request decoding, the engine call, and a fixed error
// mapping. All authentication semantics live in the engine.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"authcore"
)

// Config controls the HTTP listener.
type Config struct {
	Addr            string
	Mode            string // gin mode: debug, release, test
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns listener settings suitable for production.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server wraps a gin router and an http.Server around an engine.
type Server struct {
	engine *authcore.Engine
	config Config
	router *gin.Engine
	http   *http.Server
	logger *slog.Logger
}

// New builds the router and registers all routes. The returned server is
// ready for Run.
func New(engine *authcore.Engine, cfg Config, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("httpapi: engine is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("httpapi: %w", err)
	}

	s := &Server{
		engine: engine,
		config: cfg,
		router: router,
		logger: logger,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.Use(s.clientIP(), s.requestLog())

	user := s.router.Group("/api/v1/user")
	user.POST("/register", s.handleRegister)
	user.POST("/login", s.handleLogin)
	user.POST("/generate/otp", s.handleGenerateOTP)
	user.POST("/refresh", s.handleRefresh)
	user.POST("/password/reset", s.handleResetRequest)
	user.POST("/password/reset/:token", s.handleResetComplete)
	user.GET("/me", s.requireAccessToken(), s.handleMe)

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// clientIP copies gin's resolved client IP into the request context so the
// engine can throttle and audit per IP.
func (s *Server) clientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := authcore.WithClientIP(c.Request.Context(), c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Handler exposes the router for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.http = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.logger.Info("http server starting", "addr", s.config.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	return s.http.Shutdown(ctx)
}
