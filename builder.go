package authcore

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	internalaudit "authcore/internal/audit"
	"authcore/internal/flows"
	"authcore/internal/rate"
	"authcore/internal/stores"
	"authcore/notify"
	"authcore/password"
	"authcore/token"
)

// Builder assembles an Engine. Configure it with the With* methods and call
// Build once; a builder must not be reused.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserStore
	mailer    notify.Mailer
	auditSink AuditSink
	logger    *slog.Logger
	otpSender func(mobileNumber, code string)

	built bool
}

// New returns a builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the entire configuration tree.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client used for OTPs, reset tokens, and rate
// limiter counters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the durable user storage backend.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithMailer sets the outbound mail transport. Without one, welcome and
// reset emails are silently skipped.
func (b *Builder) WithMailer(m notify.Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithOTPSender sets the out-of-band passcode delivery hook, typically an
// SMS gateway adapter. Without one, generated codes are only stored.
func (b *Builder) WithOTPSender(send func(mobileNumber, code string)) *Builder {
	b.otpSender = send
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles login latency sampling.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the wiring and constructs the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:    cfg,
		users:     b.users,
		logger:    logger,
		otpSender: b.otpSender,
	}

	engine.otpStore = stores.NewOTPStore(b.redis)
	engine.resetStore = stores.NewResetStore(b.redis)
	engine.rateLimiter = rate.New(b.redis, rate.Config{
		EnableIPThrottle:      cfg.Security.EnableIPThrottle,
		MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
		LoginCooldown:         cfg.Security.LoginCooldown,
		EnableRefreshThrottle: cfg.Security.EnableRefreshThrottle,
		MaxRefreshAttempts:    cfg.Security.MaxRefreshAttempts,
		RefreshCooldown:       cfg.Security.RefreshCooldown,
	})
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.notify = notify.NewDispatcher(notify.Config{
		Enabled:    cfg.Notify.Enabled,
		BufferSize: cfg.Notify.BufferSize,
		MaxRetries: cfg.Notify.MaxRetries,
		RetryDelay: cfg.Notify.RetryDelay,
	}, b.mailer, logger)
	engine.metrics = NewMetrics(cfg.Metrics)

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	tm, err := token.NewManager(token.Config{
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
		Secret:     cloneBytes(cfg.Token.Secret),
		Issuer:     cfg.Token.Issuer,
		Leeway:     cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = tm

	engine.flows = flows.New(engine.flowDeps())

	b.built = true
	return engine, nil
}
