package authcore

import (
	"errors"
	"time"
)

// Config is the full engine configuration tree. Zero values are filled in
// by [DefaultConfig]; [Config.Validate] rejects combinations the engine
// cannot run with.
type Config struct {
	Token         TokenConfig
	Password      PasswordConfig
	OTP           OTPConfig
	PasswordReset PasswordResetConfig
	Security      SecurityConfig
	Notify        NotifyConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

// TokenConfig controls the stateless access/refresh token pair.
type TokenConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Secret     []byte
	Issuer     string
	Leeway     time.Duration
}

// PasswordConfig holds the argon2id hashing parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// OTPConfig controls one-time-code issuance. A newly generated code
// overwrites any live one for the same mobile number.
type OTPConfig struct {
	Digits int
	TTL    time.Duration
}

// PasswordResetConfig controls the reset-token lifecycle. URLBase is the
// prefix the opaque token is appended to when building the emailed link.
type PasswordResetConfig struct {
	TTL     time.Duration
	URLBase string
}

// SecurityConfig holds the fixed-window throttle budgets. Login attempts
// are counted per identifier and, when EnableIPThrottle is set, per caller
// IP; the check runs before any user lookup.
type SecurityConfig struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldown         time.Duration
	EnableRefreshThrottle bool
	MaxRefreshAttempts    int
	RefreshCooldown       time.Duration
}

// NotifyConfig controls the asynchronous email dispatcher.
type NotifyConfig struct {
	Enabled    bool
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// AuditConfig controls the audit event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration the engine runs with when the
// caller overrides nothing.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 24 * time.Hour,
			Issuer:     "authcore",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        1,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		OTP: OTPConfig{
			Digits: 6,
			TTL:    300 * time.Second,
		},
		PasswordReset: PasswordResetConfig{
			TTL:     15 * time.Minute,
			URLBase: "http://localhost:8000/api/v1/user/password/reset/",
		},
		Security: SecurityConfig{
			EnableIPThrottle:      true,
			MaxLoginAttempts:      10,
			LoginCooldown:         5 * time.Minute,
			EnableRefreshThrottle: true,
			MaxRefreshAttempts:    30,
			RefreshCooldown:       time.Minute,
		},
		Notify: NotifyConfig{
			Enabled:    true,
			BufferSize: 256,
			MaxRetries: 3,
			RetryDelay: 2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c Config) Validate() error {
	if c.Token.AccessTTL <= 0 {
		return errors.New("token access TTL must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("token refresh TTL must exceed access TTL")
	}
	if len(c.Token.Secret) < 32 {
		return errors.New("token secret must be at least 32 bytes")
	}
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("otp digits must be between 6 and 10")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("otp TTL must be positive")
	}
	if c.PasswordReset.TTL <= 0 {
		return errors.New("password reset TTL must be positive")
	}
	if c.PasswordReset.URLBase == "" {
		return errors.New("password reset URL base required")
	}
	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("max login attempts must be positive")
	}
	if c.Security.LoginCooldown <= 0 {
		return errors.New("login cooldown must be positive")
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 || c.Security.RefreshCooldown <= 0 {
			return errors.New("refresh throttle requires positive budget and cooldown")
		}
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
