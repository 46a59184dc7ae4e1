package authcore

import (
	"bytes"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with secret",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "short secret",
			mutate: func(c *Config) {
				c.Token.Secret = []byte("too short")
			},
		},
		{
			name: "zero access TTL",
			mutate: func(c *Config) {
				c.Token.AccessTTL = 0
			},
		},
		{
			name: "refresh TTL not above access TTL",
			mutate: func(c *Config) {
				c.Token.RefreshTTL = c.Token.AccessTTL
			},
		},
		{
			name: "otp digits too small",
			mutate: func(c *Config) {
				c.OTP.Digits = 4
			},
		},
		{
			name: "otp digits too large",
			mutate: func(c *Config) {
				c.OTP.Digits = 12
			},
		},
		{
			name: "zero otp TTL",
			mutate: func(c *Config) {
				c.OTP.TTL = 0
			},
		},
		{
			name: "zero reset TTL",
			mutate: func(c *Config) {
				c.PasswordReset.TTL = 0
			},
		},
		{
			name: "empty reset URL base",
			mutate: func(c *Config) {
				c.PasswordReset.URLBase = ""
			},
		},
		{
			name: "zero login attempts",
			mutate: func(c *Config) {
				c.Security.MaxLoginAttempts = 0
			},
		},
		{
			name: "zero login cooldown",
			mutate: func(c *Config) {
				c.Security.LoginCooldown = 0
			},
		},
		{
			name: "refresh throttle without budget",
			mutate: func(c *Config) {
				c.Security.EnableRefreshThrottle = true
				c.Security.MaxRefreshAttempts = 0
			},
		},
		{
			name: "refresh throttle disabled ignores budget",
			mutate: func(c *Config) {
				c.Security.EnableRefreshThrottle = false
				c.Security.MaxRefreshAttempts = 0
			},
			wantValid: true,
		},
		{
			name: "custom TTLs",
			mutate: func(c *Config) {
				c.Token.AccessTTL = 5 * time.Minute
				c.Token.RefreshTTL = 30 * 24 * time.Hour
				c.OTP.TTL = 2 * time.Minute
			},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("Validate() = nil, want error")
			}
		})
	}
}

func TestCloneConfigIsolatesSecret(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)

	clone.Token.Secret[0] = 'X'
	if bytes.Equal(cfg.Token.Secret, clone.Token.Secret) {
		t.Fatal("clone shares the secret backing array")
	}
}
