package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// memoryUserStore is a map-backed UserStore for engine tests.
type memoryUserStore struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: map[string]*User{}}
}

func (s *memoryUserStore) Create(ctx context.Context, in CreateUserInput) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Deleted {
			continue
		}
		if u.Email == in.Email {
			return nil, fmt.Errorf("create user: %w", ErrDuplicateEmail)
		}
		if u.MobileNumber == in.MobileNumber {
			return nil, fmt.Errorf("create user: %w", ErrDuplicateMobileNumber)
		}
	}
	now := time.Now()
	user := &User{
		ID:           in.ID,
		Email:        in.Email,
		MobileNumber: in.MobileNumber,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[in.ID] = user
	copied := *user
	return &copied, nil
}

func (s *memoryUserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email && !u.Deleted {
			copied := *u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("get by email: %w", ErrUserNotFound)
}

func (s *memoryUserStore) GetByMobileNumber(ctx context.Context, mobileNumber string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.MobileNumber == mobileNumber && !u.Deleted {
			copied := *u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("get by mobile: %w", ErrUserNotFound)
}

func (s *memoryUserStore) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.Deleted {
		return fmt.Errorf("update password: %w", ErrUserNotFound)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (s *memoryUserStore) SoftDelete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.Deleted {
		return fmt.Errorf("soft delete: %w", ErrUserNotFound)
	}
	now := time.Now()
	u.Deleted = true
	u.Active = false
	u.DeletedAt = &now
	return nil
}

func testEngineConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 16
	return cfg
}

type testEnv struct {
	engine *Engine
	redis  *miniredis.Miniredis
	users  *memoryUserStore
	sink   *ChannelSink
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testEngineConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	users := newMemoryUserStore()
	sink := NewChannelSink(256)
	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(users).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, redis: mr, users: users, sink: sink}
}

func registerTestUser(t *testing.T, env *testEnv) RegisterRequest {
	t.Helper()
	req := RegisterRequest{
		Email:           "jane@example.com",
		Password:        "Aa1$aaaa",
		ConfirmPassword: "Aa1$aaaa",
		Name:            "Jane",
		MobileNumber:    "9876543210",
	}
	if _, err := env.engine.Register(context.Background(), req); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	return req
}

func TestEngineRegisterAndPasswordLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	req := registerTestUser(t, env)

	pair, err := env.engine.Login(context.Background(), LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" || pair.Access == pair.Refresh {
		t.Fatalf("unexpected pair: %+v", pair)
	}
}

func TestEngineRegisterDuplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	req := registerTestUser(t, env)

	_, err := env.engine.Register(context.Background(), req)
	verr, ok := AsValidation(err)
	if !ok {
		t.Fatalf("err = %v, want validation error", err)
	}
	if got := verr.Fields["email"]; len(got) != 1 || got[0] != "User with this email already exist" {
		t.Fatalf("email errors = %v", got)
	}
	if got := verr.Fields["mobile_number"]; len(got) != 1 || got[0] != "User with this mobile number already exist" {
		t.Fatalf("mobile errors = %v", got)
	}
}

func TestEngineRegisterAccumulatesFieldErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.engine.Register(context.Background(), RegisterRequest{
		Email:           "not-an-email",
		Password:        "weak",
		ConfirmPassword: "other",
		Name:            "X",
		MobileNumber:    "12",
	})
	verr, ok := AsValidation(err)
	if !ok {
		t.Fatalf("err = %v, want validation error", err)
	}
	for _, field := range []string{"email", "password", "confirm_password", "mobile_number"} {
		if len(verr.Fields[field]) == 0 {
			t.Errorf("missing error for field %q: %v", field, verr.Fields)
		}
	}
}

func TestEngineLoginModeSelection(t *testing.T) {
	env := newTestEnv(t, nil)
	req := registerTestUser(t, env)

	cases := []LoginRequest{
		{},
		{Email: req.Email},
		{MobileNumber: req.MobileNumber},
		{Email: req.Email, Password: req.Password, OTP: "123456"},
		{Email: req.Email, Password: req.Password, MobileNumber: req.MobileNumber, OTP: "123456"},
	}
	for i, lr := range cases {
		if _, err := env.engine.Login(context.Background(), lr); !errors.Is(err, ErrBadRequest) {
			t.Errorf("case %d: err = %v, want ErrBadRequest", i, err)
		}
	}
}

func TestEngineLoginFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	req := registerTestUser(t, env)

	_, err := env.engine.Login(context.Background(), LoginRequest{Email: req.Email, Password: "Wrong1$a"})
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("wrong password: err = %v", err)
	}
	_, err = env.engine.Login(context.Background(), LoginRequest{Email: "ghost@example.com", Password: req.Password})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown email: err = %v", err)
	}
}

func TestEngineOTPFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	req := registerTestUser(t, env)
	ctx := context.Background()

	if err := env.engine.GenerateOTP(ctx, "0000000000"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown mobile: err = %v", err)
	}
	if err := env.engine.GenerateOTP(ctx, "abc"); err == nil {
		t.Fatal("malformed mobile accepted")
	}

	if err := env.engine.GenerateOTP(ctx, req.MobileNumber); err != nil {
		t.Fatalf("GenerateOTP error: %v", err)
	}
	code, err := env.redis.Get("otp:" + req.MobileNumber)
	if err != nil {
		t.Fatalf("stored code missing: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code %q, want 6 digits", code)
	}

	pair, err := env.engine.Login(ctx, LoginRequest{MobileNumber: req.MobileNumber, OTP: code})
	if err != nil {
		t.Fatalf("OTP login error: %v", err)
	}
	if pair.Access == "" {
		t.Fatal("empty access token")
	}

	// Code is not consumed on use; it stays valid until the TTL runs out.
	if _, err := env.engine.Login(ctx, LoginRequest{MobileNumber: req.MobileNumber, OTP: code}); err != nil {
		t.Fatalf("second OTP login error: %v", err)
	}

	env.redis.FastForward(301 * time.Second)
	if _, err := env.engine.Login(ctx, LoginRequest{MobileNumber: req.MobileNumber, OTP: code}); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expired OTP: err = %v", err)
	}
}

func TestEngineOTPRegenerateOverwrites(t *testing.T) {
	env := newTestEnv(t, nil)
	req := registerTestUser(t, env)
	ctx := context.Background()

	if err := env.engine.GenerateOTP(ctx, req.MobileNumber); err != nil {
		t.Fatal(err)
	}
	first, _ := env.redis.Get("otp:" + req.MobileNumber)

	env.redis.FastForward(200 * time.Second)
	if err := env.engine.GenerateOTP(ctx, req.MobileNumber); err != nil {
		t.Fatal(err)
	}
	ttl := env.redis.TTL("otp:" + req.MobileNumber)
	if ttl != 300*time.Second {
		t.Fatalf("ttl = %v, want restarted 300s window", ttl)
	}
	second, _ := env.redis.Get("otp:" + req.MobileNumber)
	if _, err := env.engine.Login(ctx, LoginRequest{MobileNumber: req.MobileNumber, OTP: second}); err != nil {
		t.Fatalf("login with regenerated code: %v", err)
	}
	_ = first
}

func TestEngineRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	req := registerTestUser(t, env)
	ctx := context.Background()

	pair, err := env.engine.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatal(err)
	}

	next, err := env.engine.Refresh(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if next.Access == "" || next.Refresh == "" {
		t.Fatalf("unexpected pair: %+v", next)
	}

	if _, err := env.engine.Refresh(ctx, pair.Access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted by refresh: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token: err = %v", err)
	}
}

func TestEnginePasswordResetFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	req := registerTestUser(t, env)
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, "nope"); err == nil {
		t.Fatal("malformed email accepted")
	}
	if err := env.engine.RequestPasswordReset(ctx, req.Email); err != nil {
		t.Fatalf("RequestPasswordReset error: %v", err)
	}

	var resetToken string
	for _, key := range env.redis.Keys() {
		if strings.HasPrefix(key, "password_reset:") {
			resetToken = strings.TrimPrefix(key, "password_reset:")
		}
	}
	if resetToken == "" {
		t.Fatal("no reset token stored")
	}

	// A weak replacement keeps the token alive for another attempt.
	err := env.engine.CompletePasswordReset(ctx, resetToken, "weak", "weak")
	if _, ok := AsValidation(err); !ok {
		t.Fatalf("err = %v, want validation error", err)
	}
	if !env.redis.Exists("password_reset:" + resetToken) {
		t.Fatal("token consumed by failed attempt")
	}

	if err := env.engine.CompletePasswordReset(ctx, resetToken, "Bb2$bbbb", "Bb2$bbbb"); err != nil {
		t.Fatalf("CompletePasswordReset error: %v", err)
	}
	if env.redis.Exists("password_reset:" + resetToken) {
		t.Fatal("token survived successful reset")
	}

	if _, err := env.engine.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password}); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("old password still valid: %v", err)
	}
	if _, err := env.engine.Login(ctx, LoginRequest{Email: req.Email, Password: "Bb2$bbbb"}); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}

	if err := env.engine.CompletePasswordReset(ctx, resetToken, "Cc3$cccc", "Cc3$cccc"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("reused token: err = %v", err)
	}
}

func TestEngineResetRequestDoesNotLeakAccounts(t *testing.T) {
	env := newTestEnv(t, nil)

	if err := env.engine.RequestPasswordReset(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("request for unknown address: %v", err)
	}
}

func TestEngineLoginRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Security.MaxLoginAttempts = 3
		cfg.Security.LoginCooldown = time.Minute
	})
	req := registerTestUser(t, env)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.engine.Login(ctx, LoginRequest{Email: req.Email, Password: "Wrong1$a"}); !errors.Is(err, ErrAuthenticationFailed) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if _, err := env.engine.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("budget exhausted but err = %v", err)
	}

	// The window eventually expires and the correct password works again.
	env.redis.FastForward(61 * time.Second)
	if _, err := env.engine.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password}); err != nil {
		t.Fatalf("after cooldown: %v", err)
	}
}

func TestEngineSuccessfulLoginResetsBudget(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Security.MaxLoginAttempts = 3
		cfg.Security.LoginCooldown = time.Minute
	})
	req := registerTestUser(t, env)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = env.engine.Login(ctx, LoginRequest{Email: req.Email, Password: "Wrong1$a"})
	}
	if _, err := env.engine.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password}); err != nil {
		t.Fatalf("login within budget: %v", err)
	}
	attempts, err := env.engine.LoginAttempts(ctx, req.Email)
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 0 {
		t.Fatalf("attempts = %d after successful login, want 0", attempts)
	}
}

func TestEngineDeactivateUser(t *testing.T) {
	env := newTestEnv(t, nil)
	req := registerTestUser(t, env)
	ctx := context.Background()

	user, err := env.users.GetByEmail(ctx, req.Email)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.engine.DeactivateUser(ctx, user.ID); err != nil {
		t.Fatalf("DeactivateUser error: %v", err)
	}
	if err := env.engine.DeactivateUser(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("second deactivation: err = %v", err)
	}

	if _, err := env.engine.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("deactivated login: err = %v", err)
	}

	// Soft deletion frees the identifiers for a fresh registration.
	if _, err := env.engine.Register(ctx, req); err != nil {
		t.Fatalf("re-register after deactivation: %v", err)
	}
}

func TestEngineAuditEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	req := registerTestUser(t, env)
	ctx := WithClientIP(context.Background(), "198.51.100.7")

	if _, err := env.engine.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password}); err != nil {
		t.Fatal(err)
	}
	env.engine.Close()

	seen := map[string]AuditEvent{}
	for {
		select {
		case ev := <-env.sink.Events():
			seen[ev.EventType] = ev
			continue
		default:
		}
		break
	}
	if _, ok := seen["register_success"]; !ok {
		t.Fatalf("missing register_success event: %v", seen)
	}
	login, ok := seen["login_success"]
	if !ok {
		t.Fatalf("missing login_success event: %v", seen)
	}
	if login.IP != "198.51.100.7" {
		t.Fatalf("login event IP = %q", login.IP)
	}
	if env.engine.AuditDropped() != 0 {
		t.Fatalf("dropped = %d", env.engine.AuditDropped())
	}
}

func TestEngineMetricsSnapshot(t *testing.T) {
	env := newTestEnv(t, nil)
	req := registerTestUser(t, env)
	ctx := context.Background()

	if _, err := env.engine.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password}); err != nil {
		t.Fatal(err)
	}
	_, _ = env.engine.Login(ctx, LoginRequest{Email: req.Email, Password: "Wrong1$a"})

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricRegisterSuccess] != 1 {
		t.Fatalf("register success = %d", snap.Counters[MetricRegisterSuccess])
	}
	if snap.Counters[MetricLoginSuccess] != 1 || snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("login counters = %v", snap.Counters)
	}
}

func TestBuilderValidation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	if _, err := New().WithConfig(testEngineConfig()).WithUserStore(newMemoryUserStore()).Build(); err == nil {
		t.Fatal("missing redis accepted")
	}
	if _, err := New().WithConfig(testEngineConfig()).WithRedis(client).Build(); err == nil {
		t.Fatal("missing user store accepted")
	}

	cfg := testEngineConfig()
	cfg.Token.Secret = []byte("short")
	if _, err := New().WithConfig(cfg).WithRedis(client).WithUserStore(newMemoryUserStore()).Build(); err == nil {
		t.Fatal("short secret accepted")
	}

	b := New().WithConfig(testEngineConfig()).WithRedis(client).WithUserStore(newMemoryUserStore())
	engine, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("builder reuse accepted")
	}
}
