package flows

import (
	"context"
	"crypto/subtle"
	"time"
)

// LoginResult is the flow-local token pair response shape.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
}

// LoginUserRecord is a flow-local user model used by login flows.
type LoginUserRecord struct {
	UserID       string
	Email        string
	MobileNumber string
	PasswordHash string
	Active       bool
}

// LoginMetrics carries metric IDs needed by login flows.
type LoginMetrics struct {
	Success     int
	Failure     int
	RateLimited int
}

// LoginEvents carries audit event names used by login flows.
type LoginEvents struct {
	Success     string
	Failure     string
	RateLimited string
}

// LoginErrors carries host-level sentinel errors used by login flows.
type LoginErrors struct {
	EngineNotReady       error
	UserNotFound         error
	AuthenticationFailed error
	RateLimited          error
}

// LoginDeps captures dependencies shared by the password and OTP login modes.
type LoginDeps struct {
	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	CheckLoginRate     func(ctx context.Context, identifier, ip string) error
	IncrementLoginRate func(ctx context.Context, identifier, ip string) error
	ResetLoginRate     func(ctx context.Context, identifier, ip string) error

	GetUserByEmail        func(context.Context, string) (LoginUserRecord, error)
	GetUserByMobileNumber func(context.Context, string) (LoginUserRecord, error)
	VerifyPassword        func(password, hash string) (bool, error)
	GetOTP                func(ctx context.Context, mobileNumber string) (string, error)

	IssuePair func(userID string) (access, refresh string, err error)

	MetricInc      func(int)
	ObserveLatency func(time.Duration)
	EmitAudit      func(context.Context, string, bool, string, error, func() map[string]string)
	Warn           func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunPasswordLogin authenticates by email and password and issues a token
// pair. Unknown email reports user-not-found; wrong password and a
// deactivated account both report the same authentication failure.
func RunPasswordLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	deps = normalizeLoginDeps(deps)
	if deps.GetUserByEmail == nil || deps.VerifyPassword == nil || deps.IssuePair == nil {
		return nil, deps.Errors.EngineNotReady
	}
	defer observeSince(deps, deps.Now())

	ip := deps.ClientIPFromContext(ctx)
	if err := checkLoginRate(ctx, email, ip, deps); err != nil {
		return nil, err
	}

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, failLogin(ctx, email, ip, "", "user_not_found", deps.Errors.UserNotFound, deps)
	}
	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, failLogin(ctx, email, ip, user.UserID, "password_mismatch", deps.Errors.AuthenticationFailed, deps)
	}
	if !user.Active {
		return nil, failLogin(ctx, email, ip, user.UserID, "account_inactive", deps.Errors.AuthenticationFailed, deps)
	}

	return issueLoginPair(ctx, email, ip, user.UserID, deps)
}

// RunOTPLogin authenticates by mobile number and a previously generated
// one-time passcode. The passcode is left in place until it expires, so a
// second login within the TTL also succeeds.
func RunOTPLogin(ctx context.Context, mobileNumber, otp string, deps LoginDeps) (*LoginResult, error) {
	deps = normalizeLoginDeps(deps)
	if deps.GetUserByMobileNumber == nil || deps.GetOTP == nil || deps.IssuePair == nil {
		return nil, deps.Errors.EngineNotReady
	}
	defer observeSince(deps, deps.Now())

	ip := deps.ClientIPFromContext(ctx)
	if err := checkLoginRate(ctx, mobileNumber, ip, deps); err != nil {
		return nil, err
	}

	user, err := deps.GetUserByMobileNumber(ctx, mobileNumber)
	if err != nil {
		return nil, failLogin(ctx, mobileNumber, ip, "", "user_not_found", deps.Errors.UserNotFound, deps)
	}
	stored, err := deps.GetOTP(ctx, mobileNumber)
	if err != nil {
		return nil, failLogin(ctx, mobileNumber, ip, user.UserID, "otp_missing", deps.Errors.AuthenticationFailed, deps)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(otp)) != 1 {
		return nil, failLogin(ctx, mobileNumber, ip, user.UserID, "otp_mismatch", deps.Errors.AuthenticationFailed, deps)
	}
	if !user.Active {
		return nil, failLogin(ctx, mobileNumber, ip, user.UserID, "account_inactive", deps.Errors.AuthenticationFailed, deps)
	}

	return issueLoginPair(ctx, mobileNumber, ip, user.UserID, deps)
}

func checkLoginRate(ctx context.Context, identifier, ip string, deps LoginDeps) error {
	if deps.CheckLoginRate == nil {
		return nil
	}
	if err := deps.CheckLoginRate(ctx, identifier, ip); err != nil {
		deps.MetricInc(deps.Metrics.RateLimited)
		deps.EmitAudit(ctx, deps.Events.RateLimited, false, "", deps.Errors.RateLimited, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
			}
		})
		return deps.Errors.RateLimited
	}
	return nil
}

func failLogin(ctx context.Context, identifier, ip, userID, reason string, cause error, deps LoginDeps) error {
	if deps.IncrementLoginRate != nil {
		if err := deps.IncrementLoginRate(ctx, identifier, ip); err != nil {
			deps.Warn("login limiter increment failed", "error", err)
		}
	}
	deps.MetricInc(deps.Metrics.Failure)
	deps.EmitAudit(ctx, deps.Events.Failure, false, userID, cause, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
			"reason":     reason,
		}
	})
	return cause
}

func issueLoginPair(ctx context.Context, identifier, ip, userID string, deps LoginDeps) (*LoginResult, error) {
	access, refresh, err := deps.IssuePair(userID)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, userID, err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "token_issue_failed",
			}
		})
		return nil, err
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, identifier, ip); err != nil {
			deps.Warn("login limiter reset failed", "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, userID, nil, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
		}
	})
	return &LoginResult{AccessToken: access, RefreshToken: refresh}, nil
}

func observeSince(deps LoginDeps, start time.Time) {
	if deps.ObserveLatency != nil {
		deps.ObserveLatency(deps.Now().Sub(start))
	}
}

func normalizeLoginDeps(deps LoginDeps) LoginDeps {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	return deps
}
