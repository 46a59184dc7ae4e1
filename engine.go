package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"authcore/internal"
	internalaudit "authcore/internal/audit"
	"authcore/internal/flows"
	"authcore/internal/rate"
	"authcore/internal/stores"
	"authcore/notify"
	"authcore/password"
	"authcore/token"
	"authcore/validate"
)

// Engine is the façade over every authentication operation. Build one with
// the Builder; the zero value is not usable.
type Engine struct {
	config       Config
	users        UserStore
	otpStore     *stores.OTPStore
	resetStore   *stores.ResetStore
	rateLimiter  *rate.Limiter
	passwordHash *password.Argon2
	tokens       *token.Manager
	audit        *internalaudit.Dispatcher
	notify       *notify.Dispatcher
	metrics      *Metrics
	logger       *slog.Logger
	otpSender    func(mobileNumber, code string)
	flows        flows.Service
}

// Register creates a new account from the given request. All field failures
// are accumulated and returned together as a *ValidationError.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flows.Register(ctx, flows.RegisterRequest{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Name:            req.Name,
		MobileNumber:    req.MobileNumber,
	})
	if err != nil {
		return nil, err
	}
	return &RegisterResult{UserID: res.UserID}, nil
}

// Login authenticates with either email+password or mobile+OTP, chosen by
// which fields the request carries. Mixing or omitting both credential sets
// returns ErrBadRequest.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	var (
		res *flows.LoginResult
		err error
	)
	switch {
	case req.Email != "" && req.Password != "" && req.MobileNumber == "" && req.OTP == "":
		res, err = e.flows.PasswordLogin(ctx, req.Email, req.Password)
	case req.MobileNumber != "" && req.OTP != "" && req.Email == "" && req.Password == "":
		res, err = e.flows.OTPLogin(ctx, req.MobileNumber, req.OTP)
	default:
		return nil, ErrBadRequest
	}
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: res.AccessToken, Refresh: res.RefreshToken}, nil
}

// GenerateOTP mints a fresh one-time passcode for a registered mobile number
// and stores it for the configured TTL. A second call before expiry replaces
// the previous code.
func (e *Engine) GenerateOTP(ctx context.Context, mobileNumber string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return e.flows.GenerateOTP(ctx, mobileNumber)
}

// Refresh exchanges a valid refresh token for a new access/refresh pair.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flows.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: res.AccessToken, Refresh: res.RefreshToken}, nil
}

// RequestPasswordReset issues a single-use reset token for the address and
// mails the reset link. The address is not checked against the user store,
// so the call cannot be used to probe for accounts.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return e.flows.RequestPasswordReset(ctx, email)
}

// CompletePasswordReset redeems a reset token and installs the new password.
// Validation failures leave the token redeemable; success consumes it.
func (e *Engine) CompletePasswordReset(ctx context.Context, resetToken, newPassword, confirmPassword string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return e.flows.CompletePasswordReset(ctx, resetToken, newPassword, confirmPassword)
}

// DeactivateUser soft-deletes the account. The row survives for audit
// purposes but every lookup treats the user as gone, which frees the email
// and mobile number for re-registration.
func (e *Engine) DeactivateUser(ctx context.Context, userID string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrBadRequest
	}
	if err := e.users.SoftDelete(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	e.metricInc(MetricAccountDeactivated)
	e.emitAudit(ctx, auditEventAccountDeactivated, true, userID, nil, nil)
	return nil
}

// VerifyAccess checks an access token's signature, expiry, and type claim
// and returns the user ID it was issued for. Refresh tokens are rejected.
func (e *Engine) VerifyAccess(accessToken string) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.UID, nil
}

// LoginAttempts reports the current failed-attempt count for an identifier.
func (e *Engine) LoginAttempts(ctx context.Context, identifier string) (int, error) {
	if e == nil || e.rateLimiter == nil {
		return 0, ErrEngineNotReady
	}
	return e.rateLimiter.LoginAttempts(ctx, identifier)
}

// Close shuts down the audit and mail dispatchers, draining queued work.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.notify != nil {
		e.notify.Close()
	}
}

// AuditDropped reports audit events lost to a full queue.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// NotifyDropped reports outbound messages lost to a full queue or failed
// delivery.
func (e *Engine) NotifyDropped() uint64 {
	if e == nil || e.notify == nil {
		return 0
	}
	return e.notify.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) flowDeps() flows.Deps {
	validationFailed := func(fields map[string][]string) error {
		return &ValidationError{Fields: fields}
	}
	metricInc := func(id int) { e.metricInc(MetricID(id)) }
	emitAudit := func(ctx context.Context, event string, success bool, userID string, cause error, meta func() map[string]string) {
		e.emitAudit(ctx, event, success, userID, cause, meta)
	}
	warn := func(msg string, args ...any) { e.logger.Warn(msg, args...) }

	getByEmail := func(ctx context.Context, email string) (flows.LoginUserRecord, error) {
		user, err := e.users.GetByEmail(ctx, email)
		if err != nil {
			return flows.LoginUserRecord{}, err
		}
		return loginRecord(user), nil
	}
	getByMobile := func(ctx context.Context, mobileNumber string) (flows.LoginUserRecord, error) {
		user, err := e.users.GetByMobileNumber(ctx, mobileNumber)
		if err != nil {
			return flows.LoginUserRecord{}, err
		}
		return loginRecord(user), nil
	}

	deps := flows.Deps{
		Register: flows.RegisterDeps{
			ValidEmail:        validate.Email,
			ValidMobileNumber: validate.MobileNumber,
			StrongPassword:    validate.PasswordStrength,
			EmailTaken: func(ctx context.Context, email string) (bool, error) {
				if _, err := e.users.GetByEmail(ctx, email); err != nil {
					if errors.Is(err, ErrUserNotFound) {
						return false, nil
					}
					return false, err
				}
				return true, nil
			},
			MobileNumberTaken: func(ctx context.Context, mobileNumber string) (bool, error) {
				if _, err := e.users.GetByMobileNumber(ctx, mobileNumber); err != nil {
					if errors.Is(err, ErrUserNotFound) {
						return false, nil
					}
					return false, err
				}
				return true, nil
			},
			HashPassword: e.passwordHash.Hash,
			NewUserID:    uuid.NewString,
			CreateUser: func(ctx context.Context, in flows.RegisterUserInput) error {
				_, err := e.users.Create(ctx, CreateUserInput{
					ID:           in.UserID,
					Email:        in.Email,
					MobileNumber: in.MobileNumber,
					Name:         in.Name,
					PasswordHash: in.PasswordHash,
				})
				return err
			},
			SendWelcomeEmail: func(email, name string) {
				e.notify.Enqueue(notify.Message{
					To:      email,
					Subject: "Welcome!",
					Body:    fmt.Sprintf("Hi %s,\r\n\r\nYour account has been created.\r\n", name),
				})
			},
			MetricInc: metricInc,
			EmitAudit: emitAudit,
			Warn:      warn,
			Metrics: flows.RegisterMetrics{
				Success:          int(MetricRegisterSuccess),
				ValidationFailed: int(MetricRegisterValidationFailed),
				Duplicate:        int(MetricRegisterDuplicate),
			},
			Events: flows.RegisterEvents{
				Success:          auditEventRegisterSuccess,
				ValidationFailed: auditEventRegisterValidationFailed,
			},
			Errors: flows.RegisterErrors{
				EngineNotReady:        ErrEngineNotReady,
				DuplicateEmail:        ErrDuplicateEmail,
				DuplicateMobileNumber: ErrDuplicateMobileNumber,
				ValidationFailed:      validationFailed,
			},
		},
		Login: flows.LoginDeps{
			ClientIPFromContext:   clientIPFromContext,
			GetUserByEmail:        getByEmail,
			GetUserByMobileNumber: getByMobile,
			VerifyPassword:        e.passwordHash.Verify,
			GetOTP:                e.otpStore.Get,
			IssuePair:             e.tokens.Pair,
			MetricInc:             metricInc,
			EmitAudit:             emitAudit,
			Warn:                  warn,
			Metrics: flows.LoginMetrics{
				Success:     int(MetricLoginSuccess),
				Failure:     int(MetricLoginFailure),
				RateLimited: int(MetricLoginRateLimited),
			},
			Events: flows.LoginEvents{
				Success:     auditEventLoginSuccess,
				Failure:     auditEventLoginFailure,
				RateLimited: auditEventLoginRateLimited,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:       ErrEngineNotReady,
				UserNotFound:         ErrUserNotFound,
				AuthenticationFailed: ErrAuthenticationFailed,
				RateLimited:          ErrRateLimited,
			},
		},
		OTP: flows.OTPDeps{
			TTL:                   e.config.OTP.TTL,
			ValidMobileNumber:     validate.MobileNumber,
			GetUserByMobileNumber: getByMobile,
			NewOTP: func() (string, error) {
				return internal.NewOTP(e.config.OTP.Digits)
			},
			SaveOTP:   e.otpStore.Save,
			SendOTP:   e.otpSender,
			MetricInc: metricInc,
			EmitAudit: emitAudit,
			Metrics: flows.OTPMetrics{
				Generated: int(MetricOTPGenerated),
				Denied:    int(MetricOTPDenied),
			},
			Events: flows.OTPEvents{
				Generated: auditEventOTPGenerated,
				Denied:    auditEventOTPDenied,
			},
			Errors: flows.OTPErrors{
				EngineNotReady:   ErrEngineNotReady,
				UserNotFound:     ErrUserNotFound,
				ValidationFailed: validationFailed,
			},
		},
		Reset: flows.ResetDeps{
			TTL:            e.config.PasswordReset.TTL,
			ValidEmail:     validate.Email,
			StrongPassword: validate.PasswordStrength,
			NewResetToken:  uuid.NewString,
			SaveReset:      e.resetStore.Save,
			GetResetEmail:  e.resetStore.GetEmail,
			DeleteReset:    e.resetStore.Delete,
			GetUserByEmail: getByEmail,
			HashPassword:   e.passwordHash.Hash,
			UpdatePasswordHash: func(ctx context.Context, userID, hash string) error {
				return e.users.UpdatePasswordHash(ctx, userID, hash)
			},
			BuildResetURL: func(resetToken string) string {
				return e.config.PasswordReset.URLBase + resetToken
			},
			SendResetEmail: func(email, url string) {
				e.notify.Enqueue(notify.Message{
					To:      email,
					Subject: "Password reset",
					Body:    fmt.Sprintf("Use the link below to reset your password:\r\n\r\n%s\r\n", url),
				})
			},
			MetricInc: metricInc,
			EmitAudit: emitAudit,
			Metrics: flows.ResetMetrics{
				Requested: int(MetricResetRequested),
				Completed: int(MetricResetCompleted),
				Failed:    int(MetricResetFailed),
			},
			Events: flows.ResetEvents{
				Requested: auditEventResetRequested,
				Completed: auditEventResetCompleted,
				Failed:    auditEventResetFailed,
			},
			Errors: flows.ResetErrors{
				EngineNotReady:   ErrEngineNotReady,
				InvalidToken:     ErrInvalidToken,
				UserNotFound:     ErrUserNotFound,
				ValidationFailed: validationFailed,
			},
		},
		Refresh: flows.RefreshDeps{
			ClientIPFromContext: clientIPFromContext,
			RefreshPair:         e.tokens.Refresh,
			MetricInc:           metricInc,
			EmitAudit:           emitAudit,
			Metrics: flows.RefreshMetrics{
				Success:     int(MetricRefreshSuccess),
				Failure:     int(MetricRefreshFailure),
				RateLimited: int(MetricRefreshRateLimited),
			},
			Events: flows.RefreshEvents{
				Success:     auditEventRefreshSuccess,
				Failure:     auditEventRefreshFailure,
				RateLimited: auditEventRefreshRateLimited,
			},
			Errors: flows.RefreshErrors{
				EngineNotReady: ErrEngineNotReady,
				InvalidToken:   ErrInvalidToken,
				RateLimited:    ErrRateLimited,
			},
		},
	}

	if e.rateLimiter != nil {
		deps.Login.CheckLoginRate = e.rateLimiter.CheckLogin
		deps.Login.IncrementLoginRate = e.rateLimiter.IncrementLogin
		deps.Login.ResetLoginRate = e.rateLimiter.ResetLogin
		deps.Refresh.CheckRefreshRate = e.rateLimiter.CheckRefresh
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		deps.Login.ObserveLatency = func(d time.Duration) {
			e.metrics.Observe(MetricLoginLatency, d)
		}
	}
	return deps
}

func loginRecord(user *User) flows.LoginUserRecord {
	return flows.LoginUserRecord{
		UserID:       user.ID,
		Email:        user.Email,
		MobileNumber: user.MobileNumber,
		PasswordHash: user.PasswordHash,
		Active:       user.Active && !user.Deleted,
	}
}
