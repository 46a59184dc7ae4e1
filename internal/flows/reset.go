package flows

import (
	"context"
	"time"
)

// ResetMetrics carries metric IDs needed by the password reset flows.
type ResetMetrics struct {
	Requested int
	Completed int
	Failed    int
}

// ResetEvents carries audit event names used by the password reset flows.
type ResetEvents struct {
	Requested string
	Completed string
	Failed    string
}

// ResetErrors carries host-level errors used by the password reset flows.
type ResetErrors struct {
	EngineNotReady   error
	InvalidToken     error
	UserNotFound     error
	ValidationFailed func(fields map[string][]string) error
}

// ResetDeps captures password reset dependencies.
type ResetDeps struct {
	TTL time.Duration

	ValidEmail     func(string) bool
	StrongPassword func(string) bool

	NewResetToken func() string
	SaveReset     func(ctx context.Context, token, email string, ttl time.Duration) error
	GetResetEmail func(ctx context.Context, token string) (string, error)
	DeleteReset   func(ctx context.Context, token string) error

	GetUserByEmail     func(context.Context, string) (LoginUserRecord, error)
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(ctx context.Context, userID, hash string) error

	BuildResetURL  func(token string) string
	SendResetEmail func(email, url string)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)

	Metrics ResetMetrics
	Events  ResetEvents
	Errors  ResetErrors
}

// RunRequestPasswordReset mints a single-use reset token for the given
// address and mails the reset link. The address is deliberately not checked
// against the user store, so the response never leaks whether an account
// exists; a token for an unknown address simply fails at completion time.
func RunRequestPasswordReset(ctx context.Context, email string, deps ResetDeps) error {
	deps = normalizeResetDeps(deps)
	if deps.ValidEmail == nil ||
		deps.NewResetToken == nil ||
		deps.SaveReset == nil ||
		deps.Errors.ValidationFailed == nil {
		return deps.Errors.EngineNotReady
	}

	if email == "" || !deps.ValidEmail(email) {
		return deps.Errors.ValidationFailed(map[string][]string{
			"email": {msgInvalidEmail},
		})
	}

	token := deps.NewResetToken()
	if err := deps.SaveReset(ctx, token, email, deps.TTL); err != nil {
		return err
	}

	deps.MetricInc(deps.Metrics.Requested)
	deps.EmitAudit(ctx, deps.Events.Requested, true, "", nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})
	if deps.SendResetEmail != nil {
		url := token
		if deps.BuildResetURL != nil {
			url = deps.BuildResetURL(token)
		}
		deps.SendResetEmail(email, url)
	}
	return nil
}

// RunCompletePasswordReset redeems a reset token and installs the new
// password. A weak or mismatched password leaves the token alive so the
// user can retry from the same link; only a successful change consumes it.
func RunCompletePasswordReset(ctx context.Context, token, password, confirm string, deps ResetDeps) error {
	deps = normalizeResetDeps(deps)
	if deps.StrongPassword == nil ||
		deps.GetResetEmail == nil ||
		deps.DeleteReset == nil ||
		deps.GetUserByEmail == nil ||
		deps.HashPassword == nil ||
		deps.UpdatePasswordHash == nil ||
		deps.Errors.ValidationFailed == nil {
		return deps.Errors.EngineNotReady
	}

	email, err := deps.GetResetEmail(ctx, token)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failed)
		deps.EmitAudit(ctx, deps.Events.Failed, false, "", deps.Errors.InvalidToken, nil)
		return deps.Errors.InvalidToken
	}

	fields := map[string][]string{}
	switch {
	case password == "":
		fields["password"] = append(fields["password"], msgFieldRequired)
	case !deps.StrongPassword(password):
		fields["password"] = append(fields["password"], msgWeakPassword)
	}
	switch {
	case confirm == "":
		fields["confirm_password"] = append(fields["confirm_password"], msgFieldRequired)
	case password != confirm:
		fields["confirm_password"] = append(fields["confirm_password"], msgPasswordMismatch)
	}
	if len(fields) > 0 {
		deps.MetricInc(deps.Metrics.Failed)
		return deps.Errors.ValidationFailed(fields)
	}

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failed)
		deps.EmitAudit(ctx, deps.Events.Failed, false, "", deps.Errors.UserNotFound, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return deps.Errors.UserNotFound
	}

	hash, err := deps.HashPassword(password)
	if err != nil {
		return err
	}
	if err := deps.UpdatePasswordHash(ctx, user.UserID, hash); err != nil {
		return err
	}
	if err := deps.DeleteReset(ctx, token); err != nil {
		deps.EmitAudit(ctx, deps.Events.Failed, false, user.UserID, err, nil)
	}

	deps.MetricInc(deps.Metrics.Completed)
	deps.EmitAudit(ctx, deps.Events.Completed, true, user.UserID, nil, nil)
	return nil
}

func normalizeResetDeps(deps ResetDeps) ResetDeps {
	if deps.TTL <= 0 {
		deps.TTL = 15 * time.Minute
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	return deps
}
