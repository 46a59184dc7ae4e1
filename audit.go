package authcore

import (
	"context"
	"time"

	internalaudit "authcore/internal/audit"
)

// Audit event names emitted by engine operations.
const (
	auditEventRegisterSuccess          = "register_success"
	auditEventRegisterValidationFailed = "register_validation_failed"
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventLoginRateLimited         = "login_rate_limited"
	auditEventOTPGenerated             = "otp_generated"
	auditEventOTPDenied                = "otp_denied"
	auditEventRefreshSuccess           = "refresh_success"
	auditEventRefreshFailure           = "refresh_failure"
	auditEventRefreshRateLimited       = "refresh_rate_limited"
	auditEventResetRequested           = "password_reset_requested"
	auditEventResetCompleted           = "password_reset_completed"
	auditEventResetFailed              = "password_reset_failed"
	auditEventAccountDeactivated       = "account_deactivated"
)

// emitAudit builds the event envelope and hands it to the async dispatcher.
// The metadata builder runs only when auditing is active, so hot paths pay
// nothing for disabled audit.
func (e *Engine) emitAudit(
	ctx context.Context,
	event string,
	success bool,
	userID string,
	cause error,
	meta func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if meta != nil {
		metadata = meta()
	}
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}

	e.audit.Emit(ctx, internalaudit.Event{
		Timestamp: time.Now(),
		EventType: event,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     errMsg,
		Metadata:  metadata,
	})
}
