package flows

import (
	"context"
	"time"
)

// OTPMetrics carries metric IDs needed by the OTP generation flow.
type OTPMetrics struct {
	Generated int
	Denied    int
}

// OTPEvents carries audit event names used by the OTP generation flow.
type OTPEvents struct {
	Generated string
	Denied    string
}

// OTPErrors carries host-level errors used by the OTP generation flow.
type OTPErrors struct {
	EngineNotReady   error
	UserNotFound     error
	ValidationFailed func(fields map[string][]string) error
}

// OTPDeps captures OTP generation dependencies.
type OTPDeps struct {
	TTL time.Duration

	ValidMobileNumber     func(string) bool
	GetUserByMobileNumber func(context.Context, string) (LoginUserRecord, error)

	NewOTP  func() (string, error)
	SaveOTP func(ctx context.Context, mobileNumber, code string, ttl time.Duration) error
	SendOTP func(mobileNumber, code string)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)

	Metrics OTPMetrics
	Events  OTPEvents
	Errors  OTPErrors
}

// RunGenerateOTP mints a fresh passcode for a known mobile number and stores
// it with the configured TTL. Regenerating before expiry overwrites the
// previous code and restarts its clock.
func RunGenerateOTP(ctx context.Context, mobileNumber string, deps OTPDeps) error {
	deps = normalizeOTPDeps(deps)
	if deps.ValidMobileNumber == nil ||
		deps.GetUserByMobileNumber == nil ||
		deps.NewOTP == nil ||
		deps.SaveOTP == nil ||
		deps.Errors.ValidationFailed == nil {
		return deps.Errors.EngineNotReady
	}

	if mobileNumber == "" || !deps.ValidMobileNumber(mobileNumber) {
		deps.MetricInc(deps.Metrics.Denied)
		return deps.Errors.ValidationFailed(map[string][]string{
			"mobile_number": {msgInvalidMobile},
		})
	}

	user, err := deps.GetUserByMobileNumber(ctx, mobileNumber)
	if err != nil {
		deps.MetricInc(deps.Metrics.Denied)
		deps.EmitAudit(ctx, deps.Events.Denied, false, "", deps.Errors.UserNotFound, func() map[string]string {
			return map[string]string{
				"mobile_number": mobileNumber,
			}
		})
		return deps.Errors.UserNotFound
	}

	code, err := deps.NewOTP()
	if err != nil {
		return err
	}
	if err := deps.SaveOTP(ctx, mobileNumber, code, deps.TTL); err != nil {
		return err
	}

	deps.MetricInc(deps.Metrics.Generated)
	deps.EmitAudit(ctx, deps.Events.Generated, true, user.UserID, nil, func() map[string]string {
		return map[string]string{
			"mobile_number": mobileNumber,
		}
	})
	if deps.SendOTP != nil {
		deps.SendOTP(mobileNumber, code)
	}
	return nil
}

func normalizeOTPDeps(deps OTPDeps) OTPDeps {
	if deps.TTL <= 0 {
		deps.TTL = 5 * time.Minute
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	return deps
}
