package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.GetUserByEmail != nil
}

func (s Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	return RunRegister(ctx, req, s.deps.Register)
}

func (s Service) PasswordLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	return RunPasswordLogin(ctx, email, password, s.deps.Login)
}

func (s Service) OTPLogin(ctx context.Context, mobileNumber, otp string) (*LoginResult, error) {
	return RunOTPLogin(ctx, mobileNumber, otp, s.deps.Login)
}

func (s Service) GenerateOTP(ctx context.Context, mobileNumber string) error {
	return RunGenerateOTP(ctx, mobileNumber, s.deps.OTP)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) error {
	return RunRequestPasswordReset(ctx, email, s.deps.Reset)
}

func (s Service) CompletePasswordReset(ctx context.Context, token, password, confirm string) error {
	return RunCompletePasswordReset(ctx, token, password, confirm, s.deps.Reset)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}
