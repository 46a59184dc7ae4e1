package flows

import (
	"context"
	"errors"
)

// Serializer-style field messages returned inside validation errors. The
// wording is part of the public API contract and must not drift.
const (
	msgFieldRequired    = "This field is required."
	msgInvalidEmail     = "Not a valid email"
	msgEmailTaken       = "User with this email already exist"
	msgWeakPassword     = "Not a strong password"
	msgPasswordMismatch = "Passwords do not match."
	msgInvalidMobile    = "Not a valid mobile number"
	msgMobileTaken      = "User with this mobile number already exist"
)

// RegisterRequest is the flow-local registration input.
type RegisterRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
	MobileNumber    string
}

// RegisterResult carries the identifier of the created account.
type RegisterResult struct {
	UserID string
}

// RegisterUserInput is the flow-local shape handed to the user store.
type RegisterUserInput struct {
	UserID       string
	Email        string
	MobileNumber string
	Name         string
	PasswordHash string
}

// RegisterMetrics carries metric IDs needed by the register flow.
type RegisterMetrics struct {
	Success          int
	ValidationFailed int
	Duplicate        int
}

// RegisterEvents carries audit event names used by the register flow.
type RegisterEvents struct {
	Success          string
	ValidationFailed string
}

// RegisterErrors carries host-level errors used by the register flow.
// ValidationFailed builds the host's field-keyed validation error.
type RegisterErrors struct {
	EngineNotReady        error
	DuplicateEmail        error
	DuplicateMobileNumber error
	ValidationFailed      func(fields map[string][]string) error
}

// RegisterDeps captures register flow dependencies.
type RegisterDeps struct {
	ValidEmail        func(string) bool
	ValidMobileNumber func(string) bool
	StrongPassword    func(string) bool

	EmailTaken        func(context.Context, string) (bool, error)
	MobileNumberTaken func(context.Context, string) (bool, error)

	HashPassword func(string) (string, error)
	NewUserID    func() string
	CreateUser   func(context.Context, RegisterUserInput) error

	SendWelcomeEmail func(email, name string)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)
	Warn      func(string, ...any)

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister validates the full request, accumulating every field failure
// before reporting, then hashes the password and creates the account.
// Existence checks run during validation so duplicate identifiers surface
// alongside format errors in a single response.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (*RegisterResult, error) {
	deps = normalizeRegisterDeps(deps)
	if deps.ValidEmail == nil ||
		deps.ValidMobileNumber == nil ||
		deps.StrongPassword == nil ||
		deps.EmailTaken == nil ||
		deps.MobileNumberTaken == nil ||
		deps.HashPassword == nil ||
		deps.NewUserID == nil ||
		deps.CreateUser == nil ||
		deps.Errors.ValidationFailed == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fields := map[string][]string{}
	addError := func(field, message string) {
		fields[field] = append(fields[field], message)
	}

	switch {
	case req.Email == "":
		addError("email", msgFieldRequired)
	case !deps.ValidEmail(req.Email):
		addError("email", msgInvalidEmail)
	default:
		taken, err := deps.EmailTaken(ctx, req.Email)
		if err != nil {
			return nil, err
		}
		if taken {
			addError("email", msgEmailTaken)
		}
	}

	switch {
	case req.Password == "":
		addError("password", msgFieldRequired)
	case !deps.StrongPassword(req.Password):
		addError("password", msgWeakPassword)
	}

	switch {
	case req.ConfirmPassword == "":
		addError("confirm_password", msgFieldRequired)
	case req.Password != req.ConfirmPassword:
		addError("confirm_password", msgPasswordMismatch)
	}

	if req.Name == "" {
		addError("name", msgFieldRequired)
	}

	switch {
	case req.MobileNumber == "":
		addError("mobile_number", msgFieldRequired)
	case !deps.ValidMobileNumber(req.MobileNumber):
		addError("mobile_number", msgInvalidMobile)
	default:
		taken, err := deps.MobileNumberTaken(ctx, req.MobileNumber)
		if err != nil {
			return nil, err
		}
		if taken {
			addError("mobile_number", msgMobileTaken)
		}
	}

	if len(fields) > 0 {
		deps.MetricInc(deps.Metrics.ValidationFailed)
		verr := deps.Errors.ValidationFailed(fields)
		deps.EmitAudit(ctx, deps.Events.ValidationFailed, false, "", verr, func() map[string]string {
			return map[string]string{
				"email": req.Email,
			}
		})
		return nil, verr
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	input := RegisterUserInput{
		UserID:       deps.NewUserID(),
		Email:        req.Email,
		MobileNumber: req.MobileNumber,
		Name:         req.Name,
		PasswordHash: hash,
	}
	if err := deps.CreateUser(ctx, input); err != nil {
		// A concurrent registration can slip past the validation-time
		// existence check; fold store-level duplicates back into the
		// same field-keyed shape the caller already handles.
		switch {
		case deps.Errors.DuplicateEmail != nil && errors.Is(err, deps.Errors.DuplicateEmail):
			deps.MetricInc(deps.Metrics.Duplicate)
			return nil, deps.Errors.ValidationFailed(map[string][]string{
				"email": {msgEmailTaken},
			})
		case deps.Errors.DuplicateMobileNumber != nil && errors.Is(err, deps.Errors.DuplicateMobileNumber):
			deps.MetricInc(deps.Metrics.Duplicate)
			return nil, deps.Errors.ValidationFailed(map[string][]string{
				"mobile_number": {msgMobileTaken},
			})
		}
		return nil, err
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, input.UserID, nil, func() map[string]string {
		return map[string]string{
			"email": req.Email,
		}
	})
	if deps.SendWelcomeEmail != nil {
		deps.SendWelcomeEmail(req.Email, req.Name)
	}

	return &RegisterResult{UserID: input.UserID}, nil
}

func normalizeRegisterDeps(deps RegisterDeps) RegisterDeps {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	return deps
}
