package authcore

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrEngineNotReady is returned when an operation is invoked on an
	// engine whose dependencies were never wired via [Builder.Build].
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrBadRequest indicates a malformed or ambiguous request shape,
	// e.g. a login carrying both an email and a mobile number.
	ErrBadRequest = errors.New("invalid params")
	// ErrUserNotFound indicates that the referenced user does not exist
	// (or has been soft-deleted).
	ErrUserNotFound = errors.New("user not found")
	// ErrAuthenticationFailed indicates that the supplied password or OTP
	// does not match.
	ErrAuthenticationFailed = errors.New("unable to authenticate with provided credential")
	// ErrInvalidToken indicates a missing, expired, or already-consumed
	// token (password-reset token or refresh token).
	ErrInvalidToken = errors.New("invalid token")
	// ErrRateLimited indicates the caller exceeded the attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable indicates a credential or ephemeral store
	// round trip failed for infrastructure reasons.
	ErrStoreUnavailable = errors.New("backend store unavailable")

	// ErrDuplicateEmail is returned by a [UserStore] when the unique
	// constraint on email rejects a write.
	ErrDuplicateEmail = errors.New("user with this email already exists")
	// ErrDuplicateMobileNumber is returned by a [UserStore] when the
	// unique constraint on mobile number rejects a write.
	ErrDuplicateMobileNumber = errors.New("user with this mobile number already exists")
)

// ValidationError is a field-keyed error carrying every violated field of a
// request at once. Field checks accumulate; callers see all violations in a
// single response rather than the first one hit.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns an empty, ready-to-fill ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

// Add records one violation message under the given field key.
func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

// Empty reports whether no violations were recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}

	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, f := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %s", f, strings.Join(e.Fields[f], ", "))
	}
	return b.String()
}

// AsValidation unwraps err into a *ValidationError when it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
