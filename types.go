package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "authcore/internal/audit"
)

// User is the credential record managed by a [UserStore]. Email and mobile
// number are each unique among non-deleted users; soft-deleted rows keep
// their data but are invisible to every lookup.
type User struct {
	ID           string
	Email        string
	MobileNumber string
	Name         string
	PasswordHash string
	Active       bool
	Deleted      bool
	DeletedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserInput is the input for [UserStore.Create]. The ID is assigned
// by the engine before the call.
type CreateUserInput struct {
	ID           string
	Email        string
	MobileNumber string
	Name         string
	PasswordHash string
}

// UserStore is the credential-persistence interface callers implement to
// integrate the engine with their user database. Lookups must exclude
// soft-deleted rows, return [ErrUserNotFound] for missing users, and Create
// must reject duplicates atomically (unique constraint, not check-then-act)
// with [ErrDuplicateEmail] or [ErrDuplicateMobileNumber].
type UserStore interface {
	Create(ctx context.Context, input CreateUserInput) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByMobileNumber(ctx context.Context, mobileNumber string) (*User, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	SoftDelete(ctx context.Context, userID string) error
}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
	MobileNumber    string
}

// RegisterResult is returned by [Engine.Register].
type RegisterResult struct {
	UserID string
}

// LoginRequest is the input for [Engine.Login]. Exactly one identifying
// field must be set: Email selects the password path, MobileNumber selects
// the OTP path.
type LoginRequest struct {
	Email        string
	Password     string
	MobileNumber string
	OTP          string
}

// TokenPair is a stateless access+refresh token pair. Neither token is
// persisted; both are verified by signature and expiry alone.
type TokenPair struct {
	Access  string
	Refresh string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
