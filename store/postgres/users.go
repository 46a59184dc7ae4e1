// Package postgres implements the durable user store on PostgreSQL via
// database/sql and the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"authcore"
)

// Unique index names from the schema, used to map constraint violations to
// field-level duplicate errors.
const (
	emailLiveIndex  = "users_email_live_idx"
	mobileLiveIndex = "users_mobile_number_live_idx"
)

// DBTX is the subset of database/sql used by the store. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements authcore.UserStore.
type Store struct {
	db DBTX
}

// NewStore wraps a database handle.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

const userColumns = `id, email, mobile_number, name, password_hash, is_active, is_deleted, deleted_at, created_at, updated_at`

// Create inserts a new live user row.
func (s *Store) Create(ctx context.Context, in authcore.CreateUserInput) (*authcore.User, error) {
	query := `INSERT INTO users (id, email, mobile_number, name, password_hash)
	 VALUES ($1, $2, $3, $4, $5)
	 RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query,
		in.ID, in.Email, in.MobileNumber, in.Name, in.PasswordHash))
	if err != nil {
		if mapped := mapDuplicate(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetByEmail returns the live user with the given email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*authcore.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
	 WHERE email = $1 AND is_deleted = FALSE`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get by email: %w", authcore.ErrUserNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetByMobileNumber returns the live user with the given mobile number.
func (s *Store) GetByMobileNumber(ctx context.Context, mobileNumber string) (*authcore.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
	 WHERE mobile_number = $1 AND is_deleted = FALSE`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, mobileNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get by mobile: %w", authcore.ErrUserNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// UpdatePasswordHash replaces the stored credential for a live user.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW()
	 WHERE id = $1 AND is_deleted = FALSE`

	res, err := s.db.ExecContext(ctx, query, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update password: %w", authcore.ErrUserNotFound)
	}
	return nil
}

// SoftDelete marks a live user as deleted, freeing its identifiers for
// re-registration while keeping the row.
func (s *Store) SoftDelete(ctx context.Context, userID string) error {
	query := `UPDATE users
	 SET is_deleted = TRUE, is_active = FALSE, deleted_at = NOW(), updated_at = NOW()
	 WHERE id = $1 AND is_deleted = FALSE`

	res, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("soft delete: %w", authcore.ErrUserNotFound)
	}
	return nil
}

func scanUser(row *sql.Row) (*authcore.User, error) {
	var (
		user      authcore.User
		deletedAt sql.NullTime
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.MobileNumber,
		&user.Name,
		&user.PasswordHash,
		&user.Active,
		&user.Deleted,
		&deletedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		user.DeletedAt = &t
	}
	return &user, nil
}

func mapDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch pgErr.ConstraintName {
	case emailLiveIndex:
		return fmt.Errorf("create user: %w", authcore.ErrDuplicateEmail)
	case mobileLiveIndex:
		return fmt.Errorf("create user: %w", authcore.ErrDuplicateMobileNumber)
	default:
		return fmt.Errorf("create user: %w", err)
	}
}
