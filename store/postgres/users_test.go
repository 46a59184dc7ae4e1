package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authcore"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewStore(db), mock, db
}

func userRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "email", "mobile_number", "name", "password_hash",
		"is_active", "is_deleted", "deleted_at", "created_at", "updated_at",
	}).AddRow(
		"u-1", "jane@example.com", "9876543210", "Jane", "phc-hash",
		true, false, nil, now, now,
	)
}

func TestCreateSuccess(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users\s*\(id,\s*email,\s*mobile_number,\s*name,\s*password_hash\)`).
		WithArgs("u-1", "jane@example.com", "9876543210", "Jane", "phc-hash").
		WillReturnRows(userRows())

	user, err := store.Create(context.Background(), authcore.CreateUserInput{
		ID:           "u-1",
		Email:        "jane@example.com",
		MobileNumber: "9876543210",
		Name:         "Jane",
		PasswordHash: "phc-hash",
	})
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.True(t, user.Active)
	assert.False(t, user.Deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateEmail(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_live_idx"})

	_, err := store.Create(context.Background(), authcore.CreateUserInput{ID: "u-1"})
	require.ErrorIs(t, err, authcore.ErrDuplicateEmail)
}

func TestCreateDuplicateMobile(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_mobile_number_live_idx"})

	_, err := store.Create(context.Background(), authcore.CreateUserInput{ID: "u-1"})
	require.ErrorIs(t, err, authcore.ErrDuplicateMobileNumber)
}

func TestGetByEmail(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s+AND\s+is_deleted\s*=\s*FALSE`).
		WithArgs("jane@example.com").
		WillReturnRows(userRows())

	user, err := store.GetByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)
}

func TestGetByEmailNotFound(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+.*FROM\s+users\s+WHERE\s+email`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetByEmail(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, authcore.ErrUserNotFound)
}

func TestGetByMobileNumber(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+.*FROM\s+users\s+WHERE\s+mobile_number\s*=\s*\$1\s+AND\s+is_deleted\s*=\s*FALSE`).
		WithArgs("9876543210").
		WillReturnRows(userRows())

	user, err := store.GetByMobileNumber(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.Equal(t, "9876543210", user.MobileNumber)
}

func TestUpdatePasswordHash(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$2`).
		WithArgs("u-1", "new-hash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdatePasswordHash(context.Background(), "u-1", "new-hash"))
}

func TestUpdatePasswordHashMissingUser(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+password_hash`).
		WithArgs("ghost", "new-hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdatePasswordHash(context.Background(), "ghost", "new-hash")
	require.ErrorIs(t, err, authcore.ErrUserNotFound)
}

func TestSoftDelete(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+is_deleted\s*=\s*TRUE`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SoftDelete(context.Background(), "u-1"))
}

func TestSoftDeleteAlreadyDeleted(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+is_deleted`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SoftDelete(context.Background(), "u-1")
	require.ErrorIs(t, err, authcore.ErrUserNotFound)
}
