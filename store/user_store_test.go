package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webfolio/api/store"
)

func newMockUserStore(t *testing.T) (*store.UserStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewUserStore(db), mock
}

func TestCreateUser(t *testing.T) {
	s, mock := newMockUserStore(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("admin@example.com", []byte("hashed")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "created_at", "updated_at"}).
			AddRow(1, "admin@example.com", now, now))

	user, err := s.CreateUser(context.Background(), "admin@example.com", []byte("hashed"))
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
	assert.Equal(t, "admin@example.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s, mock := newMockUserStore(t)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("admin@example.com", []byte("hashed")).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "users_email_key"`))

	_, err := s.CreateUser(context.Background(), "admin@example.com", []byte("hashed"))
	assert.ErrorIs(t, err, store.ErrUserExists)
}

func TestGetUserByEmail(t *testing.T) {
	s, mock := newMockUserStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT id, email, hashed_password, created_at, updated_at").
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "hashed_password", "created_at", "updated_at"}).
			AddRow(1, "admin@example.com", []byte("hashed"), now, now))

	user, err := s.GetUserByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, []byte("hashed"), user.HashedPassword)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	s, mock := newMockUserStore(t)

	mock.ExpectQuery("SELECT id, email, hashed_password, created_at, updated_at").
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "hashed_password", "created_at", "updated_at"}))

	_, err := s.GetUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}
