package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-voice-api/internal/models"
)

func TestUserRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &models.User{
		Email:        "student@campus.edu",
		PasswordHash: "hash",
		FullName:     "Test Student",
		Role:         models.RoleStudent,
		Active:       true,
	}
	err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "department", "active", "last_login", "created_at", "updated_at"}).
		AddRow("u1", "warden@campus.edu", "hash", "W Arden", "Warden", nil, true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userColumns+" FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("warden@campus.edu").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "warden@campus.edu")
	require.NoError(t, err)
	assert.Equal(t, models.RoleWarden, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmailMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userColumns+" FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("ghost@campus.edu").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@campus.edu")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateLastLogin(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	ts := time.Now().UTC()
	mock.ExpectExec("UPDATE users SET last_login").
		WithArgs("u1", ts, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateLastLogin(context.Background(), "u1", ts)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
