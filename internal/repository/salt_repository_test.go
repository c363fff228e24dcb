package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaltForDayExistingSalt(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSaltRepository(db)

	mock.ExpectQuery("SELECT day, secret, created_at FROM daily_salts WHERE day = \\$1").
		WithArgs("20260830").
		WillReturnRows(sqlmock.NewRows([]string{"day", "secret", "created_at"}).
			AddRow("20260830", "deadbeef", time.Now().UTC()))

	secret, err := repo.SaltForDay(context.Background(), "20260830")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", secret)

	// Second lookup is served from the in-process cache.
	secret, err = repo.SaltForDay(context.Background(), "20260830")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", secret)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaltForDayCreatesMissingSalt(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSaltRepository(db)

	mock.ExpectQuery("SELECT day, secret, created_at FROM daily_salts WHERE day = \\$1").
		WithArgs("20260830").
		WillReturnRows(sqlmock.NewRows([]string{"day", "secret", "created_at"}))
	mock.ExpectQuery("INSERT INTO daily_salts").
		WithArgs("20260830", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"day", "secret", "created_at"}).
			AddRow("20260830", "cafef00d", time.Now().UTC()))

	secret, err := repo.SaltForDay(context.Background(), "20260830")
	require.NoError(t, err)
	assert.Equal(t, "cafef00d", secret)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaltForDayKeepsConcurrentWinner(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSaltRepository(db)

	mock.ExpectQuery("SELECT day, secret, created_at FROM daily_salts WHERE day = \\$1").
		WithArgs("20260830").
		WillReturnRows(sqlmock.NewRows([]string{"day", "secret", "created_at"}))
	// Another process inserted first; the RETURNING clause hands back its secret.
	mock.ExpectQuery("INSERT INTO daily_salts").
		WithArgs("20260830", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"day", "secret", "created_at"}).
			AddRow("20260830", "other-process-secret", time.Now().UTC()))

	secret, err := repo.SaltForDay(context.Background(), "20260830")
	require.NoError(t, err)
	assert.Equal(t, "other-process-secret", secret)
	assert.NoError(t, mock.ExpectationsWereMet())
}
