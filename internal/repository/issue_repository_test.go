package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-voice-api/internal/models"
	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func issueRow() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "category", "summary", "rewritten_text", "original_text", "status",
		"urgency_score", "assigned_role", "frequency_count", "sla_deadline",
		"anon_token", "evidence_urls", "version", "created_at", "updated_at",
	}).AddRow(
		"issue-1", "Hostel", "Water supply broken", "The water supply is broken.", "water broken!!",
		"Open", 60, "Warden", 1, now.Add(48*time.Hour), "abc123def456", []byte("{}"), 1, now, now,
	)
}

func TestIssueRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	mock.ExpectExec("INSERT INTO issues").
		WillReturnResult(sqlmock.NewResult(0, 1))

	issue := &models.Issue{
		Category:     models.CategoryHostel,
		Summary:      "Water supply broken",
		Status:       models.StatusOpen,
		AssignedRole: models.RoleWarden,
		AnonToken:    "abc123def456",
	}
	err := repo.Create(context.Background(), issue)
	require.NoError(t, err)
	assert.NotEmpty(t, issue.ID)
	assert.Equal(t, 1, issue.Version)
	assert.Equal(t, 1, issue.FrequencyCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+issueColumns+" FROM issues WHERE id = $1 LIMIT 1")).
		WithArgs("issue-1").
		WillReturnRows(issueRow())

	issue, err := repo.GetByID(context.Background(), "issue-1")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryHostel, issue.Category)
	assert.Equal(t, models.RoleWarden, issue.AssignedRole)
	assert.Equal(t, 1, issue.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryListOpenByCategory(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	mock.ExpectQuery("SELECT .+ FROM issues WHERE category = \\$1 AND status <> \\$2 ORDER BY created_at DESC LIMIT \\$3").
		WithArgs(models.CategoryHostel, models.StatusResolved, 100).
		WillReturnRows(issueRow())

	issues, err := repo.ListOpenByCategory(context.Background(), models.CategoryHostel, 0)
	require.NoError(t, err)
	assert.Len(t, issues, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryListBreached(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM issues WHERE status <> \\$1 AND sla_deadline < \\$2 ORDER BY sla_deadline ASC").
		WithArgs(models.StatusResolved, now).
		WillReturnRows(issueRow())

	issues, err := repo.ListBreached(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, issues, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryIncrementFrequency(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	mock.ExpectExec("UPDATE issues SET frequency_count = frequency_count \\+ 1").
		WithArgs("issue-1", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.IncrementFrequency(context.Background(), "issue-1", 1)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryIncrementFrequencyConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	mock.ExpectExec("UPDATE issues SET frequency_count = frequency_count \\+ 1").
		WithArgs("issue-1", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementFrequency(context.Background(), "issue-1", 1)
	assert.ErrorIs(t, err, appErrors.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryUpdateState(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	status := models.StatusEscalated
	role := models.RoleAdmin
	deadline := time.Now().UTC().Add(48 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE issues SET version = version + 1, updated_at = $3, status = $4, assigned_role = $5, sla_deadline = $6 WHERE id = $1 AND version = $2")).
		WithArgs("issue-1", 1, sqlmock.AnyArg(), status, role, deadline).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateState(context.Background(), "issue-1", 1, UpdateStateParams{
		Status:       &status,
		AssignedRole: &role,
		SLADeadline:  &deadline,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryUpdateStateConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	status := models.StatusResolved
	mock.ExpectExec("UPDATE issues SET version = version \\+ 1").
		WithArgs("issue-1", 3, sqlmock.AnyArg(), status).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateState(context.Background(), "issue-1", 3, UpdateStateParams{Status: &status})
	assert.ErrorIs(t, err, appErrors.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryStats(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) AS count FROM issues GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("Open", 3).
			AddRow("Resolved", 2))
	mock.ExpectQuery("SELECT category, COUNT\\(\\*\\) AS count FROM issues GROUP BY category").
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).
			AddRow("Hostel", 4).
			AddRow("Academics", 1))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalIssues)
	assert.Equal(t, 3, stats.Open)
	assert.Equal(t, 2, stats.Resolved)
	assert.Equal(t, 4, stats.ByCategory[models.CategoryHostel])
	assert.NoError(t, mock.ExpectationsWereMet())
}
