package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-voice-api/internal/models"
)

// UpdateRepository manages the append-only progress ledger attached to
// issues. Entries are only ever inserted; there is no update or delete path.
type UpdateRepository struct {
	db *sqlx.DB
}

// NewUpdateRepository constructs a new repository.
func NewUpdateRepository(db *sqlx.DB) *UpdateRepository {
	return &UpdateRepository{db: db}
}

// Append inserts one ledger entry for an issue.
func (r *UpdateRepository) Append(ctx context.Context, update *models.IssueUpdate) error {
	if update.ID == "" {
		update.ID = uuid.NewString()
	}
	if update.CreatedAt.IsZero() {
		update.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO issue_updates (id, issue_id, role, content_kind, content_text, content_url, created_at)
VALUES (:id, :issue_id, :role, :content_kind, :content_text, :content_url, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, update); err != nil {
		return fmt.Errorf("append issue update: %w", err)
	}
	return nil
}

// ListByIssue returns every ledger entry for an issue, oldest first.
func (r *UpdateRepository) ListByIssue(ctx context.Context, issueID string) ([]models.IssueUpdate, error) {
	query := `SELECT id, issue_id, role, content_kind, content_text, content_url, created_at
FROM issue_updates WHERE issue_id = $1 ORDER BY created_at ASC`
	var updates []models.IssueUpdate
	if err := r.db.SelectContext(ctx, &updates, query, issueID); err != nil {
		return nil, fmt.Errorf("list issue updates: %w", err)
	}
	return updates, nil
}

// CountByIssue returns the number of ledger entries for an issue.
func (r *UpdateRepository) CountByIssue(ctx context.Context, issueID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM issue_updates WHERE issue_id = $1", issueID); err != nil {
		return 0, fmt.Errorf("count issue updates: %w", err)
	}
	return count, nil
}
