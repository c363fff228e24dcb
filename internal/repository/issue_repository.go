package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-voice-api/internal/models"
	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
)

const issueColumns = `id, category, summary, rewritten_text, original_text, status, urgency_score, assigned_role, frequency_count, sla_deadline, anon_token, evidence_urls, version, created_at, updated_at`

// IssueRepository manages persistence for grievance issues. Issues carry a
// version column used for optimistic per-issue serialization: every mutation
// checks the version it read and bumps it, so two concurrent writers cannot
// both succeed from the same stale read.
type IssueRepository struct {
	db *sqlx.DB
}

// NewIssueRepository constructs a new repository.
func NewIssueRepository(db *sqlx.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// Create inserts a new issue.
func (r *IssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now
	if issue.Version == 0 {
		issue.Version = 1
	}
	if issue.FrequencyCount == 0 {
		issue.FrequencyCount = 1
	}
	query := `INSERT INTO issues (id, category, summary, rewritten_text, original_text, status, urgency_score, assigned_role, frequency_count, sla_deadline, anon_token, evidence_urls, version, created_at, updated_at)
VALUES (:id, :category, :summary, :rewritten_text, :original_text, :status, :urgency_score, :assigned_role, :frequency_count, :sla_deadline, :anon_token, :evidence_urls, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, issue); err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

// GetByID returns one issue by identifier.
func (r *IssueRepository) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	query := fmt.Sprintf("SELECT %s FROM issues WHERE id = $1 LIMIT 1", issueColumns)
	var issue models.Issue
	if err := r.db.GetContext(ctx, &issue, query, id); err != nil {
		return nil, err
	}
	return &issue, nil
}

// List returns issues matching the filter, newest first.
func (r *IssueRepository) List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Category != nil {
		where = append(where, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, *filter.Category)
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.AssignedRole != nil {
		where = append(where, fmt.Sprintf("assigned_role = $%d", len(args)+1))
		args = append(args, *filter.AssignedRole)
	}
	if filter.AnonToken != "" {
		where = append(where, fmt.Sprintf("anon_token = $%d", len(args)+1))
		args = append(args, filter.AnonToken)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM issues WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d", issueColumns, whereClause, size, offset)
	var issues []models.Issue
	if err := r.db.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list issues: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM issues WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}
	return issues, total, nil
}

// ListOpenByCategory returns non-Resolved issues in a category, newest first.
// These are the deduplication candidates: resolved issues never absorb a
// fresh report.
func (r *IssueRepository) ListOpenByCategory(ctx context.Context, category models.IssueCategory, limit int) ([]models.Issue, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("SELECT %s FROM issues WHERE category = $1 AND status <> $2 ORDER BY created_at DESC LIMIT $3", issueColumns)
	var issues []models.Issue
	if err := r.db.SelectContext(ctx, &issues, query, category, models.StatusResolved, limit); err != nil {
		return nil, fmt.Errorf("list open issues by category: %w", err)
	}
	return issues, nil
}

// ListBreached returns non-Resolved issues whose SLA deadline has passed.
func (r *IssueRepository) ListBreached(ctx context.Context, now time.Time) ([]models.Issue, error) {
	query := fmt.Sprintf("SELECT %s FROM issues WHERE status <> $1 AND sla_deadline < $2 ORDER BY sla_deadline ASC", issueColumns)
	var issues []models.Issue
	if err := r.db.SelectContext(ctx, &issues, query, models.StatusResolved, now.UTC()); err != nil {
		return nil, fmt.Errorf("list breached issues: %w", err)
	}
	return issues, nil
}

// IncrementFrequency adds one duplicate report to an issue. The version check
// detects a concurrent writer; on conflict the caller re-reads and retries.
func (r *IssueRepository) IncrementFrequency(ctx context.Context, id string, expectedVersion int) error {
	query := `UPDATE issues SET frequency_count = frequency_count + 1, version = version + 1, updated_at = $3
WHERE id = $1 AND version = $2`
	res, err := r.db.ExecContext(ctx, query, id, expectedVersion, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment frequency: %w", err)
	}
	return checkVersionConflict(res)
}

// UpdateStateParams carries the fields a state transition may change.
type UpdateStateParams struct {
	Status       *models.IssueStatus
	AssignedRole *models.UserRole
	SLADeadline  *time.Time
}

// UpdateState applies a state transition under the optimistic version check.
func (r *IssueRepository) UpdateState(ctx context.Context, id string, expectedVersion int, params UpdateStateParams) error {
	sets := []string{"version = version + 1", "updated_at = $3"}
	args := []interface{}{id, expectedVersion, time.Now().UTC()}
	if params.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *params.Status)
	}
	if params.AssignedRole != nil {
		sets = append(sets, fmt.Sprintf("assigned_role = $%d", len(args)+1))
		args = append(args, *params.AssignedRole)
	}
	if params.SLADeadline != nil {
		sets = append(sets, fmt.Sprintf("sla_deadline = $%d", len(args)+1))
		args = append(args, params.SLADeadline.UTC())
	}
	query := fmt.Sprintf("UPDATE issues SET %s WHERE id = $1 AND version = $2", strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update issue state: %w", err)
	}
	return checkVersionConflict(res)
}

// Stats aggregates dashboard counters across all issues.
func (r *IssueRepository) Stats(ctx context.Context) (*models.IssueStats, error) {
	stats := &models.IssueStats{ByCategory: make(map[models.IssueCategory]int)}

	statusQuery := `SELECT status, COUNT(*) AS count FROM issues GROUP BY status`
	statusRows := []struct {
		Status models.IssueStatus `db:"status"`
		Count  int                `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &statusRows, statusQuery); err != nil {
		return nil, fmt.Errorf("issue status stats: %w", err)
	}
	for _, row := range statusRows {
		stats.TotalIssues += row.Count
		switch row.Status {
		case models.StatusOpen:
			stats.Open = row.Count
		case models.StatusInProgress:
			stats.InProgress = row.Count
		case models.StatusEscalated:
			stats.Escalated = row.Count
		case models.StatusResolved:
			stats.Resolved = row.Count
		}
	}

	categoryQuery := `SELECT category, COUNT(*) AS count FROM issues GROUP BY category`
	categoryRows := []struct {
		Category models.IssueCategory `db:"category"`
		Count    int                  `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &categoryRows, categoryQuery); err != nil {
		return nil, fmt.Errorf("issue category stats: %w", err)
	}
	for _, row := range categoryRows {
		stats.ByCategory[row.Category] = row.Count
	}

	return stats, nil
}

func checkVersionConflict(res interface{ RowsAffected() (int64, error) }) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrConcurrentModification
	}
	return nil
}
