package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-voice-api/internal/dto"
	"github.com/noah-isme/campus-voice-api/internal/hierarchy"
	"github.com/noah-isme/campus-voice-api/internal/models"
	"github.com/noah-isme/campus-voice-api/internal/repository"
	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
)

type issueStore interface {
	GetByID(ctx context.Context, id string) (*models.Issue, error)
	List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error)
	ListBreached(ctx context.Context, now time.Time) ([]models.Issue, error)
	UpdateState(ctx context.Context, id string, expectedVersion int, params repository.UpdateStateParams) error
}

type updateLedger interface {
	Append(ctx context.Context, update *models.IssueUpdate) error
	ListByIssue(ctx context.Context, issueID string) ([]models.IssueUpdate, error)
}

// IssueServiceConfig tunes the escalation state machine.
type IssueServiceConfig struct {
	SLAWindow time.Duration
}

// IssueService owns the escalation state machine: status transitions, manual
// and automatic escalation, resolution, and the breach sweep. Per-issue
// serialization relies on the repository's optimistic version check; lost
// updates surface as ErrConcurrentModification and no partial transition is
// ever applied.
type IssueService struct {
	issues    issueStore
	ledger    updateLedger
	tokens    tokenDeriver
	table     *hierarchy.Table
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	cfg       IssueServiceConfig

	sweeping sync.Mutex
}

// NewIssueService constructs the service.
func NewIssueService(issues issueStore, ledger updateLedger, tokens tokenDeriver, table *hierarchy.Table, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg IssueServiceConfig) *IssueService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SLAWindow <= 0 {
		cfg.SLAWindow = 48 * time.Hour
	}
	return &IssueService{
		issues:    issues,
		ledger:    ledger,
		tokens:    tokens,
		table:     table,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		cfg:       cfg,
	}
}

// Get returns an issue with its full update ledger, oldest entry first.
func (s *IssueService) Get(ctx context.Context, id string) (*dto.IssueDetailResponse, error) {
	issue, err := s.loadIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	updates, err := s.ledger.ListByIssue(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list issue updates")
	}
	return &dto.IssueDetailResponse{Issue: issue, Updates: updates}, nil
}

// ListForViewer returns the issues visible to the caller. Students see only
// their own submissions, located by recomputing today's anonymous token;
// staff see issues assigned to their role, and the Principal additionally
// sees everything already escalated.
func (s *IssueService) ListForViewer(ctx context.Context, claims *models.JWTClaims, page, pageSize int) ([]models.Issue, *models.Pagination, error) {
	filter := models.IssueFilter{Page: page, PageSize: pageSize}
	switch {
	case claims.Role == models.RoleStudent:
		token, err := s.tokens.DeriveToken(ctx, claims.UserID, s.now())
		if err != nil {
			return nil, nil, err
		}
		filter.AnonToken = token
	case claims.Role == models.RolePrincipal:
		status := models.StatusEscalated
		filter.Status = &status
	default:
		role := claims.Role
		filter.AssignedRole = &role
	}

	issues, total, err := s.issues.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list issues")
	}
	pagination := &models.Pagination{Page: max(filter.Page, 1), PageSize: filter.PageSize, TotalCount: total}
	if pagination.PageSize <= 0 {
		pagination.PageSize = 50
	}
	return issues, pagination, nil
}

// ListAll returns every issue, for Admin and Principal oversight.
func (s *IssueService) ListAll(ctx context.Context, page, pageSize int) ([]models.Issue, *models.Pagination, error) {
	issues, total, err := s.issues.List(ctx, models.IssueFilter{Page: page, PageSize: pageSize})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list issues")
	}
	pagination := &models.Pagination{Page: max(page, 1), PageSize: pageSize, TotalCount: total}
	if pagination.PageSize <= 0 {
		pagination.PageSize = 50
	}
	return issues, pagination, nil
}

// AddUpdate appends a progress entry. The first staff update on an Open
// issue moves it to In Progress; later updates leave the status alone.
func (s *IssueService) AddUpdate(ctx context.Context, id string, role models.UserRole, req dto.AddUpdateRequest) (*models.IssueUpdate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}
	if !role.IsStaff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff roles can update issues")
	}

	issue, err := s.loadIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue.Status == models.StatusResolved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "issue is already resolved")
	}

	update := &models.IssueUpdate{
		IssueID:     issue.ID,
		Role:        role,
		ContentKind: models.UpdateContentKind(req.ContentKind),
		CreatedAt:   s.now(),
	}
	if req.ContentText != "" {
		update.ContentText = &req.ContentText
	}
	if req.ContentURL != "" {
		update.ContentURL = &req.ContentURL
	}

	if err := s.ledger.Append(ctx, update); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append update")
	}

	if issue.Status == models.StatusOpen {
		status := models.StatusInProgress
		err := s.issues.UpdateState(ctx, issue.ID, issue.Version, repository.UpdateStateParams{Status: &status})
		if err != nil && !errors.Is(err, appErrors.ErrConcurrentModification) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark issue in progress")
		}
		// A concurrent transition already moved the issue past Open; the
		// ledger entry stands either way.
	}

	return update, nil
}

// Escalate advances an issue one step up its category's hierarchy chain,
// resets the SLA deadline, and records an audit entry in the ledger.
func (s *IssueService) Escalate(ctx context.Context, id, reason string, byRole models.UserRole, trigger models.EscalationTrigger) (*models.Issue, error) {
	issue, err := s.loadIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.escalate(ctx, issue, reason, byRole, trigger)
}

func (s *IssueService) escalate(ctx context.Context, issue *models.Issue, reason string, byRole models.UserRole, trigger models.EscalationTrigger) (*models.Issue, error) {
	if issue.Status == models.StatusResolved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "resolved issues cannot be escalated")
	}

	next, err := s.table.Next(issue.Category, issue.AssignedRole)
	if err != nil {
		return nil, err
	}

	status := models.StatusEscalated
	deadline := s.now().Add(s.cfg.SLAWindow)
	err = s.issues.UpdateState(ctx, issue.ID, issue.Version, repository.UpdateStateParams{
		Status:       &status,
		AssignedRole: &next,
		SLADeadline:  &deadline,
	})
	if err != nil {
		if errors.Is(err, appErrors.ErrConcurrentModification) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to escalate issue")
	}

	if reason == "" {
		reason = "manual escalation"
	}
	auditText := fmt.Sprintf("Escalated to %s. Reason: %s", next, reason)
	audit := &models.IssueUpdate{
		IssueID:     issue.ID,
		Role:        byRole,
		ContentKind: models.ContentText,
		ContentText: &auditText,
		CreatedAt:   s.now(),
	}
	if err := s.ledger.Append(ctx, audit); err != nil {
		s.logger.Warn("failed to record escalation audit entry", zap.String("issue_id", issue.ID), zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.CountEscalation(string(trigger))
	}

	issue.Status = status
	issue.AssignedRole = next
	issue.SLADeadline = deadline
	issue.Version++
	return issue, nil
}

// Resolve marks an issue Resolved. Resolved is absorbing: resolving twice
// fails with ErrInvalidTransition and no state changes.
func (s *IssueService) Resolve(ctx context.Context, id string, byRole models.UserRole) (*models.Issue, error) {
	issue, err := s.loadIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue.Status == models.StatusResolved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "issue is already resolved")
	}

	status := models.StatusResolved
	err = s.issues.UpdateState(ctx, issue.ID, issue.Version, repository.UpdateStateParams{Status: &status})
	if err != nil {
		if errors.Is(err, appErrors.ErrConcurrentModification) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve issue")
	}

	resolvedText := fmt.Sprintf("Marked resolved by %s", byRole)
	entry := &models.IssueUpdate{
		IssueID:     issue.ID,
		Role:        byRole,
		ContentKind: models.ContentText,
		ContentText: &resolvedText,
		CreatedAt:   s.now(),
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to record resolution entry", zap.String("issue_id", issue.ID), zap.Error(err))
	}

	issue.Status = status
	issue.Version++
	return issue, nil
}

// SweepForBreaches escalates every non-Resolved issue whose SLA deadline has
// passed. Failures are isolated per issue: one bad record never stops the
// rest of the sweep. Issues already at the terminal role are left alone.
// The sweep is idempotent per tick because escalation resets the deadline.
func (s *IssueService) SweepForBreaches(ctx context.Context, now time.Time) (int, error) {
	start := s.now()
	breached, err := s.issues.ListBreached(ctx, now)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list breached issues")
	}

	escalated := 0
	for i := range breached {
		issue := &breached[i]
		_, err := s.escalate(ctx, issue, "SLA breach", models.RoleSystem, models.TriggerAutomatic)
		switch {
		case err == nil:
			escalated++
		case errors.Is(err, appErrors.ErrNoFurtherEscalation):
			// Terminal role: the issue stays in its current status, no error.
		case errors.Is(err, appErrors.ErrConcurrentModification):
			// Someone acted on the issue during the sweep; the next tick
			// re-evaluates it against the fresh deadline.
			s.logger.Debug("sweep lost race on issue", zap.String("issue_id", issue.ID))
		default:
			s.logger.Error("sweep failed to escalate issue", zap.String("issue_id", issue.ID), zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveSweep(escalated, s.now().Sub(start))
	}
	s.logger.Info("breach sweep finished",
		zap.Int("breached", len(breached)),
		zap.Int("escalated", escalated),
	)
	return escalated, nil
}

// TrySweep runs SweepForBreaches unless another sweep is already in flight,
// in which case it reports skipped and does nothing. The scheduled tick and
// the manual trigger both go through this guard.
func (s *IssueService) TrySweep(ctx context.Context, now time.Time) (escalated int, skipped bool, err error) {
	if !s.sweeping.TryLock() {
		return 0, true, nil
	}
	defer s.sweeping.Unlock()
	escalated, err = s.SweepForBreaches(ctx, now)
	return escalated, false, err
}

func (s *IssueService) loadIssue(ctx context.Context, id string) (*models.Issue, error) {
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "issue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issue")
	}
	return issue, nil
}
