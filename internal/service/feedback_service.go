package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-voice-api/internal/dto"
	"github.com/noah-isme/campus-voice-api/internal/hierarchy"
	"github.com/noah-isme/campus-voice-api/internal/models"
	"github.com/noah-isme/campus-voice-api/internal/moderation"
	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
)

type moderator interface {
	Moderate(ctx context.Context, rawText string) (*moderation.Verdict, error)
}

type tokenDeriver interface {
	DeriveToken(ctx context.Context, identityID string, asOf time.Time) (string, error)
}

type feedbackIssueRepository interface {
	Create(ctx context.Context, issue *models.Issue) error
	GetByID(ctx context.Context, id string) (*models.Issue, error)
	ListOpenByCategory(ctx context.Context, category models.IssueCategory, limit int) ([]models.Issue, error)
	IncrementFrequency(ctx context.Context, id string, expectedVersion int) error
}

// FeedbackServiceConfig tunes the submission pipeline.
type FeedbackServiceConfig struct {
	SLAWindow           time.Duration
	SimilarityThreshold float64
	CandidateLimit      int
}

// FeedbackService runs the submission pipeline: moderation, anonymization,
// deduplication, and issue creation. Moderation happens first and fails
// closed; the anonymous token is derived only after the content is accepted,
// so rejected text is never stored.
type FeedbackService struct {
	issues    feedbackIssueRepository
	moderator moderator
	tokens    tokenDeriver
	table     *hierarchy.Table
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	cfg       FeedbackServiceConfig
}

// NewFeedbackService constructs the service.
func NewFeedbackService(issues feedbackIssueRepository, mod moderator, tokens tokenDeriver, table *hierarchy.Table, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg FeedbackServiceConfig) *FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SLAWindow <= 0 {
		cfg.SLAWindow = 48 * time.Hour
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = 0.6
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 100
	}
	return &FeedbackService{
		issues:    issues,
		moderator: mod,
		tokens:    tokens,
		table:     table,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		cfg:       cfg,
	}
}

// Submit processes one grievance submission end to end. Returns the created
// or absorbing issue id. Only students may submit; staff act on issues through
// the lifecycle endpoints instead. The moderation call holds no lock and its
// timeout aborts the whole submission.
func (s *FeedbackService) Submit(ctx context.Context, claims *models.JWTClaims, req dto.SubmitFeedbackRequest) (*dto.SubmitFeedbackResponse, error) {
	if claims == nil || claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit feedback")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}
	category := models.IssueCategory(req.Category)
	if !category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
	}

	verdict, err := s.moderator.Moderate(ctx, req.Text)
	if err != nil {
		s.countSubmission("moderation_unavailable")
		return nil, err
	}
	if !verdict.IsAppropriate {
		s.countSubmission("rejected")
		return nil, appErrors.ErrRejectedContent
	}

	token, err := s.tokens.DeriveToken(ctx, claims.UserID, s.now())
	if err != nil {
		return nil, err
	}

	issue, isNew, err := s.findOrCreate(ctx, category, verdict, req, token)
	if err != nil {
		return nil, err
	}

	if isNew {
		s.countSubmission("created")
		return &dto.SubmitFeedbackResponse{IssueID: issue.ID, Message: "feedback submitted"}, nil
	}
	s.countSubmission("duplicate")
	return &dto.SubmitFeedbackResponse{IssueID: issue.ID, Duplicate: true, Message: "similar issue already reported"}, nil
}

// findOrCreate matches the submission against open issues in the same
// category. On a match the existing issue absorbs the report via a frequency
// increment; otherwise a fresh issue enters the state machine at the start of
// the category's escalation chain.
func (s *FeedbackService) findOrCreate(ctx context.Context, category models.IssueCategory, verdict *moderation.Verdict, req dto.SubmitFeedbackRequest, token string) (*models.Issue, bool, error) {
	candidates, err := s.issues.ListOpenByCategory(ctx, category, s.cfg.CandidateLimit)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load duplicate candidates")
	}

	// Candidates arrive newest first, so the first match is the tie-break
	// winner among multiple similar issues.
	for i := range candidates {
		if !s.similar(verdict, &candidates[i]) {
			continue
		}
		match := &candidates[i]
		if err := s.issues.IncrementFrequency(ctx, match.ID, match.Version); err != nil {
			if !errors.Is(err, appErrors.ErrConcurrentModification) {
				return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record duplicate")
			}
			// Lost the race: re-read and retry once against the fresh version.
			fresh, rerr := s.issues.GetByID(ctx, match.ID)
			if rerr != nil {
				return nil, false, appErrors.Wrap(rerr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload issue")
			}
			if fresh.Status == models.StatusResolved {
				break // resolved meanwhile, do not absorb into it
			}
			if err := s.issues.IncrementFrequency(ctx, fresh.ID, fresh.Version); err != nil {
				return nil, false, err
			}
			match = fresh
		}
		match.FrequencyCount++
		return match, false, nil
	}

	now := s.now()
	issue := &models.Issue{
		Category:       category,
		Summary:        verdict.Summary,
		RewrittenText:  verdict.RewrittenText,
		OriginalText:   req.Text,
		Status:         models.StatusOpen,
		UrgencyScore:   verdict.UrgencyScore,
		AssignedRole:   s.table.First(category),
		FrequencyCount: 1,
		SLADeadline:    now.Add(s.cfg.SLAWindow),
		AnonToken:      token,
		EvidenceURLs:   pq.StringArray(req.EvidenceURLs),
		CreatedAt:      now,
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create issue")
	}
	return issue, true, nil
}

func (s *FeedbackService) similar(verdict *moderation.Verdict, candidate *models.Issue) bool {
	text := normalizeText(verdict.RewrittenText)
	other := normalizeText(candidate.RewrittenText)
	if text != "" && text == other {
		return true
	}

	summary := normalizeText(verdict.Summary)
	otherSummary := normalizeText(candidate.Summary)
	if summary != "" && otherSummary != "" {
		if strings.Contains(otherSummary, summary) || strings.Contains(summary, otherSummary) {
			return true
		}
	}

	return jaccard(tokenSet(text), tokenSet(other)) >= s.cfg.SimilarityThreshold
}

func (s *FeedbackService) countSubmission(outcome string) {
	if s.metrics != nil {
		s.metrics.CountSubmission(outcome)
	}
}

// normalizeText lowercases, strips punctuation, and collapses whitespace so
// trivially restated reports compare equal.
func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func tokenSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
