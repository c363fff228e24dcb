package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-voice-api/internal/models"
	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
	"github.com/noah-isme/campus-voice-api/pkg/export"
)

const dashboardCacheKey = "campus-voice:stats:dashboard"

type statsProvider interface {
	Stats(ctx context.Context) (*models.IssueStats, error)
	List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error)
}

type statsUpdateCounter interface {
	CountByIssue(ctx context.Context, issueID string) (int, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// StatsServiceConfig tunes dashboard caching.
type StatsServiceConfig struct {
	CacheTTL time.Duration
}

// StatsService serves aggregate dashboard counters and admin exports of the
// issue list. The exported data is already anonymity-safe: issues carry no
// identity, only the derived token, and the token is excluded from datasets.
type StatsService struct {
	issues  statsProvider
	updates statsUpdateCounter
	cache   statsCache
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
	cfg     StatsServiceConfig
}

// NewStatsService constructs the service.
func NewStatsService(issues statsProvider, updates statsUpdateCounter, cache statsCache, logger *zap.Logger, cfg StatsServiceConfig) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	return &StatsService{
		issues:  issues,
		updates: updates,
		cache:   cache,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
		cfg:     cfg,
	}
}

// Dashboard returns aggregate counters, cached with a short TTL.
func (s *StatsService) Dashboard(ctx context.Context) (*models.IssueStats, error) {
	if s.cache != nil {
		var cached models.IssueStats
		if err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	stats, err := s.issues.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate issue stats")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, stats, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// ExportResult bundles rendered export bytes with response metadata.
type ExportResult struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ExportIssues renders the full issue list as CSV or PDF.
func (s *StatsService) ExportIssues(ctx context.Context, format string) (*ExportResult, error) {
	issues, _, err := s.issues.List(ctx, models.IssueFilter{PageSize: 200})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issues for export")
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "Category", "Summary", "Status", "Urgency", "Assigned Role", "Frequency", "Updates", "SLA Deadline", "Created At"},
	}
	for _, issue := range issues {
		updateCount := 0
		if s.updates != nil {
			n, err := s.updates.CountByIssue(ctx, issue.ID)
			if err != nil {
				s.logger.Warn("update count unavailable for export", zap.String("issue_id", issue.ID), zap.Error(err))
			} else {
				updateCount = n
			}
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":            issue.ID,
			"Category":      string(issue.Category),
			"Summary":       issue.Summary,
			"Status":        string(issue.Status),
			"Urgency":       strconv.Itoa(issue.UrgencyScore),
			"Assigned Role": string(issue.AssignedRole),
			"Frequency":     strconv.Itoa(issue.FrequencyCount),
			"Updates":       strconv.Itoa(updateCount),
			"SLA Deadline":  issue.SLADeadline.UTC().Format(time.RFC3339),
			"Created At":    issue.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	switch format {
	case "csv", "":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{Data: data, Filename: fmt.Sprintf("issues-%s.csv", stamp), ContentType: "text/csv"}, nil
	case "pdf":
		data, err := s.pdf.Render(dataset, "Grievance issues")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{Data: data, Filename: fmt.Sprintf("issues-%s.pdf", stamp), ContentType: "application/pdf"}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
