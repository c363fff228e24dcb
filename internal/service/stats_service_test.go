package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-voice-api/internal/models"
	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
)

type stubStatsProvider struct {
	stats     *models.IssueStats
	statsErr  error
	statsHits int
	issues    []models.Issue
}

func (s *stubStatsProvider) Stats(ctx context.Context) (*models.IssueStats, error) {
	s.statsHits++
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	return s.stats, nil
}

func (s *stubStatsProvider) List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error) {
	return s.issues, len(s.issues), nil
}

type stubUpdateCounter struct {
	counts map[string]int
	err    error
}

func (s *stubUpdateCounter) CountByIssue(ctx context.Context, issueID string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.counts[issueID], nil
}

type memoryCache struct {
	values map[string][]byte
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.values == nil {
		m.values = make(map[string][]byte)
	}
	m.values[key] = raw
	return nil
}

func TestDashboardCachesStats(t *testing.T) {
	provider := &stubStatsProvider{stats: &models.IssueStats{TotalIssues: 7, Open: 3}}
	svc := NewStatsService(provider, nil, &memoryCache{}, nil, StatsServiceConfig{})

	first, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, first.TotalIssues)

	second, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, second.TotalIssues)
	assert.Equal(t, 1, provider.statsHits)
}

func TestDashboardWithoutCache(t *testing.T) {
	provider := &stubStatsProvider{stats: &models.IssueStats{TotalIssues: 2}}
	svc := NewStatsService(provider, nil, nil, nil, StatsServiceConfig{})

	_, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	_, err = svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, provider.statsHits)
}

func TestDashboardPropagatesError(t *testing.T) {
	provider := &stubStatsProvider{statsErr: errors.New("db down")}
	svc := NewStatsService(provider, nil, &memoryCache{}, nil, StatsServiceConfig{})

	_, err := svc.Dashboard(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestExportIssuesCSV(t *testing.T) {
	provider := &stubStatsProvider{issues: []models.Issue{{
		ID:             "issue-1",
		Category:       models.CategoryHostel,
		Summary:        "Water supply broken",
		Status:         models.StatusOpen,
		AssignedRole:   models.RoleWarden,
		FrequencyCount: 4,
	}}}
	counter := &stubUpdateCounter{counts: map[string]int{"issue-1": 3}}
	svc := NewStatsService(provider, counter, nil, nil, StatsServiceConfig{})

	result, err := svc.ExportIssues(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Contains(t, string(result.Data), "Water supply broken")
	assert.Contains(t, string(result.Data), "Updates")
	assert.Contains(t, string(result.Data), ",Warden,4,3,")
	assert.Contains(t, result.Filename, ".csv")
}

func TestExportIssuesCountErrorLeavesZero(t *testing.T) {
	provider := &stubStatsProvider{issues: []models.Issue{{ID: "issue-1", Summary: "x", FrequencyCount: 2}}}
	counter := &stubUpdateCounter{err: errors.New("ledger down")}
	svc := NewStatsService(provider, counter, nil, nil, StatsServiceConfig{})

	result, err := svc.ExportIssues(context.Background(), "csv")
	require.NoError(t, err)
	assert.Contains(t, string(result.Data), ",2,0,")
}

func TestExportIssuesPDF(t *testing.T) {
	provider := &stubStatsProvider{issues: []models.Issue{{ID: "issue-1", Summary: "x"}}}
	svc := NewStatsService(provider, nil, nil, nil, StatsServiceConfig{})

	result, err := svc.ExportIssues(context.Background(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, "%PDF", string(result.Data[:4]))
}

func TestExportIssuesUnknownFormat(t *testing.T) {
	svc := NewStatsService(&stubStatsProvider{}, nil, nil, nil, StatsServiceConfig{})

	_, err := svc.ExportIssues(context.Background(), "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
