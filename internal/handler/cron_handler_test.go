package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-voice-api/internal/hierarchy"
	"github.com/noah-isme/campus-voice-api/internal/models"
	"github.com/noah-isme/campus-voice-api/internal/repository"
	"github.com/noah-isme/campus-voice-api/internal/service"
	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
	"github.com/noah-isme/campus-voice-api/pkg/response"
)

type fakeIssueStore struct {
	issues map[string]*models.Issue
}

func (f *fakeIssueStore) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	issue, ok := f.issues[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	copied := *issue
	return &copied, nil
}

func (f *fakeIssueStore) List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error) {
	return nil, 0, nil
}

func (f *fakeIssueStore) ListBreached(ctx context.Context, now time.Time) ([]models.Issue, error) {
	var breached []models.Issue
	for _, issue := range f.issues {
		if issue.Status != models.StatusResolved && issue.SLADeadline.Before(now) {
			breached = append(breached, *issue)
		}
	}
	return breached, nil
}

func (f *fakeIssueStore) UpdateState(ctx context.Context, id string, expectedVersion int, params repository.UpdateStateParams) error {
	issue := f.issues[id]
	if issue == nil || issue.Version != expectedVersion {
		return appErrors.ErrConcurrentModification
	}
	if params.Status != nil {
		issue.Status = *params.Status
	}
	if params.AssignedRole != nil {
		issue.AssignedRole = *params.AssignedRole
	}
	if params.SLADeadline != nil {
		issue.SLADeadline = *params.SLADeadline
	}
	issue.Version++
	return nil
}

type fakeLedger struct {
	entries []models.IssueUpdate
}

func (f *fakeLedger) Append(ctx context.Context, update *models.IssueUpdate) error {
	f.entries = append(f.entries, *update)
	return nil
}

func (f *fakeLedger) ListByIssue(ctx context.Context, issueID string) ([]models.IssueUpdate, error) {
	return f.entries, nil
}

func TestCheckEscalationReportsCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeIssueStore{issues: map[string]*models.Issue{
		"issue-1": {
			ID:           "issue-1",
			Category:     models.CategoryHostel,
			Status:       models.StatusOpen,
			AssignedRole: models.RoleWarden,
			SLADeadline:  time.Now().UTC().Add(-time.Hour),
			Version:      1,
		},
	}}
	svc := service.NewIssueService(store, &fakeLedger{}, fakeTokens{}, hierarchy.Default(), nil, nil, nil, service.IssueServiceConfig{})
	h := NewCronHandler(svc)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/cron/check-escalation", nil)

	h.CheckEscalation(c)

	assert.Equal(t, http.StatusOK, rec.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	payload, err := json.Marshal(env.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"escalated_count": 1, "skipped": false}`, string(payload))
	assert.Equal(t, models.RoleAdmin, store.issues["issue-1"].AssignedRole)
}

func TestCheckEscalationNoBreaches(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeIssueStore{issues: map[string]*models.Issue{}}
	svc := service.NewIssueService(store, &fakeLedger{}, fakeTokens{}, hierarchy.Default(), nil, nil, nil, service.IssueServiceConfig{})
	h := NewCronHandler(svc)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/cron/check-escalation", nil)

	h.CheckEscalation(c)

	assert.Equal(t, http.StatusOK, rec.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	payload, err := json.Marshal(env.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"escalated_count": 0, "skipped": false}`, string(payload))
}
