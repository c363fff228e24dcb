package dto

import "github.com/noah-isme/campus-voice-api/internal/models"

// SubmitFeedbackRequest is the payload for a new grievance submission.
type SubmitFeedbackRequest struct {
	Category     string   `json:"category" validate:"required"`
	Text         string   `json:"text" validate:"required,min=10,max=5000"`
	EvidenceURLs []string `json:"evidence_urls" validate:"omitempty,dive,max=2048"`
}

// SubmitFeedbackResponse reports the submission outcome. Duplicate reports
// point at the absorbing issue instead of creating a new one.
type SubmitFeedbackResponse struct {
	IssueID   string `json:"issue_id"`
	Duplicate bool   `json:"duplicate"`
	Message   string `json:"message"`
}

// AddUpdateRequest appends a progress entry to an issue.
type AddUpdateRequest struct {
	ContentKind string `json:"content_kind" validate:"required,oneof=text audio"`
	ContentText string `json:"content_text" validate:"required_if=ContentKind text,max=5000"`
	ContentURL  string `json:"content_url" validate:"required_if=ContentKind audio,max=2048"`
}

// EscalateRequest carries an optional reason for a manual escalation.
type EscalateRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// IssueDetailResponse pairs an issue with its full update ledger.
type IssueDetailResponse struct {
	Issue   *models.Issue        `json:"issue"`
	Updates []models.IssueUpdate `json:"updates"`
}

// EvidenceUploadResponse returns the opaque reference for a stored file.
type EvidenceUploadResponse struct {
	Reference string `json:"reference"`
	ExpiresAt string `json:"expires_at"`
}

// SweepResponse summarises one breach sweep run.
type SweepResponse struct {
	EscalatedCount int  `json:"escalated_count"`
	Skipped        bool `json:"skipped"`
}
