package models

import "time"

// UpdateContentKind distinguishes text updates from audio references.
type UpdateContentKind string

const (
	ContentText  UpdateContentKind = "text"
	ContentAudio UpdateContentKind = "audio"
)

// EscalationTrigger records what caused an escalation ledger entry.
type EscalationTrigger string

const (
	TriggerManual    EscalationTrigger = "manual"
	TriggerAutomatic EscalationTrigger = "automatic"
)

// IssueUpdate is one append-only progress entry on an issue. Entries are
// never mutated or deleted and carry only the acting role, never a user id.
type IssueUpdate struct {
	ID          string            `db:"id" json:"id"`
	IssueID     string            `db:"issue_id" json:"issue_id"`
	Role        UserRole          `db:"role" json:"role"`
	ContentKind UpdateContentKind `db:"content_kind" json:"content_kind"`
	ContentText *string           `db:"content_text" json:"content_text,omitempty"`
	ContentURL  *string           `db:"content_url" json:"content_url,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// DailySalt is the persisted rotating secret for anonymous token derivation.
// One record exists per calendar day; the Secret never leaves the process.
type DailySalt struct {
	Day       string    `db:"day" json:"day"`
	Secret    string    `db:"secret" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
