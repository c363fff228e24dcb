package models

import (
	"time"

	"github.com/lib/pq"
)

// IssueCategory classifies a grievance and selects its escalation chain.
type IssueCategory string

const (
	CategoryAcademics      IssueCategory = "Academics"
	CategoryHostel         IssueCategory = "Hostel"
	CategoryInfrastructure IssueCategory = "Infrastructure"
	CategoryFood           IssueCategory = "Food"
	CategoryTransportation IssueCategory = "Transportation"
	CategoryOther          IssueCategory = "Other"
)

// Categories lists every valid issue category.
var Categories = []IssueCategory{
	CategoryAcademics,
	CategoryHostel,
	CategoryInfrastructure,
	CategoryFood,
	CategoryTransportation,
	CategoryOther,
}

// Valid reports whether the category is one of the known values.
func (c IssueCategory) Valid() bool {
	for _, cat := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// IssueStatus is the lifecycle state of an issue.
//
// Allowed transitions: Open -> In Progress -> Escalated -> Resolved, where
// Escalated may escalate again until the terminal role is reached, and any
// non-Resolved status may move to Resolved. Resolved is absorbing.
type IssueStatus string

const (
	StatusOpen       IssueStatus = "Open"
	StatusInProgress IssueStatus = "In Progress"
	StatusEscalated  IssueStatus = "Escalated"
	StatusResolved   IssueStatus = "Resolved"
)

// Issue is a single grievance record. Issues are never deleted; resolution is
// a status change so the audit trail stays complete. AnonToken links the
// issue to its submitter without revealing the identity and is never
// serialized into API responses.
type Issue struct {
	ID             string         `db:"id" json:"id"`
	Category       IssueCategory  `db:"category" json:"category"`
	Summary        string         `db:"summary" json:"summary"`
	RewrittenText  string         `db:"rewritten_text" json:"rewritten_text"`
	OriginalText   string         `db:"original_text" json:"original_text"`
	Status         IssueStatus    `db:"status" json:"status"`
	UrgencyScore   int            `db:"urgency_score" json:"urgency_score"`
	AssignedRole   UserRole       `db:"assigned_role" json:"assigned_role"`
	FrequencyCount int            `db:"frequency_count" json:"frequency_count"`
	SLADeadline    time.Time      `db:"sla_deadline" json:"sla_deadline"`
	AnonToken      string         `db:"anon_token" json:"-"`
	EvidenceURLs   pq.StringArray `db:"evidence_urls" json:"evidence_urls"`
	Version        int            `db:"version" json:"-"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// IssueFilter captures listing criteria for issues.
type IssueFilter struct {
	Category     *IssueCategory
	Status       *IssueStatus
	AssignedRole *UserRole
	AnonToken    string
	Page         int
	PageSize     int
}

// IssueStats aggregates dashboard counters.
type IssueStats struct {
	TotalIssues int                   `json:"total_issues"`
	Open        int                   `json:"open_issues"`
	InProgress  int                   `json:"in_progress"`
	Escalated   int                   `json:"escalated"`
	Resolved    int                   `json:"resolved"`
	ByCategory  map[IssueCategory]int `json:"by_category"`
}
