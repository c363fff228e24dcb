// Package hierarchy holds the immutable role chains issues escalate through.
// The table is loaded once at startup and never mutated at runtime.
package hierarchy

import (
	"fmt"
	"strings"

	"github.com/noah-isme/campus-voice-api/internal/models"
	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
)

// Table maps each issue category to its ordered escalation chain. The last
// role of every chain is terminal: there is no further escalation target.
type Table struct {
	chains map[models.IssueCategory][]models.UserRole
}

// Default returns the standard campus hierarchy.
func Default() *Table {
	return &Table{chains: map[models.IssueCategory][]models.UserRole{
		models.CategoryAcademics:      {models.RoleStaff, models.RoleHoD, models.RoleAdmin, models.RolePrincipal},
		models.CategoryHostel:         {models.RoleWarden, models.RoleAdmin, models.RolePrincipal},
		models.CategoryInfrastructure: {models.RoleStaff, models.RoleAdmin, models.RolePrincipal},
		models.CategoryFood:           {models.RoleStaff, models.RoleAdmin, models.RolePrincipal},
		models.CategoryTransportation: {models.RoleStaff, models.RoleAdmin, models.RolePrincipal},
		models.CategoryOther:          {models.RoleStaff, models.RoleAdmin, models.RolePrincipal},
	}}
}

// New builds a table from explicit chains, validating that every known
// category has a non-empty chain.
func New(chains map[models.IssueCategory][]models.UserRole) (*Table, error) {
	for _, cat := range models.Categories {
		if len(chains[cat]) == 0 {
			return nil, fmt.Errorf("hierarchy: category %q has no escalation chain", cat)
		}
	}
	copied := make(map[models.IssueCategory][]models.UserRole, len(chains))
	for cat, roles := range chains {
		copied[cat] = append([]models.UserRole(nil), roles...)
	}
	return &Table{chains: copied}, nil
}

// FromConfig merges environment chain overrides into the default table and
// validates the result via New. Override keys match category names
// case-insensitively; every role must be a known staff role. An invalid
// override is a startup error, not a fallback.
func FromConfig(overrides map[string][]string) (*Table, error) {
	chains := Default().chains
	for key, rawRoles := range overrides {
		cat, ok := matchCategory(key)
		if !ok {
			return nil, fmt.Errorf("hierarchy: unknown category %q in chain override", key)
		}
		chain := make([]models.UserRole, 0, len(rawRoles))
		for _, raw := range rawRoles {
			role, ok := matchRole(raw)
			if !ok {
				return nil, fmt.Errorf("hierarchy: unknown role %q in chain for %q", raw, cat)
			}
			chain = append(chain, role)
		}
		chains[cat] = chain
	}
	return New(chains)
}

func matchCategory(raw string) (models.IssueCategory, bool) {
	for _, cat := range models.Categories {
		if strings.EqualFold(string(cat), raw) {
			return cat, true
		}
	}
	return "", false
}

func matchRole(raw string) (models.UserRole, bool) {
	for _, role := range models.StaffRoles {
		if strings.EqualFold(string(role), raw) {
			return role, true
		}
	}
	return "", false
}

// Chain returns the escalation chain for a category. Unknown categories fall
// back to the Other chain, mirroring how submissions are bucketed.
func (t *Table) Chain(category models.IssueCategory) []models.UserRole {
	if chain, ok := t.chains[category]; ok {
		return chain
	}
	return t.chains[models.CategoryOther]
}

// First returns the initial assignee for a category.
func (t *Table) First(category models.IssueCategory) models.UserRole {
	return t.Chain(category)[0]
}

// Next returns the role following current in the category's chain. It fails
// with ErrNoFurtherEscalation when current is the terminal role, and treats a
// role missing from the chain as position -1 so legacy or mislabelled issues
// re-enter the chain at its start.
func (t *Table) Next(category models.IssueCategory, current models.UserRole) (models.UserRole, error) {
	chain := t.Chain(category)
	idx := -1
	for i, role := range chain {
		if role == current {
			idx = i
			break
		}
	}
	if idx >= len(chain)-1 {
		return "", appErrors.ErrNoFurtherEscalation
	}
	return chain[idx+1], nil
}

// IsTerminal reports whether the role is the last entry of the chain.
func (t *Table) IsTerminal(category models.IssueCategory, role models.UserRole) bool {
	chain := t.Chain(category)
	return chain[len(chain)-1] == role
}
