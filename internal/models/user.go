package models

import "time"

// UserRole represents a position in the grievance handling hierarchy.
// Students submit feedback; the remaining roles act on issues.
type UserRole string

const (
	RoleStudent   UserRole = "Student"
	RoleStaff     UserRole = "Staff"
	RoleWarden    UserRole = "Warden"
	RoleHoD       UserRole = "HoD"
	RoleAdmin     UserRole = "Admin"
	RolePrincipal UserRole = "Principal"

	// RoleSystem labels ledger entries written by automatic escalation.
	RoleSystem UserRole = "System"
)

// StaffRoles lists every role permitted to act on issues.
var StaffRoles = []UserRole{RoleStaff, RoleWarden, RoleHoD, RoleAdmin, RolePrincipal}

// IsStaff reports whether the role may update, escalate, or resolve issues.
func (r UserRole) IsStaff() bool {
	for _, role := range StaffRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents a verified identity stored in the users table.
// User records and issue records are never joined: the only link between a
// user and their submissions is the derived anonymous token.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Department   *string    `db:"department" json:"department,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// JWTClaims carries the authenticated identity through request handling.
type JWTClaims struct {
	UserID     string   `json:"uid"`
	Email      string   `json:"email"`
	Role       UserRole `json:"role"`
	Department string   `json:"department,omitempty"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
