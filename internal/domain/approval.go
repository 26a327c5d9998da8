package domain

import "time"

// ApprovalLevel is the per-area authority a person holds.
type ApprovalLevel int

const (
	ApprovalNone     ApprovalLevel = 0
	ApprovalReporter ApprovalLevel = 1
	ApprovalEngineer ApprovalLevel = 2
	ApprovalManager  ApprovalLevel = 3
)

// Valid reports whether l is a grantable level.
func (l ApprovalLevel) Valid() bool {
	return l >= ApprovalReporter && l <= ApprovalManager
}

// ApprovalGrant assigns a person a level within one area. Owned by admin tooling.
type ApprovalGrant struct {
	ID        string
	PersonID  string
	AreaID    string
	Level     ApprovalLevel
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
