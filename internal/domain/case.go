package domain

import "time"

// CaseStatus enumerates lifecycle states for escalation cases.
type CaseStatus string

const (
	CaseStatusOpen       CaseStatus = "open"
	CaseStatusInProgress CaseStatus = "in_progress"
	CaseStatusResolved   CaseStatus = "resolved"
)

// Valid reports whether the status is one of the known values.
func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusOpen, CaseStatusInProgress, CaseStatusResolved:
		return true
	}
	return false
}

// Priority bounds. Lower values are more urgent.
const (
	PriorityHighest = 1
	PriorityDefault = 3
	PriorityLowest  = 5
)

// Case is the aggregate for escalations raised by AI agents that need
// human judgment. ResolvedAt is non-nil exactly when Status is resolved;
// AssigneeID is set once, by the first human responder.
type Case struct {
	ID          string
	Title       string
	Description *string
	Source      string
	AgentID     *string
	Status      CaseStatus
	Priority    int
	AssigneeID  *string
	Metadata    map[string]any
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}
