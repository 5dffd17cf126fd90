package notify

import (
	"time"

	"github.com/spec-kit/hitl-service/internal/domain"
)

// EventKind enumerates row change kinds.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

// Tables carrying change notifications.
const (
	TableCases    = "cases"
	TableMessages = "messages"
)

// ChangeEvent describes one committed row change. Exactly one of the row
// pair groups is populated, matching Table.
type ChangeEvent struct {
	ID        string          `json:"id"`
	Table     string          `json:"table"`
	Kind      EventKind       `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Case      *domain.Case    `json:"case,omitempty"`
	OldCase   *domain.Case    `json:"old_case,omitempty"`
	Message   *domain.Message `json:"message,omitempty"`
}

// Filter restricts delivery to matching events. A nil Filter matches all.
type Filter func(ChangeEvent) bool

// MessagesForCase returns a filter matching message events for one case.
func MessagesForCase(caseID string) Filter {
	return func(event ChangeEvent) bool {
		return event.Message != nil && event.Message.CaseID == caseID
	}
}
