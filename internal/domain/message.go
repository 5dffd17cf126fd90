package domain

import "time"

// SenderType indicates who authored a message.
type SenderType string

const (
	SenderTypeHuman   SenderType = "human"
	SenderTypeAIAgent SenderType = "ai_agent"
	SenderTypeSystem  SenderType = "system"
)

// Valid reports whether the sender type is one of the known values.
func (s SenderType) Valid() bool {
	switch s {
	case SenderTypeHuman, SenderTypeAIAgent, SenderTypeSystem:
		return true
	}
	return false
}

// Message is one turn in a case's conversation ledger. The ledger is
// append-only; CreatedAt orders messages within a case.
type Message struct {
	ID         string
	CaseID     string
	Content    string
	SenderType SenderType
	SenderID   *string
	CreatedAt  time.Time
}
