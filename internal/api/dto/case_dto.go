package dto

import (
	"time"

	"github.com/spec-kit/hitl-service/internal/domain"
)

// CreateCaseRequest payload.
type CreateCaseRequest struct {
	Title       string         `json:"title"`
	Description *string        `json:"description"`
	Source      string         `json:"source"`
	AgentID     *string        `json:"agent_id"`
	Priority    int            `json:"priority"`
	Metadata    map[string]any `json:"metadata"`
}

// CaseResponse renders a case.
type CaseResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description *string           `json:"description"`
	Source      string            `json:"source"`
	AgentID     *string           `json:"agent_id"`
	Status      domain.CaseStatus `json:"status"`
	Priority    int               `json:"priority"`
	AssigneeID  *string           `json:"assignee_id"`
	Metadata    map[string]any    `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
	ResolvedAt  *time.Time        `json:"resolved_at"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Content           string            `json:"content"`
	SenderType        domain.SenderType `json:"sender_type"`
	SenderID          *string           `json:"sender_id"`
	RequestAIResponse bool              `json:"request_ai_response"`
}

// MessageResponse renders a ledger entry.
type MessageResponse struct {
	ID         string            `json:"id"`
	CaseID     string            `json:"case_id"`
	Content    string            `json:"content"`
	SenderType domain.SenderType `json:"sender_type"`
	SenderID   *string           `json:"sender_id"`
	CreatedAt  time.Time         `json:"created_at"`
}

// AppendMessageResponse carries the recorded message and, when the
// auto-responder fired, the synthesized reply content.
type AppendMessageResponse struct {
	Message    MessageResponse `json:"message"`
	AIResponse *string         `json:"ai_response"`
}

// FromCase converts a domain case.
func FromCase(record *domain.Case) CaseResponse {
	return CaseResponse{
		ID:          record.ID,
		Title:       record.Title,
		Description: record.Description,
		Source:      record.Source,
		AgentID:     record.AgentID,
		Status:      record.Status,
		Priority:    record.Priority,
		AssigneeID:  record.AssigneeID,
		Metadata:    record.Metadata,
		CreatedAt:   record.CreatedAt,
		ResolvedAt:  record.ResolvedAt,
	}
}

// FromMessage converts a domain message.
func FromMessage(msg *domain.Message) MessageResponse {
	return MessageResponse{
		ID:         msg.ID,
		CaseID:     msg.CaseID,
		Content:    msg.Content,
		SenderType: msg.SenderType,
		SenderID:   msg.SenderID,
		CreatedAt:  msg.CreatedAt,
	}
}
