package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/hitl-service/internal/domain"
	"github.com/spec-kit/hitl-service/internal/notify"
	"github.com/spec-kit/hitl-service/internal/repository"
	apperrors "github.com/spec-kit/hitl-service/pkg/util"
)

// CaseService owns case lifecycle and the message ledger. Status
// transitions triggered by message appends are part of AppendMessage's
// contract, not a separate step callers must remember.
type CaseService struct {
	cases    repository.CaseRepository
	messages repository.MessageRepository
	broker   *notify.Broker
	logger   *zap.Logger
}

// CaseDependencies bundles collaborators for the case service.
type CaseDependencies struct {
	CaseRepo    repository.CaseRepository
	MessageRepo repository.MessageRepository
	Broker      *notify.Broker
	Logger      *zap.Logger
}

// CaseCreateInput describes case creation payload.
type CaseCreateInput struct {
	Title       string
	Description *string
	Source      string
	AgentID     *string
	Priority    int
	Metadata    map[string]any
}

// AppendMessageInput describes a message append.
type AppendMessageInput struct {
	CaseID     string
	Content    string
	SenderType domain.SenderType
	SenderID   *string
}

// NewCaseService constructs the service.
func NewCaseService(deps CaseDependencies) *CaseService {
	return &CaseService{
		cases:    deps.CaseRepo,
		messages: deps.MessageRepo,
		broker:   deps.Broker,
		logger:   deps.Logger,
	}
}

// CreateCase opens a new escalation case raised by an agent.
func (s *CaseService) CreateCase(ctx context.Context, input CaseCreateInput) (*domain.Case, error) {
	title := strings.TrimSpace(input.Title)
	source := strings.TrimSpace(input.Source)
	if title == "" || source == "" {
		return nil, apperrors.NewValidationError("title and source are required", nil)
	}

	priority := input.Priority
	if priority == 0 {
		priority = domain.PriorityDefault
	}
	if priority < domain.PriorityHighest || priority > domain.PriorityLowest {
		return nil, apperrors.NewValidationError("priority must be between 1 and 5", map[string]any{
			"priority": input.Priority,
		})
	}

	metadata := input.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	record := &domain.Case{
		Title:       title,
		Description: input.Description,
		Source:      source,
		AgentID:     input.AgentID,
		Status:      domain.CaseStatusOpen,
		Priority:    priority,
		Metadata:    metadata,
	}
	if err := s.cases.Create(ctx, record); err != nil {
		return nil, apperrors.NewStoreError(err)
	}

	s.publish(notify.ChangeEvent{
		Table: notify.TableCases,
		Kind:  notify.EventInsert,
		Case:  record,
	})
	return record, nil
}

// ListCases returns cases newest first, optionally filtered by status.
func (s *CaseService) ListCases(ctx context.Context, status *domain.CaseStatus, limit int) ([]domain.Case, error) {
	if status != nil && !status.Valid() {
		return nil, apperrors.NewValidationError("unknown status filter", map[string]any{
			"status": string(*status),
		})
	}
	if limit <= 0 {
		limit = 50
	}

	result, err := s.cases.List(ctx, repository.CaseFilter{Status: status, Limit: limit})
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	if result == nil {
		result = []domain.Case{}
	}
	return result, nil
}

// GetCase fetches a case by id.
func (s *CaseService) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	record, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, apperrors.NewStoreError(err)
	}
	return record, nil
}

// AppendMessage records one conversation turn and applies the status
// side effect for the sender type: an agent message re-affirms open, a
// human message moves an open case to in_progress and claims it.
func (s *CaseService) AppendMessage(ctx context.Context, input AppendMessageInput) (*domain.Message, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" || input.SenderType == "" {
		return nil, apperrors.NewValidationError("content and sender_type are required", nil)
	}
	if !input.SenderType.Valid() {
		return nil, apperrors.NewValidationError("unknown sender_type", map[string]any{
			"sender_type": string(input.SenderType),
		})
	}

	if _, err := s.GetCase(ctx, input.CaseID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		CaseID:     input.CaseID,
		Content:    content,
		SenderType: input.SenderType,
		SenderID:   input.SenderID,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.NewStoreError(err)
	}

	s.publish(notify.ChangeEvent{
		Table:   notify.TableMessages,
		Kind:    notify.EventInsert,
		Message: msg,
	})

	// The message is durable at this point. A failed status update is
	// logged and accepted, not rolled back.
	s.applyStatusSideEffect(ctx, msg)
	return msg, nil
}

// ListMessages returns the full ledger for a case, oldest first. A case
// with no messages yields an empty slice, not an error.
func (s *CaseService) ListMessages(ctx context.Context, caseID string) ([]domain.Message, error) {
	result, err := s.messages.ListByCase(ctx, caseID)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	if result == nil {
		result = []domain.Message{}
	}
	return result, nil
}

// ResolveCase stamps resolved status and resolved_at. Resolving an
// already-resolved case refreshes resolved_at; it does not error.
func (s *CaseService) ResolveCase(ctx context.Context, caseID string) (*domain.Case, error) {
	record, err := s.cases.Resolve(ctx, caseID, time.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, apperrors.NewStoreError(err)
	}

	s.publish(notify.ChangeEvent{
		Table: notify.TableCases,
		Kind:  notify.EventUpdate,
		Case:  record,
	})
	return record, nil
}

func (s *CaseService) applyStatusSideEffect(ctx context.Context, msg *domain.Message) {
	switch msg.SenderType {
	case domain.SenderTypeAIAgent:
		// Idempotent re-affirmation; status stays open, nothing to fan out.
		if _, err := s.cases.MarkOpenAgentTouch(ctx, msg.CaseID); err != nil {
			s.logger.Warn("agent touch not applied",
				zap.String("case_id", msg.CaseID), zap.Error(err))
		}
	case domain.SenderTypeHuman:
		if msg.SenderID == nil || *msg.SenderID == "" {
			s.logger.Warn("human message without sender id; skipping assignment",
				zap.String("case_id", msg.CaseID))
			return
		}
		updated, err := s.cases.TransitionToInProgress(ctx, msg.CaseID, *msg.SenderID)
		if err != nil {
			s.logger.Warn("in_progress transition not applied",
				zap.String("case_id", msg.CaseID), zap.Error(err))
			return
		}
		if updated != nil {
			s.publish(notify.ChangeEvent{
				Table: notify.TableCases,
				Kind:  notify.EventUpdate,
				Case:  updated,
			})
		}
	}
}

func (s *CaseService) publish(event notify.ChangeEvent) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(event)
}
