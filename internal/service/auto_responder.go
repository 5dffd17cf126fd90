package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/hitl-service/internal/ai"
	"github.com/spec-kit/hitl-service/internal/domain"
	"github.com/spec-kit/hitl-service/internal/repository"
)

// contextWindow is how many recent messages feed the completion prompt.
const contextWindow = 10

// AutoResponder optionally synthesizes an assistant reply after a
// message is recorded. It is fully isolated: any failure here is logged
// and swallowed so the primary message append is never affected.
type AutoResponder struct {
	cases    repository.CaseRepository
	messages repository.MessageRepository
	service  *CaseService
	provider ai.CompletionProvider
	logger   *zap.Logger
}

// AutoResponderDependencies bundles collaborators. Provider may be nil
// when no completion provider is configured; MaybeRespond then no-ops.
type AutoResponderDependencies struct {
	CaseRepo    repository.CaseRepository
	MessageRepo repository.MessageRepository
	CaseService *CaseService
	Provider    ai.CompletionProvider
	Logger      *zap.Logger
}

// NewAutoResponder constructs the gateway.
func NewAutoResponder(deps AutoResponderDependencies) *AutoResponder {
	return &AutoResponder{
		cases:    deps.CaseRepo,
		messages: deps.MessageRepo,
		service:  deps.CaseService,
		provider: deps.Provider,
		logger:   deps.Logger,
	}
}

// MaybeRespond generates and appends an assistant reply when requested
// and a provider is configured. Returns the reply content, or nil when
// no reply was produced for any reason.
func (a *AutoResponder) MaybeRespond(ctx context.Context, caseID string, requested bool) *string {
	if !requested || a.provider == nil {
		return nil
	}
	reply, err := a.respond(ctx, caseID)
	if err != nil {
		a.logger.Warn("auto-response skipped",
			zap.String("case_id", caseID), zap.Error(err))
		return nil
	}
	return reply
}

func (a *AutoResponder) respond(ctx context.Context, caseID string) (*string, error) {
	record, err := a.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load case context: %w", err)
	}
	recent, err := a.messages.ListRecent(ctx, caseID, contextWindow)
	if err != nil {
		return nil, fmt.Errorf("load message context: %w", err)
	}

	// recent is newest first; the conversation reads oldest first. Human
	// turns speak for the assistant side of the exchange, everything
	// else is treated as user input.
	turns := make([]ai.Turn, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		role := ai.RoleUser
		if recent[i].SenderType == domain.SenderTypeHuman {
			role = ai.RoleAssistant
		}
		turns = append(turns, ai.Turn{Role: role, Content: recent[i].Content})
	}

	completion, err := a.provider.Complete(ctx, systemInstruction(record), turns)
	if err != nil {
		return nil, fmt.Errorf("completion call: %w", err)
	}
	if strings.TrimSpace(completion) == "" {
		return nil, nil
	}

	senderID := a.provider.ID()
	if _, err := a.service.AppendMessage(ctx, AppendMessageInput{
		CaseID:     caseID,
		Content:    completion,
		SenderType: domain.SenderTypeAIAgent,
		SenderID:   &senderID,
	}); err != nil {
		return nil, fmt.Errorf("append synthesized reply: %w", err)
	}
	return &completion, nil
}

func systemInstruction(record *domain.Case) string {
	description := ""
	if record.Description != nil {
		description = *record.Description
	}
	return fmt.Sprintf(
		"You are a helpful assistant managing a human-in-the-loop case.\n"+
			"Case: %s\nDescription: %s\nSource: %s\n"+
			"Help the human operator understand and resolve this case.",
		record.Title, description, record.Source)
}
