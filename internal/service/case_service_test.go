package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/hitl-service/internal/domain"
	"github.com/spec-kit/hitl-service/internal/notify"
	apperrors "github.com/spec-kit/hitl-service/pkg/util"
)

func newTestCaseService(caseRepo *fakeCaseRepo, messageRepo *fakeMessageRepo, broker *notify.Broker) *CaseService {
	return NewCaseService(CaseDependencies{
		CaseRepo:    caseRepo,
		MessageRepo: messageRepo,
		Broker:      broker,
		Logger:      zap.NewNop(),
	})
}

func strPtr(s string) *string { return &s }

func requireDomainErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var domErr *apperrors.DomainError
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, code, domErr.Code)
}

func TestCreateCase_Defaults(t *testing.T) {
	caseRepo := newFakeCaseRepo()
	svc := newTestCaseService(caseRepo, newFakeMessageRepo(), nil)

	record, err := svc.CreateCase(context.Background(), CaseCreateInput{
		Title:  "payment stuck",
		Source: "billing-agent",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, domain.CaseStatusOpen, record.Status)
	assert.Equal(t, domain.PriorityDefault, record.Priority)
	assert.NotNil(t, record.Metadata)
	assert.Nil(t, record.AssigneeID)
	assert.Nil(t, record.ResolvedAt)
	assert.NotNil(t, caseRepo.stored(record.ID))
}

func TestCreateCase_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input CaseCreateInput
	}{
		{"missing title", CaseCreateInput{Source: "agent"}},
		{"blank title", CaseCreateInput{Title: "   ", Source: "agent"}},
		{"missing source", CaseCreateInput{Title: "t"}},
		{"priority too low", CaseCreateInput{Title: "t", Source: "s", Priority: -1}},
		{"priority too high", CaseCreateInput{Title: "t", Source: "s", Priority: 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caseRepo := newFakeCaseRepo()
			svc := newTestCaseService(caseRepo, newFakeMessageRepo(), nil)

			_, err := svc.CreateCase(context.Background(), tt.input)
			requireDomainErrorCode(t, err, "VALIDATION_FAILED")
			assert.Empty(t, caseRepo.cases, "rejected input must not reach the store")
		})
	}
}

func TestCreateCase_PublishesInsertEvent(t *testing.T) {
	broker := notify.NewBroker(zap.NewNop())
	sub := broker.Subscribe(notify.TableCases, []notify.EventKind{notify.EventInsert}, nil)
	defer sub.Close()

	svc := newTestCaseService(newFakeCaseRepo(), newFakeMessageRepo(), broker)
	record, err := svc.CreateCase(context.Background(), CaseCreateInput{Title: "t", Source: "s"})
	require.NoError(t, err)

	select {
	case event := <-sub.Events():
		assert.Equal(t, record.ID, event.Case.ID)
	default:
		t.Fatal("expected a cases INSERT event")
	}
}

func TestCreateCase_StoreFailure(t *testing.T) {
	caseRepo := newFakeCaseRepo()
	caseRepo.createErr = errors.New("connection reset")
	svc := newTestCaseService(caseRepo, newFakeMessageRepo(), nil)

	_, err := svc.CreateCase(context.Background(), CaseCreateInput{Title: "t", Source: "s"})
	requireDomainErrorCode(t, err, "STORE_ERROR")
}

func TestListCases_InvalidStatusFilter(t *testing.T) {
	svc := newTestCaseService(newFakeCaseRepo(), newFakeMessageRepo(), nil)

	bad := domain.CaseStatus("escalated")
	_, err := svc.ListCases(context.Background(), &bad, 10)
	requireDomainErrorCode(t, err, "VALIDATION_FAILED")
}

func TestListCases_EmptyIsNotAnError(t *testing.T) {
	svc := newTestCaseService(newFakeCaseRepo(), newFakeMessageRepo(), nil)

	result, err := svc.ListCases(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestGetCase_NotFound(t *testing.T) {
	svc := newTestCaseService(newFakeCaseRepo(), newFakeMessageRepo(), nil)

	_, err := svc.GetCase(context.Background(), "missing")
	requireDomainErrorCode(t, err, "NOT_FOUND")
}

func TestAppendMessage_HumanClaimsOpenCase(t *testing.T) {
	caseRepo := newFakeCaseRepo()
	svc := newTestCaseService(caseRepo, newFakeMessageRepo(), nil)

	record := mustCreateCase(t, svc)

	_, err := svc.AppendMessage(context.Background(), AppendMessageInput{
		CaseID:     record.ID,
		Content:    "looking into it",
		SenderType: domain.SenderTypeHuman,
		SenderID:   strPtr("op-1"),
	})
	require.NoError(t, err)

	stored := caseRepo.stored(record.ID)
	assert.Equal(t, domain.CaseStatusInProgress, stored.Status)
	require.NotNil(t, stored.AssigneeID)
	assert.Equal(t, "op-1", *stored.AssigneeID)
}

func TestAppendMessage_FirstResponderWins(t *testing.T) {
	caseRepo := newFakeCaseRepo()
	svc := newTestCaseService(caseRepo, newFakeMessageRepo(), nil)

	record := mustCreateCase(t, svc)

	for _, operator := range []string{"op-1", "op-2"} {
		_, err := svc.AppendMessage(context.Background(), AppendMessageInput{
			CaseID:     record.ID,
			Content:    "on it",
			SenderType: domain.SenderTypeHuman,
			SenderID:   strPtr(operator),
		})
		require.NoError(t, err)
	}

	stored := caseRepo.stored(record.ID)
	assert.Equal(t, domain.CaseStatusInProgress, stored.Status)
	assert.Equal(t, "op-1", *stored.AssigneeID, "second responder must not steal the assignment")
}

func TestAppendMessage_AgentLeavesStatusAlone(t *testing.T) {
	caseRepo := newFakeCaseRepo()
	svc := newTestCaseService(caseRepo, newFakeMessageRepo(), nil)

	record := mustCreateCase(t, svc)

	_, err := svc.AppendMessage(context.Background(), AppendMessageInput{
		CaseID:     record.ID,
		Content:    "additional context",
		SenderType: domain.SenderTypeAIAgent,
		SenderID:   strPtr("agent-7"),
	})
	require.NoError(t, err)

	stored := caseRepo.stored(record.ID)
	assert.Equal(t, domain.CaseStatusOpen, stored.Status)
	assert.Nil(t, stored.AssigneeID)
	assert.Equal(t, 1, caseRepo.touchCalls)
}

func TestAppendMessage_AgentDoesNotReopenClaimedCase(t *testing.T) {
	caseRepo := newFakeCaseRepo()
	svc := newTestCaseService(caseRepo, newFakeMessageRepo(), nil)

	record := mustCreateCase(t, svc)
	_, err := svc.AppendMessage(context.Background(), AppendMessageInput{
		CaseID:     record.ID,
		Content:    "taking this",
		SenderType: domain.SenderTypeHuman,
		SenderID:   strPtr("op-1"),
	})
	require.NoError(t, err)

	_, err = svc.AppendMessage(context.Background(), AppendMessageInput{
		CaseID:     record.ID,
		Content:    "more context",
		SenderType: domain.SenderTypeAIAgent,
		SenderID:   strPtr("agent-7"),
	})
	require.NoError(t, err)

	stored := caseRepo.stored(record.ID)
	assert.Equal(t, domain.CaseStatusInProgress, stored.Status)
	assert.Equal(t, "op-1", *stored.AssigneeID)
}

func TestCaseLifecycle_EndToEnd(t *testing.T) {
	caseRepo := newFakeCaseRepo()
	svc := newTestCaseService(caseRepo, newFakeMessageRepo(), nil)
	ctx := context.Background()

	record, err := svc.CreateCase(ctx, CaseCreateInput{
		Title:  "Refund dispute",
		Source: "billing-agent",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusOpen, record.Status)

	_, err = svc.AppendMessage(ctx, AppendMessageInput{
		CaseID:     record.ID,
		Content:    "Customer wants refund",
		SenderType: domain.SenderTypeAIAgent,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusOpen, caseRepo.stored(record.ID).Status)

	_, err = svc.AppendMessage(ctx, AppendMessageInput{
		CaseID:     record.ID,
		Content:    "I'll handle it",
		SenderType: domain.SenderTypeHuman,
		SenderID:   strPtr("u1"),
	})
	require.NoError(t, err)
	claimed := caseRepo.stored(record.ID)
	assert.Equal(t, domain.CaseStatusInProgress, claimed.Status)
	assert.Equal(t, "u1", *claimed.AssigneeID)

	resolved, err := svc.ResolveCase(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	ledger, err := svc.ListMessages(ctx, record.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 2)
}

func TestAppendMessage_HumanWithoutSenderID(t *testing.T) {
	caseRepo := newFakeCaseRepo()
	svc := newTestCaseService(caseRepo, newFakeMessageRepo(), nil)

	record := mustCreateCase(t, svc)

	// The message is accepted; the assignment side effect is skipped.
	msg, err := svc.AppendMessage(context.Background(), AppendMessageInput{
		CaseID:     record.ID,
		Content:    "anonymous note",
		SenderType: domain.SenderTypeHuman,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, domain.CaseStatusOpen, caseRepo.stored(record.ID).Status)
}

func TestAppendMessage_Validation(t *testing.T) {
	svc := newTestCaseService(newFakeCaseRepo(), newFakeMessageRepo(), nil)

	_, err := svc.AppendMessage(context.Background(), AppendMessageInput{
		CaseID: "c1", Content: "   ", SenderType: domain.SenderTypeHuman,
	})
	requireDomainErrorCode(t, err, "VALIDATION_FAILED")

	_, err = svc.AppendMessage(context.Background(), AppendMessageInput{
		CaseID: "c1", Content: "hi", SenderType: domain.SenderType("robot"),
	})
	requireDomainErrorCode(t, err, "VALIDATION_FAILED")
}

func TestAppendMessage_UnknownCase(t *testing.T) {
	messageRepo := newFakeMessageRepo()
	svc := newTestCaseService(newFakeCaseRepo(), messageRepo, nil)

	_, err := svc.AppendMessage(context.Background(), AppendMessageInput{
		CaseID:     "missing",
		Content:    "hello",
		SenderType: domain.SenderTypeHuman,
		SenderID:   strPtr("op-1"),
	})
	requireDomainErrorCode(t, err, "NOT_FOUND")
	assert.Zero(t, messageRepo.count("missing"))
}

func TestAppendMessage_PublishesMessageEvent(t *testing.T) {
	broker := notify.NewBroker(zap.NewNop())
	svc := newTestCaseService(newFakeCaseRepo(), newFakeMessageRepo(), broker)

	record := mustCreateCase(t, svc)

	sub := broker.Subscribe(notify.TableMessages, []notify.EventKind{notify.EventInsert}, notify.MessagesForCase(record.ID))
	defer sub.Close()

	msg, err := svc.AppendMessage(context.Background(), AppendMessageInput{
		CaseID:     record.ID,
		Content:    "hello",
		SenderType: domain.SenderTypeAIAgent,
	})
	require.NoError(t, err)

	select {
	case event := <-sub.Events():
		assert.Equal(t, msg.ID, event.Message.ID)
	default:
		t.Fatal("expected a messages INSERT event")
	}
}

func TestListMessages_EmptyLedger(t *testing.T) {
	svc := newTestCaseService(newFakeCaseRepo(), newFakeMessageRepo(), nil)

	result, err := svc.ListMessages(context.Background(), "any")
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestResolveCase(t *testing.T) {
	caseRepo := newFakeCaseRepo()
	svc := newTestCaseService(caseRepo, newFakeMessageRepo(), nil)

	record := mustCreateCase(t, svc)

	resolved, err := svc.ResolveCase(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	// Resolving again refreshes the stamp without erroring.
	again, err := svc.ResolveCase(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusResolved, again.Status)
	assert.False(t, again.ResolvedAt.Before(*resolved.ResolvedAt))
}

func TestResolveCase_NotFound(t *testing.T) {
	svc := newTestCaseService(newFakeCaseRepo(), newFakeMessageRepo(), nil)

	_, err := svc.ResolveCase(context.Background(), "missing")
	requireDomainErrorCode(t, err, "NOT_FOUND")
}

func mustCreateCase(t *testing.T, svc *CaseService) *domain.Case {
	t.Helper()
	record, err := svc.CreateCase(context.Background(), CaseCreateInput{
		Title:  "needs a human",
		Source: "support-agent",
	})
	require.NoError(t, err)
	return record
}
