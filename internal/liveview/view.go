// Package liveview keeps a connected viewer's in-memory case and
// message lists consistent with store state through change
// subscriptions, without polling.
package liveview

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/hitl-service/internal/domain"
	"github.com/spec-kit/hitl-service/internal/notify"
	"github.com/spec-kit/hitl-service/internal/repository"
	apperrors "github.com/spec-kit/hitl-service/pkg/util"
)

// initialLoadLimit bounds the cases fetched on viewer attach.
const initialLoadLimit = 100

// CaseLoader is the slice of case persistence the view needs.
type CaseLoader interface {
	List(ctx context.Context, filter repository.CaseFilter) ([]domain.Case, error)
}

// MessageLoader is the slice of message persistence the view needs.
type MessageLoader interface {
	ListByCase(ctx context.Context, caseID string) ([]domain.Message, error)
}

// CaseView is one viewer's synchronized state. It runs no goroutines of
// its own: the owner drains CaseEvents/MessageEvents from a single loop
// and folds each delivered event in with Apply, so an event is always
// reflected before a later-delivered one is applied.
type CaseView struct {
	cases    CaseLoader
	messages MessageLoader
	broker   *notify.Broker
	logger   *zap.Logger

	caseList     []domain.Case
	messageList  []domain.Message
	selectedCase string

	caseSub    *notify.Subscription
	messageSub *notify.Subscription
}

// NewCaseView builds an unattached view.
func NewCaseView(cases CaseLoader, messages MessageLoader, broker *notify.Broker, logger *zap.Logger) *CaseView {
	return &CaseView{
		cases:    cases,
		messages: messages,
		broker:   broker,
		logger:   logger,
	}
}

// Attach loads the initial case list and opens the cases subscription
// (all event kinds).
func (v *CaseView) Attach(ctx context.Context) error {
	list, err := v.cases.List(ctx, repository.CaseFilter{Limit: initialLoadLimit})
	if err != nil {
		return apperrors.NewStoreError(err)
	}
	v.caseList = list
	v.caseSub = v.broker.Subscribe(notify.TableCases, nil, nil)
	return nil
}

// SelectCase loads the case's messages and swaps the message
// subscription: the previous one is released before the new one is
// created, so at most one message subscription is active per viewer.
func (v *CaseView) SelectCase(ctx context.Context, caseID string) error {
	if v.messageSub != nil {
		v.messageSub.Close()
		v.messageSub = nil
	}
	v.selectedCase = ""
	v.messageList = nil

	msgs, err := v.messages.ListByCase(ctx, caseID)
	if err != nil {
		return apperrors.NewStoreError(err)
	}
	v.selectedCase = caseID
	v.messageList = msgs
	v.messageSub = v.broker.Subscribe(
		notify.TableMessages,
		[]notify.EventKind{notify.EventInsert},
		notify.MessagesForCase(caseID),
	)
	return nil
}

// CaseEvents returns the live case feed; nil before Attach, which makes
// a select on it block forever.
func (v *CaseView) CaseEvents() <-chan notify.ChangeEvent {
	if v.caseSub == nil {
		return nil
	}
	return v.caseSub.Events()
}

// MessageEvents returns the live message feed for the selected case;
// nil when no case is selected.
func (v *CaseView) MessageEvents() <-chan notify.ChangeEvent {
	if v.messageSub == nil {
		return nil
	}
	return v.messageSub.Events()
}

// Apply folds one delivered change event into the view.
func (v *CaseView) Apply(event notify.ChangeEvent) {
	switch event.Table {
	case notify.TableCases:
		v.applyCase(event)
	case notify.TableMessages:
		v.applyMessage(event)
	}
}

func (v *CaseView) applyCase(event notify.ChangeEvent) {
	if event.Case == nil {
		return
	}
	switch event.Kind {
	case notify.EventInsert:
		v.caseList = append([]domain.Case{*event.Case}, v.caseList...)
	case notify.EventUpdate:
		for i := range v.caseList {
			if v.caseList[i].ID == event.Case.ID {
				v.caseList[i] = *event.Case
				return
			}
		}
		// Unknown id: stale view or a raced removal. Ignore.
		v.logger.Debug("case update for unknown id ignored",
			zap.String("case_id", event.Case.ID))
	}
}

func (v *CaseView) applyMessage(event notify.ChangeEvent) {
	if event.Kind != notify.EventInsert || event.Message == nil {
		return
	}
	if event.Message.CaseID != v.selectedCase {
		return
	}
	v.messageList = append(v.messageList, *event.Message)
}

// Cases returns the current ordered case list.
func (v *CaseView) Cases() []domain.Case {
	return v.caseList
}

// Messages returns the current ordered message list for the selected case.
func (v *CaseView) Messages() []domain.Message {
	return v.messageList
}

// SelectedCase returns the selected case id, or "".
func (v *CaseView) SelectedCase() string {
	return v.selectedCase
}

// Close releases every subscription. It is idempotent and must run on
// every exit path of the owning connection.
func (v *CaseView) Close() {
	if v.messageSub != nil {
		v.messageSub.Close()
		v.messageSub = nil
	}
	if v.caseSub != nil {
		v.caseSub.Close()
		v.caseSub = nil
	}
}
