package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/hitl-service/internal/domain"
)

func caseEvent(kind EventKind, id string) ChangeEvent {
	return ChangeEvent{Table: TableCases, Kind: kind, Case: &domain.Case{ID: id}}
}

func messageEvent(caseID string) ChangeEvent {
	return ChangeEvent{Table: TableMessages, Kind: EventInsert, Message: &domain.Message{CaseID: caseID}}
}

// receive pops one already-delivered event. Delivery happens synchronously
// inside Publish, so an empty channel means the event was filtered out.
func receive(t *testing.T, sub *Subscription) (ChangeEvent, bool) {
	t.Helper()
	select {
	case event, ok := <-sub.Events():
		return event, ok
	default:
		return ChangeEvent{}, false
	}
}

func TestBroker_PublishDeliversInOrder(t *testing.T) {
	b := NewBroker(zap.NewNop())
	sub := b.Subscribe(TableCases, nil, nil)
	defer sub.Close()

	b.Publish(caseEvent(EventInsert, "c1"))
	b.Publish(caseEvent(EventUpdate, "c1"))
	b.Publish(caseEvent(EventInsert, "c2"))

	for _, want := range []struct {
		kind EventKind
		id   string
	}{
		{EventInsert, "c1"},
		{EventUpdate, "c1"},
		{EventInsert, "c2"},
	} {
		event, ok := receive(t, sub)
		require.True(t, ok)
		assert.Equal(t, want.kind, event.Kind)
		assert.Equal(t, want.id, event.Case.ID)
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.Timestamp.IsZero())
	}
}

func TestBroker_KindFiltering(t *testing.T) {
	b := NewBroker(zap.NewNop())
	sub := b.Subscribe(TableCases, []EventKind{EventInsert}, nil)
	defer sub.Close()

	b.Publish(caseEvent(EventUpdate, "c1"))
	_, ok := receive(t, sub)
	assert.False(t, ok, "update should not reach an insert-only subscription")

	b.Publish(caseEvent(EventInsert, "c2"))
	event, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, "c2", event.Case.ID)
}

func TestBroker_TableIsolation(t *testing.T) {
	b := NewBroker(zap.NewNop())
	sub := b.Subscribe(TableMessages, nil, nil)
	defer sub.Close()

	b.Publish(caseEvent(EventInsert, "c1"))
	_, ok := receive(t, sub)
	assert.False(t, ok, "case events must not leak into a messages subscription")
}

func TestBroker_MessagesForCaseFilter(t *testing.T) {
	b := NewBroker(zap.NewNop())
	sub := b.Subscribe(TableMessages, []EventKind{EventInsert}, MessagesForCase("case-a"))
	defer sub.Close()

	b.Publish(messageEvent("case-b"))
	_, ok := receive(t, sub)
	assert.False(t, ok)

	b.Publish(messageEvent("case-a"))
	event, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, "case-a", event.Message.CaseID)
}

func TestSubscription_CloseStopsDelivery(t *testing.T) {
	b := NewBroker(zap.NewNop())
	sub := b.Subscribe(TableCases, nil, nil)

	sub.Close()
	sub.Close() // idempotent

	// Publishing after close must not panic and must not deliver.
	b.Publish(caseEvent(EventInsert, "c1"))

	_, open := <-sub.Events()
	assert.False(t, open, "channel should be closed")
}

func TestBroker_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroker(zap.NewNop())
	sub := b.Subscribe(TableCases, nil, nil)
	defer sub.Close()

	// Overfill the buffer; Publish must return without blocking.
	for i := 0; i < subscriptionBuffer+10; i++ {
		b.Publish(caseEvent(EventInsert, "c"))
	}
	assert.Len(t, sub.Events(), subscriptionBuffer)
}

func TestBroker_ForwarderSeesPublishedEvents(t *testing.T) {
	b := NewBroker(zap.NewNop())
	var forwarded []ChangeEvent
	b.AttachForwarder(func(event ChangeEvent) {
		forwarded = append(forwarded, event)
	})

	b.Publish(caseEvent(EventInsert, "c1"))
	require.Len(t, forwarded, 1)
	assert.Equal(t, "c1", forwarded[0].Case.ID)
}
