package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// subscriptionBuffer bounds undelivered events per subscriber. A viewer
// that falls this far behind loses events and should re-load.
const subscriptionBuffer = 64

// Subscription is a cancellable handle on a change feed. Events arrive on
// Events() in publish order until Close is called.
type Subscription struct {
	id     string
	table  string
	kinds  map[EventKind]struct{}
	filter Filter
	ch     chan ChangeEvent
	broker *Broker
	once   sync.Once
}

// Events returns the delivery channel. It is closed by Close.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.ch
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.unsubscribe(s)
		close(s.ch)
	})
}

func (s *Subscription) matches(event ChangeEvent) bool {
	if event.Table != s.table {
		return false
	}
	if len(s.kinds) > 0 {
		if _, ok := s.kinds[event.Kind]; !ok {
			return false
		}
	}
	if s.filter != nil && !s.filter(event) {
		return false
	}
	return true
}

// Broker fans committed change events out to per-viewer subscriptions.
// Publishers are the mutating services; an optional forwarder relays
// events to other instances.
type Broker struct {
	mu      sync.RWMutex
	subs    map[string]map[string]*Subscription
	forward func(ChangeEvent)
	logger  *zap.Logger
}

// NewBroker creates a broker instance.
func NewBroker(logger *zap.Logger) *Broker {
	return &Broker{
		subs:   make(map[string]map[string]*Subscription),
		logger: logger,
	}
}

// Subscribe registers for change events on a table. An empty kinds slice
// subscribes to every kind; filter may be nil.
func (b *Broker) Subscribe(table string, kinds []EventKind, filter Filter) *Subscription {
	kindSet := make(map[EventKind]struct{}, len(kinds))
	for _, kind := range kinds {
		kindSet[kind] = struct{}{}
	}
	sub := &Subscription{
		id:     uuid.NewString(),
		table:  table,
		kinds:  kindSet,
		filter: filter,
		ch:     make(chan ChangeEvent, subscriptionBuffer),
		broker: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[table] == nil {
		b.subs[table] = make(map[string]*Subscription)
	}
	b.subs[table][sub.id] = sub
	return sub
}

// Publish delivers an event to local subscribers and, when a forwarder is
// attached, to peer instances. Missing ID and Timestamp are filled in.
func (b *Broker) Publish(event ChangeEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	b.dispatch(event)
	if b.forward != nil {
		b.forward(event)
	}
}

// dispatch delivers to local subscribers only. The relay uses it to
// re-inject remote events without forwarding them again.
func (b *Broker) dispatch(event ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[event.Table] {
		if !sub.matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn("dropping change event for slow subscriber",
				zap.String("table", event.Table),
				zap.String("kind", string(event.Kind)),
				zap.String("subscription", sub.id))
		}
	}
}

// AttachForwarder sets the cross-instance relay hook. Call before serving.
func (b *Broker) AttachForwarder(forward func(ChangeEvent)) {
	b.forward = forward
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if table, ok := b.subs[sub.table]; ok {
		delete(table, sub.id)
	}
}
