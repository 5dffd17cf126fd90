package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const relayChannelPrefix = "hitl:changes:"

// relayEnvelope wraps a change event with its origin instance so a node
// can skip events it published itself.
type relayEnvelope struct {
	Origin string      `json:"origin"`
	Event  ChangeEvent `json:"event"`
}

// Relay bridges change events between service instances over Redis
// pub/sub, so viewers connected to one instance see writes made through
// another.
type Relay struct {
	client     *redis.Client
	broker     *Broker
	logger     *zap.Logger
	instanceID string
}

// NewRelay builds a relay and attaches it as the broker's forwarder.
func NewRelay(client *redis.Client, broker *Broker, logger *zap.Logger) *Relay {
	r := &Relay{
		client:     client,
		broker:     broker,
		logger:     logger,
		instanceID: uuid.NewString(),
	}
	broker.AttachForwarder(r.publish)
	return r
}

func (r *Relay) publish(event ChangeEvent) {
	payload, err := json.Marshal(relayEnvelope{Origin: r.instanceID, Event: event})
	if err != nil {
		r.logger.Warn("marshal change event for relay", zap.Error(err))
		return
	}
	if err := r.client.Publish(context.Background(), relayChannelPrefix+event.Table, payload).Err(); err != nil {
		r.logger.Warn("relay publish failed", zap.Error(err))
	}
}

// Run consumes relayed events from peer instances until ctx is cancelled,
// re-injecting them into the local broker.
func (r *Relay) Run(ctx context.Context) {
	sub := r.client.PSubscribe(ctx, relayChannelPrefix+"*")
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var envelope relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				r.logger.Warn("discarding malformed relay payload", zap.Error(err))
				continue
			}
			if envelope.Origin == r.instanceID {
				continue
			}
			r.broker.dispatch(envelope.Event)
		}
	}
}
