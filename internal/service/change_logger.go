package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/hitl-service/internal/config"
	"github.com/spec-kit/hitl-service/internal/notify"
)

// ChangeLogger emits operational log lines (and an optional webhook
// stub) for committed change events. It is a plain broker subscriber,
// decoupled from the mutating services.
type ChangeLogger struct {
	broker *notify.Broker
	logger *zap.Logger
	cfg    config.NotificationConfig
	subs   []*notify.Subscription
}

// NewChangeLogger creates the logger.
func NewChangeLogger(broker *notify.Broker, logger *zap.Logger, cfg config.NotificationConfig) *ChangeLogger {
	return &ChangeLogger{broker: broker, logger: logger, cfg: cfg}
}

// Run subscribes and consumes change events until ctx is cancelled.
func (n *ChangeLogger) Run(ctx context.Context) {
	if n.broker == nil {
		return
	}
	n.subs = []*notify.Subscription{
		n.broker.Subscribe(notify.TableCases, nil, nil),
		n.broker.Subscribe(notify.TableMessages, []notify.EventKind{notify.EventInsert}, nil),
	}

	for _, sub := range n.subs {
		go n.consume(ctx, sub)
	}
}

// Close releases the subscriptions.
func (n *ChangeLogger) Close() {
	for _, sub := range n.subs {
		sub.Close()
	}
	n.subs = nil
}

func (n *ChangeLogger) consume(ctx context.Context, sub *notify.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			n.logEvent(event)
			n.sendWebhookStub(event)
		}
	}
}

func (n *ChangeLogger) logEvent(event notify.ChangeEvent) {
	fields := []zap.Field{
		zap.String("table", event.Table),
		zap.String("kind", string(event.Kind)),
	}
	switch {
	case event.Case != nil:
		fields = append(fields,
			zap.String("case_id", event.Case.ID),
			zap.String("status", string(event.Case.Status)))
	case event.Message != nil:
		fields = append(fields,
			zap.String("case_id", event.Message.CaseID),
			zap.String("message_id", event.Message.ID),
			zap.String("sender_type", string(event.Message.SenderType)))
	}
	n.logger.Info("change event", fields...)
}

func (n *ChangeLogger) sendWebhookStub(event notify.ChangeEvent) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("table", event.Table),
		zap.String("kind", string(event.Kind)))
}
