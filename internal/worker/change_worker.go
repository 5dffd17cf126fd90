package worker

import (
	"context"

	"github.com/spec-kit/hitl-service/internal/notify"
	"github.com/spec-kit/hitl-service/internal/service"
)

// StartChangeLogger subscribes the operational change logger.
func StartChangeLogger(ctx context.Context, changeLogger *service.ChangeLogger) {
	if changeLogger == nil {
		return
	}
	changeLogger.Run(ctx)
}

// StartChangeRelay pumps remote change events from peer instances into
// the local broker until ctx is cancelled.
func StartChangeRelay(ctx context.Context, relay *notify.Relay) {
	if relay == nil {
		return
	}
	go relay.Run(ctx)
}
