package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/hitl-service/internal/api/dto"
	"github.com/spec-kit/hitl-service/internal/liveview"
	"github.com/spec-kit/hitl-service/internal/notify"
)

const streamHeartbeat = 15 * time.Second

// StreamHandler serves the live view over server-sent events. Each
// connection owns one CaseView whose subscriptions are released on
// every exit path.
type StreamHandler struct {
	cases    liveview.CaseLoader
	messages liveview.MessageLoader
	broker   *notify.Broker
	logger   *zap.Logger
}

// NewStreamHandler constructs handler.
func NewStreamHandler(cases liveview.CaseLoader, messages liveview.MessageLoader, broker *notify.Broker, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{cases: cases, messages: messages, broker: broker, logger: logger}
}

// streamFrame is the SSE payload for one change event or snapshot.
type streamFrame struct {
	Table   string               `json:"table,omitempty"`
	Kind    notify.EventKind     `json:"kind,omitempty"`
	Case    *dto.CaseResponse    `json:"case,omitempty"`
	Message *dto.MessageResponse `json:"message,omitempty"`
}

type snapshotFrame struct {
	Cases    []dto.CaseResponse    `json:"cases"`
	Messages []dto.MessageResponse `json:"messages"`
}

// Stream GET /api/stream?case_id=. Emits a snapshot, then one frame per
// delivered change event until the client disconnects.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	// Captured before the handler returns; the fiber context is not
	// valid inside the stream writer.
	caseID := c.Query("case_id")

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		view := liveview.NewCaseView(h.cases, h.messages, h.broker, h.logger)
		defer view.Close()

		if err := view.Attach(ctx); err != nil {
			h.logger.Warn("live view attach failed", zap.Error(err))
			return
		}
		if caseID != "" {
			if err := view.SelectCase(ctx, caseID); err != nil {
				h.logger.Warn("live view case select failed",
					zap.String("case_id", caseID), zap.Error(err))
				return
			}
		}

		if err := writeSnapshot(w, view); err != nil {
			return
		}

		ticker := time.NewTicker(streamHeartbeat)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-view.CaseEvents():
				if !ok {
					return
				}
				view.Apply(event)
				if err := writeFrame(w, "change", toFrame(event)); err != nil {
					return
				}
			case event, ok := <-view.MessageEvents():
				if !ok {
					return
				}
				view.Apply(event)
				if err := writeFrame(w, "change", toFrame(event)); err != nil {
					return
				}
			case <-ticker.C:
				// Heartbeat doubles as disconnect detection: the flush
				// fails once the peer is gone, which tears the view down.
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func toFrame(event notify.ChangeEvent) streamFrame {
	frame := streamFrame{Table: event.Table, Kind: event.Kind}
	if event.Case != nil {
		converted := dto.FromCase(event.Case)
		frame.Case = &converted
	}
	if event.Message != nil {
		converted := dto.FromMessage(event.Message)
		frame.Message = &converted
	}
	return frame
}

func writeSnapshot(w *bufio.Writer, view *liveview.CaseView) error {
	cases := view.Cases()
	messages := view.Messages()
	snapshot := snapshotFrame{
		Cases:    make([]dto.CaseResponse, 0, len(cases)),
		Messages: make([]dto.MessageResponse, 0, len(messages)),
	}
	for i := range cases {
		snapshot.Cases = append(snapshot.Cases, dto.FromCase(&cases[i]))
	}
	for i := range messages {
		snapshot.Messages = append(snapshot.Messages, dto.FromMessage(&messages[i]))
	}
	return writeFrame(w, "snapshot", snapshot)
}

func writeFrame(w *bufio.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
