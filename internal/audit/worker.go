package audit

import (
	"context"
	"log/slog"
)

// Worker drains the outbox channel into the streaming publisher. Publish
// failures are logged and dropped; the durable trail in the store is already
// committed by the time an event reaches the worker.
type Worker struct {
	publisher Publisher
	inbox     <-chan Event
	logger    *slog.Logger
}

// NewWorker constructs a Worker.
func NewWorker(publisher Publisher, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{publisher: publisher, inbox: inbox, logger: logger}
}

// Run consumes until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.publisher.Publish(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "audit event streaming failed",
					"record_id", event.RecordID,
					"action", event.Action,
					"error", err,
				)
			}
		}
	}
}
