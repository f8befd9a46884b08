package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/matthewbaird/leasefin/internal/event"
)

// recordEvent records a domain event if a recorder is configured.
// Errors are logged but do not fail the request: the configuration is
// already stored when the event is raised.
func recordEvent(ctx context.Context, rec event.Recorder, logger *zap.Logger, evt event.DomainEvent) {
	if rec == nil {
		return
	}
	if err := rec.Record(ctx, evt); err != nil {
		logger.Warn("event recording failed",
			zap.String("event_type", evt.EventType),
			zap.String("event_id", evt.ID),
			zap.Error(err))
	}
}
