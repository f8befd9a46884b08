package eventbus

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matthewbaird/leasefin/internal/activity"
	"github.com/matthewbaird/leasefin/internal/event"
	"github.com/matthewbaird/leasefin/internal/signals"
)

// SignalConsumer re-evaluates escalation rules for the subject of every event
// and logs the rules that fire.
type SignalConsumer struct {
	store  activity.Store
	rules  []signals.EscalationRule
	window time.Duration
	logger *zap.Logger
}

// NewSignalConsumer reads recent activity from store. The lookback covers the
// widest rule window.
func NewSignalConsumer(store activity.Store, rules []signals.EscalationRule, logger *zap.Logger) *SignalConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	var window time.Duration
	for _, r := range rules {
		window = max(window, r.Within)
	}
	return &SignalConsumer{store: store, rules: rules, window: window, logger: logger}
}

func (c *SignalConsumer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	for _, ref := range evt.AffectedEntities {
		if ref.Role != "subject" {
			continue
		}
		since := evt.OccurredAt.Add(-c.window)
		until := evt.OccurredAt
		entries, _, _, err := c.store.QueryByEntity(ctx, ref.EntityType, ref.EntityID, activity.QueryOptions{
			Since:     &since,
			Until:     &until,
			MinWeight: "info",
			Limit:     500,
		})
		if err != nil {
			return fmt.Errorf("querying activity for %s %s: %w", ref.EntityType, ref.EntityID, err)
		}
		for _, es := range signals.Evaluate(c.rules, entries, evt.OccurredAt) {
			c.logger.Warn("escalation",
				zap.String("rule", es.Rule.ID),
				zap.String("weight", es.Rule.EscalatedWeight),
				zap.String("entity_type", ref.EntityType),
				zap.String("entity_id", ref.EntityID),
				zap.Int("count", es.TriggeringCount),
				zap.String("description", es.Rule.Description))
		}
	}
	return nil
}
