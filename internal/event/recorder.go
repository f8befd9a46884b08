// Package event defines the domain events raised when a financial
// configuration is saved or rejected, and records them in the activity feed.
package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/matthewbaird/leasefin/internal/activity"
	"github.com/matthewbaird/leasefin/internal/types"
)

// Recorder persists a domain event.
type Recorder interface {
	Record(ctx context.Context, evt DomainEvent) error
}

// Publisher hands a recorded event to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// ActivityRecorder writes one activity entry per referenced entity and then
// publishes the event. Nothing is published when the write fails.
type ActivityRecorder struct {
	store activity.Store
	pub   Publisher
}

// NewActivityRecorder records into store and publishes to pub, which may be nil.
func NewActivityRecorder(store activity.Store, pub Publisher) *ActivityRecorder {
	return &ActivityRecorder{store: store, pub: pub}
}

func (r *ActivityRecorder) Record(ctx context.Context, evt DomainEvent) error {
	if evt.ID == "" {
		return errors.New("event has no id")
	}
	if err := r.store.WriteEntries(ctx, evt.Entries()); err != nil {
		return fmt.Errorf("recording %s %s: %w", evt.EventType, evt.ID, err)
	}
	if r.pub != nil {
		r.pub.Publish(ctx, evt)
	}
	return nil
}

// Entries indexes the event under every entity it references.
func (e DomainEvent) Entries() []types.ActivityEntry {
	out := make([]types.ActivityEntry, len(e.AffectedEntities))
	for i, ref := range e.AffectedEntities {
		out[i] = types.ActivityEntry{
			EventID:           e.ID,
			EventType:         e.EventType,
			OccurredAt:        e.OccurredAt,
			IndexedEntityType: ref.EntityType,
			IndexedEntityID:   ref.EntityID,
			EntityRole:        ref.Role,
			SourceRefs:        e.AffectedEntities,
			Summary:           e.Summary,
			Category:          e.Category,
			Weight:            e.Weight,
			Polarity:          e.Polarity,
			Actor:             e.Actor,
			Payload:           e.Payload,
		}
	}
	return out
}
