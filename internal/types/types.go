// Package types holds value types shared by the event, activity and store
// packages.
package types

import (
	"encoding/json"
	"time"
)

// SourceRef identifies an entity referenced by a domain event.
type SourceRef struct {
	EntityType string `json:"entity_type"` // "tenant", "unit", "assignment"
	EntityID   string `json:"entity_id"`
	Role       string `json:"role"` // "subject", "target", "related", "context"
}

// ActivityEntry is a secondary index entry over the domain event log,
// keyed by a referenced entity. One event produces one entry per reference.
type ActivityEntry struct {
	EventID           string          `json:"event_id"`
	EventType         string          `json:"event_type"`
	OccurredAt        time.Time       `json:"occurred_at"`
	IndexedEntityType string          `json:"indexed_entity_type"`
	IndexedEntityID   string          `json:"indexed_entity_id"`
	EntityRole        string          `json:"entity_role"`
	SourceRefs        []SourceRef     `json:"source_refs"`
	Summary           string          `json:"summary"`
	Category          string          `json:"category"`
	Weight            string          `json:"weight"`   // "critical", "major", "minor", "info"
	Polarity          string          `json:"polarity"` // "positive", "negative", "neutral"
	Actor             string          `json:"actor,omitempty"`
	Payload           json.RawMessage `json:"payload"`
}

// AuditInfo carries who made a change and from where.
type AuditInfo struct {
	Actor         string  `json:"actor"`
	Source        string  `json:"source"` // "user", "agent", "import", "system"
	CorrelationID *string `json:"correlation_id,omitempty"`
}
