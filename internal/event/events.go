package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/leasefin/internal/types"
)

// Event types.
const (
	TypeFinancialConfigSaved    = "financial_config_saved"
	TypeFinancialConfigRejected = "financial_config_rejected"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID               string
	EventType        string
	OccurredAt       time.Time
	AffectedEntities []types.SourceRef
	Summary          string
	Category         string // "financial_config"
	Weight           string // "critical", "major", "minor", "info"
	Polarity         string // "positive", "negative", "neutral"
	Actor            string
	Payload          json.RawMessage
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func assignmentRefs(tenantID, unitID int64) []types.SourceRef {
	t := strconv.FormatInt(tenantID, 10)
	u := strconv.FormatInt(unitID, 10)
	return []types.SourceRef{
		{EntityType: "assignment", EntityID: t + ":" + u, Role: "subject"},
		{EntityType: "tenant", EntityID: t, Role: "related"},
		{EntityType: "unit", EntityID: u, Role: "context"},
	}
}

// FinancialConfigSavedPayload carries event-specific data for FinancialConfigSaved.
type FinancialConfigSavedPayload struct {
	TenantID   int64    `json:"tenant_id"`
	UnitID     int64    `json:"unit_id"`
	Flow       string   `json:"flow"`
	Revision   int      `json:"revision"`
	FineMode   string   `json:"fine_mode"`
	Violations []string `json:"jurisdiction_violations,omitempty"`
}

func NewFinancialConfigSaved(p FinancialConfigSavedPayload, actor string) DomainEvent {
	weight := "minor"
	polarity := "positive"
	if len(p.Violations) > 0 {
		weight = "major"
		polarity = "neutral"
	}
	return DomainEvent{
		ID:               newID(),
		EventType:        TypeFinancialConfigSaved,
		OccurredAt:       time.Now(),
		AffectedEntities: assignmentRefs(p.TenantID, p.UnitID),
		Summary: fmt.Sprintf("Financial configuration saved for tenant %d on unit %d (%s, revision %d)",
			p.TenantID, p.UnitID, p.Flow, p.Revision),
		Category: "financial_config",
		Weight:   weight,
		Polarity: polarity,
		Actor:    actor,
		Payload:  mustJSON(p),
	}
}

// FinancialConfigRejectedPayload carries event-specific data for FinancialConfigRejected.
type FinancialConfigRejectedPayload struct {
	TenantID int64    `json:"tenant_id"`
	UnitID   int64    `json:"unit_id"`
	Flow     string   `json:"flow"`
	Fields   []string `json:"fields"`
	Groups   []string `json:"groups"`
}

func NewFinancialConfigRejected(p FinancialConfigRejectedPayload, actor string) DomainEvent {
	return DomainEvent{
		ID:               newID(),
		EventType:        TypeFinancialConfigRejected,
		OccurredAt:       time.Now(),
		AffectedEntities: assignmentRefs(p.TenantID, p.UnitID),
		Summary: fmt.Sprintf("Financial configuration rejected for tenant %d on unit %d: %d issue(s)",
			p.TenantID, p.UnitID, len(p.Fields)),
		Category: "financial_config",
		Weight:   "info",
		Polarity: "negative",
		Actor:    actor,
		Payload:  mustJSON(p),
	}
}
