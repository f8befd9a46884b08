// Package signals condenses an assignment's activity stream into a summary:
// counts per category, a trend, an overall sentiment and any escalations.
package signals

import "time"

// EscalationRule fires when at least Count matching entries occur within
// the trailing window.
type EscalationRule struct {
	ID              string        `json:"id"`
	Description     string        `json:"description"`
	Category        string        `json:"category,omitempty"`
	Polarity        string        `json:"polarity,omitempty"`
	Weight          string        `json:"weight,omitempty"`
	Count           int           `json:"count"`
	Within          time.Duration `json:"within"`
	EscalatedWeight string        `json:"escalated_weight"`
}

// Escalation is a triggered rule with the span of entries that triggered it.
type Escalation struct {
	Rule             EscalationRule `json:"rule"`
	TriggeringCount  int            `json:"triggering_count"`
	EarliestOccurred time.Time      `json:"earliest_occurred"`
	LatestOccurred   time.Time      `json:"latest_occurred"`
}

// DefaultRules returns the escalation rules for financial configuration activity.
func DefaultRules() []EscalationRule {
	return []EscalationRule{
		{
			ID:              "repeated_rejections",
			Description:     "Three or more rejected submissions within a day",
			Category:        "financial_config",
			Polarity:        "negative",
			Count:           3,
			Within:          24 * time.Hour,
			EscalatedWeight: "major",
		},
		{
			ID:              "repeated_jurisdiction_flags",
			Description:     "Two or more saves exceeding jurisdiction caps within 30 days",
			Category:        "financial_config",
			Weight:          "major",
			Count:           2,
			Within:          30 * 24 * time.Hour,
			EscalatedWeight: "critical",
		},
	}
}
