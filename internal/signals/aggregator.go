package signals

import (
	"sort"
	"time"

	"github.com/matthewbaird/leasefin/internal/types"
)

// CategorySummary aggregates entries within a single category.
type CategorySummary struct {
	Category         string         `json:"category"`
	SignalCount      int            `json:"signal_count"`
	ByWeight         map[string]int `json:"by_weight"`
	ByPolarity       map[string]int `json:"by_polarity"`
	DominantPolarity string         `json:"dominant_polarity"`
	Trend            string         `json:"trend"` // "improving", "stable", "declining"
}

// Summary is the aggregated overview of one entity's activity.
type Summary struct {
	EntityType       string                     `json:"entity_type"`
	EntityID         string                     `json:"entity_id"`
	Since            time.Time                  `json:"since"`
	Until            time.Time                  `json:"until"`
	Categories       map[string]CategorySummary `json:"categories"`
	OverallSentiment string                     `json:"overall_sentiment"` // "positive", "mixed", "concerning", "critical"
	SentimentReason  string                     `json:"sentiment_reason"`
	Escalations      []Escalation               `json:"escalations"`
}

// Aggregate produces a Summary from the entries of one entity within [since, until].
// Escalation windows trail until.
func Aggregate(entries []types.ActivityEntry, entityType, entityID string, since, until time.Time, rules []EscalationRule) Summary {
	categories := make(map[string]*CategorySummary)
	for _, entry := range entries {
		cs, ok := categories[entry.Category]
		if !ok {
			cs = &CategorySummary{
				Category:   entry.Category,
				ByWeight:   make(map[string]int),
				ByPolarity: make(map[string]int),
			}
			categories[entry.Category] = cs
		}
		cs.SignalCount++
		cs.ByWeight[entry.Weight]++
		cs.ByPolarity[entry.Polarity]++
	}

	result := make(map[string]CategorySummary, len(categories))
	for cat, cs := range categories {
		cs.DominantPolarity = dominantPolarity(cs.ByPolarity)
		cs.Trend = computeTrend(entries, cat, since, until)
		result[cat] = *cs
	}

	escalations := Evaluate(rules, entries, until)
	sentiment, reason := computeSentiment(result, escalations)

	return Summary{
		EntityType:       entityType,
		EntityID:         entityID,
		Since:            since,
		Until:            until,
		Categories:       result,
		OverallSentiment: sentiment,
		SentimentReason:  reason,
		Escalations:      escalations,
	}
}

// Evaluate returns every rule that fires against entries, with windows ending at now.
// The result is never nil.
func Evaluate(rules []EscalationRule, entries []types.ActivityEntry, now time.Time) []Escalation {
	out := []Escalation{}
	for _, rule := range rules {
		if es, ok := evaluateRule(rule, entries, now); ok {
			out = append(out, es)
		}
	}
	return out
}

func evaluateRule(rule EscalationRule, entries []types.ActivityEntry, now time.Time) (Escalation, bool) {
	windowStart := now.Add(-rule.Within)

	var matching []types.ActivityEntry
	for _, e := range entries {
		if e.OccurredAt.Before(windowStart) || e.OccurredAt.After(now) {
			continue
		}
		if rule.Category != "" && e.Category != rule.Category {
			continue
		}
		if rule.Polarity != "" && e.Polarity != rule.Polarity {
			continue
		}
		if rule.Weight != "" && e.Weight != rule.Weight {
			continue
		}
		matching = append(matching, e)
	}
	if rule.Count <= 0 || len(matching) < rule.Count {
		return Escalation{}, false
	}

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].OccurredAt.Before(matching[j].OccurredAt)
	})
	return Escalation{
		Rule:             rule,
		TriggeringCount:  len(matching),
		EarliestOccurred: matching[0].OccurredAt,
		LatestOccurred:   matching[len(matching)-1].OccurredAt,
	}, true
}

// dominantPolarity returns the polarity with the highest count, ties broken by name.
func dominantPolarity(byPolarity map[string]int) string {
	best := ""
	bestCount := 0
	for p, c := range byPolarity {
		if c > bestCount || (c == bestCount && p < best) {
			best = p
			bestCount = c
		}
	}
	return best
}

// computeTrend compares negative volume in the first and second half of the window.
func computeTrend(entries []types.ActivityEntry, category string, since, until time.Time) string {
	mid := since.Add(until.Sub(since) / 2)
	var firstHalf, secondHalf int
	for _, e := range entries {
		if e.Category != category || e.Polarity != "negative" {
			continue
		}
		if e.OccurredAt.Before(mid) {
			firstHalf++
		} else {
			secondHalf++
		}
	}

	if secondHalf > firstHalf+1 {
		return "declining"
	}
	if firstHalf > secondHalf+1 {
		return "improving"
	}
	return "stable"
}

func computeSentiment(categories map[string]CategorySummary, escalations []Escalation) (string, string) {
	for _, e := range escalations {
		if e.Rule.EscalatedWeight == "critical" {
			return "critical", "Critical escalation triggered: " + e.Rule.Description
		}
	}

	var criticalCount, majorCount, negativeCount, positiveCount int
	for _, cs := range categories {
		criticalCount += cs.ByWeight["critical"]
		majorCount += cs.ByWeight["major"]
		negativeCount += cs.ByPolarity["negative"]
		positiveCount += cs.ByPolarity["positive"]
	}

	if criticalCount > 0 {
		return "critical", "Critical-weight activity present requiring immediate attention."
	}
	if len(escalations) > 0 || majorCount >= 2 || negativeCount > positiveCount*2 {
		return "concerning", "Escalations, repeated jurisdiction flags or predominantly rejected submissions."
	}
	if negativeCount > positiveCount {
		return "mixed", "More rejected than saved submissions, but no escalations."
	}
	return "positive", "Submissions are predominantly saved cleanly."
}
