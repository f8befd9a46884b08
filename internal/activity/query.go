// Package activity stores the per-entity activity stream derived from
// domain events, e.g. every save or rejection of an assignment's financial
// configuration.
package activity

import (
	"slices"
	"time"

	"github.com/matthewbaird/leasefin/internal/types"
)

// QueryOptions controls filtering and pagination for entity activity queries.
type QueryOptions struct {
	Since      *time.Time // default: 6 months ago
	Until      *time.Time // default: now
	Categories []string   // filter to specific categories
	MinWeight  string     // minimum weight threshold (default: "info")
	Limit      int        // max results (default: 100, max: 500)
	Cursor     string     // cursor for pagination
}

// SearchOptions controls filtering for full-text activity search.
type SearchOptions struct {
	EntityType string     // filter to specific entity type
	Since      *time.Time // filter by time
	Categories []string   // filter to specific categories
	Limit      int        // max results (default: 20)
}

// DefaultQueryOptions returns QueryOptions with sensible defaults.
func DefaultQueryOptions() QueryOptions {
	sixMonthsAgo := time.Now().AddDate(0, -6, 0)
	now := time.Now()
	return QueryOptions{
		Since:     &sixMonthsAgo,
		Until:     &now,
		MinWeight: "info",
		Limit:     100,
	}
}

// DefaultSearchOptions returns SearchOptions with sensible defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit: 20,
	}
}

// weightOrder ranks weights from most to least severe.
var weightOrder = map[string]int{
	"critical": 0,
	"major":    1,
	"minor":    2,
	"info":     3,
}

// atLeastWeight reports whether weight is at least as severe as min.
func atLeastWeight(weight, min string) bool {
	w, ok := weightOrder[weight]
	if !ok {
		return false
	}
	m, ok := weightOrder[min]
	if !ok {
		return true
	}
	return w <= m
}

// weightsAtLeast lists the weights at least as severe as min.
func weightsAtLeast(min string) []string {
	var out []string
	for w := range weightOrder {
		if atLeastWeight(w, min) {
			out = append(out, w)
		}
	}
	return out
}

// matches applies every filter except the cursor.
func (o QueryOptions) matches(e types.ActivityEntry) bool {
	switch {
	case o.Since != nil && e.OccurredAt.Before(*o.Since):
		return false
	case o.Until != nil && e.OccurredAt.After(*o.Until):
		return false
	case len(o.Categories) > 0 && !slices.Contains(o.Categories, e.Category):
		return false
	case o.MinWeight != "" && o.MinWeight != "info" && !atLeastWeight(e.Weight, o.MinWeight):
		return false
	}
	return true
}

func (o SearchOptions) matches(e types.ActivityEntry) bool {
	switch {
	case o.EntityType != "" && e.IndexedEntityType != o.EntityType:
		return false
	case o.Since != nil && e.OccurredAt.Before(*o.Since):
		return false
	case len(o.Categories) > 0 && !slices.Contains(o.Categories, e.Category):
		return false
	}
	return true
}

func searchLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
