package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/matthewbaird/leasefin/internal/activity"
	"github.com/matthewbaird/leasefin/internal/finconfig"
	"github.com/matthewbaird/leasefin/internal/signals"
	"github.com/matthewbaird/leasefin/internal/types"
)

// ActivityHandler serves the activity feed written by the event recorder.
type ActivityHandler struct {
	store activity.Store
	rules []signals.EscalationRule
}

// NewActivityHandler creates a new ActivityHandler that summarizes with the default escalation rules.
func NewActivityHandler(store activity.Store) *ActivityHandler {
	return &ActivityHandler{store: store, rules: signals.DefaultRules()}
}

// GetAssignmentActivity returns the saves and rejections of one assignment, newest first.
// GET /v1/tenants/{tenantID}/units/{unitID}/activity
func (h *ActivityHandler) GetAssignmentActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssignment(w, r)
	if !ok {
		return
	}

	opts := activity.DefaultQueryOptions()
	q := r.URL.Query()
	if s := q.Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			opts.Since = &t
		}
	}
	if u := q.Get("until"); u != "" {
		if t, err := time.Parse(time.RFC3339, u); err == nil {
			opts.Until = &t
		}
	}
	if cats := q.Get("categories"); cats != "" {
		opts.Categories = strings.Split(cats, ",")
	}
	if mw := q.Get("min_weight"); mw != "" {
		opts.MinWeight = mw
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			opts.Limit = min(n, 500)
		}
	}
	opts.Cursor = q.Get("cursor")

	entries, nextCursor, totalCount, err := h.store.QueryByEntity(r.Context(), "assignment", assignmentEntityID(id), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}

	resp := struct {
		Activities []types.ActivityEntry `json:"activities"`
		NextCursor string                `json:"next_cursor,omitempty"`
		TotalCount int                   `json:"total_count"`
		Period     struct {
			Since time.Time `json:"since"`
			Until time.Time `json:"until"`
		} `json:"period"`
	}{
		Activities: entries,
		NextCursor: nextCursor,
		TotalCount: totalCount,
	}
	if opts.Since != nil {
		resp.Period.Since = *opts.Since
	}
	if opts.Until != nil {
		resp.Period.Until = *opts.Until
	}
	if resp.Activities == nil {
		resp.Activities = []types.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetAssignmentSummary returns the aggregated activity summary of one assignment.
// GET /v1/tenants/{tenantID}/units/{unitID}/activity/summary?since=
func (h *ActivityHandler) GetAssignmentSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssignment(w, r)
	if !ok {
		return
	}

	// Default: 12 months lookback.
	until := time.Now()
	since := until.AddDate(-1, 0, 0)
	if s := r.URL.Query().Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			since = t
		}
	}

	entityID := assignmentEntityID(id)
	entries, _, _, err := h.store.QueryByEntity(r.Context(), "assignment", entityID, activity.QueryOptions{
		Since:     &since,
		Until:     &until,
		MinWeight: "info",
		Limit:     500,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, signals.Aggregate(entries, "assignment", entityID, since, until, h.rules))
}

func assignmentEntityID(id finconfig.Identity) string {
	return strconv.FormatInt(id.TenantID, 10) + ":" + strconv.FormatInt(id.UnitID, 10)
}

// SearchActivity performs a case-insensitive search across activity summaries.
// GET /v1/activity/search?q=&entity_type=&categories=&since=&limit=
func (h *ActivityHandler) SearchActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "q is required")
		return
	}

	opts := activity.DefaultSearchOptions()
	opts.EntityType = q.Get("entity_type")
	if cats := q.Get("categories"); cats != "" {
		opts.Categories = strings.Split(cats, ",")
	}
	if s := q.Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			opts.Since = &t
		}
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			opts.Limit = min(n, 100)
		}
	}

	entries, totalCount, err := h.store.Search(r.Context(), query, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SEARCH_FAILED", err.Error())
		return
	}

	resp := struct {
		Results    []types.ActivityEntry `json:"results"`
		TotalCount int                   `json:"total_count"`
	}{
		Results:    entries,
		TotalCount: totalCount,
	}
	if resp.Results == nil {
		resp.Results = []types.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, resp)
}
