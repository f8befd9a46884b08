// Package handler implements the HTTP endpoints for tenant-unit financial
// configuration: contract listing, dry-run validation, create and edit
// submissions, reads and the assignment activity feed.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/matthewbaird/leasefin/internal/configstore"
	"github.com/matthewbaird/leasefin/internal/event"
	"github.com/matthewbaird/leasefin/internal/finconfig"
	"github.com/matthewbaird/leasefin/internal/jurisdiction"
	"github.com/matthewbaird/leasefin/internal/logger"
	"github.com/matthewbaird/leasefin/internal/types"
)

// Options wires a FinancialConfigHandler.
type Options struct {
	Engines             map[finconfig.Flow]*finconfig.Engine
	Store               configstore.Store
	Enforcer            *jurisdiction.Enforcer // optional
	DefaultJurisdiction string
	Recorder            event.Recorder // optional
	Logger              *zap.Logger
}

// FinancialConfigHandler implements the financial configuration endpoints.
type FinancialConfigHandler struct {
	engines             map[finconfig.Flow]*finconfig.Engine
	store               configstore.Store
	enforcer            *jurisdiction.Enforcer
	defaultJurisdiction string
	recorder            event.Recorder
	logger              *zap.Logger
}

// NewFinancialConfigHandler creates a new FinancialConfigHandler.
func NewFinancialConfigHandler(opts Options) (*FinancialConfigHandler, error) {
	if opts.Store == nil {
		return nil, errors.New("handler: a configuration store is required")
	}
	engines := opts.Engines
	if engines == nil {
		var err error
		if engines, err = finconfig.NewEngines(finconfig.WithLogger(opts.Logger)); err != nil {
			return nil, err
		}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &FinancialConfigHandler{
		engines:             engines,
		store:               opts.Store,
		enforcer:            opts.Enforcer,
		defaultJurisdiction: opts.DefaultJurisdiction,
		recorder:            opts.Recorder,
		logger:              log,
	}, nil
}

// submitRequest is the body of create, edit and validate calls.
type submitRequest struct {
	Record       map[string]any `json:"record" validate:"required"`
	Jurisdiction string         `json:"jurisdiction,omitempty"`
}

type validateRequest struct {
	TenantID int64 `json:"tenant_id" validate:"required,gt=0"`
	UnitID   int64 `json:"unit_id" validate:"required,gt=0"`
	submitRequest
}

type configResponse struct {
	Config     configstore.Record       `json:"config"`
	Violations []jurisdiction.Violation `json:"violations"`
}

type validateResponse struct {
	State      finconfig.State          `json:"state"`
	Payload    *finconfig.Payload       `json:"payload"`
	Violations []jurisdiction.Violation `json:"violations"`
}

type fieldsResponse struct {
	Flow         finconfig.Flow         `json:"flow"`
	Capabilities finconfig.Capabilities `json:"capabilities"`
	Fields       []finconfig.FieldSpec  `json:"fields"`
}

// GetFields lists the fields the flow's form shows.
// GET /v1/financial-config/fields?flow=create|edit
func (h *FinancialConfigHandler) GetFields(w http.ResponseWriter, r *http.Request) {
	flow, ok := parseFlow(w, r)
	if !ok {
		return
	}
	e := h.engines[flow]
	writeJSON(w, http.StatusOK, fieldsResponse{
		Flow:         flow,
		Capabilities: e.Capabilities(),
		Fields:       e.Contract().Fields(e.Capabilities()),
	})
}

// Validate runs a submission through the engine without storing it.
// POST /v1/financial-config/validate?flow=create|edit
func (h *FinancialConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	flow, ok := parseFlow(w, r)
	if !ok {
		return
	}
	var req validateRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	rec, ok := decodeRecord(w, req.Record)
	if !ok {
		return
	}

	res, err := h.engines[flow].Process(finconfig.Identity{TenantID: req.TenantID, UnitID: req.UnitID}, rec)
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	if !res.Accepted() {
		writeIssues(w, res.Issues)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		State:      res.State,
		Payload:    res.Payload,
		Violations: h.violations(req.Jurisdiction, *res.Payload),
	})
}

// CreateFinancialConfig assigns the configuration for a new tenant-unit assignment.
// POST /v1/tenants/{tenantID}/units/{unitID}/financial-config
func (h *FinancialConfigHandler) CreateFinancialConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssignment(w, r)
	if !ok {
		return
	}
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	rec, ok := decodeRecord(w, req.Record)
	if !ok {
		return
	}

	h.submit(w, r, submission{
		flow:         finconfig.FlowCreate,
		id:           id,
		record:       rec,
		audit:        audit,
		jurisdiction: req.Jurisdiction,
		status:       http.StatusCreated,
	})
}

// UpdateFinancialConfig edits a stored configuration. Submitted fields are
// merged over the stored ones and the result is validated as a whole.
// PATCH /v1/tenants/{tenantID}/units/{unitID}/financial-config
func (h *FinancialConfigHandler) UpdateFinancialConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssignment(w, r)
	if !ok {
		return
	}
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	patch, ok := decodeRecord(w, req.Record)
	if !ok {
		return
	}

	stored, err := h.store.Get(r.Context(), id.TenantID, id.UnitID)
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}

	h.submit(w, r, submission{
		flow:         finconfig.FlowEdit,
		id:           id,
		record:       finconfig.RecordFromPayload(stored.Payload).Merge(patch),
		previous:     &stored.Payload,
		audit:        audit,
		jurisdiction: req.Jurisdiction,
		status:       http.StatusOK,
	})
}

// GetFinancialConfig returns the stored configuration of an assignment.
// GET /v1/tenants/{tenantID}/units/{unitID}/financial-config
func (h *FinancialConfigHandler) GetFinancialConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAssignment(w, r)
	if !ok {
		return
	}
	stored, err := h.store.Get(r.Context(), id.TenantID, id.UnitID)
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configResponse{
		Config:     stored,
		Violations: h.violations(r.URL.Query().Get("jurisdiction"), stored.Payload),
	})
}

// ListFinancialConfigs lists stored configurations, most recently updated first.
// GET /v1/financial-configs?tenant_id=&unit_id=&limit=&offset=
func (h *FinancialConfigHandler) ListFinancialConfigs(w http.ResponseWriter, r *http.Request) {
	opts := configstore.ListOptions{}
	for _, p := range []struct {
		name string
		dst  *int64
	}{{"tenant_id", &opts.TenantID}, {"unit_id", &opts.UnitID}} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid "+p.name+": "+raw)
			return
		}
		*p.dst = n
	}
	page := parsePagination(r)
	opts.Limit = page.Limit
	opts.Offset = page.Offset

	recs, err := h.store.List(r.Context(), opts)
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	if recs == nil {
		recs = []configstore.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"configs": recs,
		"count":   len(recs),
	})
}

type submission struct {
	flow         finconfig.Flow
	id           finconfig.Identity
	record       finconfig.Record
	previous     *finconfig.Payload
	audit        types.AuditInfo
	jurisdiction string
	status       int
}

// submit processes a submission and stores it when accepted. Both outcomes
// raise a domain event.
func (h *FinancialConfigHandler) submit(w http.ResponseWriter, r *http.Request, s submission) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	engine := h.engines[s.flow]

	res, err := engine.Process(s.id, s.record)
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	if !res.Accepted() {
		log.Info("financial configuration rejected",
			zap.String("flow", string(s.flow)),
			zap.Strings("fields", res.Issues.Fields()))
		h.recordRejected(ctx, s, res.Issues)
		writeIssues(w, res.Issues)
		return
	}

	payload := *res.Payload
	if s.previous != nil {
		payload = payload.Retain(*s.previous, engine.Capabilities())
	}
	save := h.store.Save
	if s.flow == finconfig.FlowCreate {
		save = h.store.Create
	}
	stored, err := save(ctx, s.flow, payload, s.audit)
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}

	violations := h.violations(s.jurisdiction, payload)
	descs := make([]string, len(violations))
	for i, v := range violations {
		descs[i] = v.Description
	}
	recordEvent(ctx, h.recorder, h.logger, event.NewFinancialConfigSaved(event.FinancialConfigSavedPayload{
		TenantID:   s.id.TenantID,
		UnitID:     s.id.UnitID,
		Flow:       string(s.flow),
		Revision:   stored.Revision,
		FineMode:   string(payload.ModeForLatePayment),
		Violations: descs,
	}, s.audit.Actor))

	log.Info("financial configuration saved",
		zap.String("flow", string(s.flow)),
		zap.Int("revision", stored.Revision),
		zap.Int("violations", len(violations)))
	writeJSON(w, s.status, configResponse{Config: stored, Violations: violations})
}

func (h *FinancialConfigHandler) recordRejected(ctx context.Context, s submission, issues finconfig.Issues) {
	groups := issues.Groups()
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = string(g)
	}
	recordEvent(ctx, h.recorder, h.logger, event.NewFinancialConfigRejected(event.FinancialConfigRejectedPayload{
		TenantID: s.id.TenantID,
		UnitID:   s.id.UnitID,
		Flow:     string(s.flow),
		Fields:   issues.Fields(),
		Groups:   names,
	}, s.audit.Actor))
}

// violations checks the payload against the named jurisdiction, falling
// back to the configured default. It never returns nil.
func (h *FinancialConfigHandler) violations(name string, p finconfig.Payload) []jurisdiction.Violation {
	if name == "" {
		name = h.defaultJurisdiction
	}
	if h.enforcer == nil || name == "" {
		return []jurisdiction.Violation{}
	}
	v := h.enforcer.Check(name, p)
	if v == nil {
		v = []jurisdiction.Violation{}
	}
	return v
}

func decodeRecord(w http.ResponseWriter, raw map[string]any) (finconfig.Record, bool) {
	rec, err := finconfig.DecodeRecord(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_RECORD", err.Error())
		return nil, false
	}
	return rec, true
}
