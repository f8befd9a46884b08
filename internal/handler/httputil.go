package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/matthewbaird/leasefin/internal/configstore"
	"github.com/matthewbaird/leasefin/internal/finconfig"
	"github.com/matthewbaird/leasefin/internal/types"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("writeJSON encode error", zap.Error(err))
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// writeIssues writes a 422 carrying the per-field issue list.
func writeIssues(w http.ResponseWriter, issues finconfig.Issues) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"code":   "VALIDATION_ERROR",
		"issues": issues,
	})
}

// decodeJSON decodes the request body into v. Numbers are kept as
// json.Number so amounts are not rounded through float64.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// decodeRequest decodes the body into v and validates its struct tags.
// It writes the 400 response itself and reports whether decoding succeeded.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(r, v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body: "+err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", validationMessage(err))
		return false
	}
	return true
}

// validationMessage turns validator errors into "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		if fe.Param() != "" {
			parts[i] = fmt.Sprintf("%s: must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		} else {
			parts[i] = fmt.Sprintf("%s: %s", fe.Field(), fe.Tag())
		}
	}
	return strings.Join(parts, "; ")
}

// parseAssignment extracts and validates the tenant and unit path parameters.
func parseAssignment(w http.ResponseWriter, r *http.Request) (finconfig.Identity, bool) {
	var id finconfig.Identity
	for _, p := range []struct {
		name string
		dst  *int64
	}{{"tenantID", &id.TenantID}, {"unitID", &id.UnitID}} {
		raw := chi.URLParam(r, p.name)
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid "+p.name+": "+raw)
			return finconfig.Identity{}, false
		}
		*p.dst = n
	}
	if err := validate.Struct(id); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", validationMessage(err))
		return finconfig.Identity{}, false
	}
	return id, true
}

// parseFlow reads the flow query parameter.
func parseFlow(w http.ResponseWriter, r *http.Request) (finconfig.Flow, bool) {
	flow, err := finconfig.ParseFlow(r.URL.Query().Get("flow"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FLOW", err.Error())
		return "", false
	}
	return flow, true
}

// Pagination holds parsed pagination parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination extracts limit and offset from query params. page_size is
// accepted as an alias for limit.
func parsePagination(r *http.Request) Pagination {
	q := r.URL.Query()
	p := Pagination{Limit: 50, Offset: 0}
	raw := q.Get("limit")
	if raw == "" {
		raw = q.Get("page_size")
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		p.Limit = n
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		p.Offset = n
	}
	return p
}

// storeErrorToHTTP maps store and engine errors to HTTP responses.
func storeErrorToHTTP(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, configstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, configstore.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "ALREADY_EXISTS",
			"financial configuration already exists for this assignment; use PATCH to edit it")
	case errors.Is(err, finconfig.ErrMissingIdentity):
		writeError(w, http.StatusBadRequest, "MISSING_IDENTITY", err.Error())
	default:
		zap.L().Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// parseAuditContext extracts audit metadata from request headers.
func parseAuditContext(w http.ResponseWriter, r *http.Request) (types.AuditInfo, bool) {
	actor := r.Header.Get("X-Actor")
	if actor == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ACTOR", "X-Actor header is required")
		return types.AuditInfo{}, false
	}
	source := r.Header.Get("X-Source")
	if source == "" {
		source = "user"
	}
	info := types.AuditInfo{
		Actor:  actor,
		Source: source,
	}
	if cid := r.Header.Get("X-Correlation-ID"); cid != "" {
		info.CorrelationID = &cid
	}
	return info, true
}
