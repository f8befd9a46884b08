// Package wire defines the WebSocket protocol for live validation of the
// financial configuration form.
package wire

import (
	"encoding/json"

	"github.com/matthewbaird/leasefin/internal/finconfig"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"` // "validate", "fields", "reset", "ping"
	ID   string          `json:"id"`   // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// ValidateData is the payload for "validate" messages. With Merge set, Record
// holds only the changed fields and is overlaid on the session's last record.
// Zero ids skip normalization and return issues only.
type ValidateData struct {
	Flow     finconfig.Flow `json:"flow"`
	TenantID int64          `json:"tenant_id,omitempty"`
	UnitID   int64          `json:"unit_id,omitempty"`
	Record   map[string]any `json:"record"`
	Merge    bool           `json:"merge,omitempty"`
}

// FieldsData is the payload for "fields" messages.
type FieldsData struct {
	Flow finconfig.Flow `json:"flow"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`                 // "session", "result", "fields", "reset", "error", "pong"
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// SessionData carries session information.
type SessionData struct {
	SessionID string           `json:"session_id"`
	Flows     []finconfig.Flow `json:"flows"`
}

// ResultData carries the outcome of one validation.
type ResultData struct {
	State   finconfig.State    `json:"state"`
	Issues  finconfig.Issues   `json:"issues"`
	Groups  []finconfig.Group  `json:"groups"`
	Payload *finconfig.Payload `json:"payload,omitempty"`
}

// FieldsResult lists the fields a flow's form shows.
type FieldsResult struct {
	Flow   finconfig.Flow        `json:"flow"`
	Fields []finconfig.FieldSpec `json:"fields"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
