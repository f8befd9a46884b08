package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthewbaird/leasefin/internal/finconfig"
)

// Handler manages WebSocket connections for live validation.
type Handler struct {
	engines map[finconfig.Flow]*finconfig.Engine
	logger  *zap.Logger
}

// NewHandler creates a WebSocket handler over one engine per flow.
func NewHandler(engines map[finconfig.Flow]*finconfig.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engines: engines, logger: logger.Named("wire")}
}

// session is the per-connection state: the record built up by merge messages.
type session struct {
	id     string
	record finconfig.Record
}

// ServeHTTP upgrades to WebSocket and runs the message loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("websocket accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	sess := &session{id: uuid.NewString(), record: finconfig.Record{}}
	ctx := r.Context()
	log := h.logger.With(zap.String("session_id", sess.id))

	h.send(ctx, conn, ServerMessage{
		Type: "session",
		Data: SessionData{
			SessionID: sess.id,
			Flows:     []finconfig.Flow{finconfig.FlowCreate, finconfig.FlowEdit},
		},
	})

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Debug("connection closed", zap.Int("status", int(websocket.CloseStatus(err))))
			}
			return
		}

		switch msg.Type {
		case "validate":
			h.handleValidate(ctx, conn, sess, msg)
		case "fields":
			h.handleFields(ctx, conn, msg)
		case "reset":
			sess.record = finconfig.Record{}
			h.send(ctx, conn, ServerMessage{Type: "reset", RequestID: msg.ID})
		case "ping":
			h.send(ctx, conn, ServerMessage{Type: "pong", RequestID: msg.ID})
		default:
			h.sendError(ctx, conn, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

func (h *Handler) engine(flow finconfig.Flow) (*finconfig.Engine, error) {
	flow, err := finconfig.ParseFlow(string(flow))
	if err != nil {
		return nil, err
	}
	e, ok := h.engines[flow]
	if !ok {
		return nil, fmt.Errorf("flow %q is not served", flow)
	}
	return e, nil
}

func (h *Handler) handleValidate(ctx context.Context, conn *websocket.Conn, sess *session, msg ClientMessage) {
	var data ValidateData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid validate data")
		return
	}
	e, err := h.engine(data.Flow)
	if err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_flow", err.Error())
		return
	}
	rec, err := finconfig.DecodeRecord(data.Record)
	if err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_record", err.Error())
		return
	}
	if data.Merge {
		rec = sess.record.Merge(rec)
	}
	sess.record = rec

	var result ResultData
	if data.TenantID == 0 && data.UnitID == 0 {
		result.Issues = e.Check(rec)
		result.State = finconfig.StateValidated
		if len(result.Issues) > 0 {
			result.State = finconfig.StateRejected
		}
	} else {
		res, err := e.Process(finconfig.Identity{TenantID: data.TenantID, UnitID: data.UnitID}, rec)
		if err != nil {
			h.sendError(ctx, conn, msg.ID, "missing_identity", err.Error())
			return
		}
		result = ResultData{State: res.State, Issues: res.Issues, Payload: res.Payload}
	}
	if result.Issues == nil {
		result.Issues = finconfig.Issues{}
	}
	result.Groups = result.Issues.Groups()
	if result.Groups == nil {
		result.Groups = []finconfig.Group{}
	}

	h.send(ctx, conn, ServerMessage{Type: "result", RequestID: msg.ID, Data: result})
}

func (h *Handler) handleFields(ctx context.Context, conn *websocket.Conn, msg ClientMessage) {
	var data FieldsData
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid fields data")
			return
		}
	}
	e, err := h.engine(data.Flow)
	if err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_flow", err.Error())
		return
	}
	h.send(ctx, conn, ServerMessage{
		Type:      "fields",
		RequestID: msg.ID,
		Data:      FieldsResult{Flow: e.Flow(), Fields: e.Contract().Fields(e.Capabilities())},
	})
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		h.logger.Debug("write error", zap.Error(err))
	}
}

func (h *Handler) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	h.send(ctx, conn, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data: ErrorData{
			Code:    code,
			Message: message,
		},
	})
}
