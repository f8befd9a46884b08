package wire

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/leasefin/internal/finconfig"
)

// reply mirrors ServerMessage with raw data for decoding in tests.
type reply struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

func dial(t *testing.T) (context.Context, *websocket.Conn) {
	t.Helper()
	engines, err := finconfig.NewEngines()
	require.NoError(t, err)
	srv := httptest.NewServer(NewHandler(engines, nil))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	var hello reply
	require.NoError(t, wsjson.Read(ctx, conn, &hello))
	require.Equal(t, "session", hello.Type)
	var sess SessionData
	require.NoError(t, json.Unmarshal(hello.Data, &sess))
	require.NotEmpty(t, sess.SessionID)
	return ctx, conn
}

func roundTrip(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType, id string, data any) reply {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: msgType, ID: id, Data: raw}))
	var r reply
	require.NoError(t, wsjson.Read(ctx, conn, &r))
	assert.Equal(t, id, r.RequestID)
	return r
}

func baseRecord() map[string]any {
	return map[string]any{
		"rent_amount":                         "1000",
		"rent_deposit":                        "1000",
		"water":                               "80",
		"garbage":                             "40",
		"electricity":                         "150",
		"is_rent_agreed":                      true,
		"is_taxable":                          false,
		"is_meter_read":                       false,
		"is_the_tenant_have_previous_arrears": false,
		"rent_due_date":                       5,
		"due_rent_reminder_date":              3,
		"due_rent_fine_start_date":            10,
		"mode_for_late_payment":               "fixed_amount",
		"late_payment_fixed_amount":           "50",
		"first_time_billing":                  true,
	}
}

func TestHandler_Ping(t *testing.T) {
	ctx, conn := dial(t)
	r := roundTrip(t, ctx, conn, "ping", "p1", nil)
	assert.Equal(t, "pong", r.Type)
}

func TestHandler_ValidateWithIdentity(t *testing.T) {
	ctx, conn := dial(t)
	r := roundTrip(t, ctx, conn, "validate", "v1", ValidateData{
		Flow: finconfig.FlowCreate, TenantID: 4, UnitID: 9, Record: baseRecord(),
	})
	require.Equal(t, "result", r.Type)

	var res ResultData
	require.NoError(t, json.Unmarshal(r.Data, &res))
	assert.Equal(t, finconfig.StateNormalized, res.State)
	assert.Empty(t, res.Issues)
	require.NotNil(t, res.Payload)
	assert.Equal(t, int64(4), res.Payload.TenantID)
	require.NotNil(t, res.Payload.LatePaymentFixedAmount)
	assert.Equal(t, "50", *res.Payload.LatePaymentFixedAmount)
}

func TestHandler_ValidateMergesIntoSession(t *testing.T) {
	ctx, conn := dial(t)

	r := roundTrip(t, ctx, conn, "validate", "v1", ValidateData{Flow: finconfig.FlowCreate, Record: baseRecord()})
	var res ResultData
	require.NoError(t, json.Unmarshal(r.Data, &res))
	assert.Equal(t, finconfig.StateValidated, res.State)
	assert.Nil(t, res.Payload, "no identity, no payload")

	// Switch to taxable without a percentage: only the tax group fails.
	r = roundTrip(t, ctx, conn, "validate", "v2", ValidateData{
		Flow: finconfig.FlowCreate, Record: map[string]any{"is_taxable": "1"}, Merge: true,
	})
	res = ResultData{}
	require.NoError(t, json.Unmarshal(r.Data, &res))
	assert.Equal(t, finconfig.StateRejected, res.State)
	assert.Equal(t, []finconfig.Group{finconfig.GroupTax}, res.Groups)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, finconfig.FieldTaxPercentage, res.Issues[0].Field)

	// Reset drops the session record, so a lone merge is missing everything.
	assert.Equal(t, "reset", roundTrip(t, ctx, conn, "reset", "r1", nil).Type)
	r = roundTrip(t, ctx, conn, "validate", "v3", ValidateData{
		Flow: finconfig.FlowCreate, Record: map[string]any{"is_taxable": "0"}, Merge: true,
	})
	res = ResultData{}
	require.NoError(t, json.Unmarshal(r.Data, &res))
	assert.True(t, res.Issues.Has(finconfig.FieldRentAmount))
}

func TestHandler_Fields(t *testing.T) {
	ctx, conn := dial(t)
	r := roundTrip(t, ctx, conn, "fields", "f1", FieldsData{Flow: finconfig.FlowEdit})
	require.Equal(t, "fields", r.Type)

	var res FieldsResult
	require.NoError(t, json.Unmarshal(r.Data, &res))
	assert.Equal(t, finconfig.FlowEdit, res.Flow)
	names := make([]string, len(res.Fields))
	for i, f := range res.Fields {
		names[i] = f.Name
	}
	assert.Contains(t, names, finconfig.FieldElectricityUnitPrice)
	assert.NotContains(t, names, finconfig.FieldArrearsTotal)
}

func TestHandler_Errors(t *testing.T) {
	ctx, conn := dial(t)

	tests := []struct {
		msgType string
		data    any
		code    string
	}{
		{"bogus", nil, "unknown_type"},
		{"validate", ValidateData{Flow: "archive", Record: baseRecord()}, "invalid_flow"},
		{"validate", ValidateData{Flow: finconfig.FlowCreate, TenantID: 4, Record: baseRecord()}, "missing_identity"},
		{"validate", ValidateData{Flow: finconfig.FlowCreate, Record: map[string]any{"rent_amount": []int{1}}}, "invalid_record"},
	}
	for i, tt := range tests {
		r := roundTrip(t, ctx, conn, tt.msgType, string(rune('a'+i)), tt.data)
		require.Equal(t, "error", r.Type, tt.code)
		var e ErrorData
		require.NoError(t, json.Unmarshal(r.Data, &e))
		assert.Equal(t, tt.code, e.Code)
	}
}
