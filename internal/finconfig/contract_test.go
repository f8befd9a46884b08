package finconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadContract(t *testing.T) *Contract {
	t.Helper()
	c, err := LoadContract()
	require.NoError(t, err)
	return c
}

func TestLoadContract_Fields(t *testing.T) {
	c := loadContract(t)

	rent, ok := c.Lookup(FieldRentAmount)
	require.True(t, ok)
	assert.Equal(t, KindDecimal, rent.Kind)
	assert.Equal(t, GroupCharges, rent.Group)
	assert.True(t, rent.Required)
	assert.Equal(t, "Rent amount", rent.Label)

	mode, ok := c.Lookup(FieldModeForLatePayment)
	require.True(t, ok)
	assert.Equal(t, KindEnum, mode.Kind)
	assert.False(t, mode.Required)

	billing, ok := c.Lookup(FieldFirstTimeBilling)
	require.True(t, ok)
	assert.Equal(t, "billing", billing.Capability)
	assert.True(t, billing.Required)

	_, ok = c.Lookup("tenant_id")
	assert.False(t, ok)
}

func TestContract_FieldsByFlow(t *testing.T) {
	c := loadContract(t)

	names := func(specs []FieldSpec) []string {
		out := make([]string, len(specs))
		for i, s := range specs {
			out[i] = s.Name
		}
		return out
	}

	create := names(c.Fields(CapabilitiesFor(FlowCreate)))
	assert.Contains(t, create, FieldArrearsTotal)
	assert.Contains(t, create, FieldFirstTimeBilling)
	assert.NotContains(t, create, FieldElectricityUnitPrice)

	edit := names(c.Fields(CapabilitiesFor(FlowEdit)))
	assert.Contains(t, edit, FieldElectricityUnitPrice)
	assert.NotContains(t, edit, FieldArrearsTotal)
	assert.NotContains(t, edit, FieldFirstTimeBilling)

	assert.Equal(t, FieldRentAmount, create[0], "declaration order is kept")
	assert.True(t, c.Known(FieldElectricityUnitPrice, CapabilitiesFor(FlowEdit)))
	assert.False(t, c.Known(FieldElectricityUnitPrice, CapabilitiesFor(FlowCreate)))
}

func TestContract_Check(t *testing.T) {
	c := loadContract(t)
	caps := CapabilitiesFor(FlowCreate)

	tests := []struct {
		name  string
		field string
		value string
		code  Code
	}{
		{"non-numeric amount", FieldRentAmount, "abc", CodeInvalidValue},
		{"exponent amount", FieldWater, "1e3", CodeInvalidValue},
		{"bad switch", FieldIsTaxable, "yes", CodeInvalidValue},
		{"bad mode", FieldModeForLatePayment, "weekly", CodeInvalidValue},
		{"bad criteria", FieldAmountCriteria, "last_month", CodeInvalidValue},
		{"non-numeric day", FieldRentDueDate, "5th", CodeInvalidValue},
		{"missing charge", FieldGarbage, "", CodeMissingRequired},
		{"blank day", FieldDueRentReminderDate, "   ", CodeMissingRequired},
		{"missing billing switch", FieldFirstTimeBilling, "", CodeMissingRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := createRecord()
			rec[tt.field] = tt.value
			issues := c.Check(rec, caps)
			require.Len(t, issues, 1, "%v", issues)
			assert.Equal(t, tt.field, issues[0].Field)
			assert.Equal(t, tt.code, issues[0].Code)
		})
	}
}

func TestContract_CheckAcceptsValidRecord(t *testing.T) {
	c := loadContract(t)
	assert.Empty(t, c.Check(createRecord(), CapabilitiesFor(FlowCreate)))
	assert.Empty(t, c.Check(editRecord(), CapabilitiesFor(FlowEdit)))
}

func TestContract_MessagesName(t *testing.T) {
	c := loadContract(t)
	rec := createRecord()
	rec[FieldModeForLatePayment] = "weekly"
	rec[FieldRentAmount] = ""

	issues := c.Check(rec, CapabilitiesFor(FlowCreate))
	rent, ok := issues.Get(FieldRentAmount)
	require.True(t, ok)
	assert.Equal(t, "Rent amount is required", rent.Message)

	mode, ok := issues.Get(FieldModeForLatePayment)
	require.True(t, ok)
	assert.Contains(t, mode.Message, "percentage, fixed_amount")
}

func TestParseFlow(t *testing.T) {
	f, err := ParseFlow("")
	require.NoError(t, err)
	assert.Equal(t, FlowCreate, f)

	f, err = ParseFlow("edit")
	require.NoError(t, err)
	assert.Equal(t, FlowEdit, f)

	_, err = ParseFlow("delete")
	assert.Error(t, err)
}
