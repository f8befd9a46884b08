package finconfig

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testID = Identity{TenantID: 41, UnitID: 7}

// createRecord is a complete create-flow submission with no arrears and a
// percentage fine.
func createRecord() Record {
	return Record{
		FieldRentAmount:           "15000",
		FieldRentDeposit:          "15000",
		FieldWater:                "500",
		FieldGarbage:              "200",
		FieldElectricity:          "1000",
		FieldIsRentAgreed:         Yes,
		FieldIsTaxable:            No,
		FieldIsMeterRead:          No,
		FieldHasPreviousArrears:   No,
		FieldRentDueDate:          "5",
		FieldDueRentReminderDate:  "3",
		FieldDueRentFineStartDate: "10",
		FieldModeForLatePayment:   string(FineModePercentage),
		FieldAmountCriteria:       string(CriteriaCurrentRent),
		FieldCriteriaPercentage:   "10",
		FieldFirstTimeBilling:     Yes,
	}
}

// editRecord is a complete edit-flow submission with electricity metering.
func editRecord() Record {
	rec := createRecord()
	delete(rec, FieldHasPreviousArrears)
	delete(rec, FieldFirstTimeBilling)
	rec[FieldIsElectricityMeterRead] = Yes
	rec[FieldElectricityUnitPrice] = "25.5"
	rec[FieldInitialElectricityReading] = "0"
	return rec
}

func newEngine(t *testing.T, flow Flow) *Engine {
	t.Helper()
	e, err := New(flow)
	require.NoError(t, err)
	return e
}

func process(t *testing.T, e *Engine, rec Record) Result {
	t.Helper()
	res, err := e.Process(testID, rec)
	require.NoError(t, err)
	return res
}

func accepted(t *testing.T, e *Engine, rec Record) Payload {
	t.Helper()
	res := process(t, e, rec)
	require.Empty(t, res.Issues, "unexpected issues")
	require.True(t, res.Accepted())
	require.NotNil(t, res.Payload)
	return *res.Payload
}

func TestProcess_CreateAccepted(t *testing.T) {
	e := newEngine(t, FlowCreate)
	p := accepted(t, e, createRecord())

	assert.Equal(t, int64(41), p.TenantID)
	assert.Equal(t, int64(7), p.UnitID)
	assert.Equal(t, "15000", p.RentAmount)
	assert.True(t, p.IsRentAgreed)
	assert.False(t, p.IsTaxable)
	assert.Nil(t, p.IsElectricityMeterRead, "create flow has no electricity metering")
	assert.Nil(t, p.IsArrearsCumulative)
	assert.Nil(t, p.ArrearsTotal)
	require.NotNil(t, p.FirstTimeBilling)
	assert.True(t, *p.FirstTimeBilling)
	assert.Equal(t, "5", p.RentDueDate)
	assert.Equal(t, FineModePercentage, p.ModeForLatePayment)
	require.NotNil(t, p.AmountCriteria)
	assert.Equal(t, CriteriaCurrentRent, *p.AmountCriteria)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), FieldHasPreviousArrears)
	assert.NotContains(t, string(raw), FieldLatePaymentFixed)
}

func TestProcess_EditAccepted(t *testing.T) {
	e := newEngine(t, FlowEdit)
	p := accepted(t, e, editRecord())

	require.NotNil(t, p.IsElectricityMeterRead)
	assert.True(t, *p.IsElectricityMeterRead)
	require.NotNil(t, p.ElectricityUnitPrice)
	assert.Equal(t, "25.5", *p.ElectricityUnitPrice)
	require.NotNil(t, p.InitialElectricityReading)
	assert.Equal(t, "0", *p.InitialElectricityReading)
	assert.Nil(t, p.FirstTimeBilling, "edit flow does not bill the deposit again")
}

func TestProcess_MissingIdentity(t *testing.T) {
	e := newEngine(t, FlowCreate)

	_, err := e.Process(Identity{UnitID: 7}, createRecord())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingIdentity))
	assert.Contains(t, err.Error(), "tenant_id")

	_, err = e.Process(Identity{TenantID: 3}, createRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unit_id")
}

func TestProcess_FineModeExclusivity(t *testing.T) {
	e := newEngine(t, FlowCreate)

	p := accepted(t, e, createRecord())
	assert.Nil(t, p.LatePaymentFixedAmount)
	assert.NotNil(t, p.CriteriaPercentage)

	rec := createRecord()
	rec[FieldModeForLatePayment] = string(FineModeFixedAmount)
	rec[FieldLatePaymentFixed] = "1000"
	delete(rec, FieldAmountCriteria)
	delete(rec, FieldCriteriaPercentage)
	p = accepted(t, e, rec)
	require.NotNil(t, p.LatePaymentFixedAmount)
	assert.Equal(t, "1000", *p.LatePaymentFixedAmount)
	assert.Nil(t, p.AmountCriteria)
	assert.Nil(t, p.CriteriaPercentage)
}

func TestProcess_ItemizedArrearsTotal(t *testing.T) {
	e := newEngine(t, FlowCreate)
	rec := createRecord()
	rec[FieldHasPreviousArrears] = Yes
	rec[FieldIsArrearsCumulative] = No
	rec[FieldArrearsRentAmount] = "200"
	rec[FieldArrearsRentDeposit] = "0"
	rec[FieldArrearsWater] = "150"
	rec[FieldArrearsGarbage] = ""
	rec[FieldArrearsElectricity] = "50"
	rec[FieldArrearsTotal] = "9999" // stale value from a previous toggle

	p := accepted(t, e, rec)
	require.NotNil(t, p.ArrearsTotal)
	assert.Equal(t, "400", *p.ArrearsTotal)
	require.NotNil(t, p.IsArrearsCumulative)
	assert.False(t, *p.IsArrearsCumulative)
	assert.Nil(t, p.ArrearsRentDeposit, "zero item is dropped")
	assert.Nil(t, p.ArrearsGarbage)
	require.NotNil(t, p.ArrearsRentAmount)
	assert.Equal(t, "200", *p.ArrearsRentAmount)
}

func TestProcess_CumulativeArrearsClearsItems(t *testing.T) {
	e := newEngine(t, FlowCreate)
	rec := createRecord()
	rec[FieldHasPreviousArrears] = Yes
	rec[FieldIsArrearsCumulative] = Yes
	rec[FieldArrearsTotal] = "750.50"
	rec[FieldArrearsWater] = "300"

	p := accepted(t, e, rec)
	require.NotNil(t, p.ArrearsTotal)
	assert.Equal(t, "750.5", *p.ArrearsTotal)
	assert.Nil(t, p.ArrearsWater)
	require.NotNil(t, p.IsArrearsCumulative)
	assert.True(t, *p.IsArrearsCumulative)
}

func TestProcess_NotTaxableDropsPercentage(t *testing.T) {
	e := newEngine(t, FlowCreate)
	rec := createRecord()
	rec[FieldIsTaxable] = No
	rec[FieldTaxPercentage] = "16"
	rec[FieldIsMeterRead] = No
	rec[FieldInitialMeterReading] = "120"

	p := accepted(t, e, rec)
	assert.False(t, p.IsTaxable)
	assert.Nil(t, p.TaxPercentage)
	assert.Nil(t, p.InitialMeterReading)
}

func TestProcess_DiscardedFieldsSkipShapeCheck(t *testing.T) {
	e := newEngine(t, FlowCreate)
	tests := []struct {
		name  string
		set   Record
		check func(t *testing.T, p Payload)
	}{
		{
			name: "tax percentage on a non-taxable unit",
			set:  Record{FieldIsTaxable: No, FieldTaxPercentage: "16%"},
			check: func(t *testing.T, p Payload) {
				assert.Nil(t, p.TaxPercentage)
			},
		},
		{
			name: "meter reading on an unmetered unit",
			set:  Record{FieldIsMeterRead: No, FieldInitialMeterReading: "n/a"},
			check: func(t *testing.T, p Payload) {
				assert.Nil(t, p.InitialMeterReading)
			},
		},
		{
			name: "itemized arrears with cumulative arrears",
			set: Record{
				FieldHasPreviousArrears:  Yes,
				FieldIsArrearsCumulative: Yes,
				FieldArrearsTotal:        "300",
				FieldArrearsWater:        "n/a",
				FieldArrearsRentAmount:   "-5",
			},
			check: func(t *testing.T, p Payload) {
				require.NotNil(t, p.ArrearsTotal)
				assert.Equal(t, "300", *p.ArrearsTotal)
				assert.Nil(t, p.ArrearsWater)
				assert.Nil(t, p.ArrearsRentAmount)
			},
		},
		{
			name: "stale total with itemized arrears",
			set: Record{
				FieldHasPreviousArrears:  Yes,
				FieldIsArrearsCumulative: No,
				FieldArrearsTotal:        "lots",
				FieldArrearsGarbage:      "80",
			},
			check: func(t *testing.T, p Payload) {
				require.NotNil(t, p.ArrearsTotal)
				assert.Equal(t, "80", *p.ArrearsTotal)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := createRecord()
			for k, v := range tt.set {
				rec[k] = v
			}
			tt.check(t, accepted(t, e, rec))
		})
	}
}

func TestProcess_ActiveFieldsKeepShapeCheck(t *testing.T) {
	e := newEngine(t, FlowCreate)
	tests := []struct {
		name  string
		set   Record
		field string
	}{
		{"tax percentage on a taxable unit", Record{FieldIsTaxable: Yes, FieldTaxPercentage: "16%"}, FieldTaxPercentage},
		{"meter reading on a metered unit", Record{FieldIsMeterRead: Yes, FieldInitialMeterReading: "n/a"}, FieldInitialMeterReading},
		{"itemized arrears", Record{
			FieldHasPreviousArrears:  Yes,
			FieldIsArrearsCumulative: No,
			FieldArrearsRentAmount:   "100",
			FieldArrearsWater:        "n/a",
		}, FieldArrearsWater},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := createRecord()
			for k, v := range tt.set {
				rec[k] = v
			}
			res := process(t, e, rec)
			assert.False(t, res.Accepted())
			issue, ok := res.Issues.Get(tt.field)
			require.True(t, ok, "%v", res.Issues)
			assert.Equal(t, CodeInvalidValue, issue.Code)
		})
	}
}

func TestProcess_TaxableAndMetered(t *testing.T) {
	e := newEngine(t, FlowCreate)
	rec := createRecord()
	rec[FieldIsTaxable] = Yes
	rec[FieldTaxPercentage] = "16"
	rec[FieldIsMeterRead] = Yes
	rec[FieldInitialMeterReading] = "0"

	p := accepted(t, e, rec)
	require.NotNil(t, p.TaxPercentage)
	assert.Equal(t, "16", *p.TaxPercentage)
	require.NotNil(t, p.InitialMeterReading)
	assert.Equal(t, "0", *p.InitialMeterReading)
}

func TestProcess_Idempotent(t *testing.T) {
	itemized := createRecord()
	itemized[FieldHasPreviousArrears] = Yes
	itemized[FieldIsArrearsCumulative] = No
	itemized[FieldArrearsRentAmount] = "200"
	itemized[FieldArrearsWater] = "150"

	fixed := editRecord()
	fixed[FieldModeForLatePayment] = string(FineModeFixedAmount)
	fixed[FieldLatePaymentFixed] = "1000.00"
	delete(fixed, FieldAmountCriteria)
	delete(fixed, FieldCriteriaPercentage)

	tests := []struct {
		name string
		flow Flow
		rec  Record
	}{
		{"create percentage", FlowCreate, createRecord()},
		{"create itemized arrears", FlowCreate, itemized},
		{"edit fixed amount", FlowEdit, fixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, tt.flow)
			first := accepted(t, e, tt.rec)
			second := accepted(t, e, RecordFromPayload(first))
			assert.Equal(t, first, second)
		})
	}
}

func TestProcess_CollectsEveryGroup(t *testing.T) {
	e := newEngine(t, FlowCreate)
	rec := createRecord()
	rec[FieldIsTaxable] = Yes
	rec[FieldModeForLatePayment] = string(FineModeFixedAmount)
	rec[FieldLatePaymentFixed] = "1000"

	res := process(t, e, rec)
	require.False(t, res.Accepted())
	assert.Equal(t, StateRejected, res.State)
	assert.Nil(t, res.Payload)
	assert.True(t, res.Issues.Has(FieldTaxPercentage))
	assert.True(t, res.Issues.Has(FieldAmountCriteria))
	assert.True(t, res.Issues.Has(FieldCriteriaPercentage))
	assert.ElementsMatch(t, []Group{GroupTax, GroupFinePolicy}, res.Issues.Groups())
}

func TestProcess_Scenarios(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(Record)
		field   string
		code    Code
		message string
	}{
		{
			name:   "taxable without percentage",
			mutate: func(r Record) {
				r[FieldIsTaxable] = Yes
				r[FieldTaxPercentage] = ""
			},
			field:   FieldTaxPercentage,
			code:    CodeModeIncomplete,
			message: "required when taxable is yes",
		},
		{
			name:   "negative cumulative arrears",
			mutate: func(r Record) {
				r[FieldHasPreviousArrears] = Yes
				r[FieldIsArrearsCumulative] = Yes
				r[FieldArrearsTotal] = "-5"
			},
			field:   FieldArrearsTotal,
			code:    CodeInvalidValue,
			message: "must be a positive number",
		},
		{
			name:   "criteria left in fixed-amount mode",
			mutate: func(r Record) {
				r[FieldModeForLatePayment] = string(FineModeFixedAmount)
				r[FieldLatePaymentFixed] = "1000"
				r[FieldAmountCriteria] = string(CriteriaCurrentRent)
				delete(r, FieldCriteriaPercentage)
			},
			field:   FieldAmountCriteria,
			code:    CodeMutuallyExclusive,
			message: "must be empty in fixed-amount mode",
		},
		{
			name:   "fixed amount left in percentage mode",
			mutate: func(r Record) {
				r[FieldLatePaymentFixed] = "1000"
			},
			field:   FieldLatePaymentFixed,
			code:    CodeMutuallyExclusive,
			message: "must be empty in percentage mode",
		},
		{
			name:   "cumulative arrears without total",
			mutate: func(r Record) {
				r[FieldHasPreviousArrears] = Yes
				r[FieldIsArrearsCumulative] = Yes
			},
			field:   FieldArrearsTotal,
			code:    CodeModeIncomplete,
			message: "required when arrears are cumulative",
		},
		{
			name:   "itemized arrears all empty",
			mutate: func(r Record) {
				r[FieldHasPreviousArrears] = Yes
				r[FieldIsArrearsCumulative] = No
				r[FieldArrearsWater] = "0"
			},
			field:   FieldArrearsRentAmount,
			code:    CodeModeIncomplete,
			message: "At least one itemized arrears amount",
		},
		{
			name:   "arrears switch missing",
			mutate: func(r Record) {
				r[FieldHasPreviousArrears] = Yes
			},
			field:   FieldIsArrearsCumulative,
			code:    CodeModeIncomplete,
			message: "required when the tenant has previous arrears",
		},
		{
			name:   "arrears without previous arrears",
			mutate: func(r Record) {
				r[FieldArrearsTotal] = "100"
			},
			field:   FieldArrearsTotal,
			code:    CodeMutuallyExclusive,
			message: "must be empty when the tenant has no previous arrears",
		},
		{
			name:   "zero rent",
			mutate: func(r Record) {
				r[FieldRentAmount] = "0"
			},
			field:   FieldRentAmount,
			code:    CodeInvalidValue,
			message: "must be a positive number",
		},
		{
			name:   "percentage above 100",
			mutate: func(r Record) {
				r[FieldCriteriaPercentage] = "150"
			},
			field:   FieldCriteriaPercentage,
			code:    CodeInvalidValue,
			message: "Criteria percentage must be a number greater than 0 and at most 100",
		},
		{
			name:   "zero percentage",
			mutate: func(r Record) {
				r[FieldCriteriaPercentage] = "0"
			},
			field:   FieldCriteriaPercentage,
			code:    CodeInvalidValue,
			message: "greater than 0 and at most 100",
		},
		{
			name:   "malformed tax percentage",
			mutate: func(r Record) {
				r[FieldIsTaxable] = Yes
				r[FieldTaxPercentage] = "16%"
			},
			field:   FieldTaxPercentage,
			code:    CodeInvalidValue,
			message: "must be a number greater than 0 and at most 100",
		},
		{
			name:   "day out of range",
			mutate: func(r Record) {
				r[FieldDueRentFineStartDate] = "32"
			},
			field:   FieldDueRentFineStartDate,
			code:    CodeInvalidValue,
			message: "between 1 and 31",
		},
		{
			name:   "metered water without reading",
			mutate: func(r Record) {
				r[FieldIsMeterRead] = Yes
			},
			field:   FieldInitialMeterReading,
			code:    CodeModeIncomplete,
			message: "required when water meter billing is yes",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, FlowCreate)
			rec := createRecord()
			tt.mutate(rec)
			res := process(t, e, rec)
			require.False(t, res.Accepted())
			issue, ok := res.Issues.Get(tt.field)
			require.True(t, ok, "no issue on %s, got %v", tt.field, res.Issues)
			assert.Equal(t, tt.code, issue.Code)
			assert.Contains(t, issue.Message, tt.message)
		})
	}
}

func TestProcess_OnlyFinePolicyWhenModeMissing(t *testing.T) {
	e := newEngine(t, FlowCreate)
	rec := createRecord()
	delete(rec, FieldHasPreviousArrears)
	delete(rec, FieldModeForLatePayment)
	delete(rec, FieldAmountCriteria)
	delete(rec, FieldCriteriaPercentage)

	res := process(t, e, rec)
	require.False(t, res.Accepted())
	assert.Equal(t, []Group{GroupFinePolicy}, res.Issues.Groups())
	require.Len(t, res.Issues, 1)
	assert.Equal(t, FieldModeForLatePayment, res.Issues[0].Field)
	assert.Equal(t, CodeModeIncomplete, res.Issues[0].Code)
}

func TestProcess_ElectricityMetering(t *testing.T) {
	e := newEngine(t, FlowEdit)

	rec := editRecord()
	rec[FieldElectricityUnitPrice] = ""
	rec[FieldInitialElectricityReading] = "-1"
	res := process(t, e, rec)
	require.False(t, res.Accepted())
	price, ok := res.Issues.Get(FieldElectricityUnitPrice)
	require.True(t, ok)
	assert.Equal(t, CodeModeIncomplete, price.Code)
	reading, ok := res.Issues.Get(FieldInitialElectricityReading)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidValue, reading.Code)

	rec = editRecord()
	rec[FieldIsElectricityMeterRead] = No
	res = process(t, e, rec)
	require.False(t, res.Accepted())
	for _, f := range []string{FieldElectricityUnitPrice, FieldInitialElectricityReading} {
		issue, ok := res.Issues.Get(f)
		require.True(t, ok, f)
		assert.Equal(t, CodeMutuallyExclusive, issue.Code)
	}

	// The create flow ignores electricity metering fields entirely.
	create := newEngine(t, FlowCreate)
	rec = createRecord()
	rec[FieldIsElectricityMeterRead] = Yes
	p := accepted(t, create, rec)
	assert.Nil(t, p.IsElectricityMeterRead)
	assert.Nil(t, p.ElectricityUnitPrice)
}

func TestProcess_EditIgnoresArrears(t *testing.T) {
	e := newEngine(t, FlowEdit)
	rec := editRecord()
	rec[FieldArrearsTotal] = "500"
	rec[FieldHasPreviousArrears] = No

	p := accepted(t, e, rec)
	assert.Nil(t, p.ArrearsTotal)
	assert.Nil(t, p.IsArrearsCumulative)
}

func TestPayload_RetainKeepsCreateOnlyFields(t *testing.T) {
	create := newEngine(t, FlowCreate)
	rec := createRecord()
	rec[FieldHasPreviousArrears] = Yes
	rec[FieldIsArrearsCumulative] = Yes
	rec[FieldArrearsTotal] = "1200"
	saved := accepted(t, create, rec)

	// An edit of the stored configuration raises the rent.
	edit := newEngine(t, FlowEdit)
	patched := RecordFromPayload(saved).Merge(Record{
		FieldRentAmount:             "16000",
		FieldIsElectricityMeterRead: No,
	})
	p := accepted(t, edit, patched)
	assert.Nil(t, p.ArrearsTotal, "edit flow never emits arrears")

	p = p.Retain(saved, edit.Capabilities())
	assert.Equal(t, "16000", p.RentAmount)
	require.NotNil(t, p.ArrearsTotal)
	assert.Equal(t, "1200", *p.ArrearsTotal)
	require.NotNil(t, p.FirstTimeBilling)
	assert.True(t, *p.FirstTimeBilling)
	require.NotNil(t, p.IsElectricityMeterRead, "edit flow owns electricity fields")
	assert.False(t, *p.IsElectricityMeterRead)
}

func TestProcess_Concurrent(t *testing.T) {
	e := newEngine(t, FlowCreate)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := createRecord()
			if n%2 == 1 {
				rec[FieldRentAmount] = "abc"
			}
			res, err := e.Process(Identity{TenantID: int64(n + 1), UnitID: 1}, rec)
			if err != nil {
				errs <- err
				return
			}
			if res.Accepted() != (n%2 == 0) {
				errs <- errors.New("unexpected outcome")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, validateTransition(StateReceived, StateRejected))
	assert.NoError(t, validateTransition(StateDerived, StateNormalized))
	assert.Error(t, validateTransition(StateRejected, StateValidated))
	assert.Error(t, validateTransition(StateReceived, StateNormalized))
	assert.True(t, StateRejected.Terminal())
	assert.False(t, StateValidated.Terminal())
}

func TestNewEngines_ShareContract(t *testing.T) {
	engines, err := NewEngines()
	require.NoError(t, err)
	require.Len(t, engines, 2)
	assert.Same(t, engines[FlowCreate].Contract(), engines[FlowEdit].Contract())
	assert.Equal(t, CapabilitiesFor(FlowEdit), engines[FlowEdit].Capabilities())
}
