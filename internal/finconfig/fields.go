// Package finconfig validates and normalizes the financial configuration of a
// tenant-unit assignment: charges, tax, metering, arrears and the late-payment
// fine policy.
//
// A submission flows through four stages: the field contract, the cross-field
// rules, derivation and normalization. Each stage is a pure function; Engine
// chains them and reports either a normalized Payload or the collected Issues.
package finconfig

import "strings"

// Field names as they appear in operator input and in the saved payload.
const (
	FieldRentAmount  = "rent_amount"
	FieldRentDeposit = "rent_deposit"
	FieldWater       = "water"
	FieldGarbage     = "garbage"
	FieldElectricity = "electricity"

	FieldIsRentAgreed = "is_rent_agreed"

	FieldIsTaxable     = "is_taxable"
	FieldTaxPercentage = "tax_percentage"

	FieldIsMeterRead         = "is_meter_read"
	FieldInitialMeterReading = "initial_meter_reading"

	FieldIsElectricityMeterRead    = "is_electricity_meter_read"
	FieldElectricityUnitPrice      = "electricity_unit_price"
	FieldInitialElectricityReading = "initial_electricity_reading"

	FieldHasPreviousArrears  = "is_the_tenant_have_previous_arrears"
	FieldIsArrearsCumulative = "is_arrears_cumulative"
	FieldArrearsTotal        = "arrears_total"
	FieldArrearsRentAmount   = "arrears_rent_amount"
	FieldArrearsRentDeposit  = "arrears_rent_deposit"
	FieldArrearsWater        = "arrears_water"
	FieldArrearsGarbage      = "arrears_garbage"
	FieldArrearsElectricity  = "arrears_electricity"

	FieldRentDueDate          = "rent_due_date"
	FieldDueRentReminderDate  = "due_rent_reminder_date"
	FieldDueRentFineStartDate = "due_rent_fine_start_date"
	FieldModeForLatePayment   = "mode_for_late_payment"
	FieldAmountCriteria       = "amount_criteria"
	FieldCriteriaPercentage   = "criteria_percentage"
	FieldLatePaymentFixed     = "late_payment_fixed_amount"

	FieldFirstTimeBilling = "first_time_billing"
)

// chargeFields are billed every cycle and always required.
var chargeFields = []string{
	FieldRentAmount,
	FieldRentDeposit,
	FieldWater,
	FieldGarbage,
	FieldElectricity,
}

// itemizedArrearsFields make up arrears_total when arrears are not cumulative.
var itemizedArrearsFields = []string{
	FieldArrearsRentAmount,
	FieldArrearsRentDeposit,
	FieldArrearsWater,
	FieldArrearsGarbage,
	FieldArrearsElectricity,
}

// dueDayFields are day-of-month settings of the fine policy.
var dueDayFields = []string{
	FieldRentDueDate,
	FieldDueRentReminderDate,
	FieldDueRentFineStartDate,
}

// Switch encodings used by the operator form.
const (
	Yes = "1"
	No  = "0"
)

// Record is raw operator input keyed by field name. A missing key, an empty
// string and a whitespace-only string all mean the field was not provided.
type Record map[string]string

// Get returns the trimmed value of a field.
func (r Record) Get(field string) string {
	return strings.TrimSpace(r[field])
}

// Has reports whether the field was provided.
func (r Record) Has(field string) bool {
	return r.Get(field) != ""
}

// IsYes reports whether a yes/no switch is set to yes. Unset switches read as no.
func (r Record) IsYes(field string) bool {
	return r.Get(field) == Yes
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a copy of r overlaid with every key present in patch.
// An empty value in patch clears the field.
func (r Record) Merge(patch Record) Record {
	out := r.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}
