package finconfig

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

const percentageRule = "must be a number greater than 0 and at most 100"

// Validate applies the cross-field rules to rec. Every rule group runs, so a
// submission that breaks several groups gets all of its issues back at once.
// Validate never modifies rec.
func Validate(rec Record, caps Capabilities) Issues {
	v := &validator{rec: rec}
	v.charges()
	v.tax()
	v.waterMeter()
	if caps.ElectricityMetering {
		v.electricityMeter()
	}
	if caps.Arrears {
		v.arrears()
	}
	v.finePolicy()
	return v.issues
}

type validator struct {
	rec    Record
	issues Issues
}

func (v *validator) fail(g Group, field string, code Code, msg string) {
	v.issues.add(g, field, code, label(field)+" "+msg)
}

// positive records an issue when a provided field is not a number above zero.
func (v *validator) positive(g Group, field string) {
	if !v.rec.Has(field) {
		return
	}
	if d, ok := parseDecimal(v.rec, field); !ok || !d.IsPositive() {
		v.fail(g, field, CodeInvalidValue, "must be a positive number")
	}
}

// nonNegative records an issue when a provided field is below zero.
func (v *validator) nonNegative(g Group, field string) {
	if !v.rec.Has(field) {
		return
	}
	if d, ok := parseDecimal(v.rec, field); !ok || d.IsNegative() {
		v.fail(g, field, CodeInvalidValue, "must be zero or a positive number")
	}
}

// percentage records an issue when a provided field is outside (0, 100].
func (v *validator) percentage(g Group, field string) {
	if !v.rec.Has(field) {
		return
	}
	if d, ok := parseDecimal(v.rec, field); !ok || !d.IsPositive() || d.GreaterThan(hundred) {
		v.fail(g, field, CodeInvalidValue, percentageRule)
	}
}

// require records a mode_incomplete issue when field is absent and reports
// whether it was present.
func (v *validator) require(g Group, field, when string) bool {
	if v.rec.Has(field) {
		return true
	}
	v.fail(g, field, CodeModeIncomplete, "is required when "+when)
	return false
}

// forbid records a mutually_exclusive issue when field is present.
func (v *validator) forbid(g Group, field, when string) {
	if v.rec.Has(field) {
		v.fail(g, field, CodeMutuallyExclusive, "must be empty "+when)
	}
}

func (v *validator) charges() {
	for _, f := range chargeFields {
		v.positive(GroupCharges, f)
	}
}

// tax: a percentage is needed only for taxable units. A stale percentage on a
// non-taxable unit is cleared during derivation.
func (v *validator) tax() {
	if !v.rec.IsYes(FieldIsTaxable) {
		return
	}
	if v.require(GroupTax, FieldTaxPercentage, "taxable is yes") {
		v.percentage(GroupTax, FieldTaxPercentage)
	}
}

func (v *validator) waterMeter() {
	if !v.rec.IsYes(FieldIsMeterRead) {
		return
	}
	if v.require(GroupWaterMeter, FieldInitialMeterReading, "water meter billing is yes") {
		v.nonNegative(GroupWaterMeter, FieldInitialMeterReading)
	}
}

func (v *validator) electricityMeter() {
	const g = GroupElectricityMeter
	if !v.rec.IsYes(FieldIsElectricityMeterRead) {
		v.forbid(g, FieldElectricityUnitPrice, "when electricity meter billing is no")
		v.forbid(g, FieldInitialElectricityReading, "when electricity meter billing is no")
		return
	}
	if v.require(g, FieldElectricityUnitPrice, "electricity meter billing is yes") {
		v.positive(g, FieldElectricityUnitPrice)
	}
	if v.require(g, FieldInitialElectricityReading, "electricity meter billing is yes") {
		v.nonNegative(g, FieldInitialElectricityReading)
	}
}

func (v *validator) arrears() {
	const g = GroupArrears
	if !v.rec.IsYes(FieldHasPreviousArrears) {
		const when = "when the tenant has no previous arrears"
		v.forbid(g, FieldIsArrearsCumulative, when)
		v.forbid(g, FieldArrearsTotal, when)
		for _, f := range itemizedArrearsFields {
			v.forbid(g, f, when)
		}
		return
	}

	if !v.require(g, FieldIsArrearsCumulative, "the tenant has previous arrears") {
		return
	}
	if v.rec.IsYes(FieldIsArrearsCumulative) {
		if v.require(g, FieldArrearsTotal, "arrears are cumulative") {
			v.positive(g, FieldArrearsTotal)
		}
		return
	}

	// Itemized: the total is derived, so only the items are checked.
	for _, f := range itemizedArrearsFields {
		if d, ok := parseDecimal(v.rec, f); ok && d.IsPositive() {
			return
		}
	}
	v.issues.add(g, FieldArrearsRentAmount, CodeModeIncomplete,
		"At least one itemized arrears amount must be a positive number when arrears are not cumulative")
}

func (v *validator) finePolicy() {
	const g = GroupFinePolicy
	for _, f := range dueDayFields {
		if v.rec.Has(f) {
			if _, ok := parseDay(v.rec, f); !ok {
				v.fail(g, f, CodeInvalidValue, "must be a day of the month between 1 and 31")
			}
		}
	}

	switch FineMode(v.rec.Get(FieldModeForLatePayment)) {
	case "":
		v.fail(g, FieldModeForLatePayment, CodeModeIncomplete, "is required")
	case FineModePercentage:
		const when = "in percentage mode"
		v.require(g, FieldAmountCriteria, "late payment mode is percentage")
		if v.require(g, FieldCriteriaPercentage, "late payment mode is percentage") {
			v.percentage(g, FieldCriteriaPercentage)
		}
		v.forbid(g, FieldLatePaymentFixed, when)
	case FineModeFixedAmount:
		const when = "in fixed-amount mode"
		if v.require(g, FieldLatePaymentFixed, "late payment mode is fixed amount") {
			v.positive(g, FieldLatePaymentFixed)
		}
		v.forbid(g, FieldAmountCriteria, when)
		v.forbid(g, FieldCriteriaPercentage, when)
	}
}
