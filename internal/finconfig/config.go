package finconfig

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// FineMode selects how a late-payment fine is computed.
type FineMode string

const (
	FineModePercentage  FineMode = "percentage"
	FineModeFixedAmount FineMode = "fixed_amount"
)

var fineModes = []FineMode{FineModePercentage, FineModeFixedAmount}

// AmountCriteria is the base a percentage fine is computed against.
type AmountCriteria string

const (
	CriteriaCurrentRent        AmountCriteria = "current_full_month_rent"
	CriteriaCurrentRentBalance AmountCriteria = "current_full_month_rent_balance"
	CriteriaCumulativeBalance  AmountCriteria = "total_cumulative_balances_inclusive_of_previous_month"
)

var amountCriteria = []AmountCriteria{CriteriaCurrentRent, CriteriaCurrentRentBalance, CriteriaCumulativeBalance}

// Charges are the amounts billed every cycle.
type Charges struct {
	Rent        decimal.Decimal
	Deposit     decimal.Decimal
	Water       decimal.Decimal
	Garbage     decimal.Decimal
	Electricity decimal.Decimal
}

// Arrears is the balance a tenant brings into the assignment.
type Arrears struct {
	Present     bool
	Cumulative  bool
	Total       *decimal.Decimal
	Rent        *decimal.Decimal
	Deposit     *decimal.Decimal
	Water       *decimal.Decimal
	Garbage     *decimal.Decimal
	Electricity *decimal.Decimal
}

func (a *Arrears) itemized() []**decimal.Decimal {
	return []**decimal.Decimal{&a.Rent, &a.Deposit, &a.Water, &a.Garbage, &a.Electricity}
}

// FinePolicy decides when a late-payment fine triggers and how much it is.
type FinePolicy struct {
	RentDueDay      int
	ReminderDay     int
	FineStartDay    int
	Mode            FineMode
	Criteria        AmountCriteria
	CriteriaPercent *decimal.Decimal
	FixedAmount     *decimal.Decimal
}

// Config is the typed form of a validated Record.
type Config struct {
	Charges    Charges
	RentAgreed bool

	Taxable       bool
	TaxPercentage *decimal.Decimal

	WaterMetered        bool
	InitialMeterReading *decimal.Decimal

	ElectricityMetered        bool
	ElectricityUnitPrice      *decimal.Decimal
	InitialElectricityReading *decimal.Decimal

	Arrears Arrears
	Fine    FinePolicy

	// FirstTimeBilling is nil when the flow does not ask for it.
	FirstTimeBilling *bool
}

// Parse converts a record that passed validation into its typed form.
// Fields outside caps are left zero. Unparseable values read as not provided.
func Parse(rec Record, caps Capabilities) Config {
	cfg := Config{
		Charges: Charges{
			Rent:        decimalOrZero(rec, FieldRentAmount),
			Deposit:     decimalOrZero(rec, FieldRentDeposit),
			Water:       decimalOrZero(rec, FieldWater),
			Garbage:     decimalOrZero(rec, FieldGarbage),
			Electricity: decimalOrZero(rec, FieldElectricity),
		},
		RentAgreed:          rec.IsYes(FieldIsRentAgreed),
		Taxable:             rec.IsYes(FieldIsTaxable),
		TaxPercentage:       optionalDecimal(rec, FieldTaxPercentage),
		WaterMetered:        rec.IsYes(FieldIsMeterRead),
		InitialMeterReading: optionalDecimal(rec, FieldInitialMeterReading),
		Fine: FinePolicy{
			RentDueDay:      dayOrZero(rec, FieldRentDueDate),
			ReminderDay:     dayOrZero(rec, FieldDueRentReminderDate),
			FineStartDay:    dayOrZero(rec, FieldDueRentFineStartDate),
			Mode:            FineMode(rec.Get(FieldModeForLatePayment)),
			Criteria:        AmountCriteria(rec.Get(FieldAmountCriteria)),
			CriteriaPercent: optionalDecimal(rec, FieldCriteriaPercentage),
			FixedAmount:     optionalDecimal(rec, FieldLatePaymentFixed),
		},
	}
	if caps.ElectricityMetering {
		cfg.ElectricityMetered = rec.IsYes(FieldIsElectricityMeterRead)
		cfg.ElectricityUnitPrice = optionalDecimal(rec, FieldElectricityUnitPrice)
		cfg.InitialElectricityReading = optionalDecimal(rec, FieldInitialElectricityReading)
	}
	if caps.Arrears {
		cfg.Arrears = Arrears{
			Present:     rec.IsYes(FieldHasPreviousArrears),
			Cumulative:  rec.IsYes(FieldIsArrearsCumulative),
			Total:       optionalDecimal(rec, FieldArrearsTotal),
			Rent:        optionalDecimal(rec, FieldArrearsRentAmount),
			Deposit:     optionalDecimal(rec, FieldArrearsRentDeposit),
			Water:       optionalDecimal(rec, FieldArrearsWater),
			Garbage:     optionalDecimal(rec, FieldArrearsGarbage),
			Electricity: optionalDecimal(rec, FieldArrearsElectricity),
		}
	}
	if caps.FirstTimeBilling {
		b := rec.IsYes(FieldFirstTimeBilling)
		cfg.FirstTimeBilling = &b
	}
	return cfg
}

// parseDecimal parses a provided numeric field.
func parseDecimal(rec Record, field string) (decimal.Decimal, bool) {
	if !rec.Has(field) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(rec.Get(field))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func optionalDecimal(rec Record, field string) *decimal.Decimal {
	d, ok := parseDecimal(rec, field)
	if !ok {
		return nil
	}
	return &d
}

func decimalOrZero(rec Record, field string) decimal.Decimal {
	d, _ := parseDecimal(rec, field)
	return d
}

// parseDay parses a day-of-month field, reporting false when it is not an
// integer in [1, 31].
func parseDay(rec Record, field string) (int, bool) {
	n, err := strconv.Atoi(rec.Get(field))
	if err != nil || n < 1 || n > 31 {
		return 0, false
	}
	return n, true
}

func dayOrZero(rec Record, field string) int {
	n, _ := parseDay(rec, field)
	return n
}
