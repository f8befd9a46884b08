package finconfig

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Identity names the assignment a configuration belongs to. The calling
// screen owns these ids; the engine only checks that they are set.
type Identity struct {
	TenantID int64 `json:"tenant_id" validate:"required,gt=0"`
	UnitID   int64 `json:"unit_id" validate:"required,gt=0"`
}

// Payload is the canonical configuration sent to the save endpoint.
type Payload struct {
	TenantID int64 `json:"tenant_id"`
	UnitID   int64 `json:"unit_id"`

	RentAmount  string `json:"rent_amount"`
	RentDeposit string `json:"rent_deposit"`
	Water       string `json:"water"`
	Garbage     string `json:"garbage"`
	Electricity string `json:"electricity"`

	IsRentAgreed           bool  `json:"is_rent_agreed"`
	IsTaxable              bool  `json:"is_taxable"`
	IsMeterRead            bool  `json:"is_meter_read"`
	IsElectricityMeterRead *bool `json:"is_electricity_meter_read,omitempty"`

	TaxPercentage             *string `json:"tax_percentage,omitempty"`
	InitialMeterReading       *string `json:"initial_meter_reading,omitempty"`
	ElectricityUnitPrice      *string `json:"electricity_unit_price,omitempty"`
	InitialElectricityReading *string `json:"initial_electricity_reading,omitempty"`

	IsArrearsCumulative *bool   `json:"is_arrears_cumulative,omitempty"`
	ArrearsTotal        *string `json:"arrears_total,omitempty"`
	ArrearsRentAmount   *string `json:"arrears_rent_amount,omitempty"`
	ArrearsRentDeposit  *string `json:"arrears_rent_deposit,omitempty"`
	ArrearsWater        *string `json:"arrears_water,omitempty"`
	ArrearsGarbage      *string `json:"arrears_garbage,omitempty"`
	ArrearsElectricity  *string `json:"arrears_electricity,omitempty"`

	RentDueDate          string   `json:"rent_due_date"`
	DueRentReminderDate  string   `json:"due_rent_reminder_date"`
	DueRentFineStartDate string   `json:"due_rent_fine_start_date"`
	ModeForLatePayment   FineMode `json:"mode_for_late_payment"`

	AmountCriteria         *AmountCriteria `json:"amount_criteria,omitempty"`
	CriteriaPercentage     *string         `json:"criteria_percentage,omitempty"`
	LatePaymentFixedAmount *string         `json:"late_payment_fixed_amount,omitempty"`

	FirstTimeBilling *bool `json:"first_time_billing,omitempty"`
}

// Identity returns the ids the payload was built for.
func (p Payload) Identity() Identity {
	return Identity{TenantID: p.TenantID, UnitID: p.UnitID}
}

// Normalize converts a derived configuration into the save payload.
// The previous-arrears switch is a form helper and is never emitted.
func Normalize(id Identity, cfg Config, caps Capabilities) Payload {
	p := Payload{
		TenantID: id.TenantID,
		UnitID:   id.UnitID,

		RentAmount:  cfg.Charges.Rent.String(),
		RentDeposit: cfg.Charges.Deposit.String(),
		Water:       cfg.Charges.Water.String(),
		Garbage:     cfg.Charges.Garbage.String(),
		Electricity: cfg.Charges.Electricity.String(),

		IsRentAgreed: cfg.RentAgreed,
		IsTaxable:    cfg.Taxable,
		IsMeterRead:  cfg.WaterMetered,

		TaxPercentage:       decimalString(cfg.TaxPercentage),
		InitialMeterReading: decimalString(cfg.InitialMeterReading),

		RentDueDate:          strconv.Itoa(cfg.Fine.RentDueDay),
		DueRentReminderDate:  strconv.Itoa(cfg.Fine.ReminderDay),
		DueRentFineStartDate: strconv.Itoa(cfg.Fine.FineStartDay),
		ModeForLatePayment:   cfg.Fine.Mode,

		CriteriaPercentage:     decimalString(cfg.Fine.CriteriaPercent),
		LatePaymentFixedAmount: decimalString(cfg.Fine.FixedAmount),
	}
	if cfg.Fine.Criteria != "" {
		c := cfg.Fine.Criteria
		p.AmountCriteria = &c
	}

	if caps.ElectricityMetering {
		metered := cfg.ElectricityMetered
		p.IsElectricityMeterRead = &metered
		p.ElectricityUnitPrice = decimalString(cfg.ElectricityUnitPrice)
		p.InitialElectricityReading = decimalString(cfg.InitialElectricityReading)
	}

	if caps.Arrears && cfg.Arrears.Present {
		a := cfg.Arrears
		cumulative := a.Cumulative
		p.IsArrearsCumulative = &cumulative
		p.ArrearsTotal = decimalString(a.Total)
		p.ArrearsRentAmount = decimalString(a.Rent)
		p.ArrearsRentDeposit = decimalString(a.Deposit)
		p.ArrearsWater = decimalString(a.Water)
		p.ArrearsGarbage = decimalString(a.Garbage)
		p.ArrearsElectricity = decimalString(a.Electricity)
	}

	if caps.FirstTimeBilling && cfg.FirstTimeBilling != nil {
		b := *cfg.FirstTimeBilling
		p.FirstTimeBilling = &b
	}
	return p
}

// Retain copies from prev every field owned by a capability caps leaves
// off, so saving an edit does not erase what only the create screen shows.
func (p Payload) Retain(prev Payload, caps Capabilities) Payload {
	if !caps.ElectricityMetering {
		p.IsElectricityMeterRead = prev.IsElectricityMeterRead
		p.ElectricityUnitPrice = prev.ElectricityUnitPrice
		p.InitialElectricityReading = prev.InitialElectricityReading
	}
	if !caps.Arrears {
		p.IsArrearsCumulative = prev.IsArrearsCumulative
		p.ArrearsTotal = prev.ArrearsTotal
		p.ArrearsRentAmount = prev.ArrearsRentAmount
		p.ArrearsRentDeposit = prev.ArrearsRentDeposit
		p.ArrearsWater = prev.ArrearsWater
		p.ArrearsGarbage = prev.ArrearsGarbage
		p.ArrearsElectricity = prev.ArrearsElectricity
	}
	if !caps.FirstTimeBilling {
		p.FirstTimeBilling = prev.FirstTimeBilling
	}
	return p
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
