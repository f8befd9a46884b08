package finconfig

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DecodeRecord coerces a JSON object into a Record. It accepts both the form
// encoding (strings, "1"/"0") and the stored encoding (booleans, numbers) so a
// configuration fetched for editing can be validated again. Null values read
// as not provided.
func DecodeRecord(raw map[string]any) (Record, error) {
	rec := make(Record, len(raw))
	for k, v := range raw {
		s, err := scalarString(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		rec[k] = s
	}
	return rec, nil
}

func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		if t {
			return Yes, nil
		}
		return No, nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	}
	return "", fmt.Errorf("unsupported value of type %T", v)
}

// RecordFromPayload maps a saved payload back into form input. The
// previous-arrears switch is rebuilt from the arrears fields it implies.
func RecordFromPayload(p Payload) Record {
	rec := Record{
		FieldRentAmount:           p.RentAmount,
		FieldRentDeposit:          p.RentDeposit,
		FieldWater:                p.Water,
		FieldGarbage:              p.Garbage,
		FieldElectricity:          p.Electricity,
		FieldIsRentAgreed:         flag(p.IsRentAgreed),
		FieldIsTaxable:            flag(p.IsTaxable),
		FieldIsMeterRead:          flag(p.IsMeterRead),
		FieldRentDueDate:          p.RentDueDate,
		FieldDueRentReminderDate:  p.DueRentReminderDate,
		FieldDueRentFineStartDate: p.DueRentFineStartDate,
		FieldModeForLatePayment:   string(p.ModeForLatePayment),
	}
	set := func(field string, v *string) {
		if v != nil {
			rec[field] = *v
		}
	}
	set(FieldTaxPercentage, p.TaxPercentage)
	set(FieldInitialMeterReading, p.InitialMeterReading)
	set(FieldElectricityUnitPrice, p.ElectricityUnitPrice)
	set(FieldInitialElectricityReading, p.InitialElectricityReading)
	set(FieldCriteriaPercentage, p.CriteriaPercentage)
	set(FieldLatePaymentFixed, p.LatePaymentFixedAmount)
	if p.AmountCriteria != nil {
		rec[FieldAmountCriteria] = string(*p.AmountCriteria)
	}
	if p.IsElectricityMeterRead != nil {
		rec[FieldIsElectricityMeterRead] = flag(*p.IsElectricityMeterRead)
	}
	if p.FirstTimeBilling != nil {
		rec[FieldFirstTimeBilling] = flag(*p.FirstTimeBilling)
	}

	arrears := map[string]*string{
		FieldArrearsTotal:       p.ArrearsTotal,
		FieldArrearsRentAmount:  p.ArrearsRentAmount,
		FieldArrearsRentDeposit: p.ArrearsRentDeposit,
		FieldArrearsWater:       p.ArrearsWater,
		FieldArrearsGarbage:     p.ArrearsGarbage,
		FieldArrearsElectricity: p.ArrearsElectricity,
	}
	hasArrears := p.IsArrearsCumulative != nil
	for field, v := range arrears {
		if v != nil {
			rec[field] = *v
			hasArrears = true
		}
	}
	if hasArrears {
		rec[FieldHasPreviousArrears] = Yes
		if p.IsArrearsCumulative != nil {
			rec[FieldIsArrearsCumulative] = flag(*p.IsArrearsCumulative)
		}
	}
	return rec
}

func flag(b bool) string {
	if b {
		return Yes
	}
	return No
}
