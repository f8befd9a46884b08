package finconfig

import "github.com/shopspring/decimal"

// Derive fills computed fields and clears the fields the selected modes
// leave unused. It works on a copy, never fails and is idempotent.
func Derive(cfg Config) Config {
	out := cfg

	if !out.Taxable {
		out.TaxPercentage = nil
	}
	if !out.WaterMetered {
		out.InitialMeterReading = nil
	}
	if !out.ElectricityMetered {
		out.ElectricityUnitPrice = nil
		out.InitialElectricityReading = nil
	}

	out.Arrears = deriveArrears(cfg.Arrears)

	switch out.Fine.Mode {
	case FineModePercentage:
		out.Fine.FixedAmount = nil
	case FineModeFixedAmount:
		out.Fine.Criteria = ""
		out.Fine.CriteriaPercent = nil
	}
	return out
}

func deriveArrears(a Arrears) Arrears {
	if !a.Present {
		return Arrears{}
	}
	out := a
	if out.Cumulative {
		for _, item := range out.itemized() {
			*item = nil
		}
		return out
	}

	// Itemized: the operator never enters the total, it is always the sum of
	// the positive items. Blank or non-positive items drop out.
	total := decimal.Zero
	for _, item := range out.itemized() {
		if *item == nil || !(*item).IsPositive() {
			*item = nil
			continue
		}
		d := **item
		*item = &d
		total = total.Add(d)
	}
	out.Total = &total
	return out
}
