// Package jurisdiction checks a normalized financial configuration against
// local caps on late fees and security deposits. Violations are advisory:
// they are returned next to an accepted payload and never block a save.
package jurisdiction

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/matthewbaird/leasefin/internal/finconfig"
)

// SecurityDepositLimitDef caps the deposit at a number of months of rent.
type SecurityDepositLimitDef struct {
	MaxMonths float64 `mapstructure:"max_months" json:"max_months"` // e.g. 1.0 for CA
}

// LateFeeCapDef caps the late-payment fine.
type LateFeeCapDef struct {
	MaxPercentOfRent float64 `mapstructure:"max_percent_of_rent" json:"max_percent_of_rent,omitempty"`
	MaxFixedAmount   float64 `mapstructure:"max_fixed_amount" json:"max_fixed_amount,omitempty"`
}

// Rule is the set of caps a jurisdiction imposes.
type Rule struct {
	Jurisdiction         string                   `mapstructure:"jurisdiction" json:"jurisdiction"`
	StatuteReference     string                   `mapstructure:"statute_reference" json:"statute_reference,omitempty"`
	LateFeeCap           *LateFeeCapDef           `mapstructure:"late_fee_cap" json:"late_fee_cap,omitempty"`
	SecurityDepositLimit *SecurityDepositLimitDef `mapstructure:"security_deposit_limit" json:"security_deposit_limit,omitempty"`
}

// Violation represents a jurisdiction rule violation found during enforcement.
type Violation struct {
	RuleType     string `json:"rule_type"`
	Jurisdiction string `json:"jurisdiction"`
	Field        string `json:"field"`
	StatuteRef   string `json:"statute_reference,omitempty"`
	Description  string `json:"description"`
}

func (v Violation) Error() string {
	if v.StatuteRef != "" {
		return fmt.Sprintf("jurisdiction violation (%s, %s): %s [%s]", v.Jurisdiction, v.RuleType, v.Description, v.StatuteRef)
	}
	return fmt.Sprintf("jurisdiction violation (%s, %s): %s", v.Jurisdiction, v.RuleType, v.Description)
}

// Enforcer evaluates configured rules. It is read-only after construction.
type Enforcer struct {
	rules  map[string][]Rule
	logger *zap.Logger
}

// NewEnforcer indexes rules by lower-cased jurisdiction name.
func NewEnforcer(rules []Rule, logger *zap.Logger) *Enforcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Enforcer{rules: make(map[string][]Rule), logger: logger}
	for _, r := range rules {
		key := strings.ToLower(strings.TrimSpace(r.Jurisdiction))
		if key == "" {
			logger.Warn("jurisdiction: skipping rule without a jurisdiction name")
			continue
		}
		e.rules[key] = append(e.rules[key], r)
	}
	return e
}

// Jurisdictions returns how many jurisdictions have rules.
func (e *Enforcer) Jurisdictions() int {
	return len(e.rules)
}

// Check returns every cap the payload exceeds. An unknown or empty
// jurisdiction has no rules and yields no violations.
func (e *Enforcer) Check(jurisdiction string, p finconfig.Payload) []Violation {
	rules := e.rules[strings.ToLower(strings.TrimSpace(jurisdiction))]
	if len(rules) == 0 {
		return nil
	}
	rent, err := decimal.NewFromString(p.RentAmount)
	if err != nil {
		e.logger.Warn("jurisdiction: payload rent is not a number", zap.String("rent_amount", p.RentAmount))
		return nil
	}

	var out []Violation
	for _, r := range rules {
		if r.SecurityDepositLimit != nil {
			if v, ok := checkSecurityDepositLimit(r, rent, p); ok {
				out = append(out, v)
			}
		}
		if r.LateFeeCap != nil {
			out = append(out, checkLateFeeCap(r, rent, p)...)
		}
	}
	return out
}

// checkSecurityDepositLimit validates that the deposit doesn't exceed
// jurisdiction-mandated limits expressed as months of rent.
func checkSecurityDepositLimit(r Rule, rent decimal.Decimal, p finconfig.Payload) (Violation, bool) {
	def := r.SecurityDepositLimit
	if def.MaxMonths <= 0 {
		return Violation{}, false
	}
	deposit, err := decimal.NewFromString(p.RentDeposit)
	if err != nil {
		return Violation{}, false
	}
	maxDeposit := rent.Mul(decimal.NewFromFloat(def.MaxMonths))
	if !deposit.GreaterThan(maxDeposit) {
		return Violation{}, false
	}
	return Violation{
		RuleType:     "security_deposit_limit",
		Jurisdiction: r.Jurisdiction,
		Field:        finconfig.FieldRentDeposit,
		StatuteRef:   r.StatuteReference,
		Description: fmt.Sprintf("security deposit of %s exceeds maximum of %.1f months rent (%s)",
			deposit, def.MaxMonths, maxDeposit.StringFixed(2)),
	}, true
}

func checkLateFeeCap(r Rule, rent decimal.Decimal, p finconfig.Payload) []Violation {
	def := r.LateFeeCap
	violation := func(field, desc string) Violation {
		return Violation{
			RuleType:     "late_fee_cap",
			Jurisdiction: r.Jurisdiction,
			Field:        field,
			StatuteRef:   r.StatuteReference,
			Description:  desc,
		}
	}

	var out []Violation
	switch p.ModeForLatePayment {
	case finconfig.FineModeFixedAmount:
		if p.LatePaymentFixedAmount == nil {
			return nil
		}
		fee, err := decimal.NewFromString(*p.LatePaymentFixedAmount)
		if err != nil {
			return nil
		}
		if def.MaxFixedAmount > 0 {
			limit := decimal.NewFromFloat(def.MaxFixedAmount)
			if fee.GreaterThan(limit) {
				out = append(out, violation(finconfig.FieldLatePaymentFixed,
					fmt.Sprintf("late fee of %s exceeds cap of %s", fee, limit)))
			}
		}
		if def.MaxPercentOfRent > 0 && rent.IsPositive() {
			pct := fee.Div(rent).Mul(decimal.NewFromInt(100))
			if pct.GreaterThan(decimal.NewFromFloat(def.MaxPercentOfRent)) {
				out = append(out, violation(finconfig.FieldLatePaymentFixed,
					fmt.Sprintf("late fee is %s%% of rent, above cap of %.1f%%", pct.StringFixed(1), def.MaxPercentOfRent)))
			}
		}
	case finconfig.FineModePercentage:
		if p.CriteriaPercentage == nil || def.MaxPercentOfRent <= 0 {
			return nil
		}
		pct, err := decimal.NewFromString(*p.CriteriaPercentage)
		if err != nil {
			return nil
		}
		if pct.GreaterThan(decimal.NewFromFloat(def.MaxPercentOfRent)) {
			out = append(out, violation(finconfig.FieldCriteriaPercentage,
				fmt.Sprintf("late fee of %s%% exceeds cap of %.1f%%", pct, def.MaxPercentOfRent)))
		}
	}
	return out
}
