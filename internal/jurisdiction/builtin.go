package jurisdiction

import "strings"

const calDepositStatute = "Cal. Civ. Code §1950.5 (as amended by AB 12)"

// BuiltinRules returns the caps shipped with the service. California limits
// the security deposit to one month of rent, and its county and city
// jurisdictions inherit the state limit.
func BuiltinRules() []Rule {
	deposit := func(name string) Rule {
		return Rule{
			Jurisdiction:         name,
			StatuteReference:     calDepositStatute,
			SecurityDepositLimit: &SecurityDepositLimitDef{MaxMonths: 1.0},
		}
	}
	return []Rule{
		deposit("CA"),
		deposit("Los Angeles County"),
		deposit("Santa Monica"),
	}
}

// WithBuiltins merges configured rules over the built-in table. A jurisdiction
// named in configured replaces every built-in rule for that jurisdiction.
func WithBuiltins(configured []Rule) []Rule {
	named := make(map[string]bool, len(configured))
	for _, r := range configured {
		named[strings.ToLower(strings.TrimSpace(r.Jurisdiction))] = true
	}
	out := make([]Rule, 0, len(configured)+3)
	for _, r := range BuiltinRules() {
		if !named[strings.ToLower(r.Jurisdiction)] {
			out = append(out, r)
		}
	}
	return append(out, configured...)
}
