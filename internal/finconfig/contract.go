package finconfig

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed contract.cue
var contractSource string

// FieldKind is the primitive shape of a field.
type FieldKind string

const (
	KindDecimal FieldKind = "decimal"
	KindFlag    FieldKind = "flag"
	KindDay     FieldKind = "day"
	KindEnum    FieldKind = "enum"
)

// FieldSpec describes one recognized field of the form.
type FieldSpec struct {
	Name       string    `json:"name"`
	Label      string    `json:"label"`
	Kind       FieldKind `json:"kind"`
	Group      Group     `json:"group"`
	Required   bool      `json:"required"`
	Capability string    `json:"capability,omitempty"`

	schema cue.Value
}

// Contract holds the unconditional per-field constraints declared in
// contract.cue. It is safe for concurrent use.
type Contract struct {
	mu     sync.Mutex // cue values share one context, which is not goroutine safe
	ctx    *cue.Context
	fields []FieldSpec
	index  map[string]int
}

// LoadContract compiles the embedded CUE contract.
func LoadContract() (*Contract, error) {
	ctx := cuecontext.New()
	val := ctx.CompileString(contractSource, cue.Filename("contract.cue"))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("compiling field contract: %w", err)
	}

	def := val.LookupPath(cue.ParsePath("#TenantUnitInput"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("looking up #TenantUnitInput: %w", err)
	}

	c := &Contract{ctx: ctx, index: make(map[string]int)}
	iter, err := def.Fields(cue.Optional(true))
	if err != nil {
		return nil, fmt.Errorf("iterating contract fields: %w", err)
	}
	for iter.Next() {
		name := strings.TrimSuffix(iter.Selector().String(), "?")
		spec, err := parseFieldSpec(name, iter.Value())
		if err != nil {
			return nil, err
		}
		c.index[name] = len(c.fields)
		c.fields = append(c.fields, spec)
	}
	if len(c.fields) == 0 {
		return nil, fmt.Errorf("field contract declares no fields")
	}
	return c, nil
}

func parseFieldSpec(name string, v cue.Value) (FieldSpec, error) {
	attr := v.Attribute("field")
	if err := attr.Err(); err != nil {
		return FieldSpec{}, fmt.Errorf("field %s: @field attribute: %w", name, err)
	}
	kind, _, err := attr.Lookup(0, "kind")
	if err != nil {
		return FieldSpec{}, fmt.Errorf("field %s: kind: %w", name, err)
	}
	group, _, err := attr.Lookup(0, "group")
	if err != nil {
		return FieldSpec{}, fmt.Errorf("field %s: group: %w", name, err)
	}
	capName, _, err := attr.Lookup(0, "cap")
	if err != nil {
		return FieldSpec{}, fmt.Errorf("field %s: cap: %w", name, err)
	}
	required, err := attr.Flag(0, "required")
	if err != nil {
		return FieldSpec{}, fmt.Errorf("field %s: required: %w", name, err)
	}
	switch FieldKind(kind) {
	case KindDecimal, KindFlag, KindDay, KindEnum:
	default:
		return FieldSpec{}, fmt.Errorf("field %s: unknown kind %q", name, kind)
	}
	return FieldSpec{
		Name:       name,
		Label:      label(name),
		Kind:       FieldKind(kind),
		Group:      Group(group),
		Required:   required,
		Capability: capName,
		schema:     v,
	}, nil
}

// Fields returns the specs active under caps, in declaration order.
func (c *Contract) Fields(caps Capabilities) []FieldSpec {
	out := make([]FieldSpec, 0, len(c.fields))
	for _, f := range c.fields {
		if caps.allows(f.Capability) {
			out = append(out, f)
		}
	}
	return out
}

// Lookup returns the spec for a field name.
func (c *Contract) Lookup(name string) (FieldSpec, bool) {
	i, ok := c.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return c.fields[i], true
}

// Known reports whether name is a field active under caps.
func (c *Contract) Known(name string, caps Capabilities) bool {
	f, ok := c.Lookup(name)
	return ok && caps.allows(f.Capability)
}

// Check applies the unconditional constraints: required fields must be
// provided and provided fields must match their declared shape. Fields that
// Derive discards for the record's modes are not shape-checked.
func (c *Contract) Check(rec Record, caps Capabilities) Issues {
	var issues Issues
	for _, f := range c.Fields(caps) {
		if !rec.Has(f.Name) {
			if f.Required {
				issues.add(f.Group, f.Name, CodeMissingRequired, f.Label+" is required")
			}
			continue
		}
		if discarded(rec, f.Name) {
			continue
		}
		if !c.matches(f, rec.Get(f.Name)) {
			issues.add(f.Group, f.Name, CodeInvalidValue, f.Label+" "+shapeMessage(f))
		}
	}
	return issues
}

// discarded reports whether the rules tolerate name under rec's modes only
// because Derive drops or recomputes it.
func discarded(rec Record, name string) bool {
	switch name {
	case FieldTaxPercentage:
		return !rec.IsYes(FieldIsTaxable)
	case FieldInitialMeterReading:
		return !rec.IsYes(FieldIsMeterRead)
	case FieldArrearsTotal:
		return rec.IsYes(FieldHasPreviousArrears) &&
			rec.Has(FieldIsArrearsCumulative) && !rec.IsYes(FieldIsArrearsCumulative)
	}
	if slices.Contains(itemizedArrearsFields, name) {
		return rec.IsYes(FieldHasPreviousArrears) && rec.IsYes(FieldIsArrearsCumulative)
	}
	return false
}

func (c *Contract) matches(f FieldSpec, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return f.schema.Unify(c.ctx.Encode(value)).Validate(cue.Concrete(true)) == nil
}

func shapeMessage(f FieldSpec) string {
	switch f.Name {
	case FieldTaxPercentage, FieldCriteriaPercentage:
		return percentageRule
	}
	switch f.Kind {
	case KindDecimal:
		return "must be a number"
	case KindFlag:
		return "must be 1 (yes) or 0 (no)"
	case KindDay:
		return "must be a day of the month between 1 and 31"
	}
	switch f.Name {
	case FieldModeForLatePayment:
		return "must be one of " + joinOptions(fineModes)
	case FieldAmountCriteria:
		return "must be one of " + joinOptions(amountCriteria)
	}
	return "has an unsupported value"
}

func joinOptions[T ~string](opts []T) string {
	parts := make([]string, len(opts))
	for i, o := range opts {
		parts[i] = string(o)
	}
	return strings.Join(parts, ", ")
}

var labelOverrides = map[string]string{
	FieldHasPreviousArrears:     "Previous arrears",
	FieldIsArrearsCumulative:    "Cumulative arrears",
	FieldIsTaxable:              "Taxable",
	FieldIsMeterRead:            "Water meter billing",
	FieldIsElectricityMeterRead: "Electricity meter billing",
	FieldIsRentAgreed:           "Rent agreed",
	FieldModeForLatePayment:     "Late payment mode",
	FieldLatePaymentFixed:       "Late payment fixed amount",
	FieldDueRentFineStartDate:   "Fine start date",
	FieldDueRentReminderDate:    "Reminder date",
}

// label turns a field name into the text shown next to the input,
// e.g. "tax_percentage" becomes "Tax percentage".
func label(name string) string {
	if l, ok := labelOverrides[name]; ok {
		return l
	}
	s := strings.ReplaceAll(name, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
