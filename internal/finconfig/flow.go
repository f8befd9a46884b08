package finconfig

import "fmt"

// Flow identifies the screen a submission comes from.
type Flow string

const (
	// FlowCreate assigns a tenant to a unit. It records previous arrears and
	// whether deposit billing should be generated.
	FlowCreate Flow = "create"
	// FlowEdit updates an existing assignment. It adds electricity metering.
	FlowEdit Flow = "edit"
)

// ParseFlow converts a query or CLI value into a Flow. Empty means create.
func ParseFlow(s string) (Flow, error) {
	switch Flow(s) {
	case "", FlowCreate:
		return FlowCreate, nil
	case FlowEdit:
		return FlowEdit, nil
	}
	return "", fmt.Errorf("unknown flow %q (want %q or %q)", s, FlowCreate, FlowEdit)
}

// Capabilities switches optional field groups on or off. Fields of a
// disabled capability are ignored by every stage and never reach the payload.
type Capabilities struct {
	ElectricityMetering bool `json:"electricity_metering"`
	Arrears             bool `json:"arrears"`
	FirstTimeBilling    bool `json:"first_time_billing"`
}

// CapabilitiesFor returns the field groups a flow supports.
func CapabilitiesFor(f Flow) Capabilities {
	if f == FlowEdit {
		return Capabilities{ElectricityMetering: true}
	}
	return Capabilities{Arrears: true, FirstTimeBilling: true}
}

// allows reports whether fields tagged with the contract capability name are active.
func (c Capabilities) allows(name string) bool {
	switch name {
	case "":
		return true
	case "electricity":
		return c.ElectricityMetering
	case "arrears":
		return c.Arrears
	case "billing":
		return c.FirstTimeBilling
	}
	return false
}
