package finconfig

import "fmt"

// State is a stage of one submission's run through the engine.
type State string

const (
	StateReceived   State = "received"
	StateValidated  State = "validated"
	StateRejected   State = "rejected"
	StateDerived    State = "derived"
	StateNormalized State = "normalized"
)

// validTransitions lists the allowed next states. Rejected and normalized
// are terminal.
var validTransitions = map[State][]State{
	StateReceived:   {StateValidated, StateRejected},
	StateValidated:  {StateDerived},
	StateDerived:    {StateNormalized},
	StateRejected:   {},
	StateNormalized: {},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	next, ok := validTransitions[s]
	return ok && len(next) == 0
}

// validateTransition checks whether moving from current to target is allowed.
func validateTransition(current, target State) error {
	allowed, ok := validTransitions[current]
	if !ok {
		return fmt.Errorf("unknown current state: %s", current)
	}
	for _, s := range allowed {
		if s == target {
			return nil
		}
	}
	return fmt.Errorf("transition from %q to %q is not allowed", current, target)
}
