package finconfig

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrMissingIdentity is returned when the caller does not supply a tenant or
// unit id. It signals a programming error in the calling screen, not an
// operator mistake, so it is an error rather than an Issue.
var ErrMissingIdentity = errors.New("missing assignment identity")

// Result is the outcome of one submission. Exactly one of Payload and Issues
// is set: a normalized run carries a payload, a rejected run carries issues.
type Result struct {
	State   State    `json:"state"`
	Payload *Payload `json:"payload,omitempty"`
	Issues  Issues   `json:"issues,omitempty"`
}

// Accepted reports whether the submission produced a payload.
func (r Result) Accepted() bool {
	return r.State == StateNormalized
}

// Engine runs submissions through the contract, rules, derivation and
// normalization stages. It holds no per-submission state and is safe for
// concurrent use.
type Engine struct {
	flow     Flow
	caps     Capabilities
	contract *Contract
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for stage tracing.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCapabilities overrides the capabilities implied by the flow.
func WithCapabilities(c Capabilities) Option {
	return func(e *Engine) { e.caps = c }
}

// WithContract shares an already loaded contract between engines.
func WithContract(c *Contract) Option {
	return func(e *Engine) { e.contract = c }
}

// New builds an engine for flow.
func New(flow Flow, opts ...Option) (*Engine, error) {
	e := &Engine{
		flow:   flow,
		caps:   CapabilitiesFor(flow),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.contract == nil {
		c, err := LoadContract()
		if err != nil {
			return nil, err
		}
		e.contract = c
	}
	e.logger = e.logger.With(zap.String("flow", string(flow)))
	return e, nil
}

// NewEngines builds one engine per flow, all sharing a single compiled contract.
func NewEngines(opts ...Option) (map[Flow]*Engine, error) {
	c, err := LoadContract()
	if err != nil {
		return nil, err
	}
	engines := make(map[Flow]*Engine, 2)
	for _, flow := range []Flow{FlowCreate, FlowEdit} {
		e, err := New(flow, append([]Option{WithContract(c)}, opts...)...)
		if err != nil {
			return nil, err
		}
		engines[flow] = e
	}
	return engines, nil
}

// Flow returns the flow the engine was built for.
func (e *Engine) Flow() Flow { return e.flow }

// Capabilities returns the active field groups.
func (e *Engine) Capabilities() Capabilities { return e.caps }

// Contract returns the field contract.
func (e *Engine) Contract() *Contract { return e.contract }

// Check runs the contract and the cross-field rules without producing a payload.
func (e *Engine) Check(rec Record) Issues {
	issues := e.contract.Check(rec, e.caps)
	issues.merge(Validate(rec, e.caps))
	return issues
}

// Process runs one submission. Business-rule violations come back in the
// Result; an error is returned only for a missing identity.
func (e *Engine) Process(id Identity, rec Record) (Result, error) {
	if id.TenantID <= 0 {
		return Result{}, fmt.Errorf("%w: tenant_id", ErrMissingIdentity)
	}
	if id.UnitID <= 0 {
		return Result{}, fmt.Errorf("%w: unit_id", ErrMissingIdentity)
	}

	log := e.logger.With(zap.Int64("tenant_id", id.TenantID), zap.Int64("unit_id", id.UnitID))
	state := StateReceived
	advance := func(next State) error {
		if err := validateTransition(state, next); err != nil {
			return err
		}
		log.Debug("finconfig stage", zap.String("from", string(state)), zap.String("to", string(next)))
		state = next
		return nil
	}

	if issues := e.Check(rec); len(issues) > 0 {
		if err := advance(StateRejected); err != nil {
			return Result{}, err
		}
		log.Debug("finconfig rejected", zap.Int("issues", len(issues)), zap.Strings("fields", issues.Fields()))
		return Result{State: state, Issues: issues}, nil
	}
	if err := advance(StateValidated); err != nil {
		return Result{}, err
	}

	cfg := Derive(Parse(rec, e.caps))
	if err := advance(StateDerived); err != nil {
		return Result{}, err
	}

	payload := Normalize(id, cfg, e.caps)
	if err := advance(StateNormalized); err != nil {
		return Result{}, err
	}
	return Result{State: state, Payload: &payload}, nil
}
