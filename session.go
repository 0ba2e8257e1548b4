package qcomposer

import (
	"github.com/theapemachine/errnie"
)

// Measurement is the record of a committed batch measurement.
type Measurement struct {
	BatchSize int   `json:"batchSize"`
	Result    []int `json:"result"`
}

// Summary is the externally visible snapshot of the session.
type Summary struct {
	IsCollapsed bool         `json:"isCollapsed"`
	State       StateView    `json:"state"`
	Gates       []string     `json:"gates"`
	Measurement *Measurement `json:"measurement,omitempty"`
}

/*
Session is the composer state machine.

It has two states, active and collapsed. While active, gates can be pushed
and popped and every change is recomputed by the engine. A measurement moves
it to collapsed, freezing the gate stack and the current state until either
Unmeasure or Reset.

Session does no locking of its own; the Controller that owns it serializes
access.
*/
type Session struct {
	engine      Engine
	gates       []GateDefinition
	collapsed   bool
	measurement *Measurement
	current     Qubit
}

// NewSession creates a session in its initial active, empty state.
func NewSession(engine Engine) *Session {
	session := &Session{engine: engine}
	session.Reset()
	return session
}

// Reset returns the session to its initial state in place.
func (session *Session) Reset() {
	session.gates = session.gates[:0]
	session.collapsed = false
	session.measurement = nil
	session.current = session.engine.CreateState()

	errnie.Info("session reset")
}

func (session *Session) IsCollapsed() bool {
	return session.collapsed
}

func (session *Session) Depth() int {
	return len(session.gates)
}

func (session *Session) Current() Qubit {
	return session.current
}

// Apply pushes a gate and commits the recomputed state.
func (session *Session) Apply(gate GateDefinition) error {
	if session.collapsed {
		return ErrCollapsed
	}

	session.current = session.engine.ApplyOperation(session.current, gate.Operation)
	session.gates = append(session.gates, gate)

	errnie.Info("gate %s applied, depth %d", gate.Symbol, len(session.gates))
	return nil
}

/*
Preview computes the state Apply would commit, without committing it.

Returns:
  - Qubit: The hypothetical state
  - error: ErrCollapsed when the session is collapsed
*/
func (session *Session) Preview(gate GateDefinition) (Qubit, error) {
	if session.collapsed {
		return Qubit{}, ErrCollapsed
	}

	return session.engine.ApplyOperation(session.current, gate.Operation), nil
}

// Undo pops the last gate and rebuilds the state by replaying the stack.
func (session *Session) Undo() error {
	if session.collapsed {
		return ErrCollapsed
	}

	if len(session.gates) == 0 {
		return ErrEmptyStack
	}

	session.gates = session.gates[:len(session.gates)-1]
	session.current = session.replay()

	errnie.Info("gate undone, depth %d", len(session.gates))
	return nil
}

/*
Measure draws batchSize outcomes from the current state and collapses.

The caller is responsible for validating batchSize; the session only guards
the collapse lifecycle.
*/
func (session *Session) Measure(batchSize int) (Measurement, error) {
	if session.collapsed {
		return Measurement{}, ErrCollapsed
	}

	outcomes := session.engine.SampleMeasurement(session.current, batchSize)

	session.measurement = &Measurement{BatchSize: batchSize, Result: outcomes}
	session.collapsed = true

	errnie.Info("measured batch of %d", batchSize)
	return *session.measurement, nil
}

// Unmeasure discards the measurement and restores the state it was taken from.
func (session *Session) Unmeasure() error {
	if !session.collapsed {
		return ErrNoMeasurement
	}

	restored, ok := session.engine.RestorePreMeasurementState()
	if !ok {
		restored = session.replay()
	}

	session.current = restored
	session.measurement = nil
	session.collapsed = false

	errnie.Info("measurement discarded, depth %d", len(session.gates))
	return nil
}

// Summary renders the session for callers. The returned value shares nothing
// with the session.
func (session *Session) Summary() Summary {
	gates := make([]string, len(session.gates))
	for i, gate := range session.gates {
		gates[i] = gate.Symbol
	}

	summary := Summary{
		IsCollapsed: session.collapsed,
		State:       session.engine.Describe(session.current),
		Gates:       gates,
	}

	if session.measurement != nil {
		result := make([]int, len(session.measurement.Result))
		copy(result, session.measurement.Result)
		summary.Measurement = &Measurement{
			BatchSize: session.measurement.BatchSize,
			Result:    result,
		}
	}

	return summary
}

// Projection is the visual projection of the committed state.
func (session *Session) Projection() BlochVector {
	return session.engine.Project(session.current)
}

func (session *Session) replay() Qubit {
	state := session.engine.CreateState()
	for _, gate := range session.gates {
		state = session.engine.ApplyOperation(state, gate.Operation)
	}
	return state
}
