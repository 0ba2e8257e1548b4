package qcomposer

import (
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat/distuv"
)

// Amplitude is the JSON friendly form of a complex amplitude.
type Amplitude struct {
	Re float64 `json:"re"`
	Im float64 `json:"im"`
}

func newAmplitude(value complex128) Amplitude {
	return Amplitude{Re: real(value), Im: imag(value)}
}

// StateView is what clients see of a state in summaries and previews.
type StateView struct {
	Alpha         Amplitude  `json:"alpha"`
	Beta          Amplitude  `json:"beta"`
	Probabilities [2]float64 `json:"probabilities"`
	Ket           string     `json:"ket"`
}

// BlochVector is the visual projection broadcast to observers.
type BlochVector struct {
	Theta float64 `json:"theta"`
	Phi   float64 `json:"phi"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

/*
Engine performs every numerical step the composer needs.

The session only sequences calls to it and never touches amplitudes itself.
Implementations must treat states as values: ApplyOperation returns a new
state and leaves its input untouched.
*/
type Engine interface {
	CreateState() Qubit
	ApplyOperation(state Qubit, op Operator) Qubit
	SampleMeasurement(state Qubit, n int) []int
	RestorePreMeasurementState() (Qubit, bool)
	Describe(state Qubit) StateView
	Project(state Qubit) BlochVector
	ParseState(encoded string) (Qubit, error)
	StatesEquivalent(a, b Qubit) bool
}

const equivalenceTolerance = 1e-9

/*
QubitEngine is the state-vector Engine for a single qubit.

Measurement outcomes are drawn from a Bernoulli distribution with
P(1) = |beta|^2. The state handed to the last SampleMeasurement call is kept
so that RestorePreMeasurementState can hand it back exactly.
*/
type QubitEngine struct {
	mu       sync.Mutex
	source   rand.Source
	snapshot *Qubit
}

/*
NewQubitEngine creates an engine with its own random source.

Parameters:
  - seed: Seed for measurement sampling; 0 picks a time based seed

Returns:
  - *QubitEngine: A ready to use engine
*/
func NewQubitEngine(seed uint64) *QubitEngine {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &QubitEngine{
		source: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
}

func (engine *QubitEngine) CreateState() Qubit {
	return Ground()
}

func (engine *QubitEngine) ApplyOperation(state Qubit, op Operator) Qubit {
	return state.Apply(op)
}

func (engine *QubitEngine) SampleMeasurement(state Qubit, n int) []int {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	frozen := state
	engine.snapshot = &frozen

	_, p1 := state.Probabilities()
	bernoulli := distuv.Bernoulli{P: clamp(p1, 0, 1), Src: engine.source}

	outcomes := make([]int, n)
	for i := range outcomes {
		outcomes[i] = int(bernoulli.Rand())
	}

	return outcomes
}

func (engine *QubitEngine) RestorePreMeasurementState() (Qubit, bool) {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	if engine.snapshot == nil {
		return Qubit{}, false
	}

	restored := *engine.snapshot
	engine.snapshot = nil
	return restored, true
}

func (engine *QubitEngine) Describe(state Qubit) StateView {
	p0, p1 := state.Probabilities()

	return StateView{
		Alpha:         newAmplitude(state.Alpha()),
		Beta:          newAmplitude(state.Beta()),
		Probabilities: [2]float64{p0, p1},
		Ket:           state.Encode(),
	}
}

func (engine *QubitEngine) Project(state Qubit) BlochVector {
	return state.Bloch()
}

func (engine *QubitEngine) ParseState(encoded string) (Qubit, error) {
	return ParseQubit(encoded)
}

// StatesEquivalent compares up to global phase.
func (engine *QubitEngine) StatesEquivalent(a, b Qubit) bool {
	return scalar.EqualWithinAbs(a.Overlap(b), 1, equivalenceTolerance)
}
