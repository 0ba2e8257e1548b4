package qcomposer

import (
	"math"
	"math/cmplx"
	"strings"
)

/*
Operator is a single-qubit unitary, stored row-major.

	|a00 a01|
	|a10 a11|
*/
type Operator [2][2]complex128

/*
GateKind enumerates every gate the composer knows about. The set is closed:
adding a gate means adding a constant here and a case in Symbol and
operatorFor, nothing else.
*/
type GateKind int

const (
	GateI GateKind = iota
	GateX
	GateY
	GateZ
	GateH
	GateS
	GateSDG
	GateT
	GateTDG
)

var allGateKinds = []GateKind{
	GateI, GateX, GateY, GateZ, GateH, GateS, GateSDG, GateT, GateTDG,
}

// Symbol returns the canonical uppercase symbol of the gate.
func (kind GateKind) Symbol() string {
	switch kind {
	case GateI:
		return "I"
	case GateX:
		return "X"
	case GateY:
		return "Y"
	case GateZ:
		return "Z"
	case GateH:
		return "H"
	case GateS:
		return "S"
	case GateSDG:
		return "SDG"
	case GateT:
		return "T"
	case GateTDG:
		return "TDG"
	}

	return ""
}

func (kind GateKind) String() string {
	return kind.Symbol()
}

func operatorFor(kind GateKind) Operator {
	invSqrt2 := complex(1/math.Sqrt2, 0)

	switch kind {
	case GateI:
		return Operator{{1, 0}, {0, 1}}
	case GateX:
		return Operator{{0, 1}, {1, 0}}
	case GateY:
		return Operator{{0, -1i}, {1i, 0}}
	case GateZ:
		return Operator{{1, 0}, {0, -1}}
	case GateH:
		return Operator{{invSqrt2, invSqrt2}, {invSqrt2, -invSqrt2}}
	case GateS:
		return Operator{{1, 0}, {0, 1i}}
	case GateSDG:
		return Operator{{1, 0}, {0, -1i}}
	case GateT:
		return Operator{{1, 0}, {0, cmplx.Exp(complex(0, math.Pi/4))}}
	case GateTDG:
		return Operator{{1, 0}, {0, cmplx.Exp(complex(0, -math.Pi/4))}}
	}

	panic("qcomposer: no operator for gate kind")
}

// GateDefinition binds a gate kind to its canonical symbol and operator.
type GateDefinition struct {
	Kind      GateKind
	Symbol    string
	Operation Operator
}

/*
Registry is the read-only catalogue of gates the composer accepts.

It is built once at startup and never mutated afterwards, so it is safe to
share between goroutines without locking.
*/
type Registry struct {
	definitions map[GateKind]GateDefinition
}

// NewRegistry builds the catalogue from the closed set of gate kinds.
func NewRegistry() *Registry {
	registry := &Registry{
		definitions: make(map[GateKind]GateDefinition, len(allGateKinds)),
	}

	for _, kind := range allGateKinds {
		registry.definitions[kind] = GateDefinition{
			Kind:      kind,
			Symbol:    kind.Symbol(),
			Operation: operatorFor(kind),
		}
	}

	return registry
}

/*
ParseGate resolves external input to a gate kind.

Parameters:
  - symbol: User supplied symbol, any case, surrounding whitespace ignored

Returns:
  - GateKind: The matching kind
  - bool: False when the symbol names no known gate
*/
func ParseGate(symbol string) (GateKind, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))

	for _, kind := range allGateKinds {
		if kind.Symbol() == normalized {
			return kind, true
		}
	}

	return 0, false
}

// Lookup returns the definition for a symbol, case-insensitively.
func (registry *Registry) Lookup(symbol string) (GateDefinition, bool) {
	kind, ok := ParseGate(symbol)
	if !ok {
		return GateDefinition{}, false
	}

	return registry.Definition(kind), true
}

// Contains reports whether the symbol names a known gate.
func (registry *Registry) Contains(symbol string) bool {
	_, ok := registry.Lookup(symbol)
	return ok
}

// Definition returns the definition of a kind that is already known to be valid.
func (registry *Registry) Definition(kind GateKind) GateDefinition {
	return registry.definitions[kind]
}

// Symbols lists the canonical symbols in catalogue order.
func (registry *Registry) Symbols() []string {
	symbols := make([]string, 0, len(allGateKinds))
	for _, kind := range allGateKinds {
		symbols = append(symbols, kind.Symbol())
	}
	return symbols
}
