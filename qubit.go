package qcomposer

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strconv"
	"strings"
)

var errZeroVector = errors.New("state vector has zero norm")

// Qubit is an immutable single-qubit state vector.
type Qubit struct {
	alpha complex128 // |0⟩ amplitude
	beta  complex128 // |1⟩ amplitude
}

// NewQubit builds a normalized qubit from two amplitudes.
func NewQubit(alpha, beta complex128) (Qubit, error) {
	norm := math.Sqrt(real(alpha*cmplx.Conj(alpha)) + real(beta*cmplx.Conj(beta)))
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return Qubit{}, errZeroVector
	}

	scale := complex(1/norm, 0)
	return Qubit{alpha: alpha * scale, beta: beta * scale}, nil
}

// Ground returns |0⟩.
func Ground() Qubit {
	return Qubit{alpha: 1, beta: 0}
}

func (q Qubit) Alpha() complex128 { return q.alpha }
func (q Qubit) Beta() complex128  { return q.beta }

// Apply returns the state after the operator acts on q.
func (q Qubit) Apply(op Operator) Qubit {
	return Qubit{
		alpha: op[0][0]*q.alpha + op[0][1]*q.beta,
		beta:  op[1][0]*q.alpha + op[1][1]*q.beta,
	}
}

/*
Probabilities returns the Born-rule probabilities of reading 0 and 1.

Small numerical drift from repeated gate application is absorbed by
normalizing against the squared norm.
*/
func (q Qubit) Probabilities() (float64, float64) {
	p0 := real(q.alpha * cmplx.Conj(q.alpha))
	p1 := real(q.beta * cmplx.Conj(q.beta))

	total := p0 + p1
	if total == 0 {
		return 1, 0
	}

	return p0 / total, p1 / total
}

// Overlap returns |⟨q|other⟩|, which is 1 for states equal up to global phase.
func (q Qubit) Overlap(other Qubit) float64 {
	inner := cmplx.Conj(q.alpha)*other.alpha + cmplx.Conj(q.beta)*other.beta
	return cmplx.Abs(inner)
}

// Bloch projects the state onto the Bloch sphere, discarding global phase.
func (q Qubit) Bloch() BlochVector {
	p0, _ := q.Probabilities()
	theta := 2 * math.Acos(math.Sqrt(clamp(p0, 0, 1)))

	phi := 0.0
	if cmplx.Abs(q.alpha) > 1e-12 && cmplx.Abs(q.beta) > 1e-12 {
		phi = cmplx.Phase(q.beta) - cmplx.Phase(q.alpha)
		for phi < 0 {
			phi += 2 * math.Pi
		}
		for phi >= 2*math.Pi {
			phi -= 2 * math.Pi
		}
	}

	return BlochVector{
		Theta: theta,
		Phi:   phi,
		X:     math.Sin(theta) * math.Cos(phi),
		Y:     math.Sin(theta) * math.Sin(phi),
		Z:     math.Cos(theta),
	}
}

// Encode renders the state in the form ParseQubit accepts.
func (q Qubit) Encode() string {
	return strconv.FormatComplex(q.alpha, 'g', -1, 128) + "," +
		strconv.FormatComplex(q.beta, 'g', -1, 128)
}

var namedKets = map[string]func() Qubit{
	"0": func() Qubit { return Qubit{alpha: 1} },
	"1": func() Qubit { return Qubit{beta: 1} },
	"+": func() Qubit {
		return Qubit{alpha: complex(1/math.Sqrt2, 0), beta: complex(1/math.Sqrt2, 0)}
	},
	"-": func() Qubit {
		return Qubit{alpha: complex(1/math.Sqrt2, 0), beta: complex(-1/math.Sqrt2, 0)}
	},
	"i": func() Qubit {
		return Qubit{alpha: complex(1/math.Sqrt2, 0), beta: complex(0, 1/math.Sqrt2)}
	},
	"-i": func() Qubit {
		return Qubit{alpha: complex(1/math.Sqrt2, 0), beta: complex(0, -1/math.Sqrt2)}
	},
}

/*
ParseQubit decodes a state from its string form.

Accepted forms:
  - a named ket: 0, 1, +, -, i, -i, optionally written as |x> or |x⟩
  - two comma separated complex amplitudes: "(0.6+0i),(0+0.8i)" or "1,0"

The result is normalized. Empty input and the zero vector are rejected.
*/
func ParseQubit(encoded string) (Qubit, error) {
	text := strings.TrimSpace(encoded)
	if text == "" {
		return Qubit{}, errors.New("empty state encoding")
	}

	ket := strings.TrimSuffix(strings.TrimSuffix(strings.TrimPrefix(text, "|"), ">"), "⟩")
	if build, ok := namedKets[strings.ToLower(strings.TrimSpace(ket))]; ok {
		return build(), nil
	}

	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		return Qubit{}, fmt.Errorf("state %q: expected two amplitudes", encoded)
	}

	alpha, err := strconv.ParseComplex(strings.TrimSpace(parts[0]), 128)
	if err != nil {
		return Qubit{}, fmt.Errorf("state %q: alpha: %w", encoded, err)
	}

	beta, err := strconv.ParseComplex(strings.TrimSpace(parts[1]), 128)
	if err != nil {
		return Qubit{}, fmt.Errorf("state %q: beta: %w", encoded, err)
	}

	return NewQubit(alpha, beta)
}

func clamp(value, low, high float64) float64 {
	return math.Max(low, math.Min(high, value))
}
