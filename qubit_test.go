package qcomposer

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestQubit(t *testing.T) {
	Convey("Given a qubit in the ground state", t, func() {
		registry := NewRegistry()
		q := Ground()

		Convey("Hadamard should give an even superposition", func() {
			h := q.Apply(registry.Definition(GateH).Operation)
			p0, p1 := h.Probabilities()
			So(p0, ShouldAlmostEqual, 0.5, 1e-12)
			So(p1, ShouldAlmostEqual, 0.5, 1e-12)

			bloch := h.Bloch()
			So(bloch.X, ShouldAlmostEqual, 1, 1e-12)
			So(bloch.Z, ShouldAlmostEqual, 0, 1e-12)
		})

		Convey("X should flip it to |1⟩", func() {
			flipped := q.Apply(registry.Definition(GateX).Operation)
			_, p1 := flipped.Probabilities()
			So(p1, ShouldAlmostEqual, 1, 1e-12)
			So(flipped.Bloch().Theta, ShouldAlmostEqual, math.Pi, 1e-12)
		})

		Convey("Apply should leave the input untouched", func() {
			_ = q.Apply(registry.Definition(GateX).Operation)
			So(q.Alpha(), ShouldEqual, complex(1, 0))
		})
	})
}

func TestParseQubit(t *testing.T) {
	Convey("Given state encodings", t, func() {
		Convey("Named kets should parse with or without ket brackets", func() {
			for _, encoded := range []string{"0", "|0>", "|0⟩", "+", "|-i>", "i"} {
				_, err := ParseQubit(encoded)
				So(err, ShouldBeNil)
			}
		})

		Convey("Amplitude pairs should parse and normalize", func() {
			q, err := ParseQubit("3,4i")
			So(err, ShouldBeNil)
			p0, p1 := q.Probabilities()
			So(p0, ShouldAlmostEqual, 0.36, 1e-12)
			So(p1, ShouldAlmostEqual, 0.64, 1e-12)
		})

		Convey("Encode should round trip", func() {
			q, _ := ParseQubit("+")
			decoded, err := ParseQubit(q.Encode())
			So(err, ShouldBeNil)
			So(decoded.Overlap(q), ShouldAlmostEqual, 1, 1e-12)
		})

		Convey("Malformed input should be rejected", func() {
			for _, encoded := range []string{"", "  ", "0,0", "abc", "1,2,3", "1,x"} {
				_, err := ParseQubit(encoded)
				So(err, ShouldNotBeNil)
			}
		})
	})
}
