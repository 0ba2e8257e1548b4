package qcomposer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

const eventTimeout = 2 * time.Second

type controllerFixture struct {
	controller *Controller
	group      *BroadcastGroup
	cancel     context.CancelFunc
}

func newControllerFixture(opts ...ControllerOption) *controllerFixture {
	engine := NewQubitEngine(1)
	metrics := NewMetrics(prometheus.NewRegistry())
	group := NewBroadcastGroup(metrics)
	dispatcher := NewDispatcher(group)

	ctx, cancel := context.WithCancel(context.Background())
	go dispatcher.Run(ctx)

	opts = append([]ControllerOption{WithMetrics(metrics)}, opts...)

	return &controllerFixture{
		controller: NewController(NewSession(engine), NewRegistry(), engine, dispatcher, opts...),
		group:      group,
		cancel:     cancel,
	}
}

// subscribe returns a subscription with the greeting already consumed.
func (fixture *controllerFixture) subscribe(names ...EventName) *Subscription {
	subscription := fixture.group.Subscribe(64, names...)
	<-subscription.C
	return subscription
}

func nextEvent(subscription *Subscription) (Event, bool) {
	select {
	case event, ok := <-subscription.C:
		return event, ok
	case <-time.After(eventTimeout):
		return Event{}, false
	}
}

func noEvent(subscription *Subscription) bool {
	select {
	case <-subscription.C:
		return false
	case <-time.After(100 * time.Millisecond):
		return true
	}
}

func TestControllerCommands(t *testing.T) {
	Convey("Given a controller with a subscriber", t, func() {
		fixture := newControllerFixture()
		subscription := fixture.subscribe()

		Reset(func() {
			fixture.cancel()
		})

		controller := fixture.controller

		Convey("Unknown gates should be refused without touching the session", func() {
			before := controller.State()

			_, err := controller.ApplyGate("CNOT")
			So(errors.Is(err, ErrUnknownGate), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "Unknown gate: CNOT")

			_, err = controller.PreviewGate("q")
			So(errors.Is(err, ErrUnknownGate), ShouldBeTrue)

			So(controller.State(), ShouldResemble, before)
			So(noEvent(subscription), ShouldBeTrue)
		})

		Convey("Reset should always give the initial state and broadcast it", func() {
			_, _ = controller.ApplyGate("h")
			_, _ = controller.Measure(3)
			<-subscription.C

			summary := controller.Reset()
			So(summary.IsCollapsed, ShouldBeFalse)
			So(summary.Gates, ShouldBeEmpty)
			So(summary.Measurement, ShouldBeNil)

			event, ok := nextEvent(subscription)
			So(ok, ShouldBeTrue)
			So(event.Name, ShouldEqual, EventReset)
			So(event.Payload, ShouldResemble, summary)
		})

		Convey("Apply then undo should round trip and broadcast applyGate twice", func() {
			before := controller.State()

			applied, err := controller.ApplyGate("H")
			So(err, ShouldBeNil)
			So(applied.Gates, ShouldResemble, []string{"H"})

			undone, err := controller.UndoGate()
			So(err, ShouldBeNil)
			So(undone, ShouldResemble, before)

			first, ok := nextEvent(subscription)
			So(ok, ShouldBeTrue)
			second, ok := nextEvent(subscription)
			So(ok, ShouldBeTrue)

			So(first.Name, ShouldEqual, EventApplyGate)
			So(second.Name, ShouldEqual, EventApplyGate)
			So(first.Payload.(BlochVector).X, ShouldAlmostEqual, 1, 1e-12)
			So(second.Payload.(BlochVector).Z, ShouldAlmostEqual, 1, 1e-12)
		})

		Convey("Undo on an empty stack should report EmptyStack", func() {
			_, err := controller.UndoGate()
			So(errors.Is(err, ErrEmptyStack), ShouldBeTrue)
			So(noEvent(subscription), ShouldBeTrue)
		})

		Convey("Preview should not change what apply does", func() {
			preview, err := controller.PreviewGate("x")
			So(err, ShouldBeNil)
			So(controller.State().Gates, ShouldBeEmpty)

			event, ok := nextEvent(subscription)
			So(ok, ShouldBeTrue)
			So(event.Name, ShouldEqual, EventPreviewGate)
			So(event.Payload.(BlochVector).Z, ShouldAlmostEqual, -1, 1e-12)

			applied, err := controller.ApplyGate("x")
			So(err, ShouldBeNil)
			So(applied.State, ShouldResemble, preview.State)
		})

		Convey("Measure should return exactly n binary outcomes without broadcasting", func() {
			_, _ = controller.ApplyGate("H")
			<-subscription.C

			for _, n := range []int{1, 7, 250} {
				controller.Reset()
				<-subscription.C
				_, _ = controller.ApplyGate("H")
				<-subscription.C

				measurement, err := controller.Measure(n)
				So(err, ShouldBeNil)
				So(measurement.BatchSize, ShouldEqual, n)
				So(measurement.Result, ShouldHaveLength, n)
				for _, outcome := range measurement.Result {
					So(outcome, ShouldBeIn, 0, 1)
				}
				So(controller.State().IsCollapsed, ShouldBeTrue)
			}

			So(noEvent(subscription), ShouldBeTrue)
		})

		Convey("Measure should refuse non-positive batch sizes", func() {
			for _, n := range []int{0, -1} {
				_, err := controller.Measure(n)
				So(errors.Is(err, ErrInvalidParameters), ShouldBeTrue)
			}
			So(controller.State().IsCollapsed, ShouldBeFalse)
		})

		Convey("Unmeasure without a measurement should report NoMeasurement", func() {
			_, err := controller.Unmeasure()
			So(errors.Is(err, ErrNoMeasurement), ShouldBeTrue)
		})

		Convey("Compare should be reflexive and need both operands", func() {
			for _, state := range []string{"0", "+", "(0.6+0i),(0+0.8i)"} {
				comparison, err := controller.CompareStates(state, state)
				So(err, ShouldBeNil)
				So(comparison.Result, ShouldBeTrue)
			}

			comparison, err := controller.CompareStates("0", "1")
			So(err, ShouldBeNil)
			So(comparison.Result, ShouldBeFalse)

			_, err = controller.CompareStates("", "0")
			So(errors.Is(err, ErrInvalidParameters), ShouldBeTrue)
			_, err = controller.CompareStates("0", "   ")
			So(errors.Is(err, ErrInvalidParameters), ShouldBeTrue)
			_, err = controller.CompareStates("0", "nonsense")
			So(errors.Is(err, ErrInvalidParameters), ShouldBeTrue)
		})

		Convey("The ket of a summary should compare equal to itself", func() {
			summary, _ := controller.ApplyGate("H")
			comparison, err := controller.CompareStates(summary.State.Ket, "+")
			So(err, ShouldBeNil)
			So(comparison.Result, ShouldBeTrue)
		})
	})
}

func TestControllerScenario(t *testing.T) {
	Convey("Given a fresh composer", t, func() {
		fixture := newControllerFixture()
		Reset(func() {
			fixture.cancel()
		})
		controller := fixture.controller

		Convey("Apply, measure, refuse, unmeasure should behave end to end", func() {
			summary, err := controller.ApplyGate("H")
			So(err, ShouldBeNil)
			So(summary.Gates, ShouldHaveLength, 1)
			So(summary.IsCollapsed, ShouldBeFalse)

			measurement, err := controller.Measure(10)
			So(err, ShouldBeNil)
			So(measurement.Result, ShouldHaveLength, 10)
			So(controller.State().IsCollapsed, ShouldBeTrue)

			_, err = controller.ApplyGate("H")
			So(errors.Is(err, ErrCollapsed), ShouldBeTrue)
			_, err = controller.PreviewGate("H")
			So(errors.Is(err, ErrCollapsed), ShouldBeTrue)
			_, err = controller.UndoGate()
			So(errors.Is(err, ErrCollapsed), ShouldBeTrue)

			restored, err := controller.Unmeasure()
			So(err, ShouldBeNil)
			So(spew.Sdump(restored), ShouldEqual, spew.Sdump(summary))
		})
	})
}

func TestControllerBroadcastMeasurements(t *testing.T) {
	Convey("Given a controller that broadcasts measurements", t, func() {
		fixture := newControllerFixture(WithBroadcastMeasurements(true), WithMaxBatchSize(10))
		subscription := fixture.subscribe(EventMeasure, EventUnmeasure)
		Reset(func() {
			fixture.cancel()
		})

		Convey("Measure and unmeasure should both be broadcast", func() {
			_, err := fixture.controller.Measure(4)
			So(err, ShouldBeNil)
			_, err = fixture.controller.Unmeasure()
			So(err, ShouldBeNil)

			first, _ := nextEvent(subscription)
			second, _ := nextEvent(subscription)
			So(first.Name, ShouldEqual, EventMeasure)
			So(second.Name, ShouldEqual, EventUnmeasure)
		})

		Convey("Batch sizes above the cap should be refused", func() {
			_, err := fixture.controller.Measure(11)
			So(errors.Is(err, ErrInvalidParameters), ShouldBeTrue)
		})
	})
}

func TestControllerOrdering(t *testing.T) {
	Convey("Given many writers racing on one controller", t, func() {
		fixture := newControllerFixture()
		subscription := fixture.group.Subscribe(1024, EventApplyGate)
		<-subscription.C
		Reset(func() {
			fixture.cancel()
		})

		const writers, perWriter = 8, 25

		Convey("Events should arrive in commit order and match the stack", func() {
			var wg sync.WaitGroup
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(symbol string) {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						_, _ = fixture.controller.ApplyGate(symbol)
						_, _ = fixture.controller.PreviewGate(symbol)
					}
				}([]string{"H", "X", "Y", "Z"}[w%4])
			}
			wg.Wait()

			So(fixture.controller.State().Gates, ShouldHaveLength, writers*perWriter)

			var last uint64
			for i := 0; i < writers*perWriter; i++ {
				event, ok := nextEvent(subscription)
				So(ok, ShouldBeTrue)
				So(event.Sequence, ShouldBeGreaterThan, last)
				last = event.Sequence
			}

			So(fixture.group.Stats().MessagesDropped, ShouldEqual, int64(0))
		})
	})
}
