package qcomposer

import (
	"strings"
	"sync"
	"time"
)

// Preview is the result of a preview command.
type Preview struct {
	State StateView `json:"state"`
}

// Comparison is the result of a compare command.
type Comparison struct {
	Result bool `json:"result"`
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMetrics reports command outcomes and session shape into metrics.
func WithMetrics(metrics *Metrics) ControllerOption {
	return func(controller *Controller) {
		controller.metrics = metrics
	}
}

/*
WithBroadcastMeasurements makes measure and unmeasure broadcast as well.

By default they do not, while reset, apply and undo do.
*/
func WithBroadcastMeasurements(enabled bool) ControllerOption {
	return func(controller *Controller) {
		controller.broadcastMeasurements = enabled
	}
}

// WithMaxBatchSize caps the batch size Measure accepts. Zero means no cap.
func WithMaxBatchSize(limit int) ControllerOption {
	return func(controller *Controller) {
		controller.maxBatchSize = limit
	}
}

/*
Controller is the single entry point for commands against the session.

Mutating commands run under the write lock, previews under the read lock, so
previews see a stable state and never interleave with a mutation. Events are
pushed to the dispatcher before the lock is released, which keeps broadcast
order identical to commit order without making the caller wait for delivery.
*/
type Controller struct {
	mu sync.RWMutex

	session  *Session
	registry *Registry
	engine   Engine
	events   *Dispatcher
	metrics  *Metrics

	broadcastMeasurements bool
	maxBatchSize          int
}

// NewController wires a controller around an existing session.
func NewController(
	session *Session,
	registry *Registry,
	engine Engine,
	events *Dispatcher,
	opts ...ControllerOption,
) *Controller {
	controller := &Controller{
		session:  session,
		registry: registry,
		engine:   engine,
		events:   events,
	}

	for _, opt := range opts {
		opt(controller)
	}

	controller.metrics.observeSession(session)
	return controller
}

// Reset reinitializes the session. It cannot fail.
func (controller *Controller) Reset() Summary {
	startTime := time.Now()

	controller.mu.Lock()
	defer controller.mu.Unlock()

	controller.session.Reset()
	summary := controller.session.Summary()

	controller.events.Push(EventReset, summary)
	controller.committed("reset", startTime, nil)

	return summary
}

// State returns the current summary without changing anything.
func (controller *Controller) State() Summary {
	controller.mu.RLock()
	defer controller.mu.RUnlock()

	return controller.session.Summary()
}

// Gates lists the symbols of every gate the registry accepts.
func (controller *Controller) Gates() []string {
	return controller.registry.Symbols()
}

// PreviewGate evaluates a gate against the current state without committing it.
func (controller *Controller) PreviewGate(symbol string) (Preview, error) {
	startTime := time.Now()

	gate, ok := controller.registry.Lookup(symbol)
	if !ok {
		err := unknownGate(symbol)
		controller.metrics.recordCommand("previewGate", startTime, err)
		return Preview{}, err
	}

	controller.mu.RLock()
	defer controller.mu.RUnlock()

	hypothetical, err := controller.session.Preview(gate)
	controller.metrics.recordCommand("previewGate", startTime, err)
	if err != nil {
		return Preview{}, err
	}

	controller.events.Push(EventPreviewGate, controller.engine.Project(hypothetical))

	return Preview{State: controller.engine.Describe(hypothetical)}, nil
}

// ApplyGate pushes a gate onto the session.
func (controller *Controller) ApplyGate(symbol string) (Summary, error) {
	startTime := time.Now()

	gate, ok := controller.registry.Lookup(symbol)
	if !ok {
		err := unknownGate(symbol)
		controller.metrics.recordCommand("applyGate", startTime, err)
		return Summary{}, err
	}

	controller.mu.Lock()
	defer controller.mu.Unlock()

	if err := controller.session.Apply(gate); err != nil {
		controller.committed("applyGate", startTime, err)
		return Summary{}, err
	}

	controller.events.Push(EventApplyGate, controller.session.Projection())
	controller.committed("applyGate", startTime, nil)

	return controller.session.Summary(), nil
}

// UndoGate pops the last gate. It broadcasts as applyGate: observers only
// care that the state changed.
func (controller *Controller) UndoGate() (Summary, error) {
	startTime := time.Now()

	controller.mu.Lock()
	defer controller.mu.Unlock()

	if err := controller.session.Undo(); err != nil {
		controller.committed("undoGate", startTime, err)
		return Summary{}, err
	}

	controller.events.Push(EventApplyGate, controller.session.Projection())
	controller.committed("undoGate", startTime, nil)

	return controller.session.Summary(), nil
}

// Measure samples batchSize outcomes and collapses the session.
func (controller *Controller) Measure(batchSize int) (Measurement, error) {
	startTime := time.Now()

	if err := controller.validateBatchSize(batchSize); err != nil {
		controller.metrics.recordCommand("measure", startTime, err)
		return Measurement{}, err
	}

	controller.mu.Lock()
	defer controller.mu.Unlock()

	measurement, err := controller.session.Measure(batchSize)
	if err != nil {
		controller.committed("measure", startTime, err)
		return Measurement{}, err
	}

	if controller.broadcastMeasurements {
		controller.events.Push(EventMeasure, measurement)
	}
	controller.committed("measure", startTime, nil)

	return measurement, nil
}

// Unmeasure discards the measurement and returns to the pre-measurement state.
func (controller *Controller) Unmeasure() (Summary, error) {
	startTime := time.Now()

	controller.mu.Lock()
	defer controller.mu.Unlock()

	if err := controller.session.Unmeasure(); err != nil {
		controller.committed("unmeasure", startTime, err)
		return Summary{}, err
	}

	summary := controller.session.Summary()
	if controller.broadcastMeasurements {
		controller.events.Push(EventUnmeasure, summary)
	}
	controller.committed("unmeasure", startTime, nil)

	return summary, nil
}

/*
CompareStates reports whether two encoded states are the same physical state.

It is stateless: the session is neither read nor locked.

Parameters:
  - a, b: State encodings as accepted by the engine

Returns:
  - Comparison: Result is true when the states are equivalent
  - error: ErrInvalidParameters for missing or malformed operands
*/
func (controller *Controller) CompareStates(a, b string) (Comparison, error) {
	startTime := time.Now()

	comparison, err := controller.compare(a, b)
	controller.metrics.recordCommand("compareStates", startTime, err)

	return comparison, err
}

func (controller *Controller) compare(a, b string) (Comparison, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return Comparison{}, invalidParameters("Invalid parameters: two states are required")
	}

	left, err := controller.engine.ParseState(a)
	if err != nil {
		return Comparison{}, invalidParameters("Invalid parameters: %v", err)
	}

	right, err := controller.engine.ParseState(b)
	if err != nil {
		return Comparison{}, invalidParameters("Invalid parameters: %v", err)
	}

	return Comparison{Result: controller.engine.StatesEquivalent(left, right)}, nil
}

func (controller *Controller) validateBatchSize(batchSize int) error {
	if batchSize <= 0 {
		return invalidParameters("Invalid parameters: batchSize must be a positive integer")
	}

	if controller.maxBatchSize > 0 && batchSize > controller.maxBatchSize {
		return invalidParameters(
			"Invalid parameters: batchSize must not exceed %d", controller.maxBatchSize,
		)
	}

	return nil
}

// committed must be called with the write lock held.
func (controller *Controller) committed(command string, startTime time.Time, err error) {
	controller.metrics.recordCommand(command, startTime, err)
	controller.metrics.observeSession(controller.session)
}
