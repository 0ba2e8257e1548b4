package qcomposer

import (
	"context"
	"sync"
	"time"
)

/*
Dispatcher is the ordered outbox between the controller and the broadcast
group.

Push never blocks: events are appended to an unbounded queue and a single
goroutine started by Run drains it in order. Because the controller pushes
while it still holds the session lock, queue order is commit order.
*/
type Dispatcher struct {
	mu       sync.Mutex
	pending  []Event
	sequence uint64
	wake     chan struct{}
	group    *BroadcastGroup
}

// NewDispatcher creates a dispatcher delivering into group.
func NewDispatcher(group *BroadcastGroup) *Dispatcher {
	return &Dispatcher{
		wake:  make(chan struct{}, 1),
		group: group,
	}
}

// Push stamps the event with the next sequence number and queues it.
func (dispatcher *Dispatcher) Push(name EventName, payload any) {
	dispatcher.mu.Lock()
	dispatcher.sequence++
	dispatcher.pending = append(dispatcher.pending, Event{
		Name:     name,
		Payload:  payload,
		Sequence: dispatcher.sequence,
		Time:     time.Now(),
	})
	dispatcher.mu.Unlock()

	select {
	case dispatcher.wake <- struct{}{}:
	default:
	}
}

// Run delivers queued events until ctx is cancelled.
func (dispatcher *Dispatcher) Run(ctx context.Context) {
	for {
		dispatcher.flush()

		select {
		case <-ctx.Done():
			return
		case <-dispatcher.wake:
		}
	}
}

func (dispatcher *Dispatcher) flush() {
	dispatcher.mu.Lock()
	batch := dispatcher.pending
	dispatcher.pending = nil
	dispatcher.mu.Unlock()

	for _, event := range batch {
		dispatcher.group.Send(event)
	}
}
