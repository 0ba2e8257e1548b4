// broadcastgroup.go
package qcomposer

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventName identifies what happened to the session.
type EventName string

const (
	EventReset       EventName = "reset"
	EventPreviewGate EventName = "previewGate"
	EventApplyGate   EventName = "applyGate"
	EventMeasure     EventName = "measure"
	EventUnmeasure   EventName = "unmeasure"

	// EventGreeting is sent once to each subscriber when it connects.
	EventGreeting EventName = "event"
)

const greetingMessage = "Hi, connected to the composer"

// Event is a single broadcast message.
type Event struct {
	Name     EventName `json:"name"`
	Payload  any       `json:"payload"`
	Sequence uint64    `json:"sequence,omitempty"`
	Time     time.Time `json:"time"`
}

/*
	Subscription is the handle returned by Subscribe.

Events arrive on C until the subscription is removed, at which point C is
closed.
*/
type Subscription struct {
	ID string
	C  <-chan Event

	ch     chan Event
	filter map[EventName]bool
}

func (subscription *Subscription) accepts(name EventName) bool {
	return len(subscription.filter) == 0 || subscription.filter[name]
}

/*
	BroadcastGroup fans events out to the current set of subscribers.

Delivery is fire-and-forget: a send to a subscriber whose buffer is full is
dropped and counted, never retried, and never blocks the sender. Subscribers
joining later see nothing that was sent before they joined.
*/
type BroadcastGroup struct {
	mu sync.RWMutex

	subscribers map[string]*Subscription
	metrics     *Metrics
	stats       BroadcastStats
	closed      bool
}

// BroadcastStats is a point-in-time copy of the group's counters.
type BroadcastStats struct {
	MessagesSent      int64
	MessagesDropped   int64
	ActiveSubscribers int
	LastBroadcastTime time.Time
}

// NewBroadcastGroup creates an empty group reporting into metrics.
func NewBroadcastGroup(metrics *Metrics) *BroadcastGroup {
	return &BroadcastGroup{
		subscribers: make(map[string]*Subscription),
		metrics:     metrics,
	}
}

/*
	Subscribe registers a new subscriber.

The greeting event is placed in the buffer before Subscribe returns, so it is
always the first thing the subscriber reads.

Parameters:
  - bufferSize: Capacity of the subscriber's buffer, at least 1
  - names: Optional event names to receive; none means all

Returns:
  - *Subscription: Handle carrying the receive channel
*/
func (bg *BroadcastGroup) Subscribe(bufferSize int, names ...EventName) *Subscription {
	if bufferSize < 1 {
		bufferSize = 1
	}

	ch := make(chan Event, bufferSize)
	subscription := &Subscription{
		ID: uuid.NewString(),
		C:  ch,
		ch: ch,
	}

	if len(names) > 0 {
		subscription.filter = make(map[EventName]bool, len(names))
		for _, name := range names {
			subscription.filter[name] = true
		}
	}

	ch <- Event{Name: EventGreeting, Payload: greetingMessage, Time: time.Now()}

	bg.mu.Lock()
	defer bg.mu.Unlock()

	if bg.closed {
		close(ch)
		return subscription
	}

	bg.subscribers[subscription.ID] = subscription
	bg.stats.ActiveSubscribers = len(bg.subscribers)
	bg.metrics.setSubscribers(len(bg.subscribers))

	return subscription
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are ignored.
func (bg *BroadcastGroup) Unsubscribe(id string) {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	subscription, exists := bg.subscribers[id]
	if !exists {
		return
	}

	close(subscription.ch)
	delete(bg.subscribers, id)
	bg.stats.ActiveSubscribers = len(bg.subscribers)
	bg.metrics.setSubscribers(len(bg.subscribers))
}

// Send delivers the event to every current subscriber that accepts it.
func (bg *BroadcastGroup) Send(event Event) {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	for _, subscription := range bg.subscribers {
		if !subscription.accepts(event.Name) {
			continue
		}

		select {
		case subscription.ch <- event:
			bg.stats.MessagesSent++
			bg.metrics.broadcastSent()
		default:
			bg.stats.MessagesDropped++
			bg.metrics.broadcastDropped()
		}
	}

	bg.stats.LastBroadcastTime = time.Now()
}

// Stats returns a copy of the group's counters.
func (bg *BroadcastGroup) Stats() BroadcastStats {
	bg.mu.RLock()
	defer bg.mu.RUnlock()
	return bg.stats
}

// Close removes every subscriber. Later subscriptions are closed immediately.
func (bg *BroadcastGroup) Close() {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	for id, subscription := range bg.subscribers {
		close(subscription.ch)
		delete(bg.subscribers, id)
	}

	bg.closed = true
	bg.stats.ActiveSubscribers = 0
	bg.metrics.setSubscribers(0)
}
