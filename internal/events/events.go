// Package events defines the closed set of domain events and the ordered bus
// they flow through. The broadcast hub is the only consumer; producers are the
// session manager, transaction processor, device registry, and display
// orchestrator.
package events

import (
	"sync"
	"time"
)

// Type identifies a domain event kind
type Type string

const (
	SessionUpdate      Type = "session:update"
	TransactionNew     Type = "transaction:new"
	TransactionResult  Type = "transaction:result"
	TransactionDeleted Type = "transaction:deleted"
	ScoreUpdated       Type = "score:updated"
	ScoresReset        Type = "scores:reset"
	GroupCompleted     Type = "group:completed"
	DisplayMode        Type = "display:mode"
	VideoStatus        Type = "video:status"
	DeviceUpdate       Type = "device:update"
	SyncFull           Type = "sync:full"
)

// Event is one domain event. DeviceID is set only for device-local events
// (transaction:result, sync:full replies) which must not reach other stations.
type Event struct {
	Type      Type
	Data      interface{}
	DeviceID  string
	Timestamp time.Time
}

// Handler consumes events in publish order
type Handler func(Event)

// Bus is an ordered fan-in of domain events. Publish never blocks the caller
// beyond appending to the buffer; handlers run on the bus goroutine so
// subscribers observe a single global order.
type Bus struct {
	mu       sync.Mutex
	handlers []Handler
	ch       chan Event
	done     chan struct{}
	once     sync.Once
}

// NewBus creates a bus with a bounded buffer
func NewBus() *Bus {
	b := &Bus{
		ch:   make(chan Event, 256),
		done: make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bus) run() {
	for {
		select {
		case ev := <-b.ch:
			b.mu.Lock()
			handlers := append([]Handler(nil), b.handlers...)
			b.mu.Unlock()
			for _, h := range handlers {
				h(ev)
			}
		case <-b.done:
			return
		}
	}
}

// Subscribe registers a handler for every published event
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// Publish enqueues an event. When the buffer is full the event is dropped;
// consumers reconcile through a full resync, so losing a delta is safe.
func (b *Bus) Publish(t Type, data interface{}) {
	b.publish(Event{Type: t, Data: data, Timestamp: time.Now()})
}

// PublishTo enqueues a device-local event
func (b *Bus) PublishTo(deviceID string, t Type, data interface{}) {
	b.publish(Event{Type: t, Data: data, DeviceID: deviceID, Timestamp: time.Now()})
}

func (b *Bus) publish(ev Event) {
	select {
	case b.ch <- ev:
	default:
	}
}

// Close stops the bus goroutine
func (b *Bus) Close() {
	b.once.Do(func() { close(b.done) })
}
