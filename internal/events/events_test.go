package events

import (
	"testing"
	"time"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	got := make(chan Event, 10)
	bus.Subscribe(func(ev Event) { got <- ev })

	bus.Publish(SessionUpdate, "first")
	bus.Publish(ScoreUpdated, "second")
	bus.Publish(TransactionNew, "third")

	want := []Type{SessionUpdate, ScoreUpdated, TransactionNew}
	for i, wantType := range want {
		select {
		case ev := <-got:
			if ev.Type != wantType {
				t.Errorf("event %d: got %s, want %s", i, ev.Type, wantType)
			}
			if ev.Timestamp.IsZero() {
				t.Error("event missing timestamp")
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	a := make(chan Event, 1)
	b := make(chan Event, 1)
	bus.Subscribe(func(ev Event) { a <- ev })
	bus.Subscribe(func(ev Event) { b <- ev })

	bus.Publish(DeviceUpdate, nil)

	for i, ch := range []chan Event{a, b} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestPublishToCarriesDeviceID(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	got := make(chan Event, 1)
	bus.Subscribe(func(ev Event) { got <- ev })

	bus.PublishTo("station-1", TransactionResult, "outcome")

	select {
	case ev := <-got:
		if ev.DeviceID != "station-1" {
			t.Errorf("got device id %q, want station-1", ev.DeviceID)
		}
		if ev.Type != TransactionResult {
			t.Errorf("got type %s, want %s", ev.Type, TransactionResult)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishAfterCloseDoesNotPanic(t *testing.T) {
	bus := NewBus()
	bus.Close()
	bus.Close() // idempotent
	bus.Publish(SessionUpdate, nil)
}
