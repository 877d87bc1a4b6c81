package events

import "testing"

func TestPublishDeliversAndDrops(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventPositionOpened, 1)

	bus.Publish(EventPositionOpened, PositionOpened{Ticket: 1})
	bus.Publish(EventPositionOpened, PositionOpened{Ticket: 2}) // buffer full
	bus.Publish(EventPositionClosed, PositionClosed{Ticket: 1}) // no subscriber

	got := (<-ch).(PositionOpened)
	if got.Ticket != 1 {
		t.Fatalf("ticket=%d, expected 1", got.Ticket)
	}
	if bus.Dropped() != 1 {
		t.Fatalf("dropped=%d, expected 1", bus.Dropped())
	}

	unsub()
	unsub() // second call is a no-op
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
	bus.Publish(EventPositionOpened, PositionOpened{Ticket: 3})
}
