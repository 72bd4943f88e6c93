package events

import (
	"sync"
	"testing"
	"time"
)

func TestSubscribeReceivesMatchingEvents(t *testing.T) {
	bus := NewEventBus()
	received := make(chan *Event, 1)

	bus.Subscribe(EventSessionStarted, func(e *Event) {
		received <- e
	})

	bus.Publish(&Event{Type: EventSessionStarted, SessionID: "s1"})

	select {
	case e := <-received:
		if e.SessionID != "s1" {
			t.Errorf("SessionID = %q, want s1", e.SessionID)
		}
	case <-time.After(time.Second):
		t.Fatal("listener never received event")
	}
}

func TestSubscribeIgnoresOtherEvents(t *testing.T) {
	bus := NewEventBus()
	received := make(chan *Event, 1)

	bus.Subscribe(EventSessionStarted, func(e *Event) {
		received <- e
	})

	bus.Publish(&Event{Type: EventSessionCompleted})

	select {
	case <-received:
		t.Fatal("listener received event of wrong type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	var mu sync.Mutex
	var got []EventType

	done := make(chan struct{}, 2)
	bus.SubscribeAll(func(e *Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
		done <- struct{}{}
	})

	bus.Publish(&Event{Type: EventSessionStarted})
	bus.Publish(&Event{Type: EventAudioActivated})

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("global listener missed events")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Errorf("global listener saw %d events, want 2", len(got))
	}
}

func TestPublishSyncOrdering(t *testing.T) {
	bus := NewEventBus()
	var got []string

	bus.Subscribe(EventRecognitionStateChanged, func(e *Event) {
		data := e.Data.(RecognitionStateChangedData)
		got = append(got, data.Previous+">"+data.Next)
	})

	// PublishSync runs on the caller goroutine, so no synchronization needed.
	bus.PublishSync(&Event{
		Type: EventRecognitionStateChanged,
		Data: RecognitionStateChangedData{Previous: "idle", Next: "listening"},
	})
	bus.PublishSync(&Event{
		Type: EventRecognitionStateChanged,
		Data: RecognitionStateChangedData{Previous: "listening", Next: "processing"},
	})

	want := []string{"idle>listening", "listening>processing"}
	if len(got) != len(want) {
		t.Fatalf("got %d transitions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPanickingListenerDoesNotBlockOthers(t *testing.T) {
	bus := NewEventBus()
	received := make(chan struct{}, 1)

	bus.SubscribeAll(func(*Event) { panic("bad listener") })
	bus.SubscribeAll(func(*Event) { received <- struct{}{} })

	bus.Publish(&Event{Type: EventSessionStarted})

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("second listener starved by panicking listener")
	}
}

func TestClear(t *testing.T) {
	bus := NewEventBus()
	received := make(chan struct{}, 1)
	bus.SubscribeAll(func(*Event) { received <- struct{}{} })

	bus.Clear()
	bus.Publish(&Event{Type: EventSessionStarted})

	select {
	case <-received:
		t.Fatal("cleared listener still received event")
	case <-time.After(50 * time.Millisecond):
	}
}
