package progress

import (
	"fmt"
	"testing"
	"time"
)

func TestSubscribeReceivesLiveEvents(t *testing.T) {
	b := NewBroadcaster(time.Minute)
	sub := b.Subscribe("job-1")

	b.Publish("job-1", Event{Type: EventProgress, Stage: "transcribing", Percent: 10})
	b.Publish("job-1", Event{Type: EventCompleted, Percent: 100, SessionURL: "/sessions/x"})

	var events []Event
	for ev := range sub.Events() {
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Stage != "transcribing" || events[1].Type != EventCompleted {
		t.Errorf("events = %+v", events)
	}
}

func TestSubscribeReplaysHistory(t *testing.T) {
	b := NewBroadcaster(time.Minute)
	b.Publish("job-1", Event{Type: EventProgress, Stage: "queued", Percent: 0})
	b.Publish("job-1", Event{Type: EventProgress, Stage: "transcribing", Percent: 10})

	sub := b.Subscribe("job-1")
	b.Publish("job-1", Event{Type: EventFailed, Error: "engine down"})

	var events []Event
	for ev := range sub.Events() {
		events = append(events, ev)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 2 replayed + 1 live", len(events))
	}
	if events[0].Stage != "queued" || events[2].Type != EventFailed {
		t.Errorf("events = %+v", events)
	}
}

func TestSubscribeAfterTerminalReplaysAndCloses(t *testing.T) {
	b := NewBroadcaster(time.Minute)
	b.Publish("job-1", Event{Type: EventProgress, Stage: "saving", Percent: 96})
	b.Publish("job-1", Event{Type: EventCompleted, Percent: 100})

	sub := b.Subscribe("job-1")

	var events []Event
	done := make(chan struct{})
	go func() {
		for ev := range sub.Events() {
			events = append(events, ev)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream for finished job did not close")
	}
	if len(events) != 2 || !events[1].Terminal() {
		t.Errorf("events = %+v", events)
	}
}

func TestPublishAfterTerminalIsDropped(t *testing.T) {
	b := NewBroadcaster(time.Minute)
	b.Publish("job-1", Event{Type: EventCompleted, Percent: 100})
	b.Publish("job-1", Event{Type: EventProgress, Stage: "late", Percent: 10})

	history := b.History("job-1")
	if len(history) != 1 {
		t.Errorf("history = %+v, want only the terminal event", history)
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	b := NewBroadcaster(time.Minute)
	sub := b.Subscribe("job-1")

	// Overflow the live channel without reading; Publish must keep returning.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			b.Publish("job-1", Event{Type: EventProgress, Percent: i % 100})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	// The retained log is complete even though live delivery dropped events.
	if got := len(b.History("job-1")); got != subscriberBuffer*3 {
		t.Errorf("history length = %d, want %d", got, subscriberBuffer*3)
	}
	b.Unsubscribe("job-1", sub)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcaster(time.Minute)
	sub := b.Subscribe("job-1")
	b.Unsubscribe("job-1", sub)

	// Channel is closed on unsubscribe.
	if _, ok := <-sub.Events(); ok {
		t.Error("event delivered after unsubscribe")
	}
	// Unsubscribing twice is harmless.
	b.Unsubscribe("job-1", sub)
}

func TestStreamsAreIndependentPerJob(t *testing.T) {
	b := NewBroadcaster(time.Minute)
	subA := b.Subscribe("job-a")
	subB := b.Subscribe("job-b")

	b.Publish("job-a", Event{Type: EventCompleted, Percent: 100})

	select {
	case ev := <-subA.Events():
		if ev.Type != EventCompleted {
			t.Errorf("job-a event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("job-a event not delivered")
	}

	select {
	case ev, ok := <-subB.Events():
		if ok {
			t.Errorf("job-b received job-a's event: %+v", ev)
		} else {
			t.Error("job-b stream closed by job-a's terminal event")
		}
	default:
	}
	b.Unsubscribe("job-b", subB)
}

func TestFinishedJobLogPrunedAfterRetention(t *testing.T) {
	b := NewBroadcaster(20 * time.Millisecond)
	b.Publish("job-1", Event{Type: EventCompleted, Percent: 100})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(b.History("job-1")) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("finished job log never pruned")
}

func TestUnsubscribeFromUnknownJobLeavesNoEntry(t *testing.T) {
	b := NewBroadcaster(time.Minute)

	// Subscribing to a job id that never publishes must not leave an entry
	// behind once the last subscriber detaches.
	sub := b.Subscribe("no-such-job")
	b.Unsubscribe("no-such-job", sub)

	b.mu.Lock()
	_, exists := b.streams["no-such-job"]
	b.mu.Unlock()
	if exists {
		t.Error("empty stream entry kept after last unsubscribe")
	}

	// A stream with history survives its subscribers; late viewers still
	// get the replay.
	b.Publish("job-1", Event{Type: EventProgress, Percent: 10})
	sub = b.Subscribe("job-1")
	b.Unsubscribe("job-1", sub)
	if got := b.History("job-1"); len(got) != 1 {
		t.Errorf("history after unsubscribe = %d events, want 1", len(got))
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	b := NewBroadcaster(time.Minute)
	for i := 0; i < 3; i++ {
		b.Publish("job-1", Event{Type: EventProgress, Message: fmt.Sprintf("step %d", i)})
	}

	history := b.History("job-1")
	history[0].Message = "mutated"

	if b.History("job-1")[0].Message == "mutated" {
		t.Error("History exposes internal slice")
	}
}
