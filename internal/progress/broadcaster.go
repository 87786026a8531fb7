// Package progress fans out job progress events to any number of live
// subscribers without ever blocking the publishing job.
package progress

import (
	"sync"
	"time"

	"github.com/dndscribe/scribe/internal/logger"
)

// EventType names the kinds of events a job emits.
type EventType string

const (
	// EventProgress reports a stage transition.
	EventProgress EventType = "progress"
	// EventCompleted reports successful completion; it terminates the stream.
	EventCompleted EventType = "completed"
	// EventFailed reports failure; it terminates the stream.
	EventFailed EventType = "failed"
)

// Event is one entry in a job's ordered progress log.
type Event struct {
	Type    EventType `json:"-"`
	Stage   string    `json:"stage,omitempty"`
	Percent int       `json:"percent"`
	Message string    `json:"message,omitempty"`
	// SpeakersURL is set on the awaiting_speakers progress event so viewers
	// can navigate to the naming step.
	SpeakersURL string `json:"speakers_url,omitempty"`
	// SessionURL is set on the completed event.
	SessionURL string `json:"session_url,omitempty"`
	// Error is set on the failed event.
	Error string `json:"error,omitempty"`
}

// Terminal reports whether the event ends the job's stream.
func (e Event) Terminal() bool {
	return e.Type == EventCompleted || e.Type == EventFailed
}

// Subscription is one live view of a job's event stream. The channel replays
// retained history first, then delivers live events in publish order, and is
// closed after a terminal event.
type Subscription struct {
	events chan Event
}

// Events returns the subscription's event channel.
func (s *Subscription) Events() <-chan Event { return s.events }

const subscriberBuffer = 64

// DefaultRetention is how long a finished job's event log is kept for late
// subscribers. A deployment parameter, not a correctness property.
const DefaultRetention = time.Hour

type stream struct {
	history []Event
	subs    map[*Subscription]struct{}
	closed  bool
}

// Broadcaster keeps a per-job ordered event log and fans events out to
// subscribers. Publishing never blocks: slow subscribers have events dropped
// from their live channel while the retained log stays complete.
type Broadcaster struct {
	mu        sync.Mutex
	streams   map[string]*stream
	retention time.Duration
	log       *logger.Logger
}

// NewBroadcaster creates a Broadcaster. A non-positive retention uses
// DefaultRetention.
func NewBroadcaster(retention time.Duration) *Broadcaster {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Broadcaster{
		streams:   make(map[string]*stream),
		retention: retention,
		log:       logger.WithComponent("progress"),
	}
}

// Publish appends an event to the job's log and notifies current
// subscribers. It always succeeds; a publish with no subscribers only
// extends the retained log. Events published after a terminal event are
// dropped.
func (b *Broadcaster) Publish(jobID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.streams[jobID]
	if st == nil {
		st = &stream{subs: make(map[*Subscription]struct{})}
		b.streams[jobID] = st
	}
	if st.closed {
		b.log.Warn("event published after terminal event dropped",
			logger.Fields("job_id", jobID, "type", string(ev.Type)))
		return
	}

	st.history = append(st.history, ev)
	for sub := range st.subs {
		select {
		case sub.events <- ev:
		default:
			b.log.Warn("subscriber channel full, dropping event",
				logger.Fields("job_id", jobID, "type", string(ev.Type)))
		}
	}

	if ev.Terminal() {
		st.closed = true
		for sub := range st.subs {
			close(sub.events)
		}
		st.subs = make(map[*Subscription]struct{})
		time.AfterFunc(b.retention, func() { b.prune(jobID) })
	}
}

// Subscribe returns a live event stream for the job, starting from the
// beginning of the retained log. For an already-finished job the stream
// replays history and ends immediately.
func (b *Broadcaster) Subscribe(jobID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.streams[jobID]
	if st == nil {
		st = &stream{subs: make(map[*Subscription]struct{})}
		b.streams[jobID] = st
	}

	sub := &Subscription{
		events: make(chan Event, len(st.history)+subscriberBuffer),
	}
	for _, ev := range st.history {
		sub.events <- ev
	}
	if st.closed {
		close(sub.events)
		return sub
	}
	st.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches a live subscription, e.g. when a viewer disconnects
// before the job finishes. Safe to call after the stream has closed.
func (b *Broadcaster) Unsubscribe(jobID string, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.streams[jobID]
	if st == nil {
		return
	}
	if _, ok := st.subs[sub]; ok {
		delete(st.subs, sub)
		close(sub.events)
	}
	// A stream that never published only exists for its subscribers; drop it
	// with the last one so bogus job ids don't accumulate entries.
	if len(st.subs) == 0 && len(st.history) == 0 && !st.closed {
		delete(b.streams, jobID)
	}
}

// History returns a copy of the retained log for a job.
func (b *Broadcaster) History(jobID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.streams[jobID]
	if st == nil {
		return nil
	}
	out := make([]Event, len(st.history))
	copy(out, st.history)
	return out
}

func (b *Broadcaster) prune(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if st := b.streams[jobID]; st != nil && st.closed {
		delete(b.streams, jobID)
	}
}
