// Package progress aggregates pipeline state transitions into a
// monotonically ordered event stream that logging and UI collaborators
// consume independently. The reporter observes; it never mutates
// pipeline state.
package progress

import (
	"log/slog"
	"sync"
	"time"
)

// Stage identifies the pipeline component emitting an event.
type Stage string

const (
	// StageIntake covers discovery, rename, and validation.
	StageIntake Stage = "intake"
	// StageEncode covers scheduler job transitions.
	StageEncode Stage = "encode"
	// StagePackage covers segmenting and playlist generation.
	StagePackage Stage = "package"
	// StageOrganize covers output-folder relocation.
	StageOrganize Stage = "organize"
)

// Event is one pipeline state transition.
type Event struct {
	// Seq is a strictly increasing sequence number; consumers may rely
	// on it for ordering even when timestamps collide.
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Stage     Stage     `json:"stage"`
	// EntryID identifies the file or job the event concerns.
	EntryID string `json:"entry_id"`
	State   string `json:"state"`
	Detail  string `json:"detail,omitempty"`
}

// Reporter collects events and fans them out to subscribers.
type Reporter struct {
	mu     sync.Mutex
	seq    uint64
	events []Event
	subs   []chan Event
	closed bool
}

// NewReporter creates an empty reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Publish appends an event and delivers it to all subscribers. Slow
// subscribers drop events rather than blocking the pipeline.
func (r *Reporter) Publish(stage Stage, entryID, state, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.seq++
	ev := Event{
		Seq:       r.seq,
		Timestamp: time.Now(),
		Stage:     stage,
		EntryID:   entryID,
		State:     state,
		Detail:    detail,
	}
	r.events = append(r.events, ev)

	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a channel receiving every future event. The channel
// is closed by Close.
func (r *Reporter) Subscribe() <-chan Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Event, 256)
	r.subs = append(r.subs, ch)
	return ch
}

// Snapshot returns a copy of the full ordered event history.
func (r *Reporter) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Close stops accepting events and closes all subscriber channels.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for _, ch := range r.subs {
		close(ch)
	}
	r.subs = nil
}

// LogSink consumes a subscription and logs every event. It returns when
// the reporter closes. Run it in its own goroutine.
func LogSink(events <-chan Event, logger *slog.Logger) {
	for ev := range events {
		logger.Info("pipeline event",
			slog.Uint64("seq", ev.Seq),
			slog.String("stage", string(ev.Stage)),
			slog.String("entry_id", ev.EntryID),
			slog.String("state", ev.State),
			slog.String("detail", ev.Detail),
		)
	}
}
