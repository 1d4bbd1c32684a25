package report

import (
	"context"
	"sync"
)

// Recorder is a Reporter that captures events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []StatusEvent
	infos  []string
	err    error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every subsequent delivery return err. Events are still
// recorded so tests can assert what was attempted.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Status implements Reporter.
func (r *Recorder) Status(ctx context.Context, event StatusEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

// Info implements Reporter.
func (r *Recorder) Info(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, message)
	return r.err
}

// Events returns a copy of the status events recorded so far.
func (r *Recorder) Events() []StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]StatusEvent, len(r.events))
	copy(events, r.events)
	return events
}

// Infos returns a copy of the progress notes recorded so far.
func (r *Recorder) Infos() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]string, len(r.infos))
	copy(infos, r.infos)
	return infos
}
