package runtime

import (
	"os"
	"os/signal"
)

// Signals delivers asynchronous notifications from the host. Termination
// requests must be able to interrupt in-flight impairment waits, so
// subscribers receive signals on a channel instead of installing handlers.
type Signals interface {
	// Notify returns a channel receiving the given signals. Successive
	// calls subscribe the same channel.
	Notify(...os.Signal) <-chan os.Signal
	// Reset restores the default disposition of the given signals.
	// Without arguments, all signals are reset.
	Reset(...os.Signal)
}

type osSignals struct {
	channel chan os.Signal
}

// DefaultSignals returns the Signals of the running process.
func DefaultSignals() Signals {
	return &osSignals{
		// buffered so a signal arriving before the receiver selects is not lost
		channel: make(chan os.Signal, 1),
	}
}

func (s *osSignals) Notify(signals ...os.Signal) <-chan os.Signal {
	signal.Notify(s.channel, signals...)

	return s.channel
}

func (s *osSignals) Reset(signals ...os.Signal) {
	signal.Reset(signals...)
}
