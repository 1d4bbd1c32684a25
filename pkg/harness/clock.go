package harness

import "time"

// Clock abstracts scheduling time so tests can drive a campaign without
// real waiting.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// After returns a channel that receives the current time once the
	// duration has elapsed.
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// SystemClock returns the wall-clock implementation.
func SystemClock() Clock {
	return systemClock{}
}
