package harness

import (
	"fmt"
	"time"

	"github.com/instabilitylab/netshaker/pkg/types/runcount"
)

// FrequencyProfile defines one scheduled impairment cadence: how long the
// impairment stays enabled, how long the network recovers between cycles,
// and how many cycles to run. Profiles are immutable once loaded.
type FrequencyProfile struct {
	// Offline is how long the impairment is held enabled per cycle.
	Offline time.Duration
	// Online is how long the network runs unimpaired after each cycle.
	Online time.Duration
	// Runs is the number of cycles, or unbounded.
	Runs runcount.Count
}

func (p FrequencyProfile) String() string {
	return fmt.Sprintf("offline %s / online %s, runs %s", p.Offline, p.Online, p.Runs.Str())
}
