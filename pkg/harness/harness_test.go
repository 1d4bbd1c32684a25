package harness

import (
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/instabilitylab/netshaker/pkg/impairment"
	"github.com/instabilitylab/netshaker/pkg/report"
)

// transition is one recorded observer notification.
type transition struct {
	Variant   impairment.Variant
	Requested impairment.Status
	Success   bool
}

// fakeObserver records campaign notifications.
type fakeObserver struct {
	mu          sync.Mutex
	transitions []transition
	cycles      []impairment.Variant
	resets      []bool
}

func (o *fakeObserver) ObserveTransition(variant impairment.Variant, requested impairment.Status, success bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, transition{Variant: variant, Requested: requested, Success: success})
}

func (o *fakeObserver) ObserveCycle(variant impairment.Variant) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cycles = append(o.cycles, variant)
}

func (o *fakeObserver) ObserveBaselineReset(success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resets = append(o.resets, success)
}

func (o *fakeObserver) Transitions() []transition {
	o.mu.Lock()
	defer o.mu.Unlock()

	transitions := make([]transition, len(o.transitions))
	copy(transitions, o.transitions)
	return transitions
}

func (o *fakeObserver) Cycles() []impairment.Variant {
	o.mu.Lock()
	defer o.mu.Unlock()

	cycles := make([]impairment.Variant, len(o.cycles))
	copy(cycles, o.cycles)
	return cycles
}

func (o *fakeObserver) Resets() []bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	resets := make([]bool, len(o.resets))
	copy(resets, o.resets)
	return resets
}

// testEngine bundles an Engine with the fakes driving it.
type testEngine struct {
	engine   *Engine
	recorder *report.Recorder
	clock    *FakeClock
	observer *fakeObserver
}

func newTestEngine() testEngine {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	recorder := report.NewRecorder()
	clock := NewFakeClock()
	observer := &fakeObserver{}

	return testEngine{
		engine:   NewEngine(recorder, clock, logger, observer),
		recorder: recorder,
		clock:    clock,
		observer: observer,
	}
}

// healthyControllers builds fake controllers for every variant, all
// initially Disabled.
func healthyControllers() (impairment.Controllers, map[impairment.Variant]*impairment.FakeController) {
	fakes := map[impairment.Variant]*impairment.FakeController{}
	controllers := impairment.Controllers{}
	for _, variant := range impairment.Variants() {
		fake := impairment.NewFakeController(variant)
		fakes[variant] = fake
		controllers[variant] = fake
	}
	return controllers, fakes
}
