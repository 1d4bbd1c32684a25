// Package harness contains the campaign engine: it resets every impairment
// variant to its impairment-free baseline, then cycles the selected variant
// between Enabled and Disabled on the configured schedule, verifying and
// reporting every transition.
package harness

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/instabilitylab/netshaker/pkg/impairment"
	"github.com/instabilitylab/netshaker/pkg/report"
)

// Observer receives campaign activity notifications, typically to drive
// metrics. Calls happen on the scheduling path and must not block.
type Observer interface {
	ObserveTransition(variant impairment.Variant, requested impairment.Status, success bool, elapsed time.Duration)
	ObserveCycle(variant impairment.Variant)
	ObserveBaselineReset(success bool)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) ObserveTransition(impairment.Variant, impairment.Status, bool, time.Duration) {
}

func (NopObserver) ObserveCycle(impairment.Variant) {}

func (NopObserver) ObserveBaselineReset(bool) {}

// Engine drives impairment campaigns. The network state is mutated only
// through its transition methods, sequentially; the engine itself keeps no
// state between calls.
type Engine struct {
	reporter report.Reporter
	clock    Clock
	logger   *logrus.Logger
	observer Observer
}

// NewEngine creates an Engine. A nil clock defaults to the system clock, a
// nil logger to the standard logger, a nil observer to NopObserver, and a
// nil reporter to a log-backed reporter.
func NewEngine(reporter report.Reporter, clock Clock, logger *logrus.Logger, observer Observer) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if reporter == nil {
		reporter = report.NewLog(logger)
	}
	return &Engine{
		reporter: reporter,
		clock:    clock,
		logger:   logger,
		observer: observer,
	}
}

// wait blocks for the given duration or until ctx is cancelled. Zero and
// negative durations return immediately.
func (e *Engine) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-e.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// report delivers a status event. Reporting failures are logged and folded
// so they cannot kill a campaign; cancellation still unwinds.
func (e *Engine) report(ctx context.Context, event report.StatusEvent) error {
	err := e.reporter.Status(ctx, event)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	e.logger.WithError(err).WithField("operation", event.Operation).Warn("status report failed")
	return nil
}

// reportInfo delivers a progress note under the same policy as report.
func (e *Engine) reportInfo(ctx context.Context, message string) error {
	err := e.reporter.Info(ctx, message)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	e.logger.WithError(err).Warn("info report failed")
	return nil
}
