package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/instabilitylab/netshaker/pkg/impairment"
	"github.com/instabilitylab/netshaker/pkg/report"
)

func Test_ResetBaselineAlreadyClean(t *testing.T) {
	t.Parallel()

	te := newTestEngine()
	controllers, fakes := healthyControllers()

	err := te.engine.ResetBaseline(context.Background(), controllers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []report.StatusEvent{
		report.Intent(impairment.All, impairment.Disabled),
		report.Outcome(impairment.All, impairment.Disabled, true),
	}
	if diff := cmp.Diff(expected, te.recorder.Events()); diff != "" {
		t.Errorf("event mismatch:\n%s", diff)
	}

	for variant, fake := range fakes {
		if calls := fake.SetCalls(); len(calls) != 0 {
			t.Errorf("expected no corrective calls for %s, got %v", variant, calls)
		}
	}

	if diff := cmp.Diff([]bool{true}, te.observer.Resets()); diff != "" {
		t.Errorf("observed resets mismatch:\n%s", diff)
	}
}

func Test_ResetBaselineRestoresResidualImpairment(t *testing.T) {
	t.Parallel()

	te := newTestEngine()
	controllers, fakes := healthyControllers()

	// A prior aborted run left the satellite impairment applied.
	fakes[impairment.Satellite].QueueStatus(impairment.Enabled, nil)

	err := te.engine.ResetBaseline(context.Background(), controllers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []report.StatusEvent{
		report.Intent(impairment.All, impairment.Disabled),
		report.Intent(impairment.Satellite, impairment.Disabled),
		report.Outcome(impairment.Satellite, impairment.Disabled, true),
		report.Outcome(impairment.All, impairment.Disabled, true),
	}
	if diff := cmp.Diff(expected, te.recorder.Events()); diff != "" {
		t.Errorf("event mismatch:\n%s", diff)
	}

	if diff := cmp.Diff([]impairment.Status{impairment.Disabled}, fakes[impairment.Satellite].SetCalls()); diff != "" {
		t.Errorf("corrective calls mismatch:\n%s", diff)
	}
	if calls := fakes[impairment.Offline].SetCalls(); len(calls) != 0 {
		t.Errorf("expected no corrective calls for offline, got %v", calls)
	}
}

func Test_ResetBaselineFailsWhenVariantStaysEnabled(t *testing.T) {
	t.Parallel()

	te := newTestEngine()
	controllers, fakes := healthyControllers()

	// Both the initial query and the post-corrective query report Enabled.
	fakes[impairment.Cellular].QueueStatus(impairment.Enabled, nil)
	fakes[impairment.Cellular].QueueStatus(impairment.Enabled, nil)

	err := te.engine.ResetBaseline(context.Background(), controllers)
	if !errors.Is(err, ErrInitialization) {
		t.Fatalf("expected %v, got %v", ErrInitialization, err)
	}

	expected := []report.StatusEvent{
		report.Intent(impairment.All, impairment.Disabled),
		report.Intent(impairment.Cellular, impairment.Disabled),
		report.Outcome(impairment.Cellular, impairment.Disabled, false),
		report.Outcome(impairment.All, impairment.Enabled, true),
	}
	if diff := cmp.Diff(expected, te.recorder.Events()); diff != "" {
		t.Errorf("event mismatch:\n%s", diff)
	}

	if diff := cmp.Diff([]bool{false}, te.observer.Resets()); diff != "" {
		t.Errorf("observed resets mismatch:\n%s", diff)
	}
}

func Test_ResetBaselineStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	te := newTestEngine()
	controllers, fakes := healthyControllers()

	// Offline cannot be restored; satellite is also dirty but must never be
	// touched once the baseline is known broken.
	fakes[impairment.Offline].QueueStatus(impairment.Enabled, nil)
	fakes[impairment.Offline].QueueStatus(impairment.Enabled, nil)
	fakes[impairment.Satellite].QueueStatus(impairment.Enabled, nil)

	err := te.engine.ResetBaseline(context.Background(), controllers)
	if !errors.Is(err, ErrInitialization) {
		t.Fatalf("expected %v, got %v", ErrInitialization, err)
	}

	if calls := fakes[impairment.Satellite].SetCalls(); len(calls) != 0 {
		t.Errorf("expected no corrective calls for satellite, got %v", calls)
	}
	for _, event := range te.recorder.Events() {
		if event.Variant == impairment.Satellite {
			t.Errorf("unexpected satellite event after failed offline reset: %+v", event)
		}
	}
}

func Test_ResetBaselineCorrectiveSetFailure(t *testing.T) {
	t.Parallel()

	te := newTestEngine()
	controllers, fakes := healthyControllers()

	fakes[impairment.Offline].QueueStatus(impairment.Enabled, nil)
	fakes[impairment.Offline].QueueSetError(errors.New("iptables exited 4"))

	err := te.engine.ResetBaseline(context.Background(), controllers)
	if !errors.Is(err, ErrInitialization) {
		t.Fatalf("expected %v, got %v", ErrInitialization, err)
	}
}

func Test_ResetBaselineQueryFailureIsCorrected(t *testing.T) {
	t.Parallel()

	te := newTestEngine()
	controllers, fakes := healthyControllers()

	// The initial query fails, but a corrective disable verifies clean.
	fakes[impairment.Offline].QueueStatus(impairment.Disabled, errors.New("iptables timeout"))

	err := te.engine.ResetBaseline(context.Background(), controllers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []report.StatusEvent{
		report.Intent(impairment.All, impairment.Disabled),
		report.Intent(impairment.Offline, impairment.Disabled),
		report.Outcome(impairment.Offline, impairment.Disabled, true),
		report.Outcome(impairment.All, impairment.Disabled, true),
	}
	if diff := cmp.Diff(expected, te.recorder.Events()); diff != "" {
		t.Errorf("event mismatch:\n%s", diff)
	}
}

func Test_ResetBaselineCancelled(t *testing.T) {
	t.Parallel()

	te := newTestEngine()
	controllers, _ := healthyControllers()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := te.engine.ResetBaseline(ctx, controllers)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected %v, got %v", context.Canceled, err)
	}

	if events := te.recorder.Events(); len(events) != 0 {
		t.Fatalf("expected no events after cancellation, got %d", len(events))
	}
}
