package report

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/instabilitylab/netshaker/pkg/impairment"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func Test_MultiDeliversToAllReporters(t *testing.T) {
	t.Parallel()

	first := NewRecorder()
	second := NewRecorder()
	multi := NewMulti(first, NewLog(discardLogger()), second)

	event := Outcome(impairment.Offline, impairment.Enabled, true)
	if err := multi.Status(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := multi.Info(context.Background(), "cycle starting"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, recorder := range []*Recorder{first, second} {
		if diff := cmp.Diff([]StatusEvent{event}, recorder.Events()); diff != "" {
			t.Errorf("recorder %d events mismatch:\n%s", i, diff)
		}
		if diff := cmp.Diff([]string{"cycle starting"}, recorder.Infos()); diff != "" {
			t.Errorf("recorder %d infos mismatch:\n%s", i, diff)
		}
	}
}

func Test_MultiKeepsDeliveringAfterFailure(t *testing.T) {
	t.Parallel()

	deliveryErr := errors.New("coordinator unreachable")

	failing := NewRecorder()
	failing.FailWith(deliveryErr)
	healthy := NewRecorder()
	multi := NewMulti(failing, healthy)

	event := Outcome(impairment.Satellite, impairment.Disabled, false)
	err := multi.Status(context.Background(), event)
	if !errors.Is(err, deliveryErr) {
		t.Fatalf("expected %v, got %v", deliveryErr, err)
	}

	if diff := cmp.Diff([]StatusEvent{event}, healthy.Events()); diff != "" {
		t.Errorf("healthy recorder events mismatch:\n%s", diff)
	}
}

func Test_RecorderHonorsContext(t *testing.T) {
	t.Parallel()

	recorder := NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := recorder.Status(ctx, Intent(impairment.Offline, impairment.Enabled)); err == nil {
		t.Fatalf("expected error, got none")
	}
	if len(recorder.Events()) != 0 {
		t.Fatalf("expected no recorded events, got %d", len(recorder.Events()))
	}
}
