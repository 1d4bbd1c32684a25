package harness

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func Test_FakeClockAdvancesOnWaits(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock()
	start := clock.Now()

	fired := <-clock.After(5 * time.Second)
	if got := start.Add(5 * time.Second); !fired.Equal(got) {
		t.Fatalf("expected wait to fire at %s, got %s", got, fired)
	}

	<-clock.After(2 * time.Second)
	if got := clock.Now(); !got.Equal(start.Add(7 * time.Second)) {
		t.Fatalf("expected clock at start+7s, got %s", got)
	}

	if diff := cmp.Diff([]time.Duration{5 * time.Second, 2 * time.Second}, clock.Waits()); diff != "" {
		t.Errorf("wait mismatch:\n%s", diff)
	}
}

func Test_FakeClockBlocksArmedWait(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock()
	clock.BlockAt(1)

	<-clock.After(time.Second)

	blocked := clock.After(2 * time.Second)
	select {
	case <-blocked:
		t.Fatal("expected armed wait to block")
	default:
	}

	select {
	case <-clock.Blocked():
	case <-time.After(time.Second):
		t.Fatal("expected Blocked to signal the armed wait")
	}

	// Time must not advance past a blocked wait.
	if got, want := clock.Now(), NewFakeClock().Now().Add(time.Second); !got.Equal(want) {
		t.Fatalf("expected clock at %s, got %s", want, got)
	}
}

func Test_SystemClockAfter(t *testing.T) {
	t.Parallel()

	clock := SystemClock()

	select {
	case <-clock.After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("expected wait to fire")
	}
}
