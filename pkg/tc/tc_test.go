package tc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/instabilitylab/netshaker/pkg/runtime"
)

func Test_Apply(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		title        string
		netem        Netem
		expectedCmds []string
	}{
		{
			title: "delay with jitter",
			netem: Netem{
				Delay:  600 * time.Millisecond,
				Jitter: 100 * time.Millisecond,
			},
			expectedCmds: []string{
				"tc qdisc add dev eth0 root netem delay 600ms 100ms",
			},
		},
		{
			title: "delay without jitter",
			netem: Netem{
				Delay: 250 * time.Millisecond,
			},
			expectedCmds: []string{
				"tc qdisc add dev eth0 root netem delay 250ms",
			},
		},
		{
			title: "loss only",
			netem: Netem{
				Loss: 7.5,
			},
			expectedCmds: []string{
				"tc qdisc add dev eth0 root netem loss 7.5%",
			},
		},
		{
			title: "delay jitter loss and rate",
			netem: Netem{
				Delay:  600 * time.Millisecond,
				Jitter: 50 * time.Millisecond,
				Loss:   2,
				Rate:   256,
			},
			expectedCmds: []string{
				"tc qdisc add dev eth0 root netem delay 600ms 50ms loss 2% rate 256kbit",
			},
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.title, func(t *testing.T) {
			t.Parallel()

			executor := runtime.NewFakeExecutor(nil, nil)

			err := New(executor).Apply(context.Background(), "eth0", tc.netem)
			if err != nil {
				t.Fatalf("failed with error: %v", err)
			}

			if diff := cmp.Diff(tc.expectedCmds, executor.CmdHistory()); diff != "" {
				t.Fatalf("Actual commands differ from expected:\n%s", diff)
			}
		})
	}
}

func Test_Clear(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		title       string
		fakeOutput  []byte
		fakeError   error
		expectError bool
	}{
		{
			title: "qdisc removed",
		},
		{
			title:      "no qdisc installed",
			fakeOutput: []byte("Error: Cannot delete qdisc with handle of zero."),
			fakeError:  fmt.Errorf("exit status 2"),
		},
		{
			title:      "no qdisc installed on older kernels",
			fakeOutput: []byte("RTNETLINK answers: No such file or directory"),
			fakeError:  fmt.Errorf("exit status 2"),
		},
		{
			title:       "interface does not exist",
			fakeOutput:  []byte(`Cannot find device "eth0"`),
			fakeError:   fmt.Errorf("exit status 1"),
			expectError: true,
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.title, func(t *testing.T) {
			t.Parallel()

			executor := runtime.NewFakeExecutor(tc.fakeOutput, tc.fakeError)

			err := New(executor).Clear(context.Background(), "eth0")
			if tc.expectError && err == nil {
				t.Fatalf("should had failed")
			}

			if !tc.expectError && err != nil {
				t.Fatalf("failed with error: %v", err)
			}

			expectedCmds := []string{"tc qdisc del dev eth0 root"}
			if diff := cmp.Diff(expectedCmds, executor.CmdHistory()); diff != "" {
				t.Fatalf("Actual commands differ from expected:\n%s", diff)
			}
		})
	}
}

func Test_Active(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		title       string
		fakeOutput  []byte
		fakeError   error
		expected    bool
		expectError bool
	}{
		{
			title:      "netem installed",
			fakeOutput: []byte("qdisc netem 8001: root refcnt 2 limit 1000 delay 600ms  100ms\n"),
			expected:   true,
		},
		{
			title:      "default qdisc",
			fakeOutput: []byte("qdisc fq_codel 0: root refcnt 2 limit 10240p flows 1024\n"),
			expected:   false,
		},
		{
			title:       "tc fails",
			fakeOutput:  []byte(`Cannot find device "eth0"`),
			fakeError:   fmt.Errorf("exit status 1"),
			expectError: true,
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.title, func(t *testing.T) {
			t.Parallel()

			executor := runtime.NewFakeExecutor(tc.fakeOutput, tc.fakeError)

			active, err := New(executor).Active(context.Background(), "eth0")
			if tc.expectError && err == nil {
				t.Fatalf("should had failed")
			}

			if !tc.expectError && err != nil {
				t.Fatalf("failed with error: %v", err)
			}

			if active != tc.expected {
				t.Fatalf("expected %t got %t", tc.expected, active)
			}
		})
	}
}
