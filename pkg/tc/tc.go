// Package tc manages traffic control queueing disciplines by executing the `tc` binary.
package tc

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/instabilitylab/netshaker/pkg/runtime"
)

// Tc installs and removes root qdiscs on network interfaces.
type Tc struct {
	// executor is the runtime.Executor used to run the tc binary.
	executor runtime.Executor
}

// New returns a new Tc ready to use.
func New(executor runtime.Executor) *Tc {
	return &Tc{
		executor: executor,
	}
}

// Netem describes a netem qdisc emulating a degraded link.
type Netem struct {
	// Delay is the fixed latency added to egress packets.
	Delay time.Duration
	// Jitter is the random variation applied to Delay.
	Jitter time.Duration
	// Loss is the percentage of packets to drop, in the range [0, 100].
	Loss float64
	// Rate limits the egress bandwidth in kilobits per second. Zero means unlimited.
	Rate int
}

// args renders the netem parameters in the order tc expects
func (n Netem) args() string {
	args := "netem"

	if n.Delay > 0 {
		args += fmt.Sprintf(" delay %dms", n.Delay.Milliseconds())
		if n.Jitter > 0 {
			args += fmt.Sprintf(" %dms", n.Jitter.Milliseconds())
		}
	}

	if n.Loss > 0 {
		args += fmt.Sprintf(" loss %s%%", strconv.FormatFloat(n.Loss, 'f', -1, 64))
	}

	if n.Rate > 0 {
		args += fmt.Sprintf(" rate %dkbit", n.Rate)
	}

	return args
}

// Apply installs the netem qdisc as the root qdisc of the interface.
func (t *Tc) Apply(ctx context.Context, iface string, netem Netem) error {
	return t.exec(ctx, fmt.Sprintf("qdisc add dev %s root %s", iface, netem.args()))
}

// Clear removes the root qdisc of the interface, restoring the kernel default.
// Clearing an interface that has no custom root qdisc is not an error.
func (t *Tc) Clear(ctx context.Context, iface string) error {
	args := fmt.Sprintf("qdisc del dev %s root", iface)

	out, err := t.executor.Exec(ctx, "tc", strings.Split(args, " ")...)
	if err != nil {
		if isNoQdisc(out) {
			return nil
		}
		return fmt.Errorf("%w: %q", err, out)
	}

	return nil
}

// Active tells whether a netem qdisc is currently installed on the interface,
// regardless of who installed it.
func (t *Tc) Active(ctx context.Context, iface string) (bool, error) {
	out, err := t.executor.Exec(ctx, "tc", "qdisc", "show", "dev", iface)
	if err != nil {
		return false, fmt.Errorf("%w: %q", err, out)
	}

	return bytes.Contains(out, []byte("netem")), nil
}

func (t *Tc) exec(ctx context.Context, args string) error {
	out, err := t.executor.Exec(ctx, "tc", strings.Split(args, " ")...)
	if err != nil {
		return fmt.Errorf("%w: %q", err, out)
	}

	return nil
}

// isNoQdisc detects the tc diagnostics for an interface with no custom root qdisc
func isNoQdisc(out []byte) bool {
	return bytes.Contains(out, []byte("Cannot delete qdisc with handle of zero")) ||
		bytes.Contains(out, []byte("No such file or directory"))
}
