package impairment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/instabilitylab/netshaker/pkg/dropper"
	"github.com/instabilitylab/netshaker/pkg/iptables"
	"github.com/instabilitylab/netshaker/pkg/runtime"
	"github.com/instabilitylab/netshaker/pkg/tc"
)

// CellularConfig holds the link characteristics emulated by the cellular variant.
type CellularConfig struct {
	// Delay is the one-way latency added to egress packets.
	Delay time.Duration
	// Jitter is the random variation applied to Delay.
	Jitter time.Duration
	// Loss is the percentage of egress packets dropped at random, in the
	// [0, 100] range.
	Loss float64
	// Rate caps the egress bandwidth in kilobits per second. Zero leaves the
	// bandwidth unlimited.
	Rate int
	// ConnectionDropRate is the share, in the [0, 1] range, of TCP
	// connections that lose all their packets while the impairment is
	// enabled. Zero disables the connection dropper.
	ConnectionDropRate float64
}

// DefaultCellularConfig returns the characteristics of a degraded
// cellular link.
func DefaultCellularConfig() CellularConfig {
	return CellularConfig{
		Delay:              80 * time.Millisecond,
		Jitter:             30 * time.Millisecond,
		Loss:               7,
		Rate:               5000,
		ConnectionDropRate: 0.05,
	}
}

// CellularController emulates a lossy radio link. Latency comes from a netem
// qdisc and loss from a packet handler that blackholes a share of TCP
// connections, so some connections stall while the rest keep working.
type CellularController struct {
	Tc        *tc.Tc
	Iptables  *iptables.Iptables
	Executor  runtime.Executor
	Interface string
	Config    CellularConfig

	// Queue overrides the packet queue feeding the connection loss.
	// A nil Queue means intercepting real traffic through nfqueue.
	Queue dropper.Queue

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Kind implements the Controller interface.
func (c *CellularController) Kind() Variant {
	return Cellular
}

// Status reports Enabled if a netem qdisc or any packet interception rule is
// present on the interface, including artifacts left by an earlier process.
func (c *CellularController) Status(ctx context.Context) (Status, error) {
	active, err := c.Tc.Active(ctx, c.Interface)
	if err != nil {
		return Disabled, fmt.Errorf("querying qdisc: %w", err)
	}
	if active {
		return Enabled, nil
	}

	leftovers, err := c.lossRules(ctx)
	if err != nil {
		return Disabled, err
	}
	if len(leftovers) > 0 {
		return Enabled, nil
	}

	return Disabled, nil
}

// Set drives the variant to the requested status.
func (c *CellularController) Set(ctx context.Context, status Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if status == Enabled {
		return c.enable(ctx)
	}
	return c.disable(ctx)
}

func (c *CellularController) enable(ctx context.Context) error {
	active, err := c.Tc.Active(ctx, c.Interface)
	if err != nil {
		return fmt.Errorf("querying qdisc: %w", err)
	}

	// qdisc add fails if a root qdisc is already installed
	if active {
		if err := c.Tc.Clear(ctx, c.Interface); err != nil {
			return fmt.Errorf("clearing qdisc: %w", err)
		}
	}

	netem := tc.Netem{
		Delay:  c.Config.Delay,
		Jitter: c.Config.Jitter,
		Loss:   c.Config.Loss,
		Rate:   c.Config.Rate,
	}
	if err := c.Tc.Apply(ctx, c.Interface, netem); err != nil {
		return fmt.Errorf("applying qdisc: %w", err)
	}

	if c.Config.ConnectionDropRate > 0 && c.cancel == nil {
		c.startLoss()
	}

	return nil
}

func (c *CellularController) disable(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.cancel = nil
		c.done = nil
	}

	// remove interception rules left over by a process that died mid-flight
	leftovers, err := c.lossRules(ctx)
	if err != nil {
		return err
	}
	for _, rule := range leftovers {
		if err := c.Iptables.Delete(ctx, rule); err != nil {
			return fmt.Errorf("deleting leftover rule: %w", err)
		}
	}

	if err := c.Tc.Clear(ctx, c.Interface); err != nil {
		return fmt.Errorf("clearing qdisc: %w", err)
	}

	return nil
}

// startLoss launches the packet handler in the background. The handler's
// lifetime is bound to the impairment, not to the Set call that started it.
func (c *CellularController) startLoss() {
	queue := c.Queue
	if queue == nil {
		queue = dropper.NFQueue{
			Executor:  c.Executor,
			NFQConfig: dropper.RandomNFQConfig(),
			Config:    dropper.Config{Interface: c.Interface, Rate: c.Config.ConnectionDropRate},
		}
	}

	loss := dropper.Loss{
		Queue:  queue,
		Config: dropper.Config{Interface: c.Interface, Rate: c.Config.ConnectionDropRate},
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := loss.Run(runCtx); err != nil {
			logrus.WithError(err).Error("cellular connection loss ended unexpectedly")
		}
	}()

	c.cancel = cancel
	c.done = done
}

// lossRules returns the packet interception rules currently installed for
// this interface, regardless of which process installed them.
func (c *CellularController) lossRules(ctx context.Context) ([]iptables.Rule, error) {
	var rules []iptables.Rule

	for _, chain := range []string{"INPUT", "OUTPUT"} {
		specs, err := c.Iptables.List(ctx, "filter", chain)
		if err != nil {
			return nil, fmt.Errorf("listing %s rules: %w", chain, err)
		}

		for _, spec := range specs {
			fields := strings.Fields(spec)
			if !matchesInterface(fields, c.Interface) || !isLossRule(fields) {
				continue
			}

			rule, ok := iptables.ParseRuleSpec("filter", spec)
			if ok {
				rules = append(rules, rule)
			}
		}
	}

	return rules, nil
}

// matchesInterface reports whether the rule is scoped to the given interface.
func matchesInterface(fields []string, iface string) bool {
	for i := 0; i < len(fields)-1; i++ {
		if (fields[i] == "-i" || fields[i] == "-o") && fields[i+1] == iface {
			return true
		}
	}
	return false
}

// isLossRule reports whether the rule belongs to the connection loss pair:
// either the NFQUEUE redirection or the mark-matching DROP.
func isLossRule(fields []string) bool {
	var hasNFQueue, hasMark, hasDrop bool
	for _, f := range fields {
		switch f {
		case "NFQUEUE":
			hasNFQueue = true
		case "--mark":
			hasMark = true
		case "DROP":
			hasDrop = true
		}
	}

	return hasNFQueue || (hasMark && hasDrop)
}
