package impairment

import (
	"context"
	"fmt"

	"github.com/instabilitylab/netshaker/pkg/iptables"
)

// OfflineController takes the interface offline by dropping packets in both
// directions using iptables DROP rules. Loopback traffic is unaffected.
type OfflineController struct {
	Iptables  *iptables.Iptables
	Interface string
}

// Kind implements the Controller interface.
func (c OfflineController) Kind() Variant {
	return Offline
}

// Status reports Enabled if any of the blackout rules is installed.
func (c OfflineController) Status(ctx context.Context) (Status, error) {
	for _, r := range c.rules() {
		installed, err := c.Iptables.Check(ctx, r)
		if err != nil {
			return Disabled, fmt.Errorf("checking rule: %w", err)
		}

		if installed {
			return Enabled, nil
		}
	}

	return Disabled, nil
}

// Set installs or removes the blackout rules. Both directions of the
// transition are idempotent: enabling never duplicates a rule that is already
// installed, and disabling also removes duplicates left over by an earlier
// process that died mid-flight.
func (c OfflineController) Set(ctx context.Context, status Status) error {
	if status == Enabled {
		return c.enable(ctx)
	}
	return c.disable(ctx)
}

func (c OfflineController) enable(ctx context.Context) error {
	for _, r := range c.rules() {
		installed, err := c.Iptables.Check(ctx, r)
		if err != nil {
			return fmt.Errorf("checking rule: %w", err)
		}
		if installed {
			continue
		}

		if err := c.Iptables.Add(ctx, r); err != nil {
			return fmt.Errorf("adding rule: %w", err)
		}
	}

	return nil
}

func (c OfflineController) disable(ctx context.Context) error {
	for _, r := range c.rules() {
		// the rule may be installed more than once; the bound only guards
		// against iptables misbehaving
		for attempt := 0; attempt < 10; attempt++ {
			installed, err := c.Iptables.Check(ctx, r)
			if err != nil {
				return fmt.Errorf("checking rule: %w", err)
			}
			if !installed {
				break
			}

			if err := c.Iptables.Delete(ctx, r); err != nil {
				return fmt.Errorf("deleting rule: %w", err)
			}
		}
	}

	return nil
}

func (c OfflineController) rules() []iptables.Rule {
	return []iptables.Rule{
		{
			Table: "filter", Chain: "OUTPUT",
			Args: fmt.Sprintf("-o %s -j DROP", c.Interface),
		},
		{
			Table: "filter", Chain: "INPUT",
			Args: fmt.Sprintf("-i %s -j DROP", c.Interface),
		},
	}
}
