package impairment

import (
	"context"
	"fmt"
	"time"

	"github.com/instabilitylab/netshaker/pkg/tc"
)

// SatelliteConfig holds the link characteristics emulated by the satellite variant.
type SatelliteConfig struct {
	// Delay is the one-way latency added to egress packets.
	Delay time.Duration
	// Jitter is the random variation applied to Delay.
	Jitter time.Duration
	// Rate caps the egress bandwidth in kilobits per second. Zero leaves the
	// bandwidth unlimited.
	Rate int
}

// DefaultSatelliteConfig returns the characteristics of a geostationary
// consumer link.
func DefaultSatelliteConfig() SatelliteConfig {
	return SatelliteConfig{
		Delay:  600 * time.Millisecond,
		Jitter: 40 * time.Millisecond,
		Rate:   2000,
	}
}

// SatelliteController emulates a high-latency link by installing a netem
// qdisc on the interface.
type SatelliteController struct {
	Tc        *tc.Tc
	Interface string
	Config    SatelliteConfig
}

// Kind implements the Controller interface.
func (c SatelliteController) Kind() Variant {
	return Satellite
}

// Status reports Enabled if a netem qdisc is installed on the interface,
// including one installed by an earlier process.
func (c SatelliteController) Status(ctx context.Context) (Status, error) {
	active, err := c.Tc.Active(ctx, c.Interface)
	if err != nil {
		return Disabled, fmt.Errorf("querying qdisc: %w", err)
	}

	if active {
		return Enabled, nil
	}

	return Disabled, nil
}

// Set installs or removes the netem qdisc. Enabling replaces any netem qdisc
// already present so the link always ends up with this controller's
// parameters.
func (c SatelliteController) Set(ctx context.Context, status Status) error {
	if status == Enabled {
		return c.enable(ctx)
	}

	if err := c.Tc.Clear(ctx, c.Interface); err != nil {
		return fmt.Errorf("clearing qdisc: %w", err)
	}

	return nil
}

func (c SatelliteController) enable(ctx context.Context) error {
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
		Rate:   c.Config.Rate,
	}
	if err := c.Tc.Apply(ctx, c.Interface, netem); err != nil {
		return fmt.Errorf("applying qdisc: %w", err)
	}

	return nil
}
