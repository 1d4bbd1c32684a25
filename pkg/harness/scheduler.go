package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/instabilitylab/netshaker/pkg/impairment"
)

// RunCycles executes the profile sequence against one controller. Each
// profile runs its configured number of cycles, strictly sequentially:
// enable, hold offline, disable, hold online. Only the first profile is
// preceded by startDelay; subsequent profiles start immediately.
//
// A failed transition verification does not stop the schedule: halting
// would leave the network in the last-set state indefinitely, so the cycle
// still advances to its next phase. Cancellation aborts the remaining
// cycles and profiles immediately and does NOT force a final disable; the
// network stays in its last-set state, which is logged loudly when that
// state may be impaired.
func (e *Engine) RunCycles(ctx context.Context, controller impairment.Controller, profiles []FrequencyProfile, startDelay time.Duration) error {
	variant := controller.Kind()
	last := impairment.Disabled

	err := func() error {
		delay := startDelay
		for i, profile := range profiles {
			if err := e.wait(ctx, delay); err != nil {
				return err
			}
			delay = 0

			message := fmt.Sprintf("starting %s profile %d/%d: %s", variant, i+1, len(profiles), profile)
			if err := e.reportInfo(ctx, message); err != nil {
				return err
			}

			for completed := 0; !profile.Runs.Reached(completed); completed++ {
				if _, err := e.applyAndVerify(ctx, controller, impairment.Enabled); err != nil {
					return err
				}
				last = impairment.Enabled

				if err := e.wait(ctx, profile.Offline); err != nil {
					return err
				}

				disabled, err := e.applyAndVerify(ctx, controller, impairment.Disabled)
				if err != nil {
					return err
				}
				if disabled {
					last = impairment.Disabled
				}

				if err := e.wait(ctx, profile.Online); err != nil {
					return err
				}

				e.observer.ObserveCycle(variant)
			}
		}
		return nil
	}()

	if err != nil {
		if last == impairment.Enabled {
			e.logger.WithField("variant", variant).Warn("campaign aborted with impairment possibly active, not reverting")
		} else {
			e.logger.WithField("variant", variant).Info("campaign aborted")
		}
		return err
	}

	return nil
}
