package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/instabilitylab/netshaker/pkg/impairment"
	"github.com/instabilitylab/netshaker/pkg/report"
)

// ErrInitialization marks a baseline that could not be verified clean.
// A campaign must never start over residual impairments.
var ErrInitialization = errors.New("impairment baseline could not be verified")

// ResetBaseline confirms every impairment variant is Disabled before a
// campaign starts, correcting any that is not. This is the only operation
// that touches variants other than the selected one: an aborted prior run
// may have left any of them impaired.
//
// The reset is framed by two events scoped to All: a SettingRule(Disabled)
// before the first query and, on success, a RuleSet(Disabled) once every
// variant is confirmed. If a variant cannot be brought to Disabled, a
// RuleSet(Enabled) is emitted instead, flagging the anomalous baseline to
// the coordinator, and ErrInitialization is returned.
func (e *Engine) ResetBaseline(ctx context.Context, controllers impairment.Controllers) error {
	if err := e.report(ctx, report.Intent(impairment.All, impairment.Disabled)); err != nil {
		return err
	}

	for _, variant := range impairment.Variants() {
		controller, err := controllers.For(variant)
		if err != nil {
			return err
		}

		live, statusErr := controller.Status(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if statusErr == nil && live == impairment.Disabled {
			continue
		}
		if statusErr != nil {
			e.logger.WithError(statusErr).WithField("variant", variant).Warn("baseline status query failed")
		} else {
			e.logger.WithField("variant", variant).Warn("residual impairment detected, restoring baseline")
		}

		restored, err := e.applyAndVerify(ctx, controller, impairment.Disabled)
		if err != nil {
			return err
		}
		if restored {
			continue
		}

		if err := e.report(ctx, report.Outcome(impairment.All, impairment.Enabled, true)); err != nil {
			return err
		}
		e.observer.ObserveBaselineReset(false)
		return fmt.Errorf("%w: %s still enabled after corrective attempt", ErrInitialization, variant)
	}

	if err := e.report(ctx, report.Outcome(impairment.All, impairment.Disabled, true)); err != nil {
		return err
	}
	e.observer.ObserveBaselineReset(true)

	return nil
}
