package harness

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/instabilitylab/netshaker/pkg/impairment"
	"github.com/instabilitylab/netshaker/pkg/report"
)

// applyAndVerify requests one impairment transition and confirms it took
// effect. A SettingRule event is emitted before the attempt and a RuleSet
// event after it; the outcome is successful only when the apply call
// succeeded AND a re-query shows the requested status live. Apply success
// alone is not trusted: a mechanism can accept a request while the
// underlying state did not change. Mechanism failures fold into the
// outcome; only cancellation returns an error.
func (e *Engine) applyAndVerify(ctx context.Context, controller impairment.Controller, requested impairment.Status) (bool, error) {
	variant := controller.Kind()

	if err := e.report(ctx, report.Intent(variant, requested)); err != nil {
		return false, err
	}

	start := e.clock.Now()

	applyErr := controller.Set(ctx, requested)
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if applyErr != nil {
		e.logger.WithError(applyErr).WithFields(logrus.Fields{
			"variant":   variant,
			"requested": requested.String(),
		}).Warn("impairment transition failed")
	}

	live, statusErr := controller.Status(ctx)
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if statusErr != nil {
		e.logger.WithError(statusErr).WithField("variant", variant).Warn("impairment status query failed")
	}

	success := applyErr == nil && statusErr == nil && live == requested
	e.observer.ObserveTransition(variant, requested, success, e.clock.Now().Sub(start))

	if !success && applyErr == nil && statusErr == nil {
		e.logger.WithFields(logrus.Fields{
			"variant":   variant,
			"requested": requested.String(),
			"live":      live.String(),
		}).Warn("impairment transition could not be verified")
	}

	if err := e.report(ctx, report.Outcome(variant, requested, success)); err != nil {
		return false, err
	}

	return success, nil
}
