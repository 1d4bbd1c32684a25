// Package report delivers impairment status events to the test
// coordinator. The scheduling engine emits exactly one SettingRule event
// before each transition attempt and exactly one RuleSet event after it,
// plus free-text progress notes on a separate channel.
package report

import (
	"context"

	"github.com/instabilitylab/netshaker/pkg/impairment"
)

// Operation tags a status event as a transition intent or a verified
// outcome.
type Operation string

const (
	// SettingRule announces that a transition is about to be attempted.
	SettingRule Operation = "SettingRule"
	// RuleSet carries the verified outcome of a transition attempt.
	RuleSet Operation = "RuleSet"
)

// StatusEvent describes one step of an impairment transition.
// Success is set on RuleSet events only.
type StatusEvent struct {
	Operation Operation
	Variant   impairment.Variant
	Requested impairment.Status
	Success   *bool
}

// Intent builds the SettingRule event that precedes a transition attempt.
func Intent(variant impairment.Variant, requested impairment.Status) StatusEvent {
	return StatusEvent{
		Operation: SettingRule,
		Variant:   variant,
		Requested: requested,
	}
}

// Outcome builds the RuleSet event that records a verified transition.
func Outcome(variant impairment.Variant, requested impairment.Status, success bool) StatusEvent {
	return StatusEvent{
		Operation: RuleSet,
		Variant:   variant,
		Requested: requested,
		Success:   &success,
	}
}

// Reporter is the sink for status events and progress notes. Implementations
// must honor the request context; a reporting failure is returned to the
// caller, which decides whether it is fatal.
type Reporter interface {
	Status(ctx context.Context, event StatusEvent) error
	Info(ctx context.Context, message string) error
}
