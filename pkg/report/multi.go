package report

import (
	"context"
	"errors"
)

// Multi fans every event out to a set of reporters. Delivery is attempted
// on all of them even when one fails; the errors are joined.
type Multi struct {
	reporters []Reporter
}

// NewMulti creates a reporter delivering to all the given reporters.
func NewMulti(reporters ...Reporter) *Multi {
	return &Multi{reporters: reporters}
}

// Status implements Reporter.
func (m *Multi) Status(ctx context.Context, event StatusEvent) error {
	var errs []error
	for _, r := range m.reporters {
		errs = append(errs, r.Status(ctx, event))
	}
	return errors.Join(errs...)
}

// Info implements Reporter.
func (m *Multi) Info(ctx context.Context, message string) error {
	var errs []error
	for _, r := range m.reporters {
		errs = append(errs, r.Info(ctx, message))
	}
	return errors.Join(errs...)
}
