package impairment

import (
	"context"
	"sync"
)

// StatusResult is a scripted response for a FakeController Status call.
type StatusResult struct {
	Status Status
	Err    error
}

// FakeController implements a Controller for testing. By default it behaves
// like a healthy host: Set mutates the reported status and Status reports it.
// Failures and status mismatches can be scripted for either operation.
type FakeController struct {
	FakeVariant Variant

	mu          sync.Mutex
	live        Status
	setCalls    []Status
	setErrors   []error
	statusQueue []StatusResult
}

// NewFakeController creates a FakeController for the given variant, initially Disabled.
func NewFakeController(variant Variant) *FakeController {
	return &FakeController{
		FakeVariant: variant,
	}
}

// QueueSetError scripts the outcome of the next unscripted Set call.
// A nil error makes that call succeed.
func (f *FakeController) QueueSetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErrors = append(f.setErrors, err)
}

// QueueStatus scripts the response of the next unscripted Status call.
func (f *FakeController) QueueStatus(status Status, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusQueue = append(f.statusQueue, StatusResult{Status: status, Err: err})
}

// Kind implements the Controller interface.
func (f *FakeController) Kind() Variant {
	return f.FakeVariant
}

// Status implements the Controller interface. Scripted responses are consumed
// first; afterwards the live status is reported.
func (f *FakeController) Status(_ context.Context) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.statusQueue) > 0 {
		result := f.statusQueue[0]
		f.statusQueue = f.statusQueue[1:]
		return result.Status, result.Err
	}

	return f.live, nil
}

// Set implements the Controller interface. The call is recorded even when it
// fails. A cancelled context is honored before any scripted outcome.
func (f *FakeController) Set(ctx context.Context, status Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.setCalls = append(f.setCalls, status)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if len(f.setErrors) > 0 {
		err := f.setErrors[0]
		f.setErrors = f.setErrors[1:]
		if err != nil {
			return err
		}
	}

	f.live = status
	return nil
}

// SetCalls returns the statuses passed to Set, in order.
func (f *FakeController) SetCalls() []Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	calls := make([]Status, len(f.setCalls))
	copy(calls, f.setCalls)
	return calls
}

// Live returns the status the fake currently reports for unscripted Status calls.
func (f *FakeController) Live() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}
