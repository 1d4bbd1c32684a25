package runtime

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/instabilitylab/netshaker/pkg/runtime/profiler"
)

// FakeExecutor is an instance of an Executor that keeps the history
// of commands for inspection and returns the predefined results.
// Even when it allows multiple invocations to Exec, it only allows
// setting one err and output which are returned on each call. If different
// results are needed for each invocation, [CallbackExecutor] may be a
// better alternative
type FakeExecutor struct {
	invocations int
	commands    []string
	err         error
	output      []byte
}

// NewFakeExecutor creates a new instance of an Executor
func NewFakeExecutor(output []byte, err error) *FakeExecutor {
	return &FakeExecutor{
		err:    err,
		output: output,
	}
}

func (p *FakeExecutor) updateHistory(cmd string, args ...string) {
	cmdLine := cmd + " " + strings.Join(args, " ")
	p.commands = append(p.commands, cmdLine)
	p.invocations++
}

// Exec mocks the execution of a command, returning the preset results.
// A cancelled context is honored before the fake results are returned,
// matching the behavior of a real executor.
func (p *FakeExecutor) Exec(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	p.updateHistory(cmd, args...)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return p.output, p.err
}

// Invoked indicates if the Exec command was invoked at least once
func (p *FakeExecutor) Invoked() bool {
	return p.invocations > 0
}

// Cmd returns the value of the last command passed to the last invocation
func (p *FakeExecutor) Cmd() string {
	if p.invocations == 0 {
		return ""
	}
	return p.commands[p.invocations-1]
}

// CmdHistory returns the history of commands executed. If Invocations is 0, returns
// an empty array
func (p *FakeExecutor) CmdHistory() []string {
	return p.commands
}

// Invocations returns the number of invocations to the Exec function
func (p *FakeExecutor) Invocations() int {
	return p.invocations
}

// Reset clears the history of invocations to the FakeExecutor
func (p *FakeExecutor) Reset() {
	p.invocations = 0
	p.commands = []string{}
}

// ExecCallback defines a function that can receive the forward of an Exec invocation
// The function must return the output of the invocation and the execution error, if any
type ExecCallback func(cmd string, args ...string) ([]byte, error)

// CallbackExecutor is a fake Executor that forwards the invocations
// to a function that can dynamically return error and output.
type CallbackExecutor struct {
	FakeExecutor
	callback ExecCallback
}

// Exec forwards invocation to the callback
func (c *CallbackExecutor) Exec(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	// update command history but ignore outputs
	c.FakeExecutor.updateHistory(cmd, args...)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	// return outputs from callback
	return c.callback(cmd, args...)
}

// NewCallbackExecutor returns an instance of a CallbackExecutor
func NewCallbackExecutor(callback ExecCallback) *CallbackExecutor {
	return &CallbackExecutor{
		callback: callback,
	}
}

// FakeProfiler is a noop profiler for testing
type FakeProfiler struct {
	started bool
	stopped bool
}

// NewFakeProfiler creates a new FakeProfiler
func NewFakeProfiler() *FakeProfiler {
	return &FakeProfiler{}
}

// Start updates the FakeProfiler to register it was started
func (p *FakeProfiler) Start(context.Context, profiler.Config) (io.Closer, error) {
	p.started = true
	return p, nil
}

// Close updates the FakeProfiler to register it was stopped
func (p *FakeProfiler) Close() error {
	p.stopped = true
	return nil
}

// FakeLock implements a Lock for testing
type FakeLock struct {
	// Busy makes Acquire report the lock as held by another process
	Busy bool

	locked   bool
	released bool
	owner    int
}

// NewFakeLock returns a default FakeLock for testing
func NewFakeLock() *FakeLock {
	return &FakeLock{}
}

// Acquire implements Acquire method from Lock interface
func (p *FakeLock) Acquire() (bool, error) {
	if p.Busy {
		return false, nil
	}
	p.locked = true
	p.owner = os.Getpid()
	return true, nil
}

// Release implements Release method from Lock interface
func (p *FakeLock) Release() error {
	p.released = true
	return nil
}

// Owner implements Owner method from Lock interface
func (p *FakeLock) Owner() int {
	if !p.locked {
		return -1
	}

	return p.owner
}

// Released indicates if the lock was released
func (p *FakeLock) Released() bool {
	return p.released
}

// FakeSignal implements fake signal handling for testing
type FakeSignal struct {
	channel chan os.Signal
}

// NewFakeSignal returns a FakeSignal
func NewFakeSignal() *FakeSignal {
	return &FakeSignal{
		channel: make(chan os.Signal),
	}
}

// Notify implements Signals' interface Notify method
func (f *FakeSignal) Notify(_ ...os.Signal) <-chan os.Signal {
	return f.channel
}

// Reset implements Signals' interface Reset method. It is noop.
func (f *FakeSignal) Reset(_ ...os.Signal) {
	// noop
}

// Send sends the given signal to the signal notification channel if the signal was
// previously specified in a call to Notify
func (f *FakeSignal) Send(signal os.Signal) {
	f.channel <- signal
}

// FakeEnvironment holds the state of a fake execution environment for testing
type FakeEnvironment struct {
	FakeExecutor *FakeExecutor
	FakeProfiler *FakeProfiler
	FakeLock     *FakeLock
	FakeSignal   *FakeSignal
}

// NewFakeEnvironment creates a default FakeEnvironment
func NewFakeEnvironment() *FakeEnvironment {
	return &FakeEnvironment{
		FakeExecutor: NewFakeExecutor(nil, nil),
		FakeProfiler: NewFakeProfiler(),
		FakeLock:     NewFakeLock(),
		FakeSignal:   NewFakeSignal(),
	}
}

// Executor implements Executor method from Environment interface
func (f *FakeEnvironment) Executor() Executor {
	return f.FakeExecutor
}

// Signals implements Signals method from Environment interface
func (f *FakeEnvironment) Signals() Signals {
	return f.FakeSignal
}

// Lock implements Lock method from Environment interface
func (f *FakeEnvironment) Lock() Lock {
	return f.FakeLock
}

// Profiler implements Profiler method from Environment interface
func (f *FakeEnvironment) Profiler() profiler.Profiler {
	return f.FakeProfiler
}
