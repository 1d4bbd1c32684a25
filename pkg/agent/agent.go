// Package agent supervises campaign execution on the host: it enforces a
// single running instance, wires profiling, and turns termination signals
// into an orderly, grace-bounded shutdown.
package agent

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/instabilitylab/netshaker/pkg/runtime"
	"github.com/instabilitylab/netshaker/pkg/runtime/profiler"
)

// defaultShutdownGrace bounds the shutdown wait when the config leaves it
// unset.
const defaultShutdownGrace = 5 * time.Second

// Config maintains the configuration for the execution of the agent
type Config struct {
	Profiler *profiler.Config
	// ShutdownGrace bounds how long a task gets to unwind after a signal or
	// cancellation before the agent stops waiting for it.
	ShutdownGrace time.Duration
}

// Task is a unit of campaign work run under the agent's supervision. It must
// honor context cancellation, since that is how shutdown is requested.
type Task func(ctx context.Context) error

// Agent maintains the state required for executing a task
type Agent struct {
	env    runtime.Environment
	config Config
	logger *logrus.Logger
}

// New builds an instance of an agent
func New(env runtime.Environment, config Config, logger *logrus.Logger) *Agent {
	if config.Profiler == nil {
		config.Profiler = &profiler.Config{}
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = defaultShutdownGrace
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Agent{
		env:    env,
		config: config,
		logger: logger,
	}
}

// Run executes the task while watching for termination signals. On a signal
// the task's context is cancelled and Run waits up to the shutdown grace for
// it to unwind; a task that unwinds orderly makes the shutdown clean. A
// cancellation of the parent context is propagated to the caller.
func (a *Agent) Run(ctx context.Context, task Task) error {
	signals := a.env.Signals().Notify(syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer a.env.Signals().Reset()

	acquired, err := a.env.Lock().Acquire()
	if err != nil {
		return fmt.Errorf("could not acquire process lock: %w", err)
	}
	if !acquired {
		return errors.New("another instance of the agent is already running")
	}

	defer func() {
		_ = a.env.Lock().Release()
	}()

	prof, err := a.env.Profiler().Start(ctx, *a.config.Profiler)
	if err != nil {
		return fmt.Errorf("could not create profiler: %w", err)
	}

	// ensure the profiler is closed even if the task fails
	defer func() {
		_ = prof.Close()
	}()

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// run the task in a goroutine to keep watching for signals
	done := make(chan error, 1)
	go func() {
		done <- task(taskCtx)
	}()

	select {
	case err := <-done:
		return err
	case s := <-signals:
		a.logger.WithField("signal", s.String()).Warn("received signal, shutting down")
		cancel()
		return a.drain(done, fmt.Sprintf("signal %q", s))
	case <-ctx.Done():
		if err := a.drain(done, "cancellation"); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// drain waits for the task to unwind after its context was cancelled. An
// unwind with context.Canceled counts as orderly; the grace period bounds
// the wait so a stuck task cannot hold the shutdown hostage.
func (a *Agent) drain(done <-chan error, reason string) error {
	timer := time.NewTimer(a.config.ShutdownGrace)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("task did not stop within %s after %s", a.config.ShutdownGrace, reason)
	}
}
