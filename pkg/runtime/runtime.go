// Package runtime abstracts the pieces of the host process the harness
// touches (command execution, signals, the process lock, profiling) so they
// can be replaced by fakes in tests.
package runtime

import (
	"github.com/instabilitylab/netshaker/pkg/runtime/profiler"
)

// Environment gives access to the execution environment of the process.
type Environment interface {
	// Executor returns the executor used to run external commands
	Executor() Executor
	// Signals returns the handler for process signals
	Signals() Signals
	// Lock returns the lock that guards against concurrent executions
	Lock() Lock
	// Profiler returns the profiler for the process
	Profiler() profiler.Profiler
}

// environment keeps the state of the default execution environment
type environment struct {
	executor Executor
	signals  Signals
	lock     Lock
	profiler profiler.Profiler
}

// DefaultEnvironment returns the default execution environment
func DefaultEnvironment() Environment {
	return environment{
		executor: DefaultExecutor(),
		signals:  DefaultSignals(),
		lock:     DefaultLock(),
		profiler: profiler.NewProfiler(),
	}
}

func (e environment) Executor() Executor {
	return e.executor
}

func (e environment) Signals() Signals {
	return e.signals
}

func (e environment) Lock() Lock {
	return e.lock
}

func (e environment) Profiler() profiler.Profiler {
	return e.profiler
}
