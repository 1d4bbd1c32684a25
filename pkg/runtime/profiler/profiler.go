// Package profiler starts Go's built-in diagnostics (cpu/memory profiles,
// runtime metrics, execution traces) for a harness run and flushes them to
// files when the run ends.
package profiler

import (
	"context"
	"errors"
	"io"
)

// Config selects which probes run and where each one writes.
type Config struct {
	CPU     CPUConfig
	Memory  MemoryConfig
	Metrics MetricsConfig
	Trace   TraceConfig
}

// Profiler starts the probes enabled in a Config.
type Profiler interface {
	// Start starts the enabled probes. Closing the returned Closer stops
	// them and flushes their output files.
	Start(ctx context.Context, config Config) (io.Closer, error)
}

// Probe is a single diagnostic collector.
type Probe interface {
	Start() (io.Closer, error)
}

type profiler struct {
	closers []io.Closer
}

// NewProfiler creates a Profiler.
func NewProfiler() Profiler {
	return &profiler{}
}

func (p *profiler) Start(_ context.Context, config Config) (io.Closer, error) {
	probes, err := buildProbes(config)
	if err != nil {
		return nil, err
	}

	for _, probe := range probes {
		closer, err := probe.Start()
		if err != nil {
			// stop whatever probes got started before the failing one
			_ = p.Close()
			return nil, err
		}

		p.closers = append(p.closers, closer)
	}

	return p, nil
}

func (p *profiler) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}

	p.closers = nil

	return errors.Join(errs...)
}

func buildProbes(config Config) ([]Probe, error) {
	probes := []Probe{}

	if config.CPU.Enabled {
		probe, err := NewCPUProbe(config.CPU)
		if err != nil {
			return nil, err
		}
		probes = append(probes, probe)
	}

	if config.Memory.Enabled {
		probe, err := NewMemoryProbe(config.Memory)
		if err != nil {
			return nil, err
		}
		probes = append(probes, probe)
	}

	if config.Metrics.Enabled {
		probe, err := NewMetricsProbe(config.Metrics)
		if err != nil {
			return nil, err
		}
		probes = append(probes, probe)
	}

	if config.Trace.Enabled {
		probe, err := NewTraceProbe(config.Trace)
		if err != nil {
			return nil, err
		}
		probes = append(probes, probe)
	}

	return probes, nil
}
