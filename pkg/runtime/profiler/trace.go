package profiler

import (
	"fmt"
	"io"
	"os"
	"runtime/trace"
)

// TraceConfig configures the execution tracing probe.
type TraceConfig struct {
	Enabled  bool
	FileName string
}

type traceProbe struct {
	config TraceConfig
	file   *os.File
}

// NewTraceProbe creates a probe that records an execution trace for the
// whole run.
func NewTraceProbe(config TraceConfig) (Probe, error) {
	if config.FileName == "" {
		return nil, fmt.Errorf("trace output file name cannot be empty")
	}

	return &traceProbe{config: config}, nil
}

func (t *traceProbe) Start() (io.Closer, error) {
	file, err := os.Create(t.config.FileName)
	if err != nil {
		return nil, fmt.Errorf("creating trace output file %q: %w", t.config.FileName, err)
	}

	if err := trace.Start(file); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("starting execution trace: %w", err)
	}

	t.file = file

	return t, nil
}

func (t *traceProbe) Close() error {
	trace.Stop()

	if err := t.file.Close(); err != nil {
		return fmt.Errorf("closing trace output file %q: %w", t.config.FileName, err)
	}

	return nil
}
