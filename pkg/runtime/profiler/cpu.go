package profiler

import (
	"fmt"
	"io"
	"os"
	"runtime/pprof"
)

// CPUConfig configures the cpu profiling probe.
type CPUConfig struct {
	Enabled  bool
	FileName string
}

type cpuProbe struct {
	config CPUConfig
	file   *os.File
}

// NewCPUProbe creates a probe that collects a cpu profile for the whole run.
func NewCPUProbe(config CPUConfig) (Probe, error) {
	if config.FileName == "" {
		return nil, fmt.Errorf("cpu profile file name cannot be empty")
	}

	return &cpuProbe{config: config}, nil
}

func (c *cpuProbe) Start() (io.Closer, error) {
	file, err := os.Create(c.config.FileName)
	if err != nil {
		return nil, fmt.Errorf("creating cpu profile file %q: %w", c.config.FileName, err)
	}

	if err := pprof.StartCPUProfile(file); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("starting cpu profiling: %w", err)
	}

	c.file = file

	return c, nil
}

func (c *cpuProbe) Close() error {
	pprof.StopCPUProfile()

	if err := c.file.Close(); err != nil {
		return fmt.Errorf("closing cpu profile file %q: %w", c.config.FileName, err)
	}

	return nil
}
