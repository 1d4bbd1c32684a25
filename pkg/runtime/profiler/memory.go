package profiler

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
)

// MemoryConfig configures the heap profiling probe. A positive Rate
// overrides runtime.MemProfileRate, in bytes allocated per sample.
type MemoryConfig struct {
	Enabled  bool
	FileName string
	Rate     int
}

type memoryProbe struct {
	config MemoryConfig
	file   *os.File
}

// NewMemoryProbe creates a probe that writes a heap profile when it is closed.
func NewMemoryProbe(config MemoryConfig) (Probe, error) {
	if config.Rate < 0 {
		return nil, fmt.Errorf("memory sampling rate must be non-negative: %d", config.Rate)
	}

	if config.FileName == "" {
		return nil, fmt.Errorf("memory profile file name cannot be empty")
	}

	return &memoryProbe{config: config}, nil
}

func (m *memoryProbe) Start() (io.Closer, error) {
	file, err := os.Create(m.config.FileName)
	if err != nil {
		return nil, fmt.Errorf("creating memory profile file %q: %w", m.config.FileName, err)
	}

	m.file = file

	if m.config.Rate > 0 {
		runtime.MemProfileRate = m.config.Rate
	}

	return m, nil
}

func (m *memoryProbe) Close() error {
	if err := pprof.Lookup("heap").WriteTo(m.file, 0); err != nil {
		_ = m.file.Close()
		return fmt.Errorf("writing memory profile to %q: %w", m.config.FileName, err)
	}

	if err := m.file.Close(); err != nil {
		return fmt.Errorf("closing memory profile file %q: %w", m.config.FileName, err)
	}

	return nil
}
