package profiler

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/metrics"
	"sort"
	"time"
)

// MetricsConfig configures the runtime metrics probe. Rate is the sampling
// interval.
type MetricsConfig struct {
	Enabled  bool
	FileName string
	Rate     time.Duration
}

type metricsProbe struct {
	config MetricsConfig
	stop   context.CancelFunc
	done   chan struct{}
}

// NewMetricsProbe creates a probe that samples the runtime metrics
// periodically and writes a csv summary when it is closed.
func NewMetricsProbe(config MetricsConfig) (Probe, error) {
	if config.FileName == "" {
		return nil, fmt.Errorf("metrics output file name cannot be empty")
	}

	if config.Rate <= 0 {
		return nil, fmt.Errorf("metrics sampling rate must be positive: %s", config.Rate)
	}

	return &metricsProbe{config: config}, nil
}

func (m *metricsProbe) Start() (io.Closer, error) {
	file, err := os.Create(m.config.FileName)
	if err != nil {
		return nil, fmt.Errorf("creating metrics output file %q: %w", m.config.FileName, err)
	}

	collector := newMetricsCollector(file, m.config.Rate)

	ctx, cancel := context.WithCancel(context.Background())
	m.stop = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		collector.run(ctx)
	}()

	return m, nil
}

// Close stops the sampling and waits for the summary to be written.
func (m *metricsProbe) Close() error {
	m.stop()
	<-m.done

	return nil
}

type stats struct {
	count  uint
	minval float64
	maxval float64
	total  float64
}

func (s *stats) add(value float64) {
	// the first sample seeds both extremes
	if s.count == 0 || value < s.minval {
		s.minval = value
	}
	if s.count == 0 || value > s.maxval {
		s.maxval = value
	}
	s.total += value
	s.count++
}

func (s *stats) avg() float64 {
	if s.count == 0 {
		return 0
	}
	return s.total / float64(s.count)
}

// metricsCollector accumulates per-metric stats over periodic samples of the
// runtime metrics.
type metricsCollector struct {
	out     *os.File
	rate    time.Duration
	samples []metrics.Sample
	stats   map[string]*stats
}

func newMetricsCollector(out *os.File, rate time.Duration) *metricsCollector {
	c := &metricsCollector{
		out:   out,
		rate:  rate,
		stats: map[string]*stats{},
	}

	for _, metric := range metrics.All() {
		// histograms don't fold into min/max/average
		if metric.Kind != metrics.KindUint64 && metric.Kind != metrics.KindFloat64 {
			continue
		}

		c.samples = append(c.samples, metrics.Sample{Name: metric.Name})
		c.stats[metric.Name] = &stats{}
	}

	return c
}

// run samples at the configured rate until the context is cancelled, then
// writes the summary and closes the output file.
func (m *metricsCollector) run(ctx context.Context) {
	m.sample()

	ticks := time.NewTicker(m.rate)
	defer ticks.Stop()

	for {
		select {
		case <-ticks.C:
			m.sample()
		case <-ctx.Done():
			m.generate()
			return
		}
	}
}

func (m *metricsCollector) sample() {
	metrics.Read(m.samples)

	for _, sample := range m.samples {
		var value float64
		switch sample.Value.Kind() {
		case metrics.KindFloat64:
			value = sample.Value.Float64()
		case metrics.KindUint64:
			value = float64(sample.Value.Uint64())
		default:
			continue
		}

		m.stats[sample.Name].add(value)
	}
}

func (m *metricsCollector) generate() {
	names := make([]string, 0, len(m.stats))
	for name := range m.stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(m.out, "metric,min,max,average")
	for _, name := range names {
		s := m.stats[name]
		fmt.Fprintf(m.out, "%s,%.2f,%.2f,%.2f\n", name, s.minval, s.maxval, s.avg())
	}

	_ = m.out.Close()
}
