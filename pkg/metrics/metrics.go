// Package metrics exposes campaign activity as Prometheus collectors. The
// scheduling engine drives the collector through narrow observer methods so
// it never depends on the metrics wiring directly.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/instabilitylab/netshaker/pkg/impairment"
)

// Result label values for transition and baseline outcomes.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Collector bundles the Prometheus metrics of a campaign run and provides
// the handler serving them.
type Collector struct {
	gatherer prometheus.Gatherer

	Transitions        *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec
	Cycles             *prometheus.CounterVec
	BaselineResets     *prometheus.CounterVec
	ImpairmentActive   *prometheus.GaugeVec
}

// NewCollector registers the campaign metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netshaker_transitions_total",
		Help: "Total number of verified impairment transitions, labeled by variant, requested status, and result.",
	}, []string{"variant", "requested", "result"}), "netshaker_transitions_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netshaker_transition_duration_seconds",
		Help:    "Time spent applying and verifying one impairment transition.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"variant", "requested"}), "netshaker_transition_duration_seconds")
	if err != nil {
		return nil, err
	}

	cycles, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netshaker_cycles_total",
		Help: "Total number of completed enable/disable cycles, labeled by variant.",
	}, []string{"variant"}), "netshaker_cycles_total")
	if err != nil {
		return nil, err
	}

	resets, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netshaker_baseline_resets_total",
		Help: "Total number of baseline reset attempts, labeled by result.",
	}, []string{"result"}), "netshaker_baseline_resets_total")
	if err != nil {
		return nil, err
	}

	active, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netshaker_impairment_active",
		Help: "Whether an impairment variant is currently applied (1) or not (0).",
	}, []string{"variant"}), "netshaker_impairment_active")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:           gatherer,
		Transitions:        transitions,
		TransitionDuration: durations,
		Cycles:             cycles,
		BaselineResets:     resets,
		ImpairmentActive:   active,
	}, nil
}

// ObserveTransition records one verified transition attempt.
func (c *Collector) ObserveTransition(variant impairment.Variant, requested impairment.Status, success bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Transitions.WithLabelValues(string(variant), requested.String(), resultLabel(success)).Inc()
	c.TransitionDuration.WithLabelValues(string(variant), requested.String()).Observe(elapsed.Seconds())
	if success {
		value := 0.0
		if requested == impairment.Enabled {
			value = 1.0
		}
		c.ImpairmentActive.WithLabelValues(string(variant)).Set(value)
	}
}

// ObserveCycle records one completed enable/disable cycle.
func (c *Collector) ObserveCycle(variant impairment.Variant) {
	if c == nil {
		return
	}
	c.Cycles.WithLabelValues(string(variant)).Inc()
}

// ObserveBaselineReset records one baseline reset attempt.
func (c *Collector) ObserveBaselineReset(success bool) {
	if c == nil {
		return
	}
	c.BaselineResets.WithLabelValues(resultLabel(success)).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func resultLabel(success bool) string {
	if success {
		return resultSuccess
	}
	return resultFailure
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
