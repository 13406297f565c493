// Package metrics provides Prometheus collectors with standardized naming
// for the logging core and its transport adapters. Collectors register on a
// package-level registry that callers expose via Handler.
package metrics

import (
	"fmt"
	"net/http"
	"regexp"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	validMetricName = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	validLabelName  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

	registryOnce sync.Once
	registry     *prometheus.Registry
)

// Registry returns the package registry, creating it on first use.
func Registry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
	return registry
}

// Handler returns an HTTP handler exposing the package registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}

// Counter is a Prometheus counter vector with validated naming.
type Counter struct {
	vec *prometheus.CounterVec
}

// CounterOpts specifies options for creating a counter.
// The full metric name is "{namespace}_{subsystem}_{name}".
type CounterOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
}

// NewCounter creates and registers a counter. Returns an error for invalid
// names or a duplicate registration.
func NewCounter(opts CounterOpts) (*Counter, error) {
	if err := validateOpts(opts.Name, opts.Labels); err != nil {
		return nil, err
	}

	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      opts.Name,
			Help:      opts.Help,
		},
		opts.Labels,
	)
	if err := Registry().Register(vec); err != nil {
		return nil, fmt.Errorf("failed to register counter: %w", err)
	}
	return &Counter{vec: vec}, nil
}

// Inc increments the counter by 1 for the given label values.
func (c *Counter) Inc(labelValues ...string) {
	c.vec.WithLabelValues(labelValues...).Inc()
}

// Histogram is a Prometheus histogram vector with validated naming.
type Histogram struct {
	vec *prometheus.HistogramVec
}

// HistogramOpts specifies options for creating a histogram.
type HistogramOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
	Buckets   []float64
}

// NewHistogram creates and registers a histogram. Buckets default to the
// Prometheus defaults when unset.
func NewHistogram(opts HistogramOpts) (*Histogram, error) {
	if err := validateOpts(opts.Name, opts.Labels); err != nil {
		return nil, err
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      opts.Name,
			Help:      opts.Help,
			Buckets:   buckets,
		},
		opts.Labels,
	)
	if err := Registry().Register(vec); err != nil {
		return nil, fmt.Errorf("failed to register histogram: %w", err)
	}
	return &Histogram{vec: vec}, nil
}

// Observe records a value for the given label values.
func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.vec.WithLabelValues(labelValues...).Observe(value)
}

func validateOpts(name string, labels []string) error {
	if !validMetricName.MatchString(name) {
		return fmt.Errorf("invalid metric name %q", name)
	}
	for _, label := range labels {
		if !validLabelName.MatchString(label) {
			return fmt.Errorf("invalid label name %q", label)
		}
	}
	return nil
}
