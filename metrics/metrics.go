// Package metrics exposes Prometheus metrics for accessibility checks. The
// Collector is a checker.Observer and owns its own registry, so it never
// collides with metrics registered elsewhere in the process.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/a11y/checker"
)

const namespace = "a11y"

// Collector records check outcomes.
type Collector struct {
	registry *prometheus.Registry

	checks      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inputBytes  prometheus.Histogram
	violations  *prometheus.CounterVec
	ruleFailure *prometheus.CounterVec
}

// Option configures a Collector.
type Option func(*options)

type options struct {
	registry     *prometheus.Registry
	processStats bool
	durationBkts []float64
}

// WithRegistry registers the metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithProcessCollectors adds the Go runtime and process collectors.
func WithProcessCollectors() Option {
	return func(o *options) { o.processStats = true }
}

// WithDurationBuckets overrides the check duration histogram buckets (seconds).
func WithDurationBuckets(b []float64) Option {
	return func(o *options) { o.durationBkts = b }
}

// NewCollector creates and registers the check metrics.
func NewCollector(opts ...Option) *Collector {
	o := options{
		durationBkts: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: o.registry,
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Accessibility checks by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Wall time of a check, parse included.",
			Buckets:   o.durationBkts,
		}, []string{"outcome"}),
		inputBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "input_bytes",
			Help:      "Size of submitted HTML documents.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_total",
			Help:      "Violations reported, by rule.",
		}, []string{"rule_id"}),
		ruleFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_failures_total",
			Help:      "Rule evaluations that errored or panicked and were omitted.",
		}, []string{"rule_id"}),
	}
	c.registry.MustRegister(c.checks, c.duration, c.inputBytes, c.violations, c.ruleFailure)
	if o.processStats {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// ObserveCheck implements checker.Observer.
func (c *Collector) ObserveCheck(_ context.Context, r checker.Report) {
	outcome := string(r.Outcome)
	c.checks.WithLabelValues(outcome).Inc()
	c.duration.WithLabelValues(outcome).Observe(r.Duration.Seconds())
	c.inputBytes.Observe(float64(r.InputBytes))
	if r.Result == nil {
		return
	}
	for _, v := range r.Result.Violations {
		c.violations.WithLabelValues(v.RuleID).Inc()
	}
	for _, f := range r.Result.Failures {
		c.ruleFailure.WithLabelValues(f.RuleID).Inc()
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
