// Package checker runs the accessibility pipeline: parse, evaluate every
// enabled rule, aggregate.
//
// Rules run concurrently over the immutable document, bounded by
// Config.Concurrency, and write into one slot each, so the aggregated order
// is deterministic: rule registration order, then document order. A rule
// that errors or panics is logged and left out; the others still report.
// The whole pipeline is bounded by Config.Timeout and fails closed with
// ErrTimeout.
//
// Usage:
//
//	reg, _ := rules.Default(rules.DefaultOptions())
//	c := checker.New(checker.Config{}, reg, checker.WithLogger(logger))
//	res, err := c.Check(ctx, html)
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/a11y/dom"
	"github.com/hazyhaar/a11y/kit"
	"github.com/hazyhaar/a11y/rules"
)

var (
	// ErrInputTooLarge is returned, before any parsing, for input above Config.MaxInputBytes.
	ErrInputTooLarge = errors.New("checker: input exceeds maximum size")
	// ErrTimeout is returned when the pipeline does not finish within Config.Timeout.
	ErrTimeout = errors.New("checker: evaluation deadline exceeded")
)

// Config bounds a single check.
type Config struct {
	MaxInputBytes int           // default 1 MiB
	Limits        dom.Limits    // default dom.DefaultLimits()
	Timeout       time.Duration // default 5s
	Concurrency   int           // rules evaluated in parallel, default GOMAXPROCS
}

func (c *Config) defaults() {
	if c.MaxInputBytes <= 0 {
		c.MaxInputBytes = 1 << 20
	}
	d := dom.DefaultLimits()
	if c.Limits.MaxDepth <= 0 {
		c.Limits.MaxDepth = d.MaxDepth
	}
	if c.Limits.MaxNodes <= 0 {
		c.Limits.MaxNodes = d.MaxNodes
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.GOMAXPROCS(0)
	}
}

// RuleFailure records a rule left out of a result.
type RuleFailure struct {
	RuleID string `json:"ruleId"`
	Error  string `json:"error"`
}

// Result is the outcome of one check.
type Result struct {
	// Violations is never nil.
	Violations []rules.Violation `json:"violations"`
	Failures   []RuleFailure     `json:"failures,omitempty"`

	Nodes    int           `json:"-"`
	Duration time.Duration `json:"-"`
}

// FailedRules returns the IDs of the rules in Failures.
func (r *Result) FailedRules() []string {
	ids := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		ids[i] = f.RuleID
	}
	return ids
}

// Checker evaluates HTML documents against a rule registry. It is safe for
// concurrent use; the registry can be swapped while checks are running.
type Checker struct {
	cfg       Config
	registry  atomic.Pointer[rules.Registry]
	logger    *slog.Logger
	observers []Observer
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger used for rule failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

// WithObserver registers an observer notified after every check.
func WithObserver(o Observer) Option {
	return func(c *Checker) { c.observers = append(c.observers, o) }
}

// New creates a Checker over reg.
func New(cfg Config, reg *rules.Registry, opts ...Option) *Checker {
	cfg.defaults()
	c := &Checker{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	if reg == nil {
		reg = rules.NewRegistry()
	}
	c.registry.Store(reg)
	return c
}

// Config returns the effective configuration.
func (c *Checker) Config() Config { return c.cfg }

// Registry returns the registry used by new checks.
func (c *Checker) Registry() *rules.Registry { return c.registry.Load() }

// SetRegistry atomically replaces the registry. Checks already running keep
// the registry they started with.
func (c *Checker) SetRegistry(reg *rules.Registry) {
	if reg != nil {
		c.registry.Store(reg)
	}
}

// Check evaluates src. Empty input yields an empty result. Oversized input
// fails with ErrInputTooLarge, too deep or too large a tree with
// dom.ErrTooDeep or dom.ErrTooManyNodes, an expired deadline with
// ErrTimeout. No partial result is returned with an error.
func (c *Checker) Check(ctx context.Context, src string) (*Result, error) {
	start := time.Now()
	res, err := c.check(ctx, src)
	if res != nil {
		res.Duration = time.Since(start)
	}
	c.notify(ctx, src, res, err, time.Since(start))
	return res, err
}

func (c *Checker) check(ctx context.Context, src string) (*Result, error) {
	if len(src) > c.cfg.MaxInputBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrInputTooLarge, len(src), c.cfg.MaxInputBytes)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	reg := c.registry.Load()
	go func() {
		res, err := c.run(ctx, reg, src)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, c.mapErr(ctx, out.err)
		}
		return out.res, nil
	case <-ctx.Done():
		return nil, c.mapErr(ctx, ctx.Err())
	}
}

func (c *Checker) mapErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, c.cfg.Timeout)
	}
	return err
}

func (c *Checker) run(ctx context.Context, reg *rules.Registry, src string) (*Result, error) {
	doc, err := dom.Parse(ctx, src, c.cfg.Limits)
	if err != nil {
		return nil, err
	}

	enabled := reg.Enabled()
	slots := make([][]rules.Violation, len(enabled))
	errs := make([]error, len(enabled))

	// A plain group: one failing rule must not cancel the others.
	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for i, r := range enabled {
		g.Go(func() error {
			slots[i], errs[i] = evaluate(ctx, r, doc)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Nodes: doc.Len()}
	total := 0
	for i, r := range enabled {
		if errs[i] != nil {
			c.logger.Warn("checker: rule failed, contribution omitted",
				"rule_id", r.ID(), "error", errs[i], "trace_id", kit.GetTraceID(ctx))
			res.Failures = append(res.Failures, RuleFailure{RuleID: r.ID(), Error: errs[i].Error()})
			slots[i] = nil
			continue
		}
		total += len(slots[i])
	}
	res.Violations = make([]rules.Violation, 0, total)
	for _, vs := range slots {
		sort.SliceStable(vs, func(a, b int) bool { return vs[a].Index < vs[b].Index })
		res.Violations = append(res.Violations, vs...)
	}
	return res, nil
}

// evaluate runs one rule, converting a panic into an error.
func evaluate(ctx context.Context, r rules.Rule, doc *dom.Document) (vs []rules.Violation, err error) {
	defer func() {
		if p := recover(); p != nil {
			vs, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Evaluate(ctx, doc)
}
