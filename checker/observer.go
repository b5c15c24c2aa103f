package checker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/hazyhaar/a11y/dom"
)

// Outcome labels a finished check.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeTooLarge  Outcome = "too_large"
	OutcomeRejected  Outcome = "rejected" // too deep or too many nodes
	OutcomeTimeout   Outcome = "timeout"
	OutcomeCanceled  Outcome = "canceled"
	OutcomeError     Outcome = "error"
	OutcomeRuleError Outcome = "rule_error" // succeeded with isolated rule failures
)

// Report describes one finished check for observers. It never carries the
// submitted HTML, only its size and digest.
type Report struct {
	Outcome    Outcome
	InputBytes int
	InputHash  string // hex SHA-256 of the input
	Result     *Result
	Err        error
	Duration   time.Duration
}

// Observer is notified synchronously after every check; implementations
// must not block.
type Observer interface {
	ObserveCheck(ctx context.Context, r Report)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, r Report)

// ObserveCheck calls f.
func (f ObserverFunc) ObserveCheck(ctx context.Context, r Report) { f(ctx, r) }

// OutcomeOf classifies a Check result.
func OutcomeOf(res *Result, err error) Outcome {
	switch {
	case err == nil && res != nil && len(res.Failures) > 0:
		return OutcomeRuleError
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrInputTooLarge):
		return OutcomeTooLarge
	case errors.Is(err, dom.ErrTooDeep), errors.Is(err, dom.ErrTooManyNodes):
		return OutcomeRejected
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	}
	return OutcomeError
}

func (c *Checker) notify(ctx context.Context, src string, res *Result, err error, d time.Duration) {
	if len(c.observers) == 0 {
		return
	}
	sum := sha256.Sum256([]byte(src))
	r := Report{
		Outcome:    OutcomeOf(res, err),
		InputBytes: len(src),
		InputHash:  hex.EncodeToString(sum[:]),
		Result:     res,
		Err:        err,
		Duration:   d,
	}
	for _, o := range c.observers {
		o.ObserveCheck(ctx, r)
	}
}
