package llm

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sevigo/devflow/internal/metrics"
)

// ErrRateLimited marks a backend response with HTTP 429. It is the only
// error Retry retries.
var ErrRateLimited = errors.New("rate limited")

// RetryPolicy describes a bounded exponential backoff: the n-th wait is
// BaseDelay * Multiplier^(n-1), and at most MaxAttempts calls are made.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy waits 4s, 8s, 16s and 32s across five attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 4 * time.Second, Multiplier: 2}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0
	b.Reset()

	retries := uint64(p.MaxAttempts - 1)
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

// Retrier runs operations under a RetryPolicy.
type Retrier struct {
	policy    RetryPolicy
	operation string
	logger    *slog.Logger
	// newTimer is swapped in tests to observe waits without sleeping.
	newTimer func() backoff.Timer
}

// NewRetrier creates a Retrier; operation labels logs and metrics.
func NewRetrier(policy RetryPolicy, operation string, logger *slog.Logger) *Retrier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{
		policy:    policy.normalized(),
		operation: operation,
		logger:    logger,
		newTimer:  func() backoff.Timer { return &realTimer{} },
	}
}

// Policy returns the effective policy.
func (r *Retrier) Policy() RetryPolicy {
	return r.policy
}

// Do calls op until it succeeds, returns an error other than ErrRateLimited,
// the attempt budget is spent, or ctx is done. Waits are timer based and
// abort on context cancellation.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil || errors.Is(err, ErrRateLimited) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, delay time.Duration) {
		metrics.ObserveRetry(r.operation)
		r.logger.Warn("backend rate limited, backing off",
			"operation", r.operation,
			"attempt", attempt,
			"max_attempts", r.policy.MaxAttempts,
			"delay", delay,
			"error", err,
		)
	}

	err := backoff.RetryNotifyWithTimer(operation, r.policy.backOff(ctx), notify, r.newTimer())
	if err != nil && errors.Is(err, ErrRateLimited) {
		r.logger.Error("retry budget exhausted", "operation", r.operation, "attempts", attempt)
	}
	return err
}

// Retry runs op under policy with a throwaway Retrier.
func Retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	return NewRetrier(policy, "call", nil).Do(ctx, op)
}

// realTimer mirrors backoff's default timer.
type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) C() <-chan time.Time {
	return t.timer.C
}

func (t *realTimer) Start(duration time.Duration) {
	if t.timer == nil {
		t.timer = time.NewTimer(duration)
	} else {
		t.timer.Reset(duration)
	}
}

func (t *realTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}
