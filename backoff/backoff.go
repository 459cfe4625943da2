// Package backoff computes delays between attempts when polling a remote
// service until it reaches the desired state.
package backoff

import (
	"context"
	"math"
	"math/bits"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm/internal/x/timex"
)

// Strategy computes how long to wait before the next attempt.
type Strategy interface {
	Backoff(attempt int) time.Duration
}

// Option consumes a strategy and returns a new strategy.
type Option func(Strategy) Strategy

// Maximum sets an upper bound for the strategy.
func Maximum(d time.Duration) Option {
	return func(s Strategy) Strategy {
		return StrategyFunc(func(attempt int) time.Duration {
			return timex.DurationMin(s.Backoff(attempt), d)
		})
	}
}

// Jitter randomly extends each delay by up to multiplier * delay.
func Jitter(multiplier float64) Option {
	return func(s Strategy) Strategy {
		return StrategyFunc(func(attempt int) time.Duration {
			x := s.Backoff(attempt)
			if x == math.MaxInt64 {
				return x
			}

			d := int64(math.Floor(float64(x) * multiplier))
			if d <= 0 {
				return x
			}

			return timex.DurationMax(x, x+time.Duration(rand.Int63n(d)))
		})
	}
}

// New backoff
func New(s Strategy, options ...Option) Strategy {
	for _, opt := range options {
		s = opt(s)
	}
	return s
}

// StrategyFunc convience helper to convert a pure function into a backoff strategy.
type StrategyFunc func(attempt int) time.Duration

// Backoff implements Strategy
func (t StrategyFunc) Backoff(attempt int) time.Duration {
	return t(attempt)
}

// Constant always returns the provided duration regardless of the attempt.
func Constant(d time.Duration) Strategy {
	return StrategyFunc(func(attempt int) time.Duration {
		return d
	})
}

type exponential struct {
	scale time.Duration
}

func (t exponential) Backoff(attempt int) (exp time.Duration) {
	if attempt >= 63 {
		return time.Duration(math.MaxInt64)
	}

	hi, lo := bits.Mul64(uint64(1)<<uint(attempt), uint64(t.scale))

	// overflowed into the high bits or the sign bit.
	if hi != 0 || lo&(1<<63) != 0 {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(lo)
}

// Exponential doubles the delay every attempt starting at scale.
func Exponential(scale time.Duration) Strategy {
	if scale == 0 {
		panic("exponential backoff can't be scaled by 0")
	}

	return exponential{scale: scale}
}

// Explicit an explicit set of delays to use. if the attempt is larger than
// the number of values it restarts at the first delay.
func Explicit(delays ...time.Duration) Strategy {
	return StrategyFunc(func(attempt int) time.Duration {
		return delays[attempt%len(delays)]
	})
}

// ErrExhausted the condition never held within the allowed attempts.
var ErrExhausted = errors.New("attempts exhausted")

// Poll invokes check until it reports done, returns an error, the attempts are
// exhausted or the context is cancelled. a non-positive attempts value polls
// until the context is done.
func Poll(ctx context.Context, s Strategy, attempts int, check func(ctx context.Context, attempt int) (done bool, err error)) error {
	for attempt := 0; attempts <= 0 || attempt < attempts; attempt++ {
		done, err := check(ctx, attempt)
		if err != nil {
			return err
		}

		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-time.After(s.Backoff(attempt)):
		}
	}

	return errors.WithStack(ErrExhausted)
}
