package pipeline

import (
	"math/rand"
	"time"

	"github.com/lindenau-systems/folio/internal/recognize"
)

// RetryDecision is the verdict for one failed attempt.
type RetryDecision struct {
	Retry bool
	Delay time.Duration
}

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait first. Decide is a pure function of the error kind and the attempt
// number; randomness comes only from the jitter source.
type RetryPolicy struct {
	// MaxAttempts is the total call budget per page, first attempt
	// included.
	MaxAttempts int

	// BaseDelay is the backoff before the second attempt; it doubles per
	// attempt up to MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth (jitter excluded).
	MaxDelay time.Duration

	// Jitter returns a random duration in [0, max]. Nil selects a uniform
	// source; tests inject a deterministic one.
	Jitter func(max time.Duration) time.Duration
}

// Decide returns the verdict after attempt number attempt (1-based) failed
// with the given kind. Permanent kinds never retry, whatever the remaining
// budget.
func (p RetryPolicy) Decide(kind recognize.ErrorKind, attempt int) RetryDecision {
	if !kind.Transient() {
		return RetryDecision{}
	}
	if attempt < 1 || attempt >= p.MaxAttempts {
		return RetryDecision{}
	}

	delay := p.backoff(attempt)
	return RetryDecision{Retry: true, Delay: delay + p.jitter(delay)}
}

// backoff computes min(BaseDelay * 2^(attempt-1), MaxDelay).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	shift := uint(attempt - 1) //nolint:gosec // G115: attempt >= 1 checked by caller
	if shift > 30 {
		return p.MaxDelay
	}
	delay := p.BaseDelay << shift
	if delay <= 0 || delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p RetryPolicy) jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	if p.Jitter != nil {
		j := p.Jitter(max)
		if j < 0 {
			return 0
		}
		if j > max {
			return max
		}
		return j
	}
	return time.Duration(rand.Int63n(int64(max) + 1)) //nolint:gosec // G404: backoff jitter needs no crypto rand
}
