package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lindenau-systems/folio/internal/recognize"
)

func zeroJitter(time.Duration) time.Duration { return 0 }

func TestRetryPolicy_ExponentialBackoff(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 6,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		Jitter:      zeroJitter,
	}

	tests := []struct {
		name    string
		attempt int
		retry   bool
		delay   time.Duration
	}{
		{"first failure", 1, true, 100 * time.Millisecond},
		{"second failure", 2, true, 200 * time.Millisecond},
		{"third failure", 3, true, 400 * time.Millisecond},
		{"fourth failure", 4, true, 800 * time.Millisecond},
		{"growth capped", 5, true, time.Second},
		{"budget exhausted", 6, false, 0},
		{"attempt zero", 0, false, 0},
		{"negative attempt", -3, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := policy.Decide(recognize.KindTransientServer, tt.attempt)
			assert.Equal(t, tt.retry, d.Retry)
			assert.Equal(t, tt.delay, d.Delay)
		})
	}
}

func TestRetryPolicy_PermanentKindsNeverRetry(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Second,
		Jitter:      zeroJitter,
	}

	kinds := []recognize.ErrorKind{
		recognize.KindPermanentAuth,
		recognize.KindPermanentInvalidInput,
		recognize.KindPermanentOther,
		recognize.KindRenderFailed,
		recognize.KindCancelled,
		recognize.ErrorKind(""),
	}
	for _, kind := range kinds {
		d := policy.Decide(kind, 1)
		assert.False(t, d.Retry, "kind %q must not retry", kind)
		assert.Zero(t, d.Delay)
	}
}

func TestRetryPolicy_TransientKindsRetry(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Second,
		Jitter:      zeroJitter,
	}

	for _, kind := range []recognize.ErrorKind{
		recognize.KindTransientTimeout,
		recognize.KindTransientRateLimited,
		recognize.KindTransientServer,
	} {
		assert.True(t, policy.Decide(kind, 1).Retry, "kind %q should retry", kind)
		assert.True(t, policy.Decide(kind, 2).Retry)
		assert.False(t, policy.Decide(kind, 3).Retry, "attempt budget applies to %q", kind)
	}
}

func TestRetryPolicy_JitterBounds(t *testing.T) {
	full := RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		Jitter:      func(max time.Duration) time.Duration { return max },
	}
	d := full.Decide(recognize.KindTransientServer, 2)
	assert.Equal(t, 400*time.Millisecond, d.Delay, "full jitter doubles the backoff")

	// A misbehaving jitter source is clamped into [0, backoff].
	negative := full
	negative.Jitter = func(time.Duration) time.Duration { return -time.Hour }
	assert.Equal(t, 200*time.Millisecond, negative.Decide(recognize.KindTransientServer, 2).Delay)

	oversized := full
	oversized.Jitter = func(time.Duration) time.Duration { return time.Hour }
	assert.Equal(t, 400*time.Millisecond, oversized.Decide(recognize.KindTransientServer, 2).Delay)
}

func TestRetryPolicy_DefaultJitterStaysInRange(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   80 * time.Millisecond,
		MaxDelay:    time.Second,
	}

	for i := 0; i < 200; i++ {
		d := policy.Decide(recognize.KindTransientTimeout, 3)
		assert.True(t, d.Retry)
		assert.GreaterOrEqual(t, d.Delay, 320*time.Millisecond)
		assert.LessOrEqual(t, d.Delay, 640*time.Millisecond)
	}
}

func TestRetryPolicy_LargeAttemptDoesNotOverflow(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 100,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      zeroJitter,
	}

	for _, attempt := range []int{40, 62, 63, 99} {
		d := policy.Decide(recognize.KindTransientServer, attempt)
		assert.True(t, d.Retry)
		assert.Equal(t, 30*time.Second, d.Delay, "attempt %d must clamp to the cap", attempt)
	}
}
