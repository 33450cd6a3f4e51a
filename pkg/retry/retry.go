// Package retry applies one backoff policy to every outbound call.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"juris-rag-go/internal/config"
	"juris-rag-go/pkg/log"
)

// Policy is an exponential backoff with an additive random jitter:
// delay(n) = min(BaseDelay * Multiplier^n, MaxDelay) + rand[0, MaxJitter).
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	MaxJitter  time.Duration
	// AttemptTimeout bounds each attempt when positive.
	AttemptTimeout time.Duration
}

// Default is 3 attempts, 400ms doubling up to 5s, plus up to 200ms of jitter.
func Default() Policy {
	return Policy{
		MaxRetries: 2,
		BaseDelay:  400 * time.Millisecond,
		Multiplier: 2,
		MaxDelay:   5 * time.Second,
		MaxJitter:  200 * time.Millisecond,
	}
}

// FromConfig builds a Policy from the retry section of the configuration.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		Multiplier: cfg.Multiplier,
		MaxDelay:   cfg.MaxDelay,
		MaxJitter:  cfg.MaxJitter,
	}
}

// WithAttemptTimeout returns a copy of p whose attempts are each bounded by d.
func (p Policy) WithAttemptTimeout(d time.Duration) Policy {
	p.AttemptTimeout = d
	return p
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the context ends or
// the policy's retry budget is spent. name appears in retry log lines.
func Do[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		if p.AttemptTimeout <= 0 {
			return op(ctx)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
		defer cancel()
		return op(attemptCtx)
	}

	maxTries := uint(p.MaxRetries) + 1
	if p.MaxRetries < 0 {
		maxTries = 1
	}
	res, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxTries(maxTries),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warnf("[Retry] %s failed, retrying in %s: %v", name, next, err)
		}),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
	}
	return res, err
}

// policyBackOff implements backoff.BackOff for a Policy.
type policyBackOff struct {
	policy  Policy
	attempt int

	mu  sync.Mutex
	rnd *rand.Rand
}

func (p Policy) newBackOff() *policyBackOff {
	return &policyBackOff{
		policy: p,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextBackOff returns the wait before the next attempt.
func (b *policyBackOff) NextBackOff() time.Duration {
	delay := b.policy.delay(b.attempt)
	b.attempt++
	if b.policy.MaxJitter > 0 {
		b.mu.Lock()
		delay += time.Duration(b.rnd.Int63n(int64(b.policy.MaxJitter)))
		b.mu.Unlock()
	}
	return delay
}

// Reset restarts the exponential sequence.
func (b *policyBackOff) Reset() {
	b.attempt = 0
}

// delay is the jitter-free wait after the attempt-th failure (0-based).
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	for i := 0; i < attempt; i++ {
		d *= mult
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}
