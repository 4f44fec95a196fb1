package backoff

import (
	"context"
	"time"
)

// Policy bounds a retry loop: at most MaxAttempts tries, sleeping
// InitialDelay * Coeff^n between them.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Coeff        float64
}

// DefaultPolicy matches the provider-call tuning shipped in config defaults.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond, Coeff: 2.0}
}

// Retry runs fn until it succeeds, the error is not retryable, the attempts
// are exhausted or the context is done. The last error is returned verbatim
// so callers can persist the provider's own message.
//
// retryable decides whether an error is transient; a nil retryable treats
// every error as transient.
func Retry(ctx context.Context, p Policy, retryable func(error) bool, fn func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	delay := p.InitialDelay

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * p.Coeff)
	}
}
