package dapbackend

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"syscall"
	"time"

	"github.com/willibrandon/litedev/observability"
)

// RetryConfig controls how Dial retries an adapter that is still starting up.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	JitterFactor   float64
}

// DefaultRetryConfig waits up to a few seconds in total for the adapter to listen.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.1,
	}
}

// WithDialRetry sets the retry policy Dial uses. MaxRetries 0 disables retries.
func WithDialRetry(rc RetryConfig) Option {
	return func(b *Backend) { b.retry = rc }
}

// IsRetriable reports whether a failed connection attempt may succeed later.
func IsRetriable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// CalculateBackoff computes exponential backoff with jitter for attempt (0-based).
func (rc RetryConfig) CalculateBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	backoff := float64(rc.InitialBackoff) * math.Pow(rc.BackoffFactor, float64(attempt))
	if backoff > float64(rc.MaxBackoff) {
		backoff = float64(rc.MaxBackoff)
	}

	// backoff * (1 +/- jitterFactor)
	backoff += backoff * rc.JitterFactor * (2*rand.Float64() - 1)
	if backoff < 0 {
		backoff = float64(rc.InitialBackoff)
	}
	return time.Duration(backoff)
}

// dialWithRetry connects to address, retrying refused connections with backoff.
func dialWithRetry(ctx context.Context, address string, rc RetryConfig, logger observability.Logger) (net.Conn, error) {
	var d net.Dialer
	for attempt := 0; ; attempt++ {
		conn, err := d.DialContext(ctx, "tcp", address)
		if err == nil {
			return conn, nil
		}
		if attempt >= rc.MaxRetries || !IsRetriable(err) {
			return nil, err
		}

		wait := rc.CalculateBackoff(attempt)
		logger.Debug("Debug adapter at {Address} not ready ({Error}), retrying in {Backoff}", address, err, wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
