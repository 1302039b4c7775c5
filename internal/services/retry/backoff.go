package retry

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 250 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
)

// Config controls how Do repeats a failing operation.
type Config struct {
	// MaxAttempts is the total number of attempts, the first one included.
	// Zero or negative selects DefaultMaxAttempts.
	MaxAttempts int

	// BaseDelay is doubled after every failed attempt and capped at MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// ShouldRetry decides whether err is worth another attempt. When nil only
	// errors marked with RetryableError are retried.
	ShouldRetry func(error) bool

	// Sleeper replaces the context-aware wait between attempts (tests).
	Sleeper func(time.Duration)
}

// RetryableError marks an error as transient. After, when positive, is the
// delay the remote side asked for (Retry-After) and wins over the backoff.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string {
	if e.Err == nil {
		return "retryable error"
	}
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err or any wrapped error is a RetryableError.
func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}

// RetryableStatus reports whether an HTTP status code is worth retrying on
// an idempotent request.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// RetryAfter parses a Retry-After header value (seconds or HTTP date).
// fallback is returned for empty or unparsable values.
func RetryAfter(header string, fallback time.Duration) time.Duration {
	if header == "" {
		return fallback
	}

	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}

	if ts, err := http.ParseTime(header); err == nil {
		if d := time.Until(ts); d > 0 {
			return d
		}
		return 0
	}

	return fallback
}

// Backoff returns base * 2^attempt, capped at max.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if max <= 0 {
		max = DefaultMaxDelay
	}
	if attempt > 30 {
		return max
	}
	d := base * time.Duration(1<<attempt)
	if d > max || d <= 0 {
		return max
	}
	return d
}

// Do runs op until it succeeds, ShouldRetry rejects its error or the attempts
// run out. The final error is returned with any RetryableError marker peeled
// off, so callers see the error op produced. A canceled ctx stops the loop
// with ctx.Err().
func Do(ctx context.Context, cfg Config, op func(attempt int) error) error {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == attempts-1 || !shouldRetry(err) {
			break
		}

		delay := Backoff(cfg.BaseDelay, cfg.MaxDelay, attempt)
		var r *RetryableError
		if errors.As(err, &r) && r.After > 0 {
			delay = r.After
		}

		if cfg.Sleeper != nil {
			cfg.Sleeper(delay)
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	var r *RetryableError
	if errors.As(lastErr, &r) && r.Err != nil {
		return r.Err
	}
	return lastErr
}
