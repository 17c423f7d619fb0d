package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Retrier runs an operation up to MaxAttempts times with a fixed Delay
// between attempts. Errors wrapped with Permanent, or rejected by Retryable,
// end the loop immediately.
type Retrier struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
	OnRetry     func(attempt int, err error)
}

// NewRetrier builds a retrier with retries extra attempts after the first.
func NewRetrier(retries int, delay time.Duration) Retrier {
	return Retrier{MaxAttempts: max(retries, 0) + 1, Delay: delay}
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do returns the number of attempts made and the last error, or nil on
// success. Only ctx ends the loop early; a timeout reported by the operation
// itself is retried like any other transient failure.
func (r Retrier) Do(ctx context.Context, op func(attempt int) error) (int, error) {
	attempts := max(r.MaxAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return attempt - 1, lastErr
		}
		lastErr = op(attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if IsPermanent(lastErr) || ctx.Err() != nil {
			return attempt, lastErr
		}
		if r.Retryable != nil && !r.Retryable(lastErr) {
			return attempt, lastErr
		}
		if attempt == attempts {
			break
		}
		if r.OnRetry != nil {
			r.OnRetry(attempt, lastErr)
		}
		select {
		case <-ctx.Done():
			return attempt, lastErr
		case <-time.After(r.Delay):
		}
	}
	return attempts, lastErr
}

// StatusError is a non-success HTTP answer.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// CheckStatus converts an unexpected status into an error, marking client
// errors other than 408 and 429 as permanent.
func CheckStatus(resp *http.Response, expected ...int) error {
	for _, code := range expected {
		if resp.StatusCode == code {
			return nil
		}
	}
	err := &StatusError{StatusCode: resp.StatusCode}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
		return Permanent(err)
	}
	return err
}
