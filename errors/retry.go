package errors

import (
	"context"
	"math"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RetryableErrors []ErrorCode
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		RetryableErrors: []ErrorCode{
			ErrCodeTransient,
		},
	}
}

// RetryFunc is a function that can be retried
type RetryFunc func() error

// RetryWithConfig retries a function with custom configuration
func RetryWithConfig(ctx context.Context, fn RetryFunc, config *RetryConfig) error {
	op := &RetryOperation{Fn: fn, Config: config}
	return op.Execute(ctx)
}

// Retry retries a function with default configuration
func Retry(ctx context.Context, fn RetryFunc) error {
	return RetryWithConfig(ctx, fn, DefaultRetryConfig())
}

// isRetryableError checks the error code against the configured list
func isRetryableError(err error, retryableCodes []ErrorCode) bool {
	code := Classify(err)
	for _, c := range retryableCodes {
		if c == code {
			return true
		}
	}
	return false
}

// ExponentialBackoff calculates exponential backoff delay
func ExponentialBackoff(attempt int, baseDelay time.Duration, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return baseDelay
	}

	delay := baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// RetryOperation represents an operation that can be retried
type RetryOperation struct {
	Name      string
	Fn        RetryFunc
	Config    *RetryConfig
	OnRetry   func(attempt int, err error)
	OnSuccess func()
	OnFailure func(err error)
}

// Execute runs the retry operation. A non-retryable error is returned as is;
// exhausting all attempts returns the last error unchanged so its
// classification survives.
func (op *RetryOperation) Execute(ctx context.Context) error {
	config := op.Config
	if config == nil {
		config = DefaultRetryConfig()
	}
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			op.fail(ctx.Err())
			return ctx.Err()
		default:
		}

		err := op.Fn()
		if err == nil {
			if op.OnSuccess != nil {
				op.OnSuccess()
			}
			return nil
		}
		lastErr = err

		if !isRetryableError(err, config.RetryableErrors) {
			op.fail(err)
			return err
		}

		if attempt == attempts {
			break
		}

		if op.OnRetry != nil {
			op.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			op.fail(ctx.Err())
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	op.fail(lastErr)
	if e, ok := lastErr.(*Error); ok {
		e.WithContext("attempts", attempts)
	}
	return lastErr
}

func (op *RetryOperation) fail(err error) {
	if op.OnFailure != nil {
		op.OnFailure(err)
	}
}
