package http

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/vaultfm/vaultfm/internal/constants"
)

// ErrorType represents different classes of errors for retry strategy
type ErrorType int

const (
	// ErrorTypeSuccess indicates operation succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential indicates the bearer token was rejected (401/403)
	ErrorTypeCredential
	// ErrorTypeNetwork indicates network/connection issues (timeouts, connection refused, etc.)
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates server errors that can be retried (5xx, 429)
	ErrorTypeRetryable
	// ErrorTypeFatal indicates client errors that should not be retried (400, 404, 409, 413)
	ErrorTypeFatal
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// Config holds retry parameters for ExecuteWithRetry
type Config struct {
	// MaxRetries is the maximum number of attempts
	MaxRetries int
	// InitialDelay is the base delay for exponential backoff
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration
	// OnRetry is an optional callback invoked before each retry attempt
	OnRetry func(attempt int, err error, errorType ErrorType)
}

// DefaultConfig returns the retry policy used for chunk uploads.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   constants.ChunkMaxRetries,
		InitialDelay: constants.RetryInitialDelay,
		MaxDelay:     constants.RetryMaxDelay,
	}
}

// ClassifyError determines the error type for retry strategy.
// Errors carrying a status code are classified by the code; anything else
// falls back to matching the message.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeFatal
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return ClassifyStatus(sc.StatusCode())
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "invalid token") ||
		strings.Contains(errStr, "token expired") {
		return ErrorTypeCredential
	}

	if strings.Contains(errStr, "tls handshake timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") {
		return ErrorTypeNetwork
	}

	if strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "too many requests") {
		return ErrorTypeRetryable
	}

	// Unknown errors - treat as fatal to avoid infinite retries on unexpected errors
	return ErrorTypeFatal
}

// ClassifyStatus maps an HTTP status code onto a retry class.
func ClassifyStatus(code int) ErrorType {
	switch {
	case code >= 200 && code < 300:
		return ErrorTypeSuccess
	case code == 401 || code == 403:
		return ErrorTypeCredential
	case code == 408 || code == 429 || code >= 500:
		return ErrorTypeRetryable
	default:
		return ErrorTypeFatal
	}
}

// CalculateBackoff returns exponential backoff duration with full jitter
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 {
		return 0
	}

	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay || base <= 0 {
		base = maxDelay
	}

	return time.Duration(rand.Int63n(int64(base)))
}

// ExecuteWithRetry runs an operation with retry logic.
//
// Retry strategy:
//   - Network/Retryable errors: exponential backoff with full jitter
//   - Credential and fatal errors: returned immediately; a rejected token will
//     not become valid by retrying
//   - Context cancellation: returned immediately, including during backoff
func ExecuteWithRetry(ctx context.Context, config Config, operation func(ctx context.Context) error) error {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}
	var lastErr error

	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		errType := ClassifyError(err)
		switch errType {
		case ErrorTypeSuccess:
			return nil
		case ErrorTypeFatal, ErrorTypeCredential:
			return err
		}

		if attempt == config.MaxRetries-1 {
			break
		}

		backoff := CalculateBackoff(attempt, config.InitialDelay, config.MaxDelay)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < backoff {
			return fmt.Errorf("deadline too close to retry after %v: %w", backoff, err)
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err, errType)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries, lastErr)
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
