package http

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

// TestExecuteWithRetry_Success verifies basic success case returns nil on first attempt.
func TestExecuteWithRetry_Success(t *testing.T) {
	cfg := Config{
		MaxRetries:   3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
	}

	calls := 0
	err := ExecuteWithRetry(context.Background(), cfg, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

// TestExecuteWithRetry_FatalError verifies no retry on client errors.
func TestExecuteWithRetry_FatalError(t *testing.T) {
	cfg := Config{
		MaxRetries:   5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
	}

	calls := 0
	err := ExecuteWithRetry(context.Background(), cfg, func(context.Context) error {
		calls++
		return fmt.Errorf("chunk rejected: %w", statusErr(400))
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry on fatal), got %d", calls)
	}
}

func TestExecuteWithRetry_RetriesServerErrors(t *testing.T) {
	cfg := Config{
		MaxRetries:   4,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}

	calls := 0
	var retried []int
	cfg.OnRetry = func(attempt int, _ error, _ ErrorType) { retried = append(retried, attempt) }

	err := ExecuteWithRetry(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return statusErr(503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(retried) != 2 {
		t.Errorf("OnRetry called %d times, want 2", len(retried))
	}
}

func TestExecuteWithRetry_Exhausted(t *testing.T) {
	cfg := Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := ExecuteWithRetry(context.Background(), cfg, func(context.Context) error {
		calls++
		return statusErr(502)
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	var sc StatusCoder
	if !errors.As(err, &sc) || sc.StatusCode() != 502 {
		t.Errorf("expected wrapped status error, got %v", err)
	}
}

// TestExecuteWithRetry_ContextCancelledDuringSleep verifies retry returns quickly when context cancelled.
func TestExecuteWithRetry_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxRetries:   5,
		InitialDelay: 5 * time.Second,
		MaxDelay:     30 * time.Second,
	}

	calls := 0
	start := time.Now()

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := ExecuteWithRetry(ctx, cfg, func(context.Context) error {
		calls++
		return fmt.Errorf("connection reset")
	})

	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if elapsed > 1*time.Second {
		t.Errorf("expected quick return after context cancel, but took %v", elapsed)
	}
	if calls < 1 {
		t.Errorf("expected at least 1 call, got %d", calls)
	}
}

// TestExecuteWithRetry_InsufficientDeadline verifies early exit when deadline < backoff.
func TestExecuteWithRetry_InsufficientDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cfg := Config{
		MaxRetries:   5,
		InitialDelay: 5 * time.Second,
		MaxDelay:     30 * time.Second,
	}

	start := time.Now()
	err := ExecuteWithRetry(ctx, cfg, func(context.Context) error {
		return fmt.Errorf("i/o timeout")
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if elapsed := time.Since(start); elapsed > 1*time.Second {
		t.Errorf("expected quick return due to insufficient deadline, but took %v", elapsed)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{nil, ErrorTypeSuccess},
		{statusErr(401), ErrorTypeCredential},
		{statusErr(404), ErrorTypeFatal},
		{statusErr(409), ErrorTypeFatal},
		{statusErr(429), ErrorTypeRetryable},
		{statusErr(500), ErrorTypeRetryable},
		{fmt.Errorf("wrapped: %w", statusErr(504)), ErrorTypeRetryable},
		{errors.New("read tcp: connection reset by peer"), ErrorTypeNetwork},
		{errors.New("unexpected EOF"), ErrorTypeNetwork},
		{context.Canceled, ErrorTypeFatal},
		{errors.New("something odd"), ErrorTypeFatal},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, ErrorTypeName(got), ErrorTypeName(tt.want))
		}
	}
}

func TestCalculateBackoff(t *testing.T) {
	if got := CalculateBackoff(0, time.Second, time.Minute); got != 0 {
		t.Errorf("attempt 0 backoff = %v, want 0", got)
	}
	for i := 0; i < 50; i++ {
		if got := CalculateBackoff(10, time.Second, 3*time.Second); got >= 3*time.Second {
			t.Fatalf("backoff %v exceeds max delay", got)
		}
	}
}
