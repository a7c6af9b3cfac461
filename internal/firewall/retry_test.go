package firewall

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_Success(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond

	count := 0
	err := Retry(context.Background(), cfg, func() error {
		count++
		return nil
	})

	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 attempt, got %d", count)
	}
}

func TestRetry_FailThenSuccess(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxAttempts = 3

	count := 0
	err := Retry(context.Background(), cfg, func() error {
		count++
		if count < 2 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 attempts, got %d", count)
	}
}

func TestRetry_FailMaxAttempts(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxAttempts = 3

	expectedErr := errors.New("permanent error")
	count := 0

	err := Retry(context.Background(), cfg, func() error {
		count++
		return expectedErr
	})

	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if count != 3 {
		t.Errorf("expected 3 attempts, got %d", count)
	}
}

func TestRetry_NonRetryable(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.RetryableErrors = []error{ErrTemporary}

	count := 0
	err := Retry(context.Background(), cfg, func() error {
		count++
		return errors.New("fatal problem")
	})

	if err == nil {
		t.Error("expected error")
	}
	if count != 1 {
		t.Errorf("expected 1 attempt, got %d", count)
	}
}

func TestRetry_ContextCancel(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, func() error {
		return errors.New("fail")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context canceled, got %v", err)
	}
}

func TestCalculateDelay_Capped(t *testing.T) {
	cfg := BatchRetryConfig()
	cfg.Jitter = false

	if d := calculateDelay(0, cfg); d != 20*time.Millisecond {
		t.Errorf("first delay = %v, want 20ms", d)
	}
	if d := calculateDelay(10, cfg); d != cfg.MaxDelay {
		t.Errorf("delay should be capped at %v, got %v", cfg.MaxDelay, d)
	}
}

func TestWrapTemporary(t *testing.T) {
	base := errors.New("foo")
	wrapped := WrapTemporary(base)

	if !errors.Is(wrapped, ErrTemporary) {
		t.Error("should match ErrTemporary")
	}

	if wrapped.Error() != "foo" {
		t.Error("should preserve error message")
	}

	if errors.Unwrap(wrapped) != base {
		t.Error("should unwrap to base")
	}
}
