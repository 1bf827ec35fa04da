package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigFitsRequestPath(t *testing.T) {
	cfg := DefaultConfig()

	worst := time.Duration(0)
	backoff := cfg.RetryInitialBackoff
	for attempt := 1; attempt < cfg.RetryMaxAttempts; attempt++ {
		worst += min(backoff, cfg.RetryMaxBackoff)
		backoff = time.Duration(float64(backoff) * cfg.RetryMultiplier)
	}
	if worst > 250*time.Millisecond {
		t.Fatalf("retry backoff adds %s to a request, want at most 250ms", worst)
	}
	if cfg.MaxAttempts(OpTicketConsume) != 1 {
		t.Fatalf("ticket consume must run once, got %d attempts", cfg.MaxAttempts(OpTicketConsume))
	}
	if cfg.MaxAttempts(OpTicketIssue) != cfg.RetryMaxAttempts || cfg.MaxAttempts(OpJobPublish) != cfg.RetryMaxAttempts {
		t.Fatalf("issue and publish must use the shared retry budget")
	}
}

func TestNormalizeKeepsOperationOverrides(t *testing.T) {
	cfg := Config{RetryMaxAttempts: 5}.normalize()
	if cfg.MaxAttempts(OpTicketConsume) != 1 {
		t.Fatalf("expected default consume override, got %d", cfg.MaxAttempts(OpTicketConsume))
	}
	if cfg.MaxAttempts(OpTicketIssue) != 5 {
		t.Fatalf("expected configured attempts for issue, got %d", cfg.MaxAttempts(OpTicketIssue))
	}

	custom := Config{OperationMaxAttempts: map[string]int{OpJobPublish: 2}}.normalize()
	if custom.MaxAttempts(OpJobPublish) != 2 {
		t.Fatalf("expected publish override, got %d", custom.MaxAttempts(OpJobPublish))
	}
}

func TestExecuteRunsTicketConsumeOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryInitialBackoff = time.Millisecond
	cfg.RetryMaxBackoff = time.Millisecond
	cfg.BreakerEnabled = false
	exec := NewExecutor(cfg)

	errLost := errors.New("connection reset")
	retryAll := TransientClassifier(func(error) bool { return true })

	consumes := 0
	err := exec.Execute(context.Background(), OpTicketConsume, func(context.Context) error {
		consumes++
		return errLost
	}, retryAll)
	if !errors.Is(err, errLost) || consumes != 1 {
		t.Fatalf("expected a single consume attempt, got %d (err %v)", consumes, err)
	}

	issues := 0
	err = exec.Execute(context.Background(), OpTicketIssue, func(context.Context) error {
		issues++
		return errLost
	}, retryAll)
	if !errors.Is(err, errLost) || issues != cfg.RetryMaxAttempts {
		t.Fatalf("expected %d issue attempts, got %d (err %v)", cfg.RetryMaxAttempts, issues, err)
	}
}
