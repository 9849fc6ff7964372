package retry

import (
	"context"
	stderrors "errors"
	"math"
	"testing"
	"time"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
)

func transient(n int) error { return errors.ModelAPI(nil, "transient failure %d", n) }

func TestDoSuccessFirstAttempt(t *testing.T) {
	got, attempts, err := Do(context.Background(), Policy{MaxRetries: 3, Backoff: NoBackoff},
		func(context.Context) (string, error) { return "ok", nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || attempts != 1 {
		t.Errorf("got %q after %d attempts", got, attempts)
	}
}

func TestDoRetryBudget(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   uint
		failures     int
		wantAttempts int
		wantErr      bool
	}{
		{"fails max_retries times then succeeds", 3, 3, 4, false},
		{"fails max_retries+1 times", 3, 4, 4, true},
		{"zero budget success", 0, 0, 1, false},
		{"zero budget failure", 0, 1, 1, true},
		{"one failure", 2, 1, 2, false},
		{"max uint budget", math.MaxUint, 2, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, attempts, err := Do(context.Background(), Policy{MaxRetries: tt.maxRetries, Backoff: NoBackoff},
				func(context.Context) (int, error) {
					calls++
					if calls <= tt.failures {
						return 0, transient(calls)
					}
					return calls, nil
				})

			if attempts != tt.wantAttempts || calls != tt.wantAttempts {
				t.Errorf("attempts = %d, calls = %d, want %d", attempts, calls, tt.wantAttempts)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, errors.ErrModelAPI) {
				t.Errorf("err = %v, want the original model API error", err)
			}
		})
	}
}

func TestDoReturnsLastErrorUnchanged(t *testing.T) {
	var last error
	calls := 0
	_, _, err := Do(context.Background(), Policy{MaxRetries: 2, Backoff: NoBackoff},
		func(context.Context) (struct{}, error) {
			calls++
			last = transient(calls)
			return struct{}{}, last
		})
	if err != last {
		t.Errorf("err = %v, want the last error %v", err, last)
	}
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"config", errors.Config("API key is required")},
		{"planning", errors.Planning("unreadable")},
		{"permanent model api", errors.PermanentModelAPI(stderrors.New("401"), "anthropic")},
		{"plain", stderrors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, attempts, err := Do(context.Background(), Policy{MaxRetries: 5, Backoff: NoBackoff},
				func(context.Context) (int, error) {
					calls++
					return 0, tt.err
				})
			if calls != 1 || attempts != 1 {
				t.Errorf("calls = %d, attempts = %d, want 1", calls, attempts)
			}
			if err != tt.err {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestDoOnRetry(t *testing.T) {
	var seen []int
	calls := 0
	_, _, _ = Do(context.Background(), Policy{
		MaxRetries: 2,
		Backoff:    NoBackoff,
		OnRetry:    func(attempt int, err error) { seen = append(seen, attempt) },
	}, func(context.Context) (int, error) {
		calls++
		return 0, transient(calls)
	})
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", seen)
	}
}

func TestDoStopsWhenContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	start := time.Now()
	_, attempts, err := Do(ctx, Policy{
		MaxRetries: 5,
		Backoff:    func(int) time.Duration { return time.Hour },
		OnRetry:    func(int, error) { cancel() },
	}, func(context.Context) (int, error) {
		calls++
		return 0, transient(calls)
	})

	if time.Since(start) > 5*time.Second {
		t.Fatal("Do did not return promptly after cancellation")
	}
	if calls != 1 || attempts != 1 {
		t.Errorf("calls = %d, attempts = %d, want 1", calls, attempts)
	}
	if !errors.Is(err, errors.ErrModelAPI) {
		t.Errorf("err = %v, want model API error", err)
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := ExponentialBackoff(100*time.Millisecond, time.Second)
	for attempt, base := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, time.Second, time.Second} {
		got := backoff(attempt)
		low, high := base-base/4, base+base/4
		if got < low || got > high {
			t.Errorf("backoff(%d) = %v, want within [%v, %v]", attempt, got, low, high)
		}
	}
	if got := backoff(100); got > time.Second+time.Second/4 {
		t.Errorf("large attempt backoff = %v, want capped", got)
	}
}
