package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoWithRetry_TransientThenSuccess(t *testing.T) {
	calls := 0
	status, body, err := DoWithRetry(context.Background(), 4, time.Millisecond, func() (int, []byte, error) {
		calls++
		if calls < 3 {
			return 503, nil, nil
		}
		return 200, []byte("ok"), nil
	})
	if err != nil || status != 200 || string(body) != "ok" {
		t.Fatalf("unexpected result %d %q %v", status, body, err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoWithRetry_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	status, _, err := DoWithRetry(context.Background(), 4, time.Millisecond, func() (int, []byte, error) {
		calls++
		return 404, nil, nil
	})
	if err != nil || status != 404 {
		t.Fatalf("unexpected result %d %v", status, err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoWithRetry_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("connection refused")
	calls := 0
	_, _, err := DoWithRetry(context.Background(), 3, time.Millisecond, func() (int, []byte, error) {
		calls++
		return 0, nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoWithRetry_PermanentStopsEarly(t *testing.T) {
	calls := 0
	_, _, err := DoWithRetry(context.Background(), 5, time.Millisecond, func() (int, []byte, error) {
		calls++
		return 0, nil, Permanent(errors.New("bad request"))
	})
	if err == nil || calls != 1 {
		t.Errorf("expected one call and an error, got %d calls, %v", calls, err)
	}
}

func TestDoWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := DoWithRetry(ctx, 3, time.Hour, func() (int, []byte, error) {
		return 500, nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBackoff(t *testing.T) {
	cases := map[int]time.Duration{
		1:  time.Second,
		2:  2 * time.Second,
		3:  4 * time.Second,
		10: 30 * time.Second,
	}
	for attempt, want := range cases {
		if got := Backoff(attempt, time.Second, 30*time.Second); got != want {
			t.Errorf("Backoff(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestCheckStatus(t *testing.T) {
	if err := CheckStatus(204, nil); err != nil {
		t.Errorf("2xx should pass, got %v", err)
	}
	err := CheckStatus(503, []byte("busy"))
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 503 || IsPermanent(err) {
		t.Errorf("503 should be a retriable StatusError, got %v", err)
	}
	err = CheckStatus(401, []byte("nope"))
	if !IsPermanent(err) || !errors.As(err, &se) || se.Code != 401 {
		t.Errorf("401 should be permanent, got %v", err)
	}
	if !IsPermanent(CheckStatus(400, nil)) {
		t.Error("400 should be permanent")
	}
	if IsPermanent(CheckStatus(429, nil)) {
		t.Error("429 should be retriable")
	}
}
