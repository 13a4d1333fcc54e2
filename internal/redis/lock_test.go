package redisclient

import (
	"context"
	"errors"
	"testing"
)

func TestLockKey(t *testing.T) {
	if got := lockKey("reminder-sweep"); got != "lock:reminder-sweep" {
		t.Errorf("lockKey = %q", got)
	}
}

func TestNoopLockerRunsFn(t *testing.T) {
	want := errors.New("boom")
	calls := 0
	err := NoopLocker{}.WithLock(context.Background(), "x", func(ctx context.Context) error {
		calls++
		return want
	})
	if calls != 1 {
		t.Fatalf("fn called %d times", calls)
	}
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}
