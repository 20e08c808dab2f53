package asyncruntime

import (
	"context"
	"testing"
	"time"
)

func TestFacadeSpawnAndWait(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logger = NewNoOpLogger()
	rt, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	defer rt.Close()

	handle := Spawn(rt, FutureFunc[int](func(cx *Context) (int, error, bool) {
		return 10, nil, true
	}))
	got, err := handle.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait error: %v", err)
	}
	if got != 10 {
		t.Fatalf("result = %d, want 10", got)
	}

	blocking := SpawnBlocking(rt, func() (string, error) { return "ok", nil })
	if s, err := blocking.Wait(context.Background()); err != nil || s != "ok" {
		t.Fatalf("blocking result = %q, %v", s, err)
	}
}

func TestFacadeTimeoutAndSleep(t *testing.T) {
	rt, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer rt.Close()

	if _, err := BlockOn[struct{}](rt.Sleep(5 * time.Millisecond)); err != nil {
		t.Fatalf("sleep error: %v", err)
	}

	never := FutureFunc[int](func(cx *Context) (int, error, bool) {
		return 0, nil, false
	})
	_, err = BlockOn[int](Timeout(rt, 10*time.Millisecond, never))
	if !IsTimeout(err) {
		t.Fatalf("error = %v, want timeout", err)
	}
}
