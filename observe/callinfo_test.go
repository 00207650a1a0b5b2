package observe

import (
	"context"
	"sync"
	"testing"
)

func TestCallInfo_NilSafe(t *testing.T) {
	info := CallInfoFrom(context.Background())
	if info != nil {
		t.Fatal("expected nil CallInfo")
	}
	info.SetFingerprint("x")
	info.SetOutcome(OutcomeHit)
	info.SetShared(true)
	if fp, o, s := info.Snapshot(); fp != "" || o != "" || s {
		t.Errorf("nil Snapshot = %q %q %v", fp, o, s)
	}
}

func TestCallInfo_ConcurrentUpdates(t *testing.T) {
	info := &CallInfo{RequestID: "r"}
	ctx := WithCallInfo(context.Background(), info)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := CallInfoFrom(ctx)
			c.SetOutcome(OutcomeMiss)
			c.SetShared(true)
			_, _, _ = c.Snapshot()
		}()
	}
	wg.Wait()

	if _, o, s := info.Snapshot(); o != OutcomeMiss || !s {
		t.Errorf("Snapshot = %q %v", o, s)
	}
}

func TestNewRequestID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRequestID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
