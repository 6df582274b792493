package whatsapp

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestMonitor(registry *Registry, clock *fakeClock, onRecover func(string)) *HealthMonitor {
	cfg := DefaultConfig()
	return NewHealthMonitor(registry, newFakeStore(), clock, cfg, onRecover)
}

func TestCheckNowAbsentSession(t *testing.T) {
	recovered := 0
	monitor := newTestMonitor(NewRegistry(), newFakeClock(), func(string) { recovered++ })

	status := monitor.CheckNow(context.Background(), "ghost")
	if !status.NotFound {
		t.Fatal("expected NotFound classification")
	}
	if status.Healthy {
		t.Fatal("absent session reported healthy")
	}
	if recovered != 0 {
		t.Fatal("absent session must not trigger recovery; it needs full recreation")
	}
	if _, ok := monitor.Record("ghost"); ok {
		t.Fatal("absent session must not accumulate a failure record")
	}
}

func TestThresholdTriggersRecoveryExactlyOnce(t *testing.T) {
	registry := NewRegistry()
	client := newFakeClient()
	client.setState("disconnected", nil)
	registry.Register("s1", client)

	recovered := 0
	monitor := newTestMonitor(registry, newFakeClock(), func(string) { recovered++ })

	ctx := context.Background()
	for i := 1; i <= 2; i++ {
		status := monitor.CheckNow(ctx, "s1")
		if status.FailedChecks != i {
			t.Fatalf("check %d: FailedChecks = %d", i, status.FailedChecks)
		}
	}
	if recovered != 0 {
		t.Fatalf("recovery fired below threshold: %d", recovered)
	}

	monitor.CheckNow(ctx, "s1")
	if recovered != 1 {
		t.Fatalf("recovery count after threshold = %d, want 1", recovered)
	}

	// The record was cleared at the crossing: a re-trigger needs a fresh
	// run of threshold failures, not one more.
	status := monitor.CheckNow(ctx, "s1")
	if status.FailedChecks != 1 {
		t.Fatalf("FailedChecks after crossing = %d, want 1", status.FailedChecks)
	}
	if recovered != 1 {
		t.Fatalf("recovery re-fired prematurely: %d", recovered)
	}
}

func TestFatalErrorBypassesThreshold(t *testing.T) {
	registry := NewRegistry()
	client := newFakeClient()
	client.setState("", errors.New("websocket disconnected"))
	registry.Register("s1", client)

	recovered := 0
	monitor := newTestMonitor(registry, newFakeClock(), func(string) { recovered++ })

	status := monitor.CheckNow(context.Background(), "s1")
	if !status.Fatal {
		t.Fatal("expected fatal classification")
	}
	if recovered != 1 {
		t.Fatalf("fatal error did not hand off immediately: %d", recovered)
	}
}

func TestSuccessResetsFailureRun(t *testing.T) {
	registry := NewRegistry()
	client := newFakeClient()
	client.setState("disconnected", nil)
	registry.Register("s1", client)

	recovered := 0
	monitor := newTestMonitor(registry, newFakeClock(), func(string) { recovered++ })

	ctx := context.Background()
	monitor.CheckNow(ctx, "s1")
	monitor.CheckNow(ctx, "s1")

	client.setState(StateConnected, nil)
	status := monitor.CheckNow(ctx, "s1")
	if !status.Healthy {
		t.Fatal("connected client reported unhealthy")
	}

	client.setState("disconnected", nil)
	status = monitor.CheckNow(ctx, "s1")
	if status.FailedChecks != 1 {
		t.Fatalf("FailedChecks after reset = %d, want 1", status.FailedChecks)
	}
	if recovered != 0 {
		t.Fatalf("recovery fired without a full failure run: %d", recovered)
	}
}

func TestCheckServesFromCacheWithinTTL(t *testing.T) {
	registry := NewRegistry()
	client := newFakeClient()
	registry.Register("s1", client)

	clock := newFakeClock()
	monitor := newTestMonitor(registry, clock, nil)

	ctx := context.Background()
	first := monitor.Check(ctx, "s1")
	if !first.Healthy {
		t.Fatal("connected client reported unhealthy")
	}

	// Within the TTL the stale-but-cached verdict is served even though the
	// client has since gone bad.
	client.setState("disconnected", nil)
	cached := monitor.Check(ctx, "s1")
	if !cached.Healthy {
		t.Fatal("expected memoized healthy verdict within TTL")
	}

	clock.Advance(DefaultConfig().HealthCacheTTL + time.Second)
	fresh := monitor.Check(ctx, "s1")
	if fresh.Healthy {
		t.Fatal("expected real check after TTL expiry")
	}
}

func TestResetClearsCacheAndRecord(t *testing.T) {
	registry := NewRegistry()
	client := newFakeClient()
	client.setState("disconnected", nil)
	registry.Register("s1", client)

	monitor := newTestMonitor(registry, newFakeClock(), nil)
	ctx := context.Background()
	monitor.CheckNow(ctx, "s1")
	monitor.Reset("s1")

	record, ok := monitor.Record("s1")
	if !ok || !record.Healthy || record.FailedChecks != 0 {
		t.Fatalf("record after reset = %+v", record)
	}

	client.setState(StateConnected, nil)
	if status := monitor.Check(ctx, "s1"); !status.Healthy {
		t.Fatal("Check after reset served a stale cached verdict")
	}
}
