package whatsapp

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecoverReplacesClient(t *testing.T) {
	old := newFakeClient()
	replacement := newFakeClient()
	env := newTestEnv(old, replacement)

	ctx := context.Background()
	if _, err := env.manager.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := env.manager.Recover(ctx, "s1"); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if old.destroyed == 0 {
		t.Fatal("old handle not destroyed")
	}
	got, ok := env.registry.Get("s1")
	if !ok || got != ChatClient(replacement) {
		t.Fatal("registry does not hold the replacement handle")
	}

	session, _ := env.manager.Session("s1")
	if session.Status != StatusConnected {
		t.Fatalf("status after recovery = %q, want connected", session.Status)
	}
	if env.store.status("s1") != string(StatusConnected) {
		t.Fatalf("persisted status = %q, want connected", env.store.status("s1"))
	}
	if !env.publisher.Has("session:recovery_started") || !env.publisher.Has("session:recovery_succeeded") {
		t.Fatalf("recovery events missing: %v", env.publisher.Events())
	}
	if env.clock.SleepCount() == 0 {
		t.Fatal("recovery skipped the settle delay")
	}
}

func TestRecoverFailureIsTerminal(t *testing.T) {
	old := newFakeClient()
	env := newTestEnv(old)
	env.factory.errs = []error{nil, errors.New("device store unavailable")}

	ctx := context.Background()
	if _, err := env.manager.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := env.manager.Recover(ctx, "s1")
	if err == nil {
		t.Fatal("expected recovery error")
	}
	if ErrorKind(err) != KindRecoveryFailed {
		t.Fatalf("error kind = %q, want recovery_failed", ErrorKind(err))
	}

	session, _ := env.manager.Session("s1")
	if session.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", session.Status)
	}
	if env.store.status("s1") != string(StatusFailed) {
		t.Fatalf("persisted status = %q, want failed", env.store.status("s1"))
	}
	if !env.publisher.Has("session:recovery_failed") {
		t.Fatalf("recovery_failed event missing: %v", env.publisher.Events())
	}

	found := false
	for _, event := range env.notifier.Events() {
		if event == "session_recovery_failed" {
			found = true
		}
	}
	if !found {
		t.Fatal("administrative notification for terminal failure missing")
	}
	if _, ok := env.manager.Health().Record("s1"); ok {
		t.Fatal("failed session still health-tracked")
	}
}

func TestRecoverConcurrentCallsCoalesce(t *testing.T) {
	env := newTestEnv(newFakeClient(), newFakeClient())

	if !env.manager.beginRecovery("s1") {
		t.Fatal("first beginRecovery refused")
	}
	if env.manager.beginRecovery("s1") {
		t.Fatal("second beginRecovery admitted while first in flight")
	}
	env.manager.endRecovery("s1")
	if !env.manager.beginRecovery("s1") {
		t.Fatal("beginRecovery refused after completion")
	}
}

func TestRecycleStaleRecyclesOldSessions(t *testing.T) {
	first := newFakeClient()
	replacement := newFakeClient()
	env := newTestEnv(first, replacement)

	ctx := context.Background()
	if _, err := env.manager.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	env.manager.handleEvent("s1", EventReady{PhoneNumber: "96170000001", DisplayName: "Support"})

	// Under the maximum age nothing happens.
	env.clock.Advance(time.Hour)
	env.manager.RecycleStale(ctx)
	if env.factory.callCount() != 1 {
		t.Fatalf("factory calls = %d, want 1 (no recycle yet)", env.factory.callCount())
	}

	env.clock.Advance(4 * time.Hour)
	env.manager.RecycleStale(ctx)
	if env.factory.callCount() != 2 {
		t.Fatalf("factory calls = %d, want 2 (recycled)", env.factory.callCount())
	}
	session, _ := env.manager.Session("s1")
	if session.Status != StatusConnected {
		t.Fatalf("status after recycle = %q, want connected", session.Status)
	}
}
