package whatsapp

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreatePersistsAndRegisters(t *testing.T) {
	client := newFakeClient()
	env := newTestEnv(client)

	session, err := env.manager.Create(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if session.Status != StatusWaitingForScan {
		t.Fatalf("status = %q, want waiting_for_scan", session.Status)
	}
	if _, ok := env.registry.Get("s1"); !ok {
		t.Fatal("client not registered")
	}
	if env.store.status("s1") != string(StatusWaitingForScan) {
		t.Fatalf("persisted status = %q", env.store.status("s1"))
	}
	if !env.publisher.Has("session:created") {
		t.Fatalf("created event missing: %v", env.publisher.Events())
	}
}

func TestCreateIsIdempotent(t *testing.T) {
	env := newTestEnv(newFakeClient())
	ctx := context.Background()

	if _, err := env.manager.Create(ctx, "s1"); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := env.manager.Create(ctx, "s1"); err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if env.factory.callCount() != 1 {
		t.Fatalf("factory calls = %d, want 1", env.factory.callCount())
	}
}

func TestCreateFailureLeavesNothingBehind(t *testing.T) {
	env := newTestEnv(newFakeClient())
	env.factory.errs = []error{errors.New("device store unavailable")}

	_, err := env.manager.Create(context.Background(), "s1")
	if err == nil {
		t.Fatal("expected creation error")
	}
	if _, ok := env.registry.Get("s1"); ok {
		t.Fatal("failed creation left a registry entry")
	}
	if _, ok := env.manager.Session("s1"); ok {
		t.Fatal("failed creation left an in-memory record")
	}
}

func TestInitializeTimeoutClassified(t *testing.T) {
	client := newFakeClient()
	client.initErr = context.DeadlineExceeded
	env := newTestEnv(client)

	_, err := env.manager.Create(context.Background(), "s1")
	if ErrorKind(err) != KindInitTimeout {
		t.Fatalf("kind = %q, want init_timeout", ErrorKind(err))
	}
	if client.destroyed == 0 {
		t.Fatal("partial client not destroyed after failed initialization")
	}
}

func TestReadyEventConnectsSession(t *testing.T) {
	env := newTestEnv(newFakeClient())
	ctx := context.Background()
	if _, err := env.manager.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	env.manager.handleEvent("s1", EventQR{Code: "data:image/png;base64,AAAA"})
	env.manager.handleEvent("s1", EventReady{PhoneNumber: "96170000001", DisplayName: "Support"})

	session, _ := env.manager.Session("s1")
	if session.Status != StatusConnected {
		t.Fatalf("status = %q, want connected", session.Status)
	}
	if session.QRCode != "" {
		t.Fatal("QR code survived connection")
	}
	if !env.publisher.Has("session:qr") || !env.publisher.Has("session:ready") {
		t.Fatalf("lifecycle events missing: %v", env.publisher.Events())
	}

	found := false
	for _, event := range env.notifier.Events() {
		if event == "session_connected" {
			found = true
		}
	}
	if !found {
		t.Fatal("session_connected notification missing")
	}
}

func TestEventForUnknownSessionIgnored(t *testing.T) {
	env := newTestEnv(newFakeClient())
	// A late event from a destroyed handle must not resurrect state.
	env.manager.handleEvent("ghost", EventReady{PhoneNumber: "96170000001"})
	if _, ok := env.manager.Session("ghost"); ok {
		t.Fatal("late event created a session record")
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	client := newFakeClient()
	env := newTestEnv(client)
	ctx := context.Background()
	if _, err := env.manager.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := env.manager.Logout(ctx, "s1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if client.loggedOut != 1 || client.destroyed == 0 {
		t.Fatalf("logout/destroy counts = %d/%d", client.loggedOut, client.destroyed)
	}
	if _, ok := env.registry.Get("s1"); ok {
		t.Fatal("registry entry survived logout")
	}

	session, _ := env.manager.Session("s1")
	if session.Status != StatusDestroyed {
		t.Fatalf("status = %q, want destroyed", session.Status)
	}
	if env.store.status("s1") != string(StatusDestroyed) {
		t.Fatalf("persisted status = %q, want destroyed", env.store.status("s1"))
	}
	if !env.publisher.Has("session:destroyed") {
		t.Fatalf("destroyed event missing: %v", env.publisher.Events())
	}

	if err := env.manager.Logout(ctx, "s1"); ErrorKind(err) != KindNotFound {
		t.Fatalf("second logout kind = %q, want not_found", ErrorKind(err))
	}
}

func TestRestoreKeepsPersistedIdentity(t *testing.T) {
	env := newTestEnv(newFakeClient())
	ctx := context.Background()

	createdAt := env.clock.Now().Add(-48 * time.Hour)
	_ = env.store.Set(ctx, SessionCollection, "s1", map[string]interface{}{
		"sessionId":   "s1",
		"status":      string(StatusConnected),
		"createdAt":   createdAt,
		"phoneNumber": "96170000001",
		"displayName": "Support",
	}, false)

	if err := env.manager.Restore(ctx, "s1"); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	session, ok := env.manager.Session("s1")
	if !ok {
		t.Fatal("restored session missing")
	}
	if !session.CreatedAt.Equal(createdAt) {
		t.Fatal("restore reset creation time")
	}
	if session.PhoneNumber != "96170000001" || session.DisplayName != "Support" {
		t.Fatalf("identity not restored: %q %q", session.PhoneNumber, session.DisplayName)
	}
	if _, ok := env.registry.Get("s1"); !ok {
		t.Fatal("restored session has no client handle")
	}
}

func TestShutdownDestroysEverything(t *testing.T) {
	a := newFakeClient()
	b := newFakeClient()
	env := newTestEnv(a, b)
	ctx := context.Background()
	if _, err := env.manager.Create(ctx, "a"); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if _, err := env.manager.Create(ctx, "b"); err != nil {
		t.Fatalf("Create b: %v", err)
	}

	env.manager.Shutdown(ctx)
	if env.registry.Len() != 0 {
		t.Fatalf("registry size after shutdown = %d", env.registry.Len())
	}
	if a.destroyed == 0 || b.destroyed == 0 {
		t.Fatal("not every client destroyed")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d, want 3", cfg.FailureThreshold)
	}
	if cfg.HealthCacheTTL != 15*time.Second {
		t.Errorf("HealthCacheTTL = %s, want 15s", cfg.HealthCacheTTL)
	}
	if cfg.MaxSessionAge != 4*time.Hour {
		t.Errorf("MaxSessionAge = %s, want 4h", cfg.MaxSessionAge)
	}
	if cfg.BulkDelayMin != 2*time.Second || cfg.BulkDelayMax != 3*time.Second {
		t.Errorf("bulk delay window = %s..%s, want 2s..3s", cfg.BulkDelayMin, cfg.BulkDelayMax)
	}
}
