package whatsapp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anekolabs/whatsapp-admin-api/pkg/env"
	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
)

// Config carries the tunables of the session lifecycle core. Every knob has
// an environment override; see ConfigFromEnv.
type Config struct {
	// HealthCheckTimeout bounds a single client state query.
	HealthCheckTimeout time.Duration
	// HealthCacheTTL memoizes a classification for bursts of requests.
	HealthCacheTTL time.Duration
	// FailureThreshold is the run of consecutive non-fatal failures that
	// hands a session off to recovery.
	FailureThreshold int
	// RecoverySettleDelay lets in-flight teardown finish before recreate.
	RecoverySettleDelay time.Duration
	// MaxSessionAge recycles long-lived connected sessions through
	// recovery to bound resource growth in the underlying client.
	MaxSessionAge time.Duration
	// InitTimeout bounds client creation; exceeding it is a creation
	// failure and the partial client is removed so a retry starts clean.
	InitTimeout time.Duration
	// BulkDelayMin/Max bound the randomized pause between sequential
	// sends, to stay under the network's anti-abuse heuristics.
	BulkDelayMin time.Duration
	BulkDelayMax time.Duration
}

func DefaultConfig() Config {
	return Config{
		HealthCheckTimeout:  10 * time.Second,
		HealthCacheTTL:      15 * time.Second,
		FailureThreshold:    3,
		RecoverySettleDelay: 5 * time.Second,
		MaxSessionAge:       4 * time.Hour,
		InitTimeout:         2 * time.Minute,
		BulkDelayMin:        2 * time.Second,
		BulkDelayMax:        3 * time.Second,
	}
}

// ConfigFromEnv starts from the defaults and applies environment overrides.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.HealthCheckTimeout = env.GetEnvDurationOrDefault("WHATSAPP_HEALTH_CHECK_TIMEOUT", cfg.HealthCheckTimeout)
	cfg.HealthCacheTTL = env.GetEnvDurationOrDefault("WHATSAPP_HEALTH_CACHE_TTL", cfg.HealthCacheTTL)
	cfg.FailureThreshold = env.GetEnvIntOrDefault("WHATSAPP_HEALTH_FAILURE_THRESHOLD", cfg.FailureThreshold)
	cfg.RecoverySettleDelay = env.GetEnvDurationOrDefault("WHATSAPP_RECOVERY_SETTLE_DELAY", cfg.RecoverySettleDelay)
	cfg.MaxSessionAge = env.GetEnvDurationOrDefault("WHATSAPP_MAX_SESSION_AGE", cfg.MaxSessionAge)
	cfg.InitTimeout = env.GetEnvDurationOrDefault("WHATSAPP_INIT_TIMEOUT", cfg.InitTimeout)
	cfg.BulkDelayMin = env.GetEnvDurationOrDefault("WHATSAPP_BULK_DELAY_MIN", cfg.BulkDelayMin)
	cfg.BulkDelayMax = env.GetEnvDurationOrDefault("WHATSAPP_BULK_DELAY_MAX", cfg.BulkDelayMax)
	return cfg
}

// Manager owns the session lifecycle: it creates clients through the
// factory, feeds their events through the state machine, keeps the durable
// projection converged, and drives recovery when the health monitor hands a
// session off.
type Manager struct {
	cfg       Config
	registry  *Registry
	store     SessionStore
	publisher Publisher
	notifier  Notifier
	clock     Clock
	factory   ClientFactory
	health    *HealthMonitor

	mu         sync.RWMutex
	sessions   map[string]*Session
	recovering map[string]bool
}

func NewManager(cfg Config, registry *Registry, store SessionStore, publisher Publisher, clock Clock, factory ClientFactory) *Manager {
	if publisher == nil {
		publisher = NoopPublisher()
	}
	if clock == nil {
		clock = SystemClock()
	}
	m := &Manager{
		cfg:        cfg,
		registry:   registry,
		store:      store,
		publisher:  publisher,
		clock:      clock,
		factory:    factory,
		sessions:   make(map[string]*Session),
		recovering: make(map[string]bool),
	}
	m.health = NewHealthMonitor(registry, store, clock, cfg, func(sessionID string) {
		if err := m.Recover(context.Background(), sessionID); err != nil {
			log.SessionOp(sessionID, "Recover").WithError(err).Error("Recovery failed")
		}
	})
	return m
}

// SetNotifier installs the administrative event notifier. Optional.
func (m *Manager) SetNotifier(n Notifier) { m.notifier = n }

func (m *Manager) Registry() *Registry { return m.registry }
func (m *Manager) Health() *HealthMonitor { return m.health }
func (m *Manager) Store() SessionStore { return m.store }

// Create starts a new session. When no durable credentials exist for the id
// the QR pairing flow begins and the code is published to dashboards as it
// arrives. Create is idempotent for an already-registered id.
func (m *Manager) Create(ctx context.Context, sessionID string) (Session, error) {
	if _, ok := m.registry.Get(sessionID); ok {
		if snapshot, ok := m.Session(sessionID); ok {
			return snapshot, nil
		}
	}

	now := m.clock.Now()
	session := &Session{
		SessionID: sessionID,
		Status:    StatusWaitingForScan,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.mu.Lock()
	m.sessions[sessionID] = session
	snapshot := *session
	m.mu.Unlock()

	if err := m.store.Set(ctx, SessionCollection, sessionID, snapshot.document(), false); err != nil {
		log.SessionOp(sessionID, "Create").WithError(err).Warn("Failed to persist session document")
	}

	client, err := m.createClient(ctx, sessionID)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		_ = m.store.Set(ctx, SessionCollection, sessionID, map[string]interface{}{
			"lastError": err.Error(),
			"updatedAt": m.clock.Now(),
		}, true)
		return Session{}, err
	}

	m.registry.Register(sessionID, client)
	m.publisher.Publish("session:created", snapshot)
	log.SessionOp(sessionID, "Create").Info("Session created")
	return snapshot, nil
}

// Restore resurrects a session from its persisted projection without
// resetting its creation metadata. Used by the startup sweep for sessions
// last known connected.
func (m *Manager) Restore(ctx context.Context, sessionID string) error {
	now := m.clock.Now()
	session := &Session{
		SessionID: sessionID,
		Status:    StatusDisconnected,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if doc, err := m.store.Get(ctx, SessionCollection, sessionID); err == nil {
		if createdAt, ok := docTime(doc["createdAt"]); ok {
			session.CreatedAt = createdAt
		}
		if phone, ok := doc["phoneNumber"].(string); ok {
			session.PhoneNumber = phone
		}
		if name, ok := doc["displayName"].(string); ok {
			session.DisplayName = name
		}
	}

	m.mu.Lock()
	m.sessions[sessionID] = session
	m.mu.Unlock()

	client, err := m.createClient(ctx, sessionID)
	if err != nil {
		_ = m.store.Set(ctx, SessionCollection, sessionID, map[string]interface{}{
			"status":    string(StatusDisconnected),
			"lastError": err.Error(),
			"updatedAt": m.clock.Now(),
		}, true)
		return err
	}

	m.registry.Register(sessionID, client)
	log.SessionOp(sessionID, "Restore").Info("Session restored from durable state")
	return nil
}

// createClient builds and initializes a handle with the configured timeout.
// On failure nothing is left behind in the registry.
func (m *Manager) createClient(ctx context.Context, sessionID string) (ChatClient, error) {
	client, err := m.factory(ctx, sessionID, m.handleEvent)
	if err != nil {
		return nil, wrapOpError(KindTransient, "failed to construct client", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, m.cfg.InitTimeout)
	defer cancel()
	if err := client.Initialize(initCtx); err != nil {
		m.registry.Remove(sessionID)
		client.Destroy()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(initCtx.Err(), context.DeadlineExceeded) {
			return nil, wrapOpError(KindInitTimeout, "client initialization timed out", err)
		}
		return nil, wrapOpError(KindTransient, "client initialization failed", err)
	}
	return client, nil
}

// handleEvent is the event sink handed to every client. All client-driven
// state transitions funnel through the session state machine here.
func (m *Manager) handleEvent(sessionID string, ev Event) {
	now := m.clock.Now()

	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok {
		// Late event from a destroyed handle.
		m.mu.Unlock()
		return
	}
	changed := session.apply(ev, now)
	snapshot := *session
	m.mu.Unlock()

	if !changed {
		return
	}

	if err := m.store.Set(context.Background(), SessionCollection, sessionID, snapshot.document(), true); err != nil {
		log.SessionOp(sessionID, "Event").WithError(err).Warn("Failed to persist session transition")
	}
	m.publisher.Publish("session:"+ev.eventName(), snapshot)

	switch ev.(type) {
	case EventReady:
		m.health.Reset(sessionID)
		m.notify("session_connected", snapshot)
		log.SessionOp(sessionID, "Event").Info("Session connected as " + maskPhone(snapshot.PhoneNumber))
	case EventAuthFailed:
		m.notify("session_auth_failed", snapshot)
	case EventDisconnected:
		log.SessionOp(sessionID, "Event").Warn("Session disconnected: " + snapshot.LastDisconnectReason)
	}
}

// Logout tears a session down and clears its durable credentials, so the
// identity cannot be resumed without a fresh QR scan.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	client, ok := m.registry.Get(sessionID)
	if !ok {
		return newOpError(KindNotFound, "session not found")
	}

	m.registry.Remove(sessionID)
	m.health.Untrack(sessionID)

	if err := client.Logout(ctx); err != nil {
		log.SessionOp(sessionID, "Logout").WithError(err).Warn("Logout cleanup failed")
	}
	client.Destroy()

	now := m.clock.Now()
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	var snapshot Session
	if ok {
		session.Status = StatusDestroyed
		session.UpdatedAt = now
		disconnectedAt := now
		session.DisconnectedAt = &disconnectedAt
		snapshot = *session
	}
	m.mu.Unlock()

	if ok {
		_ = m.store.Set(ctx, SessionCollection, sessionID, snapshot.document(), true)
		m.publisher.Publish("session:destroyed", snapshot)
		m.notify("session_logged_out", snapshot)
	}
	log.SessionOp(sessionID, "Logout").Info("Session destroyed")
	return nil
}

// Session returns a snapshot of the in-memory record.
func (m *Manager) Session(sessionID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

// Sessions returns snapshots of every in-memory record.
func (m *Manager) Sessions() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		out = append(out, *session)
	}
	return out
}

// Shutdown destroys every tracked client. Destroy errors never propagate;
// one stuck session must not block shutdown of the others.
func (m *Manager) Shutdown(ctx context.Context) {
	m.registry.Range(func(sessionID string, client ChatClient) {
		client.Destroy()
		m.registry.Remove(sessionID)
		log.SessionOp(sessionID, "Shutdown").Info("Client destroyed")
	})
}

func (m *Manager) notify(event string, session Session) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(event, session)
}

// docTime reads a timestamp from a stored document. JSONB round-trips
// timestamps as RFC3339 strings.
func docTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

func maskPhone(phone string) string {
	if len(phone) < 4 {
		return phone
	}
	return phone[:len(phone)-4] + "xxxx"
}
