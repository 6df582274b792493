package whatsapp

import (
	"context"

	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
)

// Recover destroys and recreates an unhealthy session's client, reusing the
// durable credentials keyed by the session id so a previously linked
// identity resumes without a fresh QR scan. A failed recreate is terminal:
// the session is marked failed, its health tracking stops, and an operator
// has to reconnect it by hand.
func (m *Manager) Recover(ctx context.Context, sessionID string) error {
	if !m.beginRecovery(sessionID) {
		return nil
	}
	defer m.endRecovery(sessionID)

	log.SessionOp(sessionID, "Recover").Warn("Starting session recovery")

	// Remove before destroying so a concurrent health check observes
	// "absent", a well-defined state, never a half-replaced handle.
	if client, ok := m.registry.Get(sessionID); ok {
		m.registry.Remove(sessionID)
		client.Destroy()
	}

	snapshot := m.setStatus(ctx, sessionID, StatusRecovering, "")
	m.publisher.Publish("session:recovery_started", snapshot)

	// Let any in-flight teardown in the underlying client finish.
	m.clock.Sleep(ctx, m.cfg.RecoverySettleDelay)

	client, err := m.createClient(ctx, sessionID)
	if err != nil {
		snapshot = m.setStatus(ctx, sessionID, StatusFailed, err.Error())
		m.publisher.Publish("session:recovery_failed", snapshot)
		m.health.Untrack(sessionID)
		m.notify("session_recovery_failed", snapshot)
		log.SessionOp(sessionID, "Recover").WithError(err).Error("Recovery failed; session requires manual reconnection")
		return wrapOpError(KindRecoveryFailed, "session recovery failed", err)
	}

	m.registry.Register(sessionID, client)
	m.health.Reset(sessionID)
	snapshot = m.setStatus(ctx, sessionID, StatusConnected, "")
	m.publisher.Publish("session:recovery_succeeded", snapshot)
	log.SessionOp(sessionID, "Recover").Info("Session recovered")
	return nil
}

// RecycleStale routes sessions that have been continuously connected beyond
// the maximum age through the normal recovery procedure. Bounds resource
// growth in long-lived clients.
func (m *Manager) RecycleStale(ctx context.Context) {
	now := m.clock.Now()
	for _, session := range m.Sessions() {
		if session.Status != StatusConnected || session.ConnectedAt == nil {
			continue
		}
		if now.Sub(*session.ConnectedAt) < m.cfg.MaxSessionAge {
			continue
		}
		log.SessionOp(session.SessionID, "RecycleStale").Info("Recycling long-lived session")
		if err := m.Recover(ctx, session.SessionID); err != nil {
			log.SessionOp(session.SessionID, "RecycleStale").WithError(err).Error("Recycle failed")
		}
	}
}

// setStatus applies a lifecycle transition the recovery controller owns
// (recovering, failed, connected-after-recovery) to the in-memory record
// and the durable projection.
func (m *Manager) setStatus(ctx context.Context, sessionID string, status Status, lastError string) Session {
	now := m.clock.Now()

	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok {
		session = &Session{SessionID: sessionID, CreatedAt: now}
		m.sessions[sessionID] = session
	}
	session.Status = status
	session.UpdatedAt = now
	if lastError != "" {
		session.LastError = lastError
	}
	if status == StatusConnected {
		connectedAt := now
		session.ConnectedAt = &connectedAt
		session.LastError = ""
	}
	snapshot := *session
	m.mu.Unlock()

	if err := m.store.Set(ctx, SessionCollection, sessionID, snapshot.document(), true); err != nil {
		log.SessionOp(sessionID, "SetStatus").WithError(err).Warn("Failed to persist status transition")
	}
	return snapshot
}

func (m *Manager) beginRecovery(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recovering[sessionID] {
		return false
	}
	m.recovering[sessionID] = true
	return true
}

func (m *Manager) endRecovery(sessionID string) {
	m.mu.Lock()
	delete(m.recovering, sessionID)
	m.mu.Unlock()
}
