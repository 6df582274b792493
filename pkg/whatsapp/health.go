package whatsapp

import (
	"context"
	"sync"
	"time"

	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
)

// HealthRecord is per-session bookkeeping of consecutive failed liveness
// checks. FailedChecks increments by exactly one per failed poll and is
// reset on the next success; crossing the threshold removes the record so
// one crossing cannot re-trigger recovery before a fresh run of failures.
type HealthRecord struct {
	Healthy      bool      `json:"healthy"`
	FailedChecks int       `json:"failed_checks"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
}

// HealthStatus is the classification of one liveness check.
type HealthStatus struct {
	SessionID    string    `json:"session_id"`
	Healthy      bool      `json:"healthy"`
	State        string    `json:"state,omitempty"`
	FailedChecks int       `json:"failed_checks,omitempty"`
	NotFound     bool      `json:"not_found,omitempty"`
	Fatal        bool      `json:"fatal,omitempty"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// HealthMonitor verifies that every registered session's client is actually
// connected, not just present in the map. A cron-driven Sweep covers the
// full registry; Check serves on-demand pre-send verification through a
// short TTL cache so a burst of requests does not trigger redundant state
// queries.
type HealthMonitor struct {
	registry     *Registry
	store        SessionStore
	clock        Clock
	threshold    int
	cacheTTL     time.Duration
	checkTimeout time.Duration
	onRecover    func(sessionID string)

	mu      sync.Mutex
	records map[string]*HealthRecord
	cache   map[string]HealthStatus
}

// NewHealthMonitor builds a monitor over the given registry. onRecover is
// invoked once per threshold crossing and once per fatal classification;
// it must tolerate being called from sweep and request goroutines.
func NewHealthMonitor(registry *Registry, store SessionStore, clock Clock, cfg Config, onRecover func(sessionID string)) *HealthMonitor {
	return &HealthMonitor{
		registry:     registry,
		store:        store,
		clock:        clock,
		threshold:    cfg.FailureThreshold,
		cacheTTL:     cfg.HealthCacheTTL,
		checkTimeout: cfg.HealthCheckTimeout,
		onRecover:    onRecover,
		records:      make(map[string]*HealthRecord),
		cache:        make(map[string]HealthStatus),
	}
}

// Check returns the memoized classification when one is fresh enough,
// otherwise performs a real check.
func (h *HealthMonitor) Check(ctx context.Context, sessionID string) HealthStatus {
	now := h.clock.Now()
	h.mu.Lock()
	if status, ok := h.cache[sessionID]; ok && now.Sub(status.CheckedAt) < h.cacheTTL {
		h.mu.Unlock()
		return status
	}
	h.mu.Unlock()
	return h.CheckNow(ctx, sessionID)
}

// CheckNow polls the client state with a bounded timeout and classifies the
// outcome. An absent handle is a distinct terminal classification ("must
// fully recreate") and never counts toward the failure threshold.
func (h *HealthMonitor) CheckNow(ctx context.Context, sessionID string) HealthStatus {
	client, ok := h.registry.Get(sessionID)
	if !ok {
		status := HealthStatus{
			SessionID: sessionID,
			NotFound:  true,
			Error:     "session not found in registry",
			CheckedAt: h.clock.Now(),
		}
		h.mu.Lock()
		h.cache[sessionID] = status
		h.mu.Unlock()
		return status
	}

	stateCtx, cancel := context.WithTimeout(ctx, h.checkTimeout)
	state, err := client.GetState(stateCtx)
	cancel()

	now := h.clock.Now()
	if err == nil && state == StateConnected {
		h.mu.Lock()
		record := h.record(sessionID)
		record.Healthy = true
		record.FailedChecks = 0
		record.LastCheck = now
		record.LastError = ""
		status := HealthStatus{SessionID: sessionID, Healthy: true, State: state, CheckedAt: now}
		h.cache[sessionID] = status
		h.mu.Unlock()

		_ = h.store.Set(ctx, SessionCollection, sessionID, map[string]interface{}{
			"status":    string(StatusConnected),
			"updatedAt": now,
		}, true)
		return status
	}

	reason := "client state is " + state
	if err != nil {
		reason = err.Error()
	}
	fatal := IsFatalConnectionError(err)

	var recoverNow bool
	h.mu.Lock()
	record := h.record(sessionID)
	record.Healthy = false
	record.LastCheck = now
	record.LastError = reason
	status := HealthStatus{SessionID: sessionID, State: state, Error: reason, Fatal: fatal, CheckedAt: now}
	if fatal {
		// Fatal connection errors bypass the counter entirely.
		delete(h.records, sessionID)
		recoverNow = true
	} else {
		record.FailedChecks++
		status.FailedChecks = record.FailedChecks
		if record.FailedChecks >= h.threshold {
			delete(h.records, sessionID)
			recoverNow = true
		}
	}
	h.cache[sessionID] = status
	h.mu.Unlock()

	_ = h.store.Set(ctx, SessionCollection, sessionID, map[string]interface{}{
		"lastError": reason,
		"updatedAt": now,
	}, true)

	if recoverNow && h.onRecover != nil {
		h.onRecover(sessionID)
	}
	return status
}

// Sweep checks every registered session once.
func (h *HealthMonitor) Sweep(ctx context.Context) {
	for _, sessionID := range h.registry.ListIDs() {
		status := h.CheckNow(ctx, sessionID)
		if status.Healthy {
			log.SessionOp(sessionID, "HealthSweep").Info("Client healthy")
		} else {
			log.SessionOp(sessionID, "HealthSweep").WithField("failed_checks", status.FailedChecks).Warn("Client unhealthy: " + status.Error)
		}
	}
}

// Record returns a copy of the session's health record.
func (h *HealthMonitor) Record(sessionID string) (HealthRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	record, ok := h.records[sessionID]
	if !ok {
		return HealthRecord{}, false
	}
	return *record, true
}

// Records returns a copy of every tracked health record.
func (h *HealthMonitor) Records() map[string]HealthRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]HealthRecord, len(h.records))
	for id, record := range h.records {
		out[id] = *record
	}
	return out
}

// Reset clears the failure history and memoized classification, used after
// a successful recovery so the threshold requires a fresh run of failures.
func (h *HealthMonitor) Reset(sessionID string) {
	h.mu.Lock()
	h.records[sessionID] = &HealthRecord{Healthy: true, LastCheck: h.clock.Now()}
	delete(h.cache, sessionID)
	h.mu.Unlock()
}

// Untrack stops health tracking for a session that reached a terminal state.
func (h *HealthMonitor) Untrack(sessionID string) {
	h.mu.Lock()
	delete(h.records, sessionID)
	delete(h.cache, sessionID)
	h.mu.Unlock()
}

func (h *HealthMonitor) record(sessionID string) *HealthRecord {
	record, ok := h.records[sessionID]
	if !ok {
		record = &HealthRecord{}
		h.records[sessionID] = record
	}
	return record
}
