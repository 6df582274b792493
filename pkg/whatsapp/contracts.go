package whatsapp

import (
	"context"
)

// SessionStore is the durable projection of session state. The core never
// assumes anything beyond single-document atomicity; the in-memory registry
// stays the truth for "can I send right now" while the store is the truth
// for "what should be restored on restart".
type SessionStore interface {
	Get(ctx context.Context, collection string, id string) (map[string]interface{}, error)
	Set(ctx context.Context, collection string, id string, fields map[string]interface{}, merge bool) error
	Delete(ctx context.Context, collection string, id string) error
	Query(ctx context.Context, collection string, field string, op string, value interface{}) ([]map[string]interface{}, error)
}

// Publisher broadcasts state transitions to connected dashboards.
// At-most-once, fire-and-forget; the core never blocks on or retries it.
type Publisher interface {
	Publish(event string, payload interface{})
}

// Notifier receives administrative events (session connected, recovery
// failed, logout). Failures are the notifier's problem; the core never
// waits on delivery.
type Notifier interface {
	Notify(event string, session Session)
}

// DeviceRouting maps a session id to the durable chat-network identity it
// authenticated as, so recovery and restart can resume the same identity
// without a fresh QR scan.
type DeviceRouting interface {
	GetJID(ctx context.Context, sessionID string) (string, error)
	SaveJID(ctx context.Context, sessionID string, jid string) error
	DeleteJID(ctx context.Context, sessionID string) error
}

// SessionCollection is the document-store collection holding session
// projections, keyed by session id.
const SessionCollection = "sessions"

type noopPublisher struct{}

func (noopPublisher) Publish(string, interface{}) {}

// NoopPublisher returns a Publisher that drops everything.
func NoopPublisher() Publisher { return noopPublisher{} }
