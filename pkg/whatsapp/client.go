package whatsapp

import "context"

// StateConnected is the state string a healthy client reports.
const StateConnected = "connected"

// Chat is a conversation the client participates in.
type Chat struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsGroup bool   `json:"is_group"`
}

// ChatClient is one authenticated chat session on the automation network.
// Implementations must be safe for sequential use from multiple goroutines;
// the core never issues concurrent calls against one handle.
type ChatClient interface {
	// Initialize connects the client. When no durable credentials exist
	// the QR pairing flow starts and codes arrive through the event sink.
	Initialize(ctx context.Context) error

	// GetState reports the connection state ("connected" when usable).
	GetState(ctx context.Context) (string, error)

	SendMessage(ctx context.Context, destination string, text string) (string, error)
	SendImage(ctx context.Context, destination string, data []byte, mimeType string, caption string) (string, error)
	SendDocument(ctx context.Context, destination string, data []byte, mimeType string, filename string) (string, error)
	SendReaction(ctx context.Context, destination string, messageID string, emoji string) error

	IsRegisteredUser(ctx context.Context, phone string) (bool, error)
	CreateGroup(ctx context.Context, name string, members []string) (string, error)
	GetChats(ctx context.Context) ([]Chat, error)

	// Destroy tears the handle down. Best effort; never returns an error
	// because cleanup failing must not block forward progress.
	Destroy()

	// Logout invalidates the durable credentials and tears down.
	Logout(ctx context.Context) error
}

// Event is a tagged lifecycle notification from a client. The session state
// machine is the only consumer and the only writer of Session.Status.
type Event interface {
	eventName() string
}

type EventQR struct{ Code string }

type EventAuthenticated struct{}

type EventReady struct {
	PhoneNumber string
	DisplayName string
}

type EventDisconnected struct{ Reason string }

type EventAuthFailed struct{ Reason string }

type EventFailure struct{ Err error }

func (EventQR) eventName() string            { return "qr" }
func (EventAuthenticated) eventName() string { return "authenticated" }
func (EventReady) eventName() string         { return "ready" }
func (EventDisconnected) eventName() string  { return "disconnected" }
func (EventAuthFailed) eventName() string    { return "auth_failure" }
func (EventFailure) eventName() string       { return "error" }

// EventSink receives lifecycle events for a session.
type EventSink func(sessionID string, event Event)

// ClientFactory builds a client handle for a session id, reusing durable
// credentials keyed by that id when they exist.
type ClientFactory func(ctx context.Context, sessionID string, sink EventSink) (ChatClient, error)
