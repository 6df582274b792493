package whatsapp

import "time"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusWaitingForScan Status = "waiting_for_scan"
	StatusConnected      Status = "connected"
	StatusDisconnected   Status = "disconnected"
	StatusAuthFailed     Status = "auth_failed"
	StatusRecovering     Status = "recovering"
	StatusFailed         Status = "failed"
	StatusDestroyed      Status = "destroyed"
)

// Session is one logical automated chat identity. The in-memory record is
// authoritative for liveness; the persisted document is authoritative for
// restore-on-startup.
type Session struct {
	SessionID            string     `json:"session_id"`
	Status               Status     `json:"status"`
	PhoneNumber          string     `json:"phone_number,omitempty"`
	DisplayName          string     `json:"display_name,omitempty"`
	QRCode               string     `json:"qr_code,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	ConnectedAt          *time.Time `json:"connected_at,omitempty"`
	DisconnectedAt       *time.Time `json:"disconnected_at,omitempty"`
	LastDisconnectReason string     `json:"last_disconnect_reason,omitempty"`
	LastError            string     `json:"last_error,omitempty"`
}

// apply advances the session through the state machine for one client event.
// It is the single writer of Status for client-driven transitions and
// returns false when the event changes nothing. Destroyed is terminal:
// a torn-down session ignores late events from its old handle.
func (s *Session) apply(ev Event, now time.Time) bool {
	if s.Status == StatusDestroyed {
		return false
	}

	switch e := ev.(type) {
	case EventQR:
		s.Status = StatusWaitingForScan
		s.QRCode = e.Code
	case EventAuthenticated:
		s.QRCode = ""
	case EventReady:
		s.Status = StatusConnected
		s.PhoneNumber = e.PhoneNumber
		s.DisplayName = e.DisplayName
		s.QRCode = ""
		s.LastError = ""
		connectedAt := now
		s.ConnectedAt = &connectedAt
	case EventDisconnected:
		s.Status = StatusDisconnected
		s.LastDisconnectReason = e.Reason
		disconnectedAt := now
		s.DisconnectedAt = &disconnectedAt
	case EventAuthFailed:
		s.Status = StatusAuthFailed
		s.LastError = e.Reason
	case EventFailure:
		if e.Err == nil {
			return false
		}
		s.LastError = e.Err.Error()
	default:
		return false
	}

	s.UpdatedAt = now
	return true
}

// document renders the persisted projection of the session.
func (s *Session) document() map[string]interface{} {
	doc := map[string]interface{}{
		"sessionId": s.SessionID,
		"status":    string(s.Status),
		"createdAt": s.CreatedAt,
		"updatedAt": s.UpdatedAt,
	}
	if s.PhoneNumber != "" {
		doc["phoneNumber"] = s.PhoneNumber
	}
	if s.DisplayName != "" {
		doc["displayName"] = s.DisplayName
	}
	if s.QRCode != "" {
		doc["qrCode"] = s.QRCode
	}
	if s.ConnectedAt != nil {
		doc["connectedAt"] = *s.ConnectedAt
	}
	if s.DisconnectedAt != nil {
		doc["disconnectedAt"] = *s.DisconnectedAt
	}
	if s.LastDisconnectReason != "" {
		doc["lastDisconnectReason"] = s.LastDisconnectReason
	}
	if s.LastError != "" {
		doc["lastError"] = s.LastError
	}
	return doc
}
