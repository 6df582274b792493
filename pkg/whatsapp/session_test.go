package whatsapp

import (
	"errors"
	"testing"
	"time"
)

func TestSessionApplyTransitions(t *testing.T) {
	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		start      Status
		event      Event
		wantStatus Status
		check      func(t *testing.T, s *Session)
	}{
		{
			name:       "qr code arrives",
			start:      StatusWaitingForScan,
			event:      EventQR{Code: "data:image/png;base64,AAAA"},
			wantStatus: StatusWaitingForScan,
			check: func(t *testing.T, s *Session) {
				if s.QRCode == "" {
					t.Error("QR code not recorded")
				}
			},
		},
		{
			name:       "scan authenticated clears qr",
			start:      StatusWaitingForScan,
			event:      EventAuthenticated{},
			wantStatus: StatusWaitingForScan,
			check: func(t *testing.T, s *Session) {
				if s.QRCode != "" {
					t.Error("QR code not cleared on authentication")
				}
			},
		},
		{
			name:       "ready connects",
			start:      StatusWaitingForScan,
			event:      EventReady{PhoneNumber: "96170000001", DisplayName: "Support"},
			wantStatus: StatusConnected,
			check: func(t *testing.T, s *Session) {
				if s.PhoneNumber != "96170000001" || s.DisplayName != "Support" {
					t.Errorf("identity not recorded: %q %q", s.PhoneNumber, s.DisplayName)
				}
				if s.ConnectedAt == nil || !s.ConnectedAt.Equal(now) {
					t.Error("ConnectedAt not stamped")
				}
				if s.LastError != "" {
					t.Error("LastError not cleared on connect")
				}
			},
		},
		{
			name:       "disconnect records reason",
			start:      StatusConnected,
			event:      EventDisconnected{Reason: "stream replaced"},
			wantStatus: StatusDisconnected,
			check: func(t *testing.T, s *Session) {
				if s.LastDisconnectReason != "stream replaced" {
					t.Errorf("reason = %q", s.LastDisconnectReason)
				}
				if s.DisconnectedAt == nil {
					t.Error("DisconnectedAt not stamped")
				}
			},
		},
		{
			name:       "auth failure",
			start:      StatusConnected,
			event:      EventAuthFailed{Reason: "logged out by server"},
			wantStatus: StatusAuthFailed,
			check: func(t *testing.T, s *Session) {
				if s.LastError != "logged out by server" {
					t.Errorf("LastError = %q", s.LastError)
				}
			},
		},
		{
			name:       "failure keeps status",
			start:      StatusConnected,
			event:      EventFailure{Err: errors.New("connect failure: 503")},
			wantStatus: StatusConnected,
			check: func(t *testing.T, s *Session) {
				if s.LastError != "connect failure: 503" {
					t.Errorf("LastError = %q", s.LastError)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			session := &Session{SessionID: "s1", Status: tc.start, QRCode: "stale"}
			if tc.name == "qr code arrives" {
				session.QRCode = ""
			}
			if tc.name == "ready connects" {
				session.LastError = "previous failure"
			}
			if !session.apply(tc.event, now) {
				t.Fatal("apply reported no change")
			}
			if session.Status != tc.wantStatus {
				t.Fatalf("status = %q, want %q", session.Status, tc.wantStatus)
			}
			if !session.UpdatedAt.Equal(now) {
				t.Error("UpdatedAt not stamped")
			}
			tc.check(t, session)
		})
	}
}

func TestSessionApplyDestroyedIsTerminal(t *testing.T) {
	now := time.Now()
	session := &Session{SessionID: "s1", Status: StatusDestroyed}

	events := []Event{
		EventQR{Code: "late"},
		EventReady{PhoneNumber: "96170000001"},
		EventDisconnected{Reason: "late"},
		EventFailure{Err: errors.New("late")},
	}
	for _, ev := range events {
		if session.apply(ev, now) {
			t.Fatalf("destroyed session accepted %T", ev)
		}
	}
	if session.Status != StatusDestroyed {
		t.Fatalf("status left destroyed: %q", session.Status)
	}
}

func TestSessionDocumentOmitsEmptyFields(t *testing.T) {
	now := time.Now()
	session := &Session{SessionID: "s1", Status: StatusWaitingForScan, CreatedAt: now, UpdatedAt: now}

	doc := session.document()
	if doc["sessionId"] != "s1" || doc["status"] != string(StatusWaitingForScan) {
		t.Fatalf("core fields missing: %v", doc)
	}
	for _, key := range []string{"phoneNumber", "qrCode", "connectedAt", "lastError"} {
		if _, ok := doc[key]; ok {
			t.Errorf("empty field %q present in document", key)
		}
	}
}
