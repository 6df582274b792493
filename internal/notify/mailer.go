package notify

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/anekolabs/whatsapp-admin-api/pkg/env"
	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
	"github.com/anekolabs/whatsapp-admin-api/pkg/whatsapp"
)

var subjects = map[string]string{
	"session_connected":       "Session connected",
	"session_auth_failed":     "Session authentication failed",
	"session_recovery_failed": "Session recovery failed - manual action required",
	"session_logged_out":      "Session logged out",
}

// Mailer emails administrative session events to the panel operators.
// Delivery is asynchronous and best effort: a broken SMTP relay must never
// slow down or fail a lifecycle transition.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	to     []string
}

// NewMailerFromEnv builds a Mailer from SMTP_* environment variables.
// Returns nil when SMTP_HOST is unset; callers treat a nil Mailer as
// "notifications disabled".
func NewMailerFromEnv() *Mailer {
	host, err := env.GetEnvString("SMTP_HOST")
	if err != nil {
		return nil
	}
	port := env.GetEnvIntOrDefault("SMTP_PORT", 587)
	username := env.GetEnvStringOrDefault("SMTP_USERNAME", "")
	password := env.GetEnvStringOrDefault("SMTP_PASSWORD", "")
	from := env.GetEnvStringOrDefault("SMTP_FROM", username)
	to, err := env.GetEnvString("NOTIFY_EMAIL")
	if err != nil {
		return nil
	}

	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		to:     []string{to},
	}
}

// Notify sends one administrative event email. Unknown events are dropped.
func (m *Mailer) Notify(event string, session whatsapp.Session) {
	subject, ok := subjects[event]
	if !ok {
		return
	}
	go m.send(event, subject, session)
}

func (m *Mailer) send(event, subject string, session whatsapp.Session) {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to...)
	msg.SetHeader("Subject", fmt.Sprintf("[whatsapp-admin] %s: %s", subject, session.SessionID))
	msg.SetBody("text/plain", fmt.Sprintf(
		"Session: %s\nStatus: %s\nPhone: %s\nLast error: %s\nUpdated: %s\n",
		session.SessionID, session.Status, session.PhoneNumber, session.LastError,
		session.UpdatedAt.Format("2006-01-02 15:04:05 MST")))

	if err := m.dialer.DialAndSend(msg); err != nil {
		log.SessionOp(session.SessionID, "Notify").WithError(err).Warn("Failed to send " + event + " email")
	}
}
