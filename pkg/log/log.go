package log

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

func init() {
	logger.Formatter = &logrus.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
		DisableColors:   false,
		ForceColors:     true,
	}
}

// Print returns a request-scoped log entry. Passing nil yields a plain entry
// for code paths that run outside an HTTP request.
func Print(c *fiber.Ctx) *logrus.Entry {
	if c == nil {
		return logger.WithFields(logrus.Fields{})
	}

	remoteIP := c.IP()
	if v := c.Locals("remote_ip"); v != nil {
		if ip, ok := v.(string); ok && ip != "" {
			remoteIP = ip
		}
	}
	return logger.WithFields(logrus.Fields{
		"remote_ip": remoteIP,
		"method":    c.Method(),
		"uri":       c.OriginalURL(),
	})
}

// SessionOp returns a log entry tagged with a session id and the lifecycle
// operation acting on it. Used by background routines that have no request.
func SessionOp(sessionID, op string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"op":         op,
	})
}
