package whatsapp

import (
	"errors"
	"strings"

	"go.mau.fi/whatsmeow"
)

// ErrKind classifies a core operation failure so callers can decide whether
// to surface, retry, or escalate without parsing message text.
type ErrKind string

const (
	KindValidation      ErrKind = "validation"
	KindNotFound        ErrKind = "not_found"
	KindTransient       ErrKind = "transient"
	KindFatalConnection ErrKind = "fatal_connection"
	KindRecoveryFailed  ErrKind = "recovery_failed"
	KindInitTimeout     ErrKind = "init_timeout"
)

// OpError is the structured error returned by all core operations.
type OpError struct {
	Kind    ErrKind
	Message string
	Err     error
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *OpError) Unwrap() error { return e.Err }

func newOpError(kind ErrKind, message string) *OpError {
	return &OpError{Kind: kind, Message: message}
}

func wrapOpError(kind ErrKind, message string, err error) *OpError {
	return &OpError{Kind: kind, Message: message, Err: err}
}

// ErrorKind extracts the classification from an error chain. Errors the core
// did not produce are treated as transient.
func ErrorKind(err error) ErrKind {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return KindTransient
}

// fatalErrorPatterns are substrings of error text from the underlying client
// that indicate the session is irrecoverably gone and must be recovered
// immediately instead of accumulating toward the failure threshold.
// Substring matching on human-readable messages is brittle but kept for
// compatibility with the upstream library's error surface; typed errors are
// checked first where the library exposes them.
var fatalErrorPatterns = []string{
	"session closed",
	"protocol error",
	"page has been closed",
	"browser has disconnected",
	"websocket disconnected",
	"stream replaced",
	"websocket: close",
}

// IsFatalConnectionError reports whether err matches a known fatal
// connection pattern.
func IsFatalConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *OpError
	if errors.As(err, &opErr) && opErr.Kind == KindFatalConnection {
		return true
	}
	if errors.Is(err, whatsmeow.ErrClientIsNil) ||
		errors.Is(err, whatsmeow.ErrNotConnected) ||
		errors.Is(err, whatsmeow.ErrNotLoggedIn) {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, pattern := range fatalErrorPatterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}
