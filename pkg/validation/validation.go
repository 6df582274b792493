package validation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MinPhoneDigits and MaxPhoneDigits bound a normalized destination number.
	MinPhoneDigits = 10
	MaxPhoneDigits = 15

	// MaxMessageLength is the longest text body accepted for a single send.
	MaxMessageLength = 4096

	// MaxSessionIDLength bounds a caller-chosen session identifier.
	MaxSessionIDLength = 64
)

var (
	ErrPhoneEmpty     = errors.New("phone number cannot be empty")
	ErrPhoneTooShort  = errors.New("phone number has fewer than 10 digits")
	ErrPhoneTooLong   = errors.New("phone number has more than 15 digits")
	ErrMessageEmpty   = errors.New("message cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds 4096 characters")

	ErrSessionIDEmpty   = errors.New("session_id cannot be empty")
	ErrSessionIDTooLong = errors.New("session_id exceeds 64 characters")
	ErrSessionIDInvalid = errors.New("session_id may only contain letters, digits, '-' and '_'")
)

// NormalizePhone reduces a destination phone number to bare digits in
// international form. Non-digit characters are stripped, a leading "00"
// international prefix is collapsed, and a spurious single leading "0" is
// collapsed while the remaining digit count still exceeds 10. Normalization
// is idempotent: feeding the result back in returns it unchanged.
func NormalizePhone(phone string) (string, error) {
	var digits strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}

	normalized := digits.String()
	if normalized == "" {
		return "", ErrPhoneEmpty
	}

	// Collapse prefixes until a fixed point so the result normalizes to
	// itself, even for inputs stacking several zero prefixes.
	for {
		if strings.HasPrefix(normalized, "00") {
			normalized = normalized[2:]
			continue
		}
		if strings.HasPrefix(normalized, "0") && len(normalized)-1 > MinPhoneDigits {
			normalized = normalized[1:]
			continue
		}
		break
	}

	if len(normalized) < MinPhoneDigits {
		return "", ErrPhoneTooShort
	}
	if len(normalized) > MaxPhoneDigits {
		return "", ErrPhoneTooLong
	}

	return normalized, nil
}

// ValidateSessionID checks a caller-chosen session identifier. Identifiers
// end up in URLs, log lines and database keys, so the charset is strict.
func ValidateSessionID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrSessionIDEmpty
	}
	if len(id) > MaxSessionIDLength {
		return ErrSessionIDTooLong
	}
	for _, r := range id {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return ErrSessionIDInvalid
		}
	}
	return nil
}

// ValidateMessage trims the text body and enforces the length bounds. The
// limit counts characters, not bytes, so multibyte text is not penalized.
// Callers must send the returned trimmed value, not the original input.
func ValidateMessage(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrMessageEmpty
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return trimmed, nil
}
