package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"plain international", "96170000000", "96170000000", nil},
		{"plus prefix", "+96170000000", "96170000000", nil},
		{"double zero prefix", "0096170000001", "96170000001", nil},
		{"formatting characters", "+961 70-000 000", "96170000000", nil},
		{"spurious leading zero", "096170000000", "96170000000", nil},
		{"stacked zero prefixes", "00096170000000", "96170000000", nil},
		{"doubled international prefix", "0000096170000000", "96170000000", nil},
		{"leading zero kept at ten digits", "0617000000", "0617000000", nil},
		{"too short", "70000002", "", ErrPhoneTooShort},
		{"too long", "1234567890123456", "", ErrPhoneTooLong},
		{"empty", "", "", ErrPhoneEmpty},
		{"no digits", "abc-def", "", ErrPhoneEmpty},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePhone(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("NormalizePhone(%q) error = %v, want %v", tc.input, err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	inputs := []string{"96170000000", "0096170000001", "+961 70 000 000", "096170000000", "00096170000000", "0000096170000000", "123456789012345"}
	for _, input := range inputs {
		once, err := NormalizePhone(input)
		if err != nil {
			t.Fatalf("NormalizePhone(%q) unexpected error: %v", input, err)
		}
		twice, err := NormalizePhone(once)
		if err != nil {
			t.Fatalf("NormalizePhone(%q) second pass error: %v", once, err)
		}
		if once != twice {
			t.Fatalf("normalization not idempotent: %q -> %q -> %q", input, once, twice)
		}
	}
}

func TestValidateMessage(t *testing.T) {
	if _, err := ValidateMessage(""); !errors.Is(err, ErrMessageEmpty) {
		t.Fatalf("empty message error = %v, want %v", err, ErrMessageEmpty)
	}
	if _, err := ValidateMessage("   \n\t "); !errors.Is(err, ErrMessageEmpty) {
		t.Fatalf("whitespace message error = %v, want %v", err, ErrMessageEmpty)
	}
	if _, err := ValidateMessage(strings.Repeat("a", MaxMessageLength+1)); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("oversized message error = %v, want %v", err, ErrMessageTooLong)
	}

	got, err := ValidateMessage("  hello world  ")
	if err != nil {
		t.Fatalf("valid message returned error: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("ValidateMessage returned %q, want trimmed %q", got, "hello world")
	}

	boundary := strings.Repeat("b", MaxMessageLength)
	if got, err = ValidateMessage(boundary); err != nil || got != boundary {
		t.Fatalf("message at max length rejected: %v", err)
	}

	// The limit is per character: a multibyte message at the boundary is
	// longer than the limit in bytes but must still pass.
	multibyte := strings.Repeat("é", MaxMessageLength)
	if got, err = ValidateMessage(multibyte); err != nil || got != multibyte {
		t.Fatalf("multibyte message at max length rejected: %v", err)
	}
	if _, err := ValidateMessage(multibyte + "é"); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("multibyte message over max length error = %v, want %v", err, ErrMessageTooLong)
	}
}

func TestValidateSessionID(t *testing.T) {
	if err := ValidateSessionID(""); !errors.Is(err, ErrSessionIDEmpty) {
		t.Fatalf("empty id error = %v, want %v", err, ErrSessionIDEmpty)
	}
	if err := ValidateSessionID(strings.Repeat("x", MaxSessionIDLength+1)); !errors.Is(err, ErrSessionIDTooLong) {
		t.Fatalf("long id error = %v, want %v", err, ErrSessionIDTooLong)
	}
	for _, bad := range []string{"has space", "slash/id", "dot.id", "id@host"} {
		if err := ValidateSessionID(bad); !errors.Is(err, ErrSessionIDInvalid) {
			t.Fatalf("id %q error = %v, want %v", bad, err, ErrSessionIDInvalid)
		}
	}
	for _, good := range []string{"support-line-1", "Sales_Team", "a", strings.Repeat("x", MaxSessionIDLength)} {
		if err := ValidateSessionID(good); err != nil {
			t.Fatalf("id %q rejected: %v", good, err)
		}
	}
}
