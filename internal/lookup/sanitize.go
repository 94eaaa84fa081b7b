package lookup

import (
	"errors"
	"strings"
)

const (
	minDigits = 7
	maxDigits = 15
)

// ErrMalformedNumber is returned by SanitizeNumber for input that cannot be a phone number.
var ErrMalformedNumber = errors.New("malformed phone number")

// SanitizeNumber strips common separators and an optional leading '+' and returns the bare
// digits. E.164 bounds apply: 7 to 15 digits.
func SanitizeNumber(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	trimmed = strings.TrimPrefix(trimmed, "+")

	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '.', r == '(', r == ')':
		default:
			return "", ErrMalformedNumber
		}
	}

	digits := b.String()
	if len(digits) < minDigits || len(digits) > maxDigits {
		return "", ErrMalformedNumber
	}

	return digits, nil
}
