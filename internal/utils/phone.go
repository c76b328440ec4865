package utils

import (
	"strings"
	"unicode"
)

// NormalizeDutchPhone converts a free-form phone number to +31 E.164 style.
// A leading 0 becomes +31, a leading 00 becomes +, an 11-digit number starting
// with 31 only gains the +, other bare digits get a +31 prefix, and numbers
// already starting with + are kept. Separators (spaces, dashes, dots, parentheses) are
// dropped. Anything else returns "".
func NormalizeDutchPhone(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	plus := strings.HasPrefix(s, "+")
	if plus {
		s = s[1:]
	}

	var digits strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return ""
		}
	}
	d := digits.String()
	if len(d) < 8 || len(d) > 15 {
		return ""
	}

	switch {
	case plus:
		return "+" + d
	case strings.HasPrefix(d, "00"):
		return "+" + d[2:]
	case strings.HasPrefix(d, "0"):
		return "+31" + d[1:]
	case strings.HasPrefix(d, "31") && len(d) == 11:
		return "+" + d
	default:
		return "+31" + d
	}
}
