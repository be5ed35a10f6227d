package utils

import "strings"

// ValidOTPCode reports whether code has the shape of a one-time code:
// exactly four ASCII digits.
func ValidOTPCode(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizePhone strips spaces, dashes, dots and parentheses from a phone
// number, keeping a leading plus.  It returns "" when fewer than seven
// digits remain.
func NormalizePhone(phone string) string {
	var b strings.Builder
	digits := 0
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return ""
		}
	}
	if digits < 7 {
		return ""
	}
	return b.String()
}
