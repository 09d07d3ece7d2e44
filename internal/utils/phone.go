package utils

import "strings"

// NormalizePhone strips every non-digit character from a phone number,
// keeping a single leading + if present.
func NormalizePhone(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	for i, r := range trimmed {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TenDigitMobile reduces a phone number to its trailing 10 digits.
// Returns an empty string when fewer than 10 digits are present.
func TenDigitMobile(raw string) string {
	digits := strings.TrimPrefix(NormalizePhone(raw), "+")
	if len(digits) < 10 {
		return ""
	}
	return digits[len(digits)-10:]
}
