package util

import (
	"strings"
	"unicode"
)

// NormalizeDigits trims whitespace and drops the separators people type
// into phone and code fields (spaces, dashes, parentheses).
func NormalizeDigits(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r), r == '-', r == '(', r == ')':
			return -1
		}
		return r
	}, s)
}

// MaskPhone hides the middle of a phone number: 13800138000 -> 138****8000.
func MaskPhone(phoneNumber string) string {
	if len(phoneNumber) < 8 {
		return strings.Repeat("*", len(phoneNumber))
	}
	return phoneNumber[:3] + strings.Repeat("*", len(phoneNumber)-7) + phoneNumber[len(phoneNumber)-4:]
}
