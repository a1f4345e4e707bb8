package models

import "time"

// VerificationCode is the outstanding code for one phone number.
type VerificationCode struct {
	PhoneNumber string    `db:"phone_number"`
	Code        string    `db:"code"`
	ExpiresAt   time.Time `db:"expires_at"`
}

// Expired reports whether the code is past its window at now.
// A code is still valid at exactly ExpiresAt.
func (v *VerificationCode) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
