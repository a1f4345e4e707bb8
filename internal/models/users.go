package models

import "time"

// User is a person known to the service, identified by phone number.
type User struct {
	ID          string    `json:"id" db:"user_id"`
	PhoneNumber string    `json:"phoneNumber" db:"phone_number"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// UserSummary is the part of a User handed back on login.
type UserSummary struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phoneNumber"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, PhoneNumber: u.PhoneNumber}
}
