// Package repository defines the storage contracts for verification codes
// and users. Backends live in the memory, redis and scylla subpackages and
// share the sentinel errors declared here.
package repository

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"life-auth/internal/models"

	"github.com/oklog/ulid/v2"
)

var (
	ErrCodeNotFound = errors.New("verification code not found")
	ErrCodeExpired  = errors.New("verification code expired")
	ErrCodeMismatch = errors.New("verification code mismatch")
	ErrUserNotFound = errors.New("user not found")
)

const (
	CodeLength = 6
	codeMin    = 100000
	codeSpan   = 900000
)

// CodeStore keeps at most one outstanding code per phone number.
type CodeStore interface {
	// Issue creates a fresh code for phoneNumber, replacing any earlier one.
	Issue(ctx context.Context, phoneNumber string) (string, error)
	// Validate consumes the code. It returns ErrCodeNotFound, ErrCodeExpired
	// (the entry is removed) or ErrCodeMismatch (the entry is kept).
	// Check and delete happen as one step.
	Validate(ctx context.Context, phoneNumber, code string) error
}

// UserDirectory stores users keyed by id and by phone number.
type UserDirectory interface {
	FindByPhone(ctx context.Context, phoneNumber string) (*models.User, bool, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	// Create inserts a new user. Callers look up by phone first. Backends
	// shared between processes may instead return the user that already
	// holds the phone number.
	Create(ctx context.Context, phoneNumber string) (*models.User, error)
}

// HealthChecker is implemented by backends that talk to a remote system.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Clock returns the current time. Stores take one so tests can move time.
type Clock func() time.Time

// GenerateCode returns a uniformly random code in 100000-999999.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%d", codeMin+n.Int64()), nil
}

// NewUserID returns "user_" followed by a ULID: a millisecond timestamp
// prefix and a random suffix.
func NewUserID(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return "user_" + id.String()
}
