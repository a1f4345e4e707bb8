// Package memory holds process-lifetime implementations of the repository
// contracts. They back development deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"life-auth/internal/models"
	"life-auth/internal/repository"
	"life-auth/internal/util"

	"go.uber.org/zap"
)

type CodeStore struct {
	mu    sync.Mutex
	codes map[string]models.VerificationCode
	ttl   time.Duration
	now   repository.Clock
	gen   func() (string, error)
}

var _ repository.CodeStore = (*CodeStore)(nil)

type CodeStoreOption func(*CodeStore)

func WithClock(c repository.Clock) CodeStoreOption {
	return func(s *CodeStore) { s.now = c }
}

// WithGenerator overrides code generation. Tests use it to get known codes.
func WithGenerator(gen func() (string, error)) CodeStoreOption {
	return func(s *CodeStore) { s.gen = gen }
}

func NewCodeStore(ttl time.Duration, opts ...CodeStoreOption) *CodeStore {
	s := &CodeStore{
		codes: make(map[string]models.VerificationCode),
		ttl:   ttl,
		now:   time.Now,
		gen:   repository.GenerateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CodeStore) Issue(_ context.Context, phoneNumber string) (string, error) {
	code, err := s.gen()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.codes[phoneNumber] = models.VerificationCode{
		PhoneNumber: phoneNumber,
		Code:        code,
		ExpiresAt:   s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	util.Debug("Verification code stored",
		util.Phone("phone_number", phoneNumber),
		zap.Duration("ttl", s.ttl))
	return code, nil
}

func (s *CodeStore) Validate(_ context.Context, phoneNumber, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.codes[phoneNumber]
	if !ok {
		return repository.ErrCodeNotFound
	}
	if stored.Expired(s.now()) {
		delete(s.codes, phoneNumber)
		return repository.ErrCodeExpired
	}
	if stored.Code != code {
		return repository.ErrCodeMismatch
	}

	delete(s.codes, phoneNumber)
	return nil
}

// Len reports the number of outstanding codes.
func (s *CodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}
