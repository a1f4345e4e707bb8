package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"life-auth/internal/client"
	"life-auth/internal/hashing"
	"life-auth/internal/repository"
	"life-auth/internal/util"
)

const codePrefix = "verify_code:"

// Script results.
const (
	resultNotFound = 0
	resultExpired  = 1
	resultMismatch = 2
	resultOK       = 3
)

// validateScript checks and consumes a code in one round trip so two
// concurrent requests can never both redeem it.
//
// KEYS[1] code key, ARGV[1] submitted digest, ARGV[2] now in unix millis.
var validateScript = goredis.NewScript(`
local fields = redis.call('HMGET', KEYS[1], 'digest', 'expires_at')
if not fields[1] then
  return 0
end
if tonumber(ARGV[2]) > tonumber(fields[2]) then
  redis.call('DEL', KEYS[1])
  return 1
end
if fields[1] ~= ARGV[1] then
  return 2
end
redis.call('DEL', KEYS[1])
return 3
`)

// CodeStore keeps verification codes in Redis hashes holding the code
// digest and its deadline. The key itself outlives the deadline by the
// retention period so late attempts are reported as expired.
type CodeStore struct {
	client    *client.RedisClient
	hasher    *hashing.Hasher
	ttl       time.Duration
	retention time.Duration
	now       repository.Clock
	gen       func() (string, error)
}

var _ repository.CodeStore = (*CodeStore)(nil)

type Option func(*CodeStore)

func WithClock(c repository.Clock) Option {
	return func(s *CodeStore) { s.now = c }
}

func WithGenerator(gen func() (string, error)) Option {
	return func(s *CodeStore) { s.gen = gen }
}

func NewCodeStore(c *client.RedisClient, hasher *hashing.Hasher, ttl, retention time.Duration, opts ...Option) *CodeStore {
	s := &CodeStore{
		client:    c,
		hasher:    hasher,
		ttl:       ttl,
		retention: retention,
		now:       time.Now,
		gen:       repository.GenerateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func codeKey(phoneNumber string) string {
	return codePrefix + phoneNumber
}

func (s *CodeStore) Issue(ctx context.Context, phoneNumber string) (string, error) {
	code, err := s.gen()
	if err != nil {
		return "", err
	}

	key := codeKey(phoneNumber)
	expiresAt := s.now().Add(s.ttl)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"digest", s.hasher.Digest(phoneNumber, code),
		"expires_at", expiresAt.UnixMilli(),
	)
	pipe.PExpire(ctx, key, s.ttl+s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to store verification code",
			util.Phone("phone_number", phoneNumber),
			zap.Error(err))
		return "", fmt.Errorf("failed to store verification code: %w", err)
	}

	util.Debug("Verification code stored",
		util.Phone("phone_number", phoneNumber),
		zap.Time("expires_at", expiresAt))
	return code, nil
}

func (s *CodeStore) Validate(ctx context.Context, phoneNumber, code string) error {
	res, err := s.client.RunScript(ctx, validateScript,
		[]string{codeKey(phoneNumber)},
		s.hasher.Digest(phoneNumber, code),
		s.now().UnixMilli(),
	).Int()
	if err != nil {
		util.Error("Failed to validate verification code",
			util.Phone("phone_number", phoneNumber),
			zap.Error(err))
		return fmt.Errorf("failed to validate verification code: %w", err)
	}

	switch res {
	case resultOK:
		return nil
	case resultNotFound:
		return repository.ErrCodeNotFound
	case resultExpired:
		return repository.ErrCodeExpired
	case resultMismatch:
		return repository.ErrCodeMismatch
	default:
		return fmt.Errorf("unexpected validation result %d", res)
	}
}

// TTL reports how long Redis keeps the entry for phoneNumber.
func (s *CodeStore) TTL(ctx context.Context, phoneNumber string) (time.Duration, error) {
	return s.client.TTL(ctx, codeKey(phoneNumber))
}
