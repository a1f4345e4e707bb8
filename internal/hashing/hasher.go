// Package hashing turns verification codes into keyed digests so that
// durable code stores never hold a usable code.
package hashing

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"life-auth/internal/util"

	"golang.org/x/crypto/blake2b"
)

var ErrInvalidPepper = errors.New("pepper must be between 16 and 64 bytes")

// Hasher computes BLAKE2b-256 MACs keyed with a server-side pepper.
// Every instance sharing a code store must share the pepper.
type Hasher struct {
	pepper []byte
}

// NewHasher uses pepper as the MAC key. An empty pepper gets a random
// per-process key, which only works for a single instance.
func NewHasher(pepper string) (*Hasher, error) {
	if pepper == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate pepper: %w", err)
		}
		util.Warn("AUTH_CODE_PEPPER not set, using a random per-process pepper")
		return &Hasher{pepper: key}, nil
	}
	if len(pepper) < 16 || len(pepper) > blake2b.Size {
		return nil, ErrInvalidPepper
	}
	return &Hasher{pepper: []byte(pepper)}, nil
}

// Digest binds code to phoneNumber so a digest cannot be replayed for
// another number.
func (h *Hasher) Digest(phoneNumber, code string) string {
	mac, err := blake2b.New256(h.pepper)
	if err != nil {
		// Key length is checked in NewHasher.
		panic(err)
	}
	mac.Write([]byte(phoneNumber))
	mac.Write([]byte{0})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}
