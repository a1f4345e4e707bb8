// Package token mints the session tokens handed out after a successful
// phone verification.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ModeJWT    = "jwt"
	ModeOpaque = "opaque"

	issuerName = "life-auth"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidSecret = errors.New("jwt secret must not be empty")
)

// Issuer mints a token for a verified user.
type Issuer interface {
	Issue(userID string) (string, error)
}

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// JWTIssuer signs HS256 tokens carrying the user id as subject.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, ErrInvalidSecret
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (i *JWTIssuer) Issue(userID string) (string, error) {
	now := i.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		UserID: userID,
	})

	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the claims.
func (i *JWTIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// OpaqueIssuer produces "tok_<userID>_<random>" strings. They carry no
// signature and cannot be verified, so production configs reject this mode.
type OpaqueIssuer struct{}

func NewOpaqueIssuer() *OpaqueIssuer {
	return &OpaqueIssuer{}
}

func (OpaqueIssuer) Issue(userID string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return "tok_" + userID + "_" + hex.EncodeToString(b), nil
}

// UserIDFromOpaque extracts the user id embedded in an opaque token.
func UserIDFromOpaque(tok string) (string, bool) {
	rest, ok := strings.CutPrefix(tok, "tok_")
	if !ok {
		return "", false
	}
	i := strings.LastIndex(rest, "_")
	if i <= 0 {
		return "", false
	}
	return rest[:i], true
}

// NewIssuer picks the issuer for mode.
func NewIssuer(mode, secret string, ttl time.Duration) (Issuer, error) {
	switch mode {
	case ModeJWT, "":
		return NewJWTIssuer(secret, ttl)
	case ModeOpaque:
		return NewOpaqueIssuer(), nil
	default:
		return nil, fmt.Errorf("unknown token mode %q", mode)
	}
}
