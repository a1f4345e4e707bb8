package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestJWTIssuer_IssueAndVerify(t *testing.T) {
	iss, err := NewJWTIssuer(secret, time.Hour)
	require.NoError(t, err)

	tok, err := iss.Issue("user_01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.NoError(t, err)

	claims, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user_01ARZ3NDEKTSV4RRFFQ69G5FAV", claims.Subject)
	assert.Equal(t, "user_01ARZ3NDEKTSV4RRFFQ69G5FAV", claims.UserID)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestJWTIssuer_UniqueIDs(t *testing.T) {
	iss, err := NewJWTIssuer(secret, time.Hour)
	require.NoError(t, err)

	a, err := iss.Issue("user_1")
	require.NoError(t, err)
	b, err := iss.Issue("user_1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestJWTIssuer_RejectsExpired(t *testing.T) {
	iss, err := NewJWTIssuer(secret, time.Minute)
	require.NoError(t, err)

	base := time.Now()
	iss.now = func() time.Time { return base }
	tok, err := iss.Issue("user_1")
	require.NoError(t, err)

	iss.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = iss.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTIssuer_RejectsOtherSecret(t *testing.T) {
	a, err := NewJWTIssuer(secret, time.Hour)
	require.NoError(t, err)
	b, err := NewJWTIssuer(strings.Repeat("x", 32), time.Hour)
	require.NoError(t, err)

	tok, err := a.Issue("user_1")
	require.NoError(t, err)

	_, err = b.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTIssuer_RejectsUnsignedAlgorithm(t *testing.T) {
	iss, err := NewJWTIssuer(secret, time.Hour)
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user_1"})
	tok, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTIssuer_EmptySecret(t *testing.T) {
	_, err := NewJWTIssuer("", time.Hour)
	assert.ErrorIs(t, err, ErrInvalidSecret)
}

func TestOpaqueIssuer(t *testing.T) {
	tok, err := NewOpaqueIssuer().Issue("user_abc")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tok, "tok_user_abc_"))

	id, ok := UserIDFromOpaque(tok)
	require.True(t, ok)
	assert.Equal(t, "user_abc", id)

	_, ok = UserIDFromOpaque("nope")
	assert.False(t, ok)
}

func TestNewIssuer(t *testing.T) {
	iss, err := NewIssuer(ModeJWT, secret, time.Hour)
	require.NoError(t, err)
	assert.IsType(t, &JWTIssuer{}, iss)

	iss, err = NewIssuer(ModeOpaque, "", 0)
	require.NoError(t, err)
	assert.IsType(t, &OpaqueIssuer{}, iss)

	_, err = NewIssuer("paseto", secret, time.Hour)
	assert.Error(t, err)
}
