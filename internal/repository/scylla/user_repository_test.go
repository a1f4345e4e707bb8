package scylla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserFromClaim_ReturnsWinningRow(t *testing.T) {
	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	existing := map[string]interface{}{
		"phone_number": "13800138000",
		"user_id":      "user_01HZZZZZZZZZZZZZZZZZZZZZZZ",
		"created_at":   createdAt,
	}

	user, err := userFromClaim(existing)
	require.NoError(t, err)
	assert.Equal(t, "user_01HZZZZZZZZZZZZZZZZZZZZZZZ", user.ID)
	assert.Equal(t, "13800138000", user.PhoneNumber)
	assert.Equal(t, createdAt, user.CreatedAt)
}

func TestUserFromClaim_IncompleteRow(t *testing.T) {
	_, err := userFromClaim(map[string]interface{}{})
	assert.ErrorIs(t, err, errIncompleteClaim)

	_, err = userFromClaim(map[string]interface{}{"phone_number": "13800138000"})
	assert.ErrorIs(t, err, errIncompleteClaim)
}

func TestClaimStatementIsConditional(t *testing.T) {
	assert.Contains(t, stmtClaimPhone, "IF NOT EXISTS")
	assert.Contains(t, stmtClaimPhone, "users_by_phone")
}
