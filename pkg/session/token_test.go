package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeToken(t *testing.T) {
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := issued.Add(24 * time.Hour)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      "user-1",
		"user_id":  "5f0c",
		"username": "alice",
		"iat":      issued.Unix(),
		"exp":      expires.Unix(),
	}).SignedString([]byte("not-our-secret"))
	require.NoError(t, err)

	info, err := DescribeToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", info.Subject)
	assert.Equal(t, "5f0c", info.UserID)
	assert.Equal(t, "alice", info.Username)
	assert.True(t, info.IssuedAt.Equal(issued))
	assert.True(t, info.ExpiresAt.Equal(expires))
	assert.False(t, info.Expired(issued.Add(time.Hour)))
	assert.True(t, info.Expired(expires.Add(time.Second)))
}

func TestDescribeTokenRejectsOpaqueTokens(t *testing.T) {
	_, err := DescribeToken("abc123")
	assert.Error(t, err)
	_, err = DescribeToken("  ")
	assert.Error(t, err)
}

func TestExpiredWithoutExpiry(t *testing.T) {
	assert.False(t, TokenInfo{}.Expired(time.Now()))
}
