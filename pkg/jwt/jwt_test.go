package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("secret", "bot", true, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "bot", claims.Subject)
	assert.True(t, claims.Admin)
	require.NotNil(t, claims.ExpiresAt)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", "bot", false, 0)
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNonPositiveTTLHasNoExpiry(t *testing.T) {
	token, err := GenerateToken("secret", "bot", false, -time.Minute)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseToken("secret", "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
