package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyTokenRoundTrip(t *testing.T) {
	v := NewVerifier("secret-1")

	tok, err := v.MintForTest("user-1", "u1@example.com", RoleMember, time.Hour)
	require.NoError(t, err)

	claims, err := v.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "u1@example.com", claims.Email)
	assert.Equal(t, RoleMember, claims.Role)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	tok, err := NewVerifier("secret-1").MintForTest("user-1", "u1@example.com", RoleMember, time.Hour)
	require.NoError(t, err)

	_, err = NewVerifier("secret-2").VerifyToken(tok)
	assert.Error(t, err)
}

func TestVerifyTokenExpired(t *testing.T) {
	v := NewVerifier("secret-1")

	tok, err := v.MintForTest("user-1", "u1@example.com", RoleMember, -time.Minute)
	require.NoError(t, err)

	_, err = v.VerifyToken(tok)
	assert.Error(t, err)
}

func TestVerifyTokenGarbage(t *testing.T) {
	_, err := NewVerifier("secret-1").VerifyToken("not.a.token")
	assert.Error(t, err)
}
