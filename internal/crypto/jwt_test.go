package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJWTManagerRoundTrip(t *testing.T) {
	m, err := NewJWTManager("test-secret")
	require.NoError(t, err)

	token, err := m.CreateToken("u1", "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "Alice", claims.Nickname)
	require.Equal(t, "chat-server", claims.Issuer)
}

func TestJWTManagerRejectsWrongSecret(t *testing.T) {
	m1, err := NewJWTManager("secret-one")
	require.NoError(t, err)
	m2, err := NewJWTManager("secret-two")
	require.NoError(t, err)

	token, err := m1.CreateToken("u1", "Alice")
	require.NoError(t, err)

	_, err = m2.VerifyToken(token)
	require.Error(t, err)
}

func TestJWTManagerRejectsGarbage(t *testing.T) {
	m, err := NewJWTManager("test-secret")
	require.NoError(t, err)

	_, err = m.VerifyToken("not.a.token")
	require.Error(t, err)
	_, err = m.VerifyToken("")
	require.Error(t, err)
}

func TestJWTManagerRequiresSecret(t *testing.T) {
	_, err := NewJWTManager("")
	require.Error(t, err)
}

func TestJWTManagerIsDeterministicPerSecret(t *testing.T) {
	// Two managers over the same master secret verify each other's tokens,
	// so restarts do not invalidate outstanding sessions.
	m1, err := NewJWTManager("shared-secret")
	require.NoError(t, err)
	m2, err := NewJWTManager("shared-secret")
	require.NoError(t, err)

	token, err := m1.CreateToken("u1", "Alice")
	require.NoError(t, err)

	claims, err := m2.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
}
