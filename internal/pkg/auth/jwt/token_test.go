package jwt

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("alice", "sess-1", "secret", time.Now(), time.Hour)
	req.NoError(err)

	payload, err := ParseToken(token, "secret")
	req.NoError(err)
	req.Equal("alice", payload.Username)
	req.Equal("sess-1", payload.SessionID())
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("alice", "sess-1", "secret", time.Now(), time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, "other")
	require.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken("alice", "sess-1", "secret", time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, "secret")
	require.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	require.Equal(t, "from-query", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer from-header")
	require.Equal(t, "from-header", TokenFromRequest(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Basic abc")
	require.Empty(t, TokenFromRequest(r))
}
