package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testIssuer = "hr-platform"
)

func TestParseValidToken(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer)
	token, err := SignToken(testSecret, testIssuer, "emp-1", "manager", time.Minute)
	require.NoError(t, err)

	identity, err := v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "emp-1", Role: "manager"}, identity)
}

func TestParseRejectsBadTokens(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer)

	t.Run("wrong secret", func(t *testing.T) {
		token, err := SignToken("other-secret", testIssuer, "emp-1", "manager", time.Minute)
		require.NoError(t, err)
		_, err = v.Parse(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := SignToken(testSecret, "someone-else", "emp-1", "manager", time.Minute)
		require.NoError(t, err)
		_, err = v.Parse(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := SignToken(testSecret, testIssuer, "emp-1", "manager", -time.Minute)
		require.NoError(t, err)
		_, err = v.Parse(token)
		assert.Error(t, err)
	})

	t.Run("missing role claim", func(t *testing.T) {
		token, err := SignToken(testSecret, testIssuer, "emp-1", "", time.Minute)
		require.NoError(t, err)
		_, err = v.Parse(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Parse("not.a.token")
		assert.Error(t, err)
	})
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer)
	var seen Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := FromContext(r.Context())
		require.True(t, ok)
		seen = identity
		w.WriteHeader(http.StatusOK)
	})
	handler := v.Middleware(next)

	t.Run("valid token reaches handler", func(t *testing.T) {
		token, err := SignToken(testSecret, testIssuer, "hr-9", "hr", time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/approvals", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, Identity{ID: "hr-9", Role: "hr"}, seen)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/approvals", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "UNAUTHENTICATED")
	})

	t.Run("malformed token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/approvals", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestFromContextWithoutIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := FromContext(req.Context())
	assert.False(t, ok)
}
