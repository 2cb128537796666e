package auth

import (
	"chat-signal/errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-with-enough-entropy")

func TestValidateToken(t *testing.T) {
	t.Run("should accept a token signed with the secret", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken(testSecret, "alice", time.Hour)
		req.NoError(err)

		claims, err := ValidateToken(testSecret, token)

		req.NoError(err)
		req.Equal("alice", claims.UserID)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken([]byte("another-secret"), "alice", time.Hour)
		req.NoError(err)

		_, err = ValidateToken(testSecret, token)

		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken(testSecret, "alice", -time.Minute)
		req.NoError(err)

		_, err = ValidateToken(testSecret, token)

		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("should reject a token without user_id", func(t *testing.T) {
		req := require.New(t)
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &CustomClaims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		}).SignedString(testSecret)
		req.NoError(err)

		_, err = ValidateToken(testSecret, token)

		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("should reject an empty token", func(t *testing.T) {
		req := require.New(t)

		_, err := ValidateToken(testSecret, "")

		req.ErrorIs(err, errors.ErrUnauthenticated)
	})
}

func TestHandshake(t *testing.T) {
	var seen string
	handler := Handshake(testSecret, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	token, err := GenerateToken(testSecret, "bob", time.Hour)
	require.NoError(t, err)

	t.Run("should inject the user id from the bearer header", func(t *testing.T) {
		req := require.New(t)
		seen = ""
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		req.Equal(http.StatusNoContent, w.Code)
		req.Equal("bob", seen)
	})

	t.Run("should accept the token query parameter", func(t *testing.T) {
		req := require.New(t)
		seen = ""
		r := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		req.Equal(http.StatusNoContent, w.Code)
		req.Equal("bob", seen)
	})

	t.Run("should refuse a request without token", func(t *testing.T) {
		req := require.New(t)
		seen = ""
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		req.Equal(http.StatusUnauthorized, w.Code)
		req.Empty(seen)
	})
}
