package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stockledger/stockledger-backend/pkg/config"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/httputil"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier() *Verifier {
	return NewVerifier(&config.JWTConfig{Secret: "test-secret", Issuer: "stockledger"}, logger.Nop())
}

func TestVerifier_IssueAndValidate(t *testing.T) {
	v := newTestVerifier()

	token, err := v.Issue("user-1", "clerk", []string{"stock.read"}, time.Minute)
	require.NoError(t, err)

	claims, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "clerk", claims.Role)
	assert.Equal(t, []string{"stock.read"}, claims.Permissions)
}

func TestVerifier_Validate(t *testing.T) {
	v := newTestVerifier()

	t.Run("expired token", func(t *testing.T) {
		token, err := v.Issue("user-1", "clerk", nil, -time.Minute)
		require.NoError(t, err)

		_, err = v.Validate(token)
		assert.True(t, errors.Is(err, errors.ErrTokenExpired))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewVerifier(&config.JWTConfig{Secret: "other", Issuer: "stockledger"}, logger.Nop())
		token, err := other.Issue("user-1", "clerk", nil, time.Minute)
		require.NoError(t, err)

		_, err = v.Validate(token)
		assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewVerifier(&config.JWTConfig{Secret: "test-secret", Issuer: "someone-else"}, logger.Nop())
		token, err := other.Issue("user-1", "clerk", nil, time.Minute)
		require.NoError(t, err)

		_, err = v.Validate(token)
		assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
	})

	t.Run("unsigned token", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1", "iss": "stockledger"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = v.Validate(token)
		assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
	})
}

func TestMiddleware(t *testing.T) {
	v := newTestVerifier()

	var (
		seenUser  string
		seenPerms []string
	)
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = httputil.GetUserID(r.Context())
		seenPerms = httputil.GetPermissions(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/stock", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stock", nil)
		req.Header.Set("Authorization", "Token abc")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := v.Issue("user-42", "manager", []string{"stock.*"}, time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/stock", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "user-42", seenUser)
		assert.Equal(t, []string{"stock.*"}, seenPerms)
	})
}
