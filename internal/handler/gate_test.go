package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cryptocop/internal/domain/auth"
	"github.com/xenking/cryptocop/pkg/httpmiddleware"
)

type memRevocations struct {
	mu      sync.Mutex
	revoked map[int64]bool
	err     error
	calls   int
}

func (m *memRevocations) revoke(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = make(map[int64]bool)
	}
	m.revoked[id] = true
}

func (m *memRevocations) IsRevoked(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.revoked[id], m.err
}

func newSigner(t *testing.T) *auth.Signer {
	t.Helper()
	s, err := auth.NewSigner(auth.TokenConfig{
		Secret:   "test-secret",
		Issuer:   "cryptocop",
		Audience: "cryptocop-api",
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	return s
}

func bearer(t *testing.T, s *auth.Signer, credentialID int64) string {
	t.Helper()
	token, _, err := s.Sign(7, "jane@example.com", "Jane Doe", credentialID)
	require.NoError(t, err)
	return "Bearer " + token
}

type gateResult struct {
	code    int
	message string
	claims  *auth.Claims
}

func throughGate(t *testing.T, signer *auth.Signer, creds RevocationChecker, authorization string) gateResult {
	t.Helper()
	var res gateResult
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res.claims, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := httpmiddleware.Wrap(final, Authenticate(signer), RevocationGate(creds))

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	res.code = w.Code
	if w.Code != http.StatusOK {
		var body struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		require.Equal(t, w.Code, body.Code)
		res.message = body.Message
	}
	return res
}

func TestAuthenticate(t *testing.T) {
	signer := newSigner(t)
	creds := &memRevocations{}

	t.Run("NoHeader", func(t *testing.T) {
		res := throughGate(t, signer, creds, "")
		assert.Equal(t, http.StatusOK, res.code)
		assert.Nil(t, res.claims)
	})
	t.Run("Valid", func(t *testing.T) {
		res := throughGate(t, signer, creds, bearer(t, signer, 5))
		require.Equal(t, http.StatusOK, res.code)
		require.NotNil(t, res.claims)
		assert.Equal(t, int64(5), res.claims.TokenID)
		assert.Equal(t, int64(7), res.claims.UserID)
		assert.Equal(t, "jane@example.com", res.claims.Subject)
	})
	for name, header := range map[string]string{
		"Garbage":     "Bearer not-a-jwt",
		"WrongScheme": "Basic dXNlcjpwYXNz",
		"EmptyToken":  "Bearer ",
	} {
		t.Run(name, func(t *testing.T) {
			res := throughGate(t, signer, creds, header)
			assert.Equal(t, http.StatusUnauthorized, res.code)
			assert.Equal(t, "invalid token", res.message)
		})
	}
	t.Run("OtherSecret", func(t *testing.T) {
		other, err := auth.NewSigner(auth.TokenConfig{
			Secret: "other", Issuer: "cryptocop", Audience: "cryptocop-api", TTL: time.Hour,
		})
		require.NoError(t, err)
		res := throughGate(t, signer, creds, bearer(t, other, 5))
		assert.Equal(t, http.StatusUnauthorized, res.code)
	})
}

func TestRevocationGate_LogoutRejectsOnlyThatCredential(t *testing.T) {
	signer := newSigner(t)
	creds := &memRevocations{}

	require.Equal(t, http.StatusOK, throughGate(t, signer, creds, bearer(t, signer, 42)).code)

	creds.revoke(42)

	res := throughGate(t, signer, creds, bearer(t, signer, 42))
	assert.Equal(t, http.StatusUnauthorized, res.code)
	assert.Equal(t, "token revoked", res.message)

	for _, id := range []int64{41, 43} {
		res := throughGate(t, signer, creds, bearer(t, signer, id))
		assert.Equal(t, http.StatusOK, res.code, "credential %d", id)
	}
}

func TestRevocationGate_SkipsRequestsWithoutCredential(t *testing.T) {
	signer := newSigner(t)
	creds := &memRevocations{err: errors.New("must not be called")}

	res := throughGate(t, signer, creds, "")
	assert.Equal(t, http.StatusOK, res.code)
	assert.Nil(t, res.claims)
	assert.Zero(t, creds.calls)

	token, _, err := signer.Sign(7, "jane@example.com", "Jane Doe", 0)
	require.NoError(t, err)
	res = throughGate(t, signer, creds, "Bearer "+token)
	assert.Equal(t, http.StatusOK, res.code)
	require.NotNil(t, res.claims)
	assert.Equal(t, int64(7), res.claims.UserID)
	assert.Zero(t, res.claims.TokenID)
	assert.Zero(t, creds.calls)

	creds.err = nil
	require.Equal(t, http.StatusOK, throughGate(t, signer, creds, bearer(t, signer, 3)).code)
	assert.Equal(t, 1, creds.calls)
}

func TestRevocationGate_StoreError(t *testing.T) {
	signer := newSigner(t)
	creds := &memRevocations{err: errors.New("connection reset")}

	res := throughGate(t, signer, creds, bearer(t, signer, 1))
	assert.Equal(t, http.StatusInternalServerError, res.code)
	assert.Equal(t, "internal error", res.message)
}
