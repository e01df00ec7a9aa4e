package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/cryptocop/internal/domain/profile"
)

type memUsers struct {
	byEmail map[string]*profile.User
}

func (m *memUsers) CreateUser(_ context.Context, u *profile.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	u.ID = int64(len(m.byEmail) + 1)
	m.byEmail[u.Email] = u
	return nil
}

func (m *memUsers) UserByEmail(_ context.Context, email string) (*profile.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return u, nil
}

type memCredentials struct {
	mu      sync.Mutex
	revoked map[int64]bool
	next    int64
}

func newMemCredentials(start int64) *memCredentials {
	return &memCredentials{revoked: make(map[int64]bool), next: start}
}

func (m *memCredentials) Issue(_ context.Context, _ int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.revoked[m.next] = false
	return m.next, nil
}

func (m *memCredentials) Revoke(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.revoked[id]; ok {
		m.revoked[id] = true
	}
	return nil
}

func (m *memCredentials) IsRevoked(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[id], nil
}

func newTestService(t *testing.T, creds CredentialStore) *Service {
	t.Helper()
	signer, err := NewSigner(TokenConfig{Secret: "test-secret", Issuer: "cryptocop", Audience: "api", TTL: time.Hour})
	require.NoError(t, err)
	svc := NewService(&memUsers{byEmail: make(map[string]*profile.User)}, creds, signer)
	svc.cost = bcrypt.MinCost
	return svc
}

func register(t *testing.T, svc *Service, email string) *Session {
	t.Helper()
	sess, err := svc.Register(context.Background(), RegisterRequest{
		Email:                email,
		FullName:             "Ada Lovelace",
		Password:             "correct horse",
		PasswordConfirmation: "correct horse",
	})
	require.NoError(t, err)
	return sess
}

func TestRegister(t *testing.T) {
	svc := newTestService(t, newMemCredentials(0))

	sess := register(t, svc, "Ada@Example.com")
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.NotEqual(t, "correct horse", sess.User.PasswordHash)

	claims, err := svc.signer.Parse(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Subject)
	assert.Equal(t, "Ada Lovelace", claims.Name)
	assert.Equal(t, sess.User.ID, claims.UserID)
	assert.Equal(t, int64(1), claims.TokenID)
}

func TestRegister_Errors(t *testing.T) {
	svc := newTestService(t, newMemCredentials(0))
	register(t, svc, "ada@example.com")

	tests := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"no email", RegisterRequest{Email: " ", Password: "12345678", PasswordConfirmation: "12345678"}, ErrInvalidEmail},
		{"bad email", RegisterRequest{Email: "nope", Password: "12345678", PasswordConfirmation: "12345678"}, ErrInvalidEmail},
		{"short password", RegisterRequest{Email: "b@example.com", Password: "123", PasswordConfirmation: "123"}, ErrWeakPassword},
		{"mismatch", RegisterRequest{Email: "b@example.com", Password: "12345678", PasswordConfirmation: "87654321"}, ErrPasswordMismatch},
		{"taken", RegisterRequest{Email: "ada@example.com", Password: "12345678", PasswordConfirmation: "12345678"}, ErrEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignIn(t *testing.T) {
	svc := newTestService(t, newMemCredentials(0))
	first := register(t, svc, "ada@example.com")

	_, err := svc.SignIn(context.Background(), "ada@example.com", "wrong password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(context.Background(), "nobody@example.com", "correct horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	second, err := svc.SignIn(context.Background(), " ADA@example.com", "correct horse")
	require.NoError(t, err)

	c1, err := svc.signer.Parse(first.Token)
	require.NoError(t, err)
	c2, err := svc.signer.Parse(second.Token)
	require.NoError(t, err)
	assert.NotEqual(t, c1.TokenID, c2.TokenID, "each sign-in mints a new credential")
}

func TestSignOut_RevokesOnlyThatCredential(t *testing.T) {
	creds := newMemCredentials(40)
	svc := newTestService(t, creds)
	ctx := context.Background()

	register(t, svc, "ada@example.com")                           // 41
	_, err := svc.SignIn(ctx, "ada@example.com", "correct horse") // 42
	require.NoError(t, err)
	_, err = svc.SignIn(ctx, "ada@example.com", "correct horse") // 43
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, 42))
	require.NoError(t, svc.SignOut(ctx, 42))

	revoked, err := svc.IsRevoked(ctx, 42)
	require.NoError(t, err)
	assert.True(t, revoked)

	for _, id := range []int64{41, 43, 999} {
		revoked, err := svc.IsRevoked(ctx, id)
		require.NoError(t, err)
		assert.False(t, revoked, "credential %d", id)
	}
}

func TestParse_WithoutCredential(t *testing.T) {
	svc := newTestService(t, newMemCredentials(0))

	raw, _, err := svc.signer.Sign(7, "ada@example.com", "Ada", 0)
	require.NoError(t, err)

	var payload jwt.MapClaims
	_, _, err = jwt.NewParser().ParseUnverified(raw, &payload)
	require.NoError(t, err)
	assert.NotContains(t, payload, "tid")
	assert.NotContains(t, payload, "jti")

	claims, err := svc.signer.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.False(t, claims.HasCredential())

	noUser, _, err := svc.signer.Sign(0, "ada@example.com", "Ada", 5)
	require.NoError(t, err)
	_, err = svc.signer.Parse(noUser)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignOut_WithoutCredential(t *testing.T) {
	creds := newMemCredentials(0)
	svc := newTestService(t, creds)
	register(t, svc, "ada@example.com")

	require.NoError(t, svc.SignOut(context.Background(), 0))
	assert.False(t, creds.revoked[1])
}

func TestParse_Rejects(t *testing.T) {
	svc := newTestService(t, newMemCredentials(0))
	sess := register(t, svc, "ada@example.com")

	_, err := svc.signer.Parse(sess.Token + "x")
	require.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewSigner(TokenConfig{Secret: "other", Issuer: "cryptocop", Audience: "api"})
	require.NoError(t, err)
	_, err = other.Parse(sess.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	svc.signer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.signer.Parse(sess.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewSigner(TokenConfig{})
	require.Error(t, err)
}
