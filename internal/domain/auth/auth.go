// Package auth issues and revokes the credentials that authenticate API
// requests.
//
// Every successful register or sign-in mints a new credential row whose id is
// embedded in the signed token. Signing out flips that row to revoked; the
// token stays cryptographically valid until it expires, so every request
// consults the credential store.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// Sentinel errors for account and token operations.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked")
)

// CredentialStore records issued credentials and their revocation state.
type CredentialStore interface {
	// Issue creates a new, non-revoked credential for userID and returns its id.
	Issue(ctx context.Context, userID int64) (int64, error)
	// Revoke marks id revoked. Revoking twice, or revoking an unknown id, is
	// not an error.
	Revoke(ctx context.Context, id int64) error
	// IsRevoked reports whether id has been revoked. Unknown ids are not
	// revoked.
	IsRevoked(ctx context.Context, id int64) (bool, error)
}
