package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/cryptocop/internal/domain/profile"
)

// UserStore persists accounts.
type UserStore interface {
	// CreateUser inserts u and sets its ID. Returns ErrEmailTaken on a
	// duplicate email.
	CreateUser(ctx context.Context, u *profile.User) error
	// UserByEmail returns profile.ErrNotFound for unknown emails.
	UserByEmail(ctx context.Context, email string) (*profile.User, error)
}

// RegisterRequest is the input of Register.
type RegisterRequest struct {
	Email                string `json:"email" validate:"required,email"`
	FullName             string `json:"fullName"`
	Password             string `json:"password" validate:"min=8"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"eqfield=Password"`
}

// Session is a freshly issued credential.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *profile.User
}

// Service implements account registration, sign-in and sign-out.
type Service struct {
	users  UserStore
	creds  CredentialStore
	signer *Signer
	cost   int
}

// NewService creates an auth Service.
func NewService(users UserStore, creds CredentialStore, signer *Signer) *Service {
	return &Service{
		users:  users,
		creds:  creds,
		signer: signer,
		cost:   bcrypt.DefaultCost,
	}
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := registerError(profile.Validate(&req)); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	u := &profile.User{
		Email:        req.Email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return s.issue(ctx, u)
}

func registerError(err error) error {
	var fe *profile.InvalidFieldError
	if !errors.As(err, &fe) {
		return err
	}
	switch fe.Field {
	case "email":
		return ErrInvalidEmail
	case "password":
		return ErrWeakPassword
	case "passwordConfirmation":
		return ErrPasswordMismatch
	default:
		return err
	}
}

// SignIn verifies a password and issues a new credential.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, profile.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, u)
}

func (s *Service) issue(ctx context.Context, u *profile.User) (*Session, error) {
	id, err := s.creds.Issue(ctx, u.ID)
	if err != nil {
		return nil, errors.Wrap(err, "issue credential")
	}
	token, exp, err := s.signer.Sign(u.ID, u.Email, u.FullName, id)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// SignOut revokes credentialID. The id must come from verified claims.
func (s *Service) SignOut(ctx context.Context, credentialID int64) error {
	if credentialID <= 0 {
		return nil
	}
	if err := s.creds.Revoke(ctx, credentialID); err != nil {
		return errors.Wrapf(err, "revoke credential %d", credentialID)
	}
	return nil
}

// IsRevoked reports whether credentialID has been revoked.
func (s *Service) IsRevoked(ctx context.Context, credentialID int64) (bool, error) {
	revoked, err := s.creds.IsRevoked(ctx, credentialID)
	if err != nil {
		return false, errors.Wrapf(err, "check credential %d", credentialID)
	}
	return revoked, nil
}
