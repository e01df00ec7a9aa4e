package auth

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload. Subject carries the email.
type Claims struct {
	Name   string `json:"name"`
	UserID int64  `json:"uid"`
	// TokenID is the credential id. Zero when the token carries no tid
	// claim; such tokens are not subject to revocation.
	TokenID int64 `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

// HasCredential reports whether c names a credential.
func (c *Claims) HasCredential() bool {
	return c.TokenID > 0
}

// TokenConfig configures token signing.
type TokenConfig struct {
	Secret   string        `usage:"HMAC secret used to sign access tokens"`
	Issuer   string        `default:"cryptocop"`
	Audience string        `default:"cryptocop-api"`
	TTL      time.Duration `default:"24h"`
}

// Signer mints and verifies HS256 tokens.
type Signer struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewSigner creates a Signer from cfg.
func NewSigner(cfg TokenConfig) (*Signer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is empty")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{
		key:      []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Sign returns a token for the given identity and credential id.
func (s *Signer) Sign(userID int64, email, name string, credentialID int64) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Name:    name,
		UserID:  userID,
		TokenID: credentialID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if credentialID > 0 {
		claims.ID = strconv.FormatInt(credentialID, 10)
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign token")
	}
	return raw, exp, nil
}

// Parse verifies raw and returns its claims. Any failure wraps
// ErrInvalidToken.
func (s *Signer) Parse(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if claims.UserID <= 0 || claims.TokenID < 0 {
		return nil, errors.Wrap(ErrInvalidToken, "missing identity claims")
	}
	return &claims, nil
}
