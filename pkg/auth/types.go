package auth

import (
	"errors"
	"time"
)

// Fixed identity claims carried by synthetic admin tokens.
const (
	AdminEmail = "admin@localhost"
	AdminName  = "Administrator"
)

var (
	// ErrInvalidCredentials is returned for any username/password mismatch.
	// Deliberately generic: the caller must not learn which field was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned when a bearer token fails both the
	// synthetic-prefix check and external OAuth2 verification.
	ErrInvalidToken = errors.New("invalid token")
)

// TokenSource records which verification path produced an identity.
type TokenSource string

const (
	SourceAdmin  TokenSource = "admin"
	SourceOAuth2 TokenSource = "oauth2"
)

// Identity is the decoded result of a successful authentication. Immutable
// once constructed.
type Identity struct {
	Subject   string
	Email     string
	Name      string
	Roles     []string
	Source    TokenSource
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasAnyRole reports whether the identity carries at least one of the given
// role or scope authorities.
func (id *Identity) HasAnyRole(roles ...string) bool {
	if id == nil {
		return false
	}
	for _, want := range roles {
		for _, have := range id.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Expired reports whether the identity's token lifetime has elapsed.
func (id *Identity) Expired(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && now.After(id.ExpiresAt)
}
