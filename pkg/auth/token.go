package auth

import (
	"strconv"
	"strings"
	"time"
)

// AdminTokenPrefix is the reserved prefix distinguishing synthetic admin
// tokens from real OAuth2 JWTs. The decoder dispatches on it, so no OAuth2
// provider may ever issue a token with this shape.
const AdminTokenPrefix = "admin-jwt-"

// AdminTokenTTL bounds the lifetime of a synthetic admin token. There is no
// revocation list; expiry is the only invalidation.
const AdminTokenTTL = time.Hour

// Token is a synthetic admin bearer credential. The claims are informational
// only: the token value is not signed (the equivalent of alg "none"), and the
// uniqueness suffix is a timestamp rather than a cryptographically random
// value. This is a known weakness of the development-only single-auth mode,
// kept intentionally; do not treat the suffix as a security mechanism.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Email     string
	Name      string
	Subject   string
	Role      string
}

// Issuer builds synthetic admin tokens for the single-auth login flow.
type Issuer struct {
	adminRole string
	now       func() time.Time
}

// NewIssuer creates an issuer granting the configured admin role.
func NewIssuer(adminRole string) *Issuer {
	return &Issuer{
		adminRole: adminRole,
		now:       time.Now,
	}
}

// Issue creates a new synthetic admin token. Pure computation, no I/O.
func (i *Issuer) Issue() Token {
	now := i.now()
	return Token{
		Value:     AdminTokenPrefix + strconv.FormatInt(now.UnixMilli(), 10),
		IssuedAt:  now,
		ExpiresAt: now.Add(AdminTokenTTL),
		Email:     AdminEmail,
		Name:      AdminName,
		Subject:   AdminEmail,
		Role:      i.adminRole,
	}
}

// Identity converts the token to the identity its bearer is granted.
func (t Token) Identity() *Identity {
	return &Identity{
		Subject:   t.Subject,
		Email:     t.Email,
		Name:      t.Name,
		Roles:     []string{t.Role},
		Source:    SourceAdmin,
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
	}
}

// IsAdminToken reports whether a raw bearer token carries the reserved
// synthetic prefix.
func IsAdminToken(raw string) bool {
	return strings.HasPrefix(raw, AdminTokenPrefix)
}
