package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	lru "github.com/hashicorp/golang-lru/v2"
)

// decodedCacheSize bounds the decoded-identity cache. OAuth2 verification is
// signature checking plus possible key refresh, so repeated requests with the
// same bearer token skip it; synthetic admin tokens are never cached since
// decoding them is a pure string operation.
const decodedCacheSize = 1024

// VerifiedToken is the result of external OAuth2 token verification.
type VerifiedToken struct {
	Subject  string
	Claims   map[string]interface{}
	IssuedAt time.Time
	Expiry   time.Time
}

// ClaimsVerifier abstracts the external OAuth2 verification path (issuer
// discovery, signature and expiry checks). Out of scope for this package;
// failures surface as ErrInvalidToken.
type ClaimsVerifier interface {
	Verify(ctx context.Context, rawToken string) (*VerifiedToken, error)
}

// OIDCVerifier verifies bearer tokens against an OIDC issuer.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and builds a verifier for the client.
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Verify checks the token's signature, issuer, and expiry.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*VerifiedToken, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("OIDC verification failed: %w", err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse token claims: %w", err)
	}

	return &VerifiedToken{
		Subject:  idToken.Subject,
		Claims:   claims,
		IssuedAt: idToken.IssuedAt,
		Expiry:   idToken.Expiry,
	}, nil
}

// Decoder dispatches bearer tokens to the correct verification path: tokens
// carrying the reserved admin prefix are decoded in-memory, everything else
// goes to the external OAuth2 verifier.
//
// The admin path performs no cryptographic check. Only legitimate flows
// produce the prefix, but any caller reproducing the prefix string is treated
// as an authenticated admin. That bypass is inherent to the development-only
// single-auth mode and is preserved here rather than silently hardened.
type Decoder struct {
	adminRole  string
	rolesClaim string
	verifier   ClaimsVerifier
	cache      *lru.Cache[string, *Identity]
	now        func() time.Time
}

// NewDecoder creates a decoder. verifier may be nil when OAuth2 is disabled,
// in which case non-admin tokens always fail with ErrInvalidToken.
func NewDecoder(adminRole, rolesClaim string, verifier ClaimsVerifier) *Decoder {
	cache, _ := lru.New[string, *Identity](decodedCacheSize)
	return &Decoder{
		adminRole:  adminRole,
		rolesClaim: rolesClaim,
		verifier:   verifier,
		cache:      cache,
		now:        time.Now,
	}
}

// Decode resolves a raw bearer token to an identity.
//
// An empty or whitespace-only token yields (nil, nil): anonymous, never an
// error. The route authorization table decides whether anonymous access is
// permitted. A synthetic admin token never reaches the OAuth2 verifier.
func (d *Decoder) Decode(ctx context.Context, rawToken string) (*Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, nil
	}

	if IsAdminToken(rawToken) {
		return d.adminIdentity(), nil
	}

	if d.verifier == nil {
		return nil, ErrInvalidToken
	}

	if cached, ok := d.cache.Get(rawToken); ok {
		if !cached.Expired(d.now()) {
			return cached, nil
		}
		d.cache.Remove(rawToken)
	}

	verified, err := d.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	identity := &Identity{
		Subject:   verified.Subject,
		Email:     stringClaim(verified.Claims, "email"),
		Name:      stringClaim(verified.Claims, "name"),
		Roles:     RolesFromClaims(verified.Claims, d.rolesClaim),
		Source:    SourceOAuth2,
		IssuedAt:  verified.IssuedAt,
		ExpiresAt: verified.Expiry,
	}
	d.cache.Add(rawToken, identity)

	return identity, nil
}

// adminIdentity reproduces the fixed claims of the token issuer with a fresh
// expiry window, matching the issuer's claim set.
func (d *Decoder) adminIdentity() *Identity {
	now := d.now()
	return &Identity{
		Subject:   AdminEmail,
		Email:     AdminEmail,
		Name:      AdminName,
		Roles:     []string{d.adminRole},
		Source:    SourceAdmin,
		IssuedAt:  now,
		ExpiresAt: now.Add(AdminTokenTTL),
	}
}

// BearerFromHeader extracts the token from an Authorization header value.
// Returns "" for missing, non-Bearer, or malformed headers; the caller treats
// that as anonymous rather than an error.
func BearerFromHeader(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
