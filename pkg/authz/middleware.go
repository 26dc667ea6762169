package authz

import (
	"net/http"
	"strings"
	"time"

	"github.com/openskills/skillhub/pkg/auth"
	"github.com/openskills/skillhub/pkg/contextkeys"
	"github.com/openskills/skillhub/pkg/httputil"
	"github.com/openskills/skillhub/pkg/observability"
)

// Middleware resolves the caller's identity and enforces the route
// authorization table on every request. The version and health probe
// endpoints bypass it entirely so monitoring never depends on auth state.
//
// Error responses are deliberately generic: 401 with {"error":"Unauthorized"}
// and no WWW-Authenticate header, 403 with {"error":"Forbidden"}. Nothing in
// the body or headers distinguishes a missing token from an invalid one.
type Middleware struct {
	table       *Table
	decoder     *auth.Decoder
	credentials *auth.CredentialValidator
	metrics     *observability.Metrics
	logger      *observability.Logger
}

// NewMiddleware creates the enforcement middleware. credentials may be nil
// when single-auth is disabled, in which case Basic headers are rejected.
// metrics may be nil.
func NewMiddleware(table *Table, decoder *auth.Decoder, credentials *auth.CredentialValidator, metrics *observability.Metrics, logger *observability.Logger) *Middleware {
	return &Middleware{
		table:       table,
		decoder:     decoder,
		credentials: credentials,
		metrics:     metrics,
		logger:      logger,
	}
}

// Handler wraps next with identity resolution and table enforcement.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == VersionPath || r.URL.Path == HealthPath {
			next.ServeHTTP(w, r)
			return
		}

		identity, ok := m.resolveIdentity(w, r)
		if !ok {
			return
		}

		predicate := m.table.Evaluate(r.Method, r.URL.Path)
		if !predicate.Allows(identity) {
			m.deny(w, r, identity, predicate)
			return
		}

		if identity != nil {
			r = r.WithContext(contextkeys.WithValue(r.Context(), contextkeys.IdentityKey, identity))
		}
		next.ServeHTTP(w, r)
	})
}

// resolveIdentity extracts and validates the caller's credentials. A missing
// or non-credential Authorization header yields a nil identity (anonymous);
// a present but invalid credential writes the generic 401 and returns false.
func (m *Middleware) resolveIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, true
	}

	if strings.HasPrefix(header, "Basic ") {
		return m.resolveBasic(w, r, header)
	}

	token := auth.BearerFromHeader(header)
	if token == "" {
		// Unrecognized scheme; treat as anonymous and let the table decide.
		return nil, true
	}

	identity, err := m.decoder.Decode(r.Context(), token)
	if err != nil {
		m.countAttempt("bearer", "failure")
		m.unauthorized(w)
		return nil, false
	}
	if identity != nil {
		m.countAttempt("bearer", "success")
	}
	return identity, true
}

func (m *Middleware) resolveBasic(w http.ResponseWriter, r *http.Request, header string) (*auth.Identity, bool) {
	if m.credentials == nil {
		m.countAttempt("basic", "failure")
		m.unauthorized(w)
		return nil, false
	}

	roles, err := m.credentials.ValidateBasic(header)
	if err != nil {
		m.countAttempt("basic", "failure")
		m.unauthorized(w)
		return nil, false
	}

	m.countAttempt("basic", "success")
	now := time.Now()
	return &auth.Identity{
		Subject:   auth.AdminEmail,
		Email:     auth.AdminEmail,
		Name:      auth.AdminName,
		Roles:     roles,
		Source:    auth.SourceAdmin,
		IssuedAt:  now,
		ExpiresAt: now.Add(auth.AdminTokenTTL),
	}, true
}

func (m *Middleware) deny(w http.ResponseWriter, r *http.Request, identity *auth.Identity, predicate Predicate) {
	if m.metrics != nil {
		m.metrics.AuthDeniedTotal.WithLabelValues(r.Method, r.URL.Path).Inc()
	}
	if m.logger != nil {
		m.logger.WithFields(map[string]interface{}{
			"method":    r.Method,
			"path":      r.URL.Path,
			"predicate": predicate.Kind.String(),
			"anonymous": identity == nil,
		}).Warn("request denied by authorization table")
	}

	if identity == nil {
		m.unauthorized(w)
		return
	}
	httputil.WriteForbidden(w, "Forbidden")
}

func (m *Middleware) unauthorized(w http.ResponseWriter) {
	httputil.WriteUnauthorized(w, "Unauthorized")
}

func (m *Middleware) countAttempt(mechanism, outcome string) {
	if m.metrics != nil {
		m.metrics.AuthAttemptsTotal.WithLabelValues(mechanism, outcome).Inc()
	}
}
