package authz

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openskills/skillhub/pkg/auth"
	"github.com/openskills/skillhub/pkg/config"
	"github.com/openskills/skillhub/pkg/contextkeys"
)

// stubVerifier stands in for the external OAuth2 verifier and records whether
// it was consulted.
type stubVerifier struct {
	called bool
	token  *auth.VerifiedToken
	err    error
}

func (s *stubVerifier) Verify(ctx context.Context, rawToken string) (*auth.VerifiedToken, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func basicHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

type middlewareFixture struct {
	handler  http.Handler
	verifier *stubVerifier
	identity *auth.Identity
}

func newMiddlewareFixture(t *testing.T, rc RoleConfig, verifier *stubVerifier, withBasic bool) *middlewareFixture {
	t.Helper()

	f := &middlewareFixture{verifier: verifier}

	var cv auth.ClaimsVerifier
	if verifier != nil {
		cv = verifier
	}
	decoder := auth.NewDecoder(rc.Admin, "roles", cv)

	var credentials *auth.CredentialValidator
	if withBasic {
		credentials = auth.NewCredentialValidator("admin", "admin", rc.Admin, nil)
	}

	table := BuildTable(config.ModeHybrid, rc)
	mw := NewMiddleware(table, decoder, credentials, nil, nil)

	f.handler = mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := contextkeys.Value(r.Context(), contextkeys.IdentityKey); v != nil {
			f.identity = v.(*auth.Identity)
		}
		w.WriteHeader(http.StatusOK)
	}))
	return f
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestMiddlewareProbesBypassAuth(t *testing.T) {
	f := newMiddlewareFixture(t, defaultRoleConfig(), nil, false)

	for _, path := range []string{VersionPath, HealthPath} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		// A garbage token must not matter on probe endpoints.
		req.Header.Set("Authorization", "Bearer not-a-real-token")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestMiddlewareAnonymousPublicRoute(t *testing.T) {
	f := newMiddlewareFixture(t, defaultRoleConfig(), nil, false)

	req := httptest.NewRequest(http.MethodGet, "/api/skills/abc-123", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, f.identity)
}

func TestMiddlewareAnonymousProtectedRoute(t *testing.T) {
	f := newMiddlewareFixture(t, defaultRoleConfig(), nil, false)

	req := httptest.NewRequest(http.MethodGet, "/api/skills/abc-123/log", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", errorBody(t, rec))
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestMiddlewareInvalidBearerToken(t *testing.T) {
	f := newMiddlewareFixture(t, defaultRoleConfig(), &stubVerifier{err: auth.ErrInvalidToken}, false)

	req := httptest.NewRequest(http.MethodGet, "/api/skills/abc/log", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", errorBody(t, rec))
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
}

// A synthetic admin token on a protected route authenticates in-memory and
// never reaches the external verifier, even when one is configured.
func TestMiddlewareAdminTokenSkipsVerifier(t *testing.T) {
	verifier := &stubVerifier{err: auth.ErrInvalidToken}
	f := newMiddlewareFixture(t, defaultRoleConfig(), verifier, true)

	token := auth.NewIssuer(config.DefaultRoleAdmin).Issue()
	req := httptest.NewRequest(http.MethodGet, "/api/skills/abc/log", nil)
	req.Header.Set("Authorization", "Bearer "+token.Value)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, verifier.called)
	require.NotNil(t, f.identity)
	assert.Equal(t, auth.AdminEmail, f.identity.Email)
	assert.Equal(t, auth.SourceAdmin, f.identity.Source)
}

func TestMiddlewareOAuth2Identity(t *testing.T) {
	now := time.Now()
	verifier := &stubVerifier{token: &auth.VerifiedToken{
		Subject: "user-1",
		Claims: map[string]interface{}{
			"email": "curator@example.com",
			"roles": []interface{}{config.DefaultRoleCurator},
		},
		IssuedAt: now,
		Expiry:   now.Add(time.Hour),
	}}
	f := newMiddlewareFixture(t, defaultRoleConfig(), verifier, false)

	req := httptest.NewRequest(http.MethodPost, "/api/skills", nil)
	req.Header.Set("Authorization", "Bearer some-jwt")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.identity)
	assert.Equal(t, "curator@example.com", f.identity.Email)
}

func TestMiddlewareRoleDenied(t *testing.T) {
	now := time.Now()
	verifier := &stubVerifier{token: &auth.VerifiedToken{
		Subject: "user-2",
		Claims: map[string]interface{}{
			"roles": config.DefaultRoleView,
		},
		IssuedAt: now,
		Expiry:   now.Add(time.Hour),
	}}
	f := newMiddlewareFixture(t, defaultRoleConfig(), verifier, false)

	req := httptest.NewRequest(http.MethodPost, "/api/skills/publish", nil)
	req.Header.Set("Authorization", "Bearer some-jwt")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", errorBody(t, rec))
}

func TestMiddlewareBasicAuth(t *testing.T) {
	f := newMiddlewareFixture(t, defaultRoleConfig(), nil, true)

	req := httptest.NewRequest(http.MethodPost, "/api/skills/publish", nil)
	req.Header.Set("Authorization", basicHeader("admin", "admin"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.identity)
	assert.Equal(t, []string{config.DefaultRoleAdmin}, f.identity.Roles)
}

func TestMiddlewareBasicAuthWrongPassword(t *testing.T) {
	f := newMiddlewareFixture(t, defaultRoleConfig(), nil, true)

	req := httptest.NewRequest(http.MethodPost, "/api/skills/publish", nil)
	req.Header.Set("Authorization", basicHeader("admin", "wrong"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", errorBody(t, rec))
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestMiddlewareBasicAuthDisabled(t *testing.T) {
	f := newMiddlewareFixture(t, defaultRoleConfig(), nil, false)

	req := httptest.NewRequest(http.MethodGet, "/api/skills", nil)
	req.Header.Set("Authorization", basicHeader("admin", "admin"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
