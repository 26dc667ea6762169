package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openskills/skillhub/pkg/auth"
	"github.com/openskills/skillhub/pkg/authz"
	"github.com/openskills/skillhub/pkg/config"
	"github.com/openskills/skillhub/pkg/storage"
)

// stubServerVerifier stands in for the external OAuth2 verification path.
type stubServerVerifier struct {
	identityClaims map[string]interface{}
	subject        string
	err            error
	called         bool
}

func (v *stubServerVerifier) Verify(ctx context.Context, rawToken string) (*auth.VerifiedToken, error) {
	v.called = true
	if v.err != nil {
		return nil, v.err
	}
	now := time.Now()
	return &auth.VerifiedToken{
		Subject:  v.subject,
		Claims:   v.identityClaims,
		IssuedAt: now,
		Expiry:   now.Add(time.Hour),
	}, nil
}

func hybridConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth = config.AuthConfig{
		Mode:             config.ModeHybrid,
		EnableRoles:      true,
		AllowPublicLists: true,
		RoleAdmin:        config.DefaultRoleAdmin,
		RoleCurator:      config.DefaultRoleCurator,
		RoleView:         config.DefaultRoleView,
		ScopeRead:        config.DefaultScopeRead,
		RolesClaim:       "roles",
		BaseURL:          "https://skills.example.com",
		AdminUsername:    "admin",
		AdminPassword:    "admin",
	}
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, store *fakeStore, verifier auth.ClaimsVerifier) http.Handler {
	t.Helper()

	logger := newTestLogger()
	rc := authz.RoleConfigFrom(cfg.Auth)
	require.NoError(t, authz.VerifyModeConsistency(rc))

	deps := Deps{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Decoder: auth.NewDecoder(cfg.Auth.RoleAdmin, cfg.Auth.RolesClaim, verifier),
	}
	if cfg.Auth.SingleAuthEnabled() {
		deps.Validator = auth.NewCredentialValidator(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, cfg.Auth.RoleAdmin, logger)
		deps.Issuer = auth.NewIssuer(cfg.Auth.RoleAdmin)
	}

	return NewServer(deps, authz.BuildTable(cfg.Auth.Mode, rc)).Handler()
}

func TestVersionBypassesAuthentication(t *testing.T) {
	handler := newTestServer(t, hybridConfig(), newFakeStore(), &stubServerVerifier{err: auth.ErrInvalidToken})

	req := httptest.NewRequest("GET", "/version", nil)
	req.Header.Set("Authorization", "Bearer garbage-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "version")
}

func TestAnonymousReadsPublicContent(t *testing.T) {
	store := newFakeStore()
	skill := store.addSkill(&storage.Skill{Name: "Public skill", Statement: "s", Status: storage.StatusPublished})
	handler := newTestServer(t, hybridConfig(), store, &stubServerVerifier{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v3/skills/"+skill.UUID, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnonymousWriteRejectedGenerically(t *testing.T) {
	handler := newTestServer(t, hybridConfig(), newFakeStore(), &stubServerVerifier{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v3/skills",
		bytes.NewBufferString(`{"skillName": "x", "skillStatement": "y"}`)))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error": "Unauthorized"}`, rec.Body.String())
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
}

// Login with the configured credentials, then write with the issued token.
// The synthetic token never reaches the OAuth2 verifier.
func TestSingleAuthLoginFlow(t *testing.T) {
	store := newFakeStore()
	verifier := &stubServerVerifier{err: auth.ErrInvalidToken}
	handler := newTestServer(t, hybridConfig(), store, verifier)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/auth/login",
		bytes.NewBufferString(`{"username": "admin", "password": "admin"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var login loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	req := httptest.NewRequest("POST", "/api/v3/skills",
		bytes.NewBufferString(`{"skillName": "Admin made", "skillStatement": "s"}`))
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.False(t, verifier.called, "synthetic admin token must not reach the OAuth2 verifier")
}

func TestLoginWrongPassword(t *testing.T) {
	handler := newTestServer(t, hybridConfig(), newFakeStore(), &stubServerVerifier{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/auth/login",
		bytes.NewBufferString(`{"username": "admin", "password": "wrong"}`)))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error": "Invalid credentials"}`, rec.Body.String())
}

func TestOAuth2CuratorCanWrite(t *testing.T) {
	store := newFakeStore()
	handler := newTestServer(t, hybridConfig(), store, &stubServerVerifier{
		subject:        "curator@example.com",
		identityClaims: map[string]interface{}{"roles": []interface{}{config.DefaultRoleCurator}},
	})

	req := httptest.NewRequest("POST", "/api/v3/skills",
		bytes.NewBufferString(`{"skillName": "Curated", "skillStatement": "s"}`))
	req.Header.Set("Authorization", "Bearer external-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestOAuth2ViewerCannotWrite(t *testing.T) {
	handler := newTestServer(t, hybridConfig(), newFakeStore(), &stubServerVerifier{
		subject:        "viewer@example.com",
		identityClaims: map[string]interface{}{"roles": []interface{}{config.DefaultRoleView}},
	})

	req := httptest.NewRequest("POST", "/api/v3/skills",
		bytes.NewBufferString(`{"skillName": "Denied", "skillStatement": "s"}`))
	req.Header.Set("Authorization", "Bearer external-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error": "Forbidden"}`, rec.Body.String())
}

func TestBasicCredentialsAccepted(t *testing.T) {
	store := newFakeStore()
	handler := newTestServer(t, hybridConfig(), store, &stubServerVerifier{})

	req := httptest.NewRequest("POST", "/api/v3/skills",
		bytes.NewBufferString(`{"skillName": "Via basic", "skillStatement": "s"}`))
	req.SetBasicAuth("admin", "admin")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestInvalidBearerRejected(t *testing.T) {
	handler := newTestServer(t, hybridConfig(), newFakeStore(), &stubServerVerifier{err: auth.ErrInvalidToken})

	req := httptest.NewRequest("GET", "/api/v3/skills", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error": "Unauthorized"}`, rec.Body.String())
}

func TestWhitelabelServedAnonymously(t *testing.T) {
	handler := newTestServer(t, hybridConfig(), newFakeStore(), &stubServerVerifier{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/whitelabel/whitelabel.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hybrid", body["authMode"])
	assert.Equal(t, true, body["singleAuthEnabled"])
}
