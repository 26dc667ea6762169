// Package api wires the HTTP surface: routing, middleware, and the handlers
// for auth, skills, collections, search, tasks, and whitelabel discovery.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/openskills/skillhub/pkg/audit"
	"github.com/openskills/skillhub/pkg/auth"
	"github.com/openskills/skillhub/pkg/authz"
	"github.com/openskills/skillhub/pkg/config"
	"github.com/openskills/skillhub/pkg/contextkeys"
	"github.com/openskills/skillhub/pkg/httputil"
	"github.com/openskills/skillhub/pkg/observability"
	"github.com/openskills/skillhub/pkg/search"
	"github.com/openskills/skillhub/pkg/storage"
	"github.com/openskills/skillhub/pkg/tasks"
)

// Deps bundles everything the HTTP layer depends on. Optional fields may be
// nil and the corresponding routes degrade or disappear.
type Deps struct {
	Config    *config.Config
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	Store     storage.Store
	Search    *search.Service
	Audit     *audit.Logger
	Tasks     *tasks.Manager
	Decoder   *auth.Decoder
	Validator *auth.CredentialValidator
	Issuer    *auth.Issuer
	Providers *auth.ProviderRegistry
	Version   VersionInfo
}

// Server owns the router and handler set for the main listener.
type Server struct {
	deps       Deps
	table      *authz.Table
	whitelabel *WhitelabelHandler
}

// NewServer builds the server around a pre-verified authorization table.
func NewServer(deps Deps, table *authz.Table) *Server {
	return &Server{deps: deps, table: table}
}

// Handler assembles the full middleware chain and routes.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	NewVersionHandler(s.deps.Version).RegisterRoutes(router)

	if s.deps.Validator != nil && s.deps.Issuer != nil {
		NewAuthHandlers(s.deps.Validator, s.deps.Issuer, s.deps.Logger).RegisterRoutes(router)
	}
	s.whitelabel = NewWhitelabelHandler(s.deps.Config, s.deps.Providers, s.deps.Logger)
	s.whitelabel.RegisterRoutes(router)
	NewSkillHandlers(s.deps.Store, s.deps.Audit, s.deps.Config.Auth.BaseURL, s.deps.Logger).RegisterRoutes(router)
	NewCollectionHandlers(s.deps.Store, s.deps.Audit, s.deps.Tasks, s.deps.Config, s.deps.Logger).RegisterRoutes(router)
	if s.deps.Search != nil {
		NewSearchHandlers(s.deps.Search, s.deps.Logger).RegisterRoutes(router)
	}
	if s.deps.Tasks != nil {
		NewTaskHandlers(s.deps.Tasks, s.deps.Logger).RegisterRoutes(router)
	}

	authzMW := authz.NewMiddleware(s.table, s.deps.Decoder, s.deps.Validator, s.deps.Metrics, s.deps.Logger)

	chain := httputil.Chain(
		httputil.RecoveryMiddleware(s.deps.Logger),
		httputil.RequestIDMiddleware(),
		httputil.LoggingMiddleware(s.deps.Logger),
	)
	var handler http.Handler = chain(authzMW.Handler(router))
	if s.deps.Metrics != nil {
		handler = s.deps.Metrics.HTTPMiddleware(handler)
	}
	handler = otelhttp.NewHandler(handler, "skillhub.http")

	return handler
}

// Close releases background resources held by the handlers, currently the
// whitelabel file watcher.
func (s *Server) Close() error {
	if s.whitelabel != nil {
		return s.whitelabel.Close()
	}
	return nil
}

// registerVersioned registers a handler under all three API path variants.
func registerVersioned(router *mux.Router, method, endpoint string, h http.HandlerFunc) {
	for _, path := range authz.AllVersions(endpoint) {
		router.HandleFunc(path, h).Methods(method)
	}
}

// identityFrom returns the authenticated identity, or nil for anonymous.
func identityFrom(r *http.Request) *auth.Identity {
	if id, ok := contextkeys.Value(r.Context(), contextkeys.IdentityKey).(*auth.Identity); ok {
		return id
	}
	return nil
}

// auditUser names the acting user for audit events.
func auditUser(r *http.Request) string {
	if id := identityFrom(r); id != nil {
		if id.Email != "" {
			return id.Email
		}
		return id.Subject
	}
	return "anonymous"
}
