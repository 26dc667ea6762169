package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/openskills/skillhub/pkg/auth"
	"github.com/openskills/skillhub/pkg/authz"
	"github.com/openskills/skillhub/pkg/httputil"
	"github.com/openskills/skillhub/pkg/observability"
)

// AuthHandlers serves the single-auth login endpoint. Registered only when
// single-auth or hybrid mode is active.
type AuthHandlers struct {
	validator *auth.CredentialValidator
	issuer    *auth.Issuer
	logger    *observability.Logger
}

// NewAuthHandlers creates the login handlers.
func NewAuthHandlers(validator *auth.CredentialValidator, issuer *auth.Issuer, logger *observability.Logger) *AuthHandlers {
	return &AuthHandlers{
		validator: validator,
		issuer:    issuer,
		logger:    logger,
	}
}

// RegisterRoutes registers the authentication routes.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(authz.LoginPath, h.login).Methods("POST")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	ExpiresIn int    `json:"expiresIn"`
}

// login exchanges admin credentials for a synthetic bearer token. The error
// body never reveals which credential field was wrong.
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	_, err := h.validator.Validate(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		httputil.WriteUnauthorized(w, "Invalid credentials")
		return
	}
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("login failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "Login failed")
		return
	}

	token := h.issuer.Issue()
	httputil.WriteSuccess(w, loginResponse{
		Token:     token.Value,
		TokenType: "Bearer",
		ExpiresIn: int(auth.AdminTokenTTL / time.Second),
	})
}
