package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openskills/skillhub/pkg/observability"
)

// CredentialValidator checks presented username/password pairs against the
// configured admin credentials. Both the JSON login body and HTTP Basic
// headers funnel into Validate; the credentials themselves are resolved at
// startup (config key, legacy env var, built-in default, in that order) and
// held in memory only.
type CredentialValidator struct {
	username  string
	password  string
	adminRole string
	logger    *observability.Logger
}

// NewCredentialValidator creates a validator for the resolved admin
// credentials. The granted role set on success is always exactly the
// configured admin role.
func NewCredentialValidator(username, password, adminRole string, logger *observability.Logger) *CredentialValidator {
	return &CredentialValidator{
		username:  username,
		password:  password,
		adminRole: adminRole,
		logger:    logger,
	}
}

// Validate compares the presented pair against the admin credentials.
// Success yields the admin role set. Failure is always ErrInvalidCredentials
// regardless of which field mismatched, and is logged at warn level for
// auditability; the password never reaches the log on either path.
func (v *CredentialValidator) Validate(username, password string) ([]string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(v.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(v.password)) == 1

	if !userOK || !passOK {
		if v.logger != nil {
			v.logger.WithField("username", username).Warn("failed admin login attempt")
		}
		return nil, ErrInvalidCredentials
	}

	if v.logger != nil {
		v.logger.WithField("username", username).Info("admin login successful")
	}
	return []string{v.adminRole}, nil
}

// ValidateBasic validates an HTTP Basic Authorization header value.
func (v *CredentialValidator) ValidateBasic(authHeader string) ([]string, error) {
	username, password, err := ParseBasicAuth(authHeader)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return v.Validate(username, password)
}

// ParseBasicAuth decodes a "Basic base64(username:password)" header value.
func ParseBasicAuth(authHeader string) (username, password string, err error) {
	const prefix = "Basic "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", "", fmt.Errorf("not a Basic authorization header")
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(authHeader[len(prefix):]))
	if err != nil {
		return "", "", fmt.Errorf("malformed Basic credentials: %w", err)
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed Basic credentials: missing separator")
	}

	return parts[0], parts[1], nil
}
