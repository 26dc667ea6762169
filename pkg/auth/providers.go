package auth

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"
)

// SentinelClientID marks a provider entry that was templated but never
// configured. Such entries are excluded from discovery so the frontend does
// not render a dead login button.
const SentinelClientID = "xxxxxx"

// knownProviders maps provider ids to display names. Unknown ids fall back
// to capitalizing the first rune.
var knownProviders = map[string]string{
	"google": "Google",
	"okta":   "Okta",
}

// ProviderDescriptor is the discovery metadata exposed to the frontend for
// one configured external identity provider.
type ProviderDescriptor struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	AuthorizationURL string `json:"authorizationUrl"`
}

// ProviderEntry is one configured OAuth2 provider registration.
type ProviderEntry struct {
	ID           string   `yaml:"id"`
	ClientID     string   `yaml:"client-id"`
	ClientSecret string   `yaml:"client-secret"`
	AuthURL      string   `yaml:"auth-url"`
	TokenURL     string   `yaml:"token-url"`
	RedirectURL  string   `yaml:"redirect-url"`
	Scopes       []string `yaml:"scopes"`
}

// providersFile is the YAML shape of the provider registry file.
type providersFile struct {
	Providers []ProviderEntry `yaml:"providers"`
}

// LoadProviderEntries parses a YAML provider registry file.
func LoadProviderEntries(path string) ([]ProviderEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}

	return file.Providers, nil
}

// ProviderRegistry enumerates configured external identity providers for the
// discovery endpoint. The registry never errors: an unconfigured system
// yields an empty sequence.
type ProviderRegistry struct {
	baseURL string
	entries []ProviderEntry
}

// NewProviderRegistry creates a registry over the given entries. baseURL is
// the externally visible URL of this service, used to synthesize the
// authorization initiation URLs.
func NewProviderRegistry(baseURL string, entries []ProviderEntry) *ProviderRegistry {
	return &ProviderRegistry{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		entries: entries,
	}
}

// ListProviders returns descriptors for every usable provider, recomputed on
// each call in registration order. Entries whose client id equals the
// sentinel placeholder are excluded.
func (r *ProviderRegistry) ListProviders() []ProviderDescriptor {
	if r == nil {
		return nil
	}

	providers := make([]ProviderDescriptor, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.ClientID == SentinelClientID || entry.ClientID == "" {
			continue
		}
		providers = append(providers, ProviderDescriptor{
			ID:               entry.ID,
			Name:             displayName(entry.ID),
			AuthorizationURL: fmt.Sprintf("%s/oauth2/authorization/%s", r.baseURL, entry.ID),
		})
	}

	return providers
}

// AuthCodeURL builds the upstream authorization-code URL for a provider, for
// the login initiation redirect. Returns "" when the provider is unknown or
// unconfigured.
func (r *ProviderRegistry) AuthCodeURL(providerID, state string) string {
	for _, entry := range r.entries {
		if entry.ID != providerID || entry.ClientID == SentinelClientID || entry.ClientID == "" {
			continue
		}
		cfg := oauth2.Config{
			ClientID:     entry.ClientID,
			ClientSecret: entry.ClientSecret,
			RedirectURL:  entry.RedirectURL,
			Scopes:       entry.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  entry.AuthURL,
				TokenURL: entry.TokenURL,
			},
		}
		return cfg.AuthCodeURL(state)
	}
	return ""
}

func displayName(providerID string) string {
	if name, ok := knownProviders[providerID]; ok {
		return name
	}
	if providerID == "" {
		return ""
	}
	runes := []rune(providerID)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
