// Package config loads application configuration from environment variables.
//
// Configuration is resolved once at process start and treated as immutable
// afterwards; every subsystem receives the values it needs by reference
// rather than reading the environment itself. The one exception is the admin
// credential chain, which consults legacy environment variable names for
// compatibility with existing deployments.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openskills/skillhub/pkg/observability"
)

// AuthMode selects which authentication bootstrap paths are active.
type AuthMode string

const (
	// ModeOAuth2 authenticates exclusively against external OAuth2/OIDC providers.
	ModeOAuth2 AuthMode = "oauth2"
	// ModeSingleAuth authenticates exclusively against the configured admin
	// credentials. Development and testing only.
	ModeSingleAuth AuthMode = "single-auth"
	// ModeHybrid activates both paths against the same instance.
	ModeHybrid AuthMode = "hybrid"
)

// Default role and scope identifiers. Deployments running against an IdP that
// issues differently named authorities override these via environment.
const (
	DefaultRoleAdmin   = "ROLE_Osmt_Admin"
	DefaultRoleCurator = "ROLE_Osmt_Curator"
	DefaultRoleView    = "ROLE_Osmt_View"
	DefaultScopeRead   = "SCOPE_osmt.read"

	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	Storage       StorageConfig
	Whitelabel    WhitelabelConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for probes)
	HealthPort string
}

// AuthConfig holds the role/claim registry and authentication mode settings.
// Loaded once at startup; never mutated afterwards.
type AuthConfig struct {
	Mode             AuthMode
	EnableRoles      bool
	AllowPublicLists bool

	RoleAdmin   string
	RoleCurator string
	RoleView    string
	ScopeRead   string

	// RolesClaim names the OAuth2 token claim carrying role authorities.
	RolesClaim string

	BaseURL  string
	LoginURL string

	// OIDC resource-server settings, required for oauth2 and hybrid modes.
	OIDCIssuer   string
	OIDCClientID string

	// Admin credentials for single-auth and hybrid modes, resolved through
	// the precedence chain in ResolveAdminCredentials.
	AdminUsername string
	AdminPassword string

	// ProvidersFile optionally points at a YAML registry of additional
	// OAuth2 providers exposed through the whitelabel endpoint.
	ProvidersFile string
}

// SingleAuthEnabled reports whether synthetic admin credentials are accepted.
func (a AuthConfig) SingleAuthEnabled() bool {
	return a.Mode == ModeSingleAuth || a.Mode == ModeHybrid
}

// OAuth2Enabled reports whether the OAuth2 verification path is active.
func (a AuthConfig) OAuth2Enabled() bool {
	return a.Mode == ModeOAuth2 || a.Mode == ModeHybrid
}

// StorageConfig holds relational and cache storage configuration
type StorageConfig struct {
	PostgresURL      string
	PostgresMaxConns int
	PostgresTimeout  time.Duration

	RedisURL      string
	RedisPassword string
	RedisDB       int

	CacheEnabled bool
	CacheTTL     time.Duration
}

// WhitelabelConfig holds the static whitelabel file settings
type WhitelabelConfig struct {
	FilePath     string
	WatchEnabled bool
}

// ObservabilityConfig holds logging/metrics/tracing settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled     bool
	OTelEndpoint    string
	OTelServiceName string
	OTelInsecure    bool
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		Storage:       loadStorageConfig(),
		Whitelabel:    loadWhitelabelConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SKILLHUB_HOST", "0.0.0.0"),
		Port:            getEnv("SKILLHUB_PORT", "8080"),
		ReadTimeout:     getEnvDuration("SKILLHUB_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SKILLHUB_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("SKILLHUB_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SKILLHUB_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("SKILLHUB_HEALTH_PORT", "9090"),
	}
}

func loadAuthConfig() AuthConfig {
	username, password := ResolveAdminCredentials()

	return AuthConfig{
		Mode:             AuthMode(getEnv("SKILLHUB_AUTH_MODE", string(ModeSingleAuth))),
		EnableRoles:      getEnvBool("SKILLHUB_ENABLE_ROLES", true),
		AllowPublicLists: getEnvBool("SKILLHUB_ALLOW_PUBLIC_LISTS", true),
		RoleAdmin:        getEnv("SKILLHUB_ROLE_ADMIN", DefaultRoleAdmin),
		RoleCurator:      getEnv("SKILLHUB_ROLE_CURATOR", DefaultRoleCurator),
		RoleView:         getEnv("SKILLHUB_ROLE_VIEW", DefaultRoleView),
		ScopeRead:        getEnv("SKILLHUB_SCOPE_READ", DefaultScopeRead),
		RolesClaim:       getEnv("SKILLHUB_ROLES_CLAIM", "roles"),
		BaseURL:          getEnv("SKILLHUB_BASE_URL", "http://localhost:8080"),
		LoginURL:         getEnv("SKILLHUB_LOGIN_URL", ""),
		OIDCIssuer:       getEnv("SKILLHUB_OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("SKILLHUB_OIDC_CLIENT_ID", ""),
		AdminUsername:    username,
		AdminPassword:    password,
		ProvidersFile:    getEnv("SKILLHUB_PROVIDERS_FILE", ""),
	}
}

// ResolveAdminCredentials resolves the admin username and password through
// the fixed precedence chain: SKILLHUB_ADMIN_* config keys, then the legacy
// SINGLE_AUTH_ADMIN_* and APP_SINGLE_AUTH_ADMIN_* environment variables, then
// the built-in development defaults.
func ResolveAdminCredentials() (username, password string) {
	username = firstNonEmpty(
		os.Getenv("SKILLHUB_ADMIN_USERNAME"),
		os.Getenv("SINGLE_AUTH_ADMIN_USERNAME"),
		os.Getenv("APP_SINGLE_AUTH_ADMIN_USERNAME"),
		DefaultAdminUsername,
	)
	password = firstNonEmpty(
		os.Getenv("SKILLHUB_ADMIN_PASSWORD"),
		os.Getenv("SINGLE_AUTH_ADMIN_PASSWORD"),
		os.Getenv("APP_SINGLE_AUTH_ADMIN_PASSWORD"),
		DefaultAdminPassword,
	)
	return username, password
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		PostgresURL:      getEnv("SKILLHUB_POSTGRES_URL", ""),
		PostgresMaxConns: getEnvInt("SKILLHUB_POSTGRES_MAX_CONNS", 25),
		PostgresTimeout:  getEnvDuration("SKILLHUB_POSTGRES_TIMEOUT", 10*time.Second),
		RedisURL:         getEnv("SKILLHUB_REDIS_URL", ""),
		RedisPassword:    getEnv("SKILLHUB_REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("SKILLHUB_REDIS_DB", 0),
		CacheEnabled:     getEnvBool("SKILLHUB_CACHE_ENABLED", true),
		CacheTTL:         getEnvDuration("SKILLHUB_CACHE_TTL", 5*time.Minute),
	}
}

func loadWhitelabelConfig() WhitelabelConfig {
	return WhitelabelConfig{
		FilePath:     getEnv("SKILLHUB_WHITELABEL_FILE", ""),
		WatchEnabled: getEnvBool("SKILLHUB_WHITELABEL_WATCH", true),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:        observability.ParseLogLevel(getEnv("SKILLHUB_LOG_LEVEL", "info")),
		MetricsEnabled:  getEnvBool("SKILLHUB_METRICS_ENABLED", true),
		OTelEnabled:     getEnvBool("SKILLHUB_OTEL_ENABLED", false),
		OTelEndpoint:    getEnv("SKILLHUB_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName: getEnv("SKILLHUB_OTEL_SERVICE_NAME", "skillhub"),
		OTelInsecure:    getEnvBool("SKILLHUB_OTEL_INSECURE", true),
	}
}

// Validate checks the configuration, returning an error for anything fatal.
// Optional features (providers file, cache, whitelabel) degrade at runtime
// instead of failing here.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Auth.Mode {
	case ModeOAuth2, ModeSingleAuth, ModeHybrid:
	default:
		return fmt.Errorf("invalid auth mode: %q (must be oauth2, single-auth, or hybrid)", c.Auth.Mode)
	}

	if c.Auth.OAuth2Enabled() {
		if c.Auth.OIDCIssuer == "" {
			return fmt.Errorf("OIDC issuer is required for auth mode %q", c.Auth.Mode)
		}
		if c.Auth.OIDCClientID == "" {
			return fmt.Errorf("OIDC client id is required for auth mode %q", c.Auth.Mode)
		}
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
