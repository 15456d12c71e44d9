package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nr1etech/xcorplatform-client/internal/credentials"
	"github.com/nr1etech/xcorplatform-client/internal/secretstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// SecretStorageType represents the different storage types supported for the client secret.
type SecretStorageType string

const (
	SecretStorageTypeFile    SecretStorageType = "file"
	SecretStorageTypeEnv     SecretStorageType = "env"
	SecretStorageTypeKeyring SecretStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat            = LogFormatText
	DefaultConfigServerHost           = "127.0.0.1"
	DefaultConfigServerPort           = 4100
	DefaultConfigShutdownTimeout      = 5 * time.Second
	DefaultConfigAuthSecretStorage    = SecretStorageTypeFile
	DefaultConfigAuthTokenURL         = "https://auth.xcorplatform.com/oauth/token"
	DefaultConfigAuthRefreshMarginSec = 60
	DefaultConfigUpstreamBaseURL      = "https://api.xcorplatform.com/v1"
)

// keyringService namespaces this application's entries in the OS keyring.
const keyringService = "xcorplatform-client-secret"

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// UpstreamConfig holds platform API configuration.
type UpstreamConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
}

// AuthConfig represents the configuration for platform authentication.
// Describes how to construct the secret store and the credential manager.
type AuthConfig struct {
	// ClientID identifies this client to the platform's token endpoint.
	ClientID string `json:"client_id" validate:"required"`

	// TokenURL is the OAuth2 token endpoint.
	TokenURL string `json:"token_url" validate:"required,url"`

	// Scopes requested with each token exchange.
	Scopes []string `json:"scopes,omitempty"`

	// RefreshMarginSeconds is subtracted from the server-reported token
	// lifetime to decide when the token is treated as expiring.
	RefreshMarginSeconds int `json:"refresh_margin_seconds" validate:"gte=0"`

	// DisableAutoRefresh turns off background token refresh.
	DisableAutoRefresh bool `json:"disable_auto_refresh"`

	// DisableStaleFallback makes token fetch failures surface immediately
	// instead of serving the previously cached token.
	DisableStaleFallback bool `json:"disable_stale_fallback"`

	// SecretStorage configuration - where the client secret comes from
	SecretStorage SecretStorageType `json:"secret_storage" validate:"required,oneof=file env keyring"`

	// Storage-specific settings (mutually exclusive based on SecretStorage type)
	SecretFile   string `json:"secret_file,omitempty"`   // For file storage: path to secret file
	SecretEnvKey string `json:"secret_env_key,omitempty"` // For env storage: environment variable name
	KeyringUser  string `json:"keyring_user,omitempty"`   // For keyring storage: user identifier
}

// NewSecretStore creates a SecretStore from the authentication configuration.
func (a *AuthConfig) NewSecretStore() (secretstore.SecretStore, error) {
	switch a.SecretStorage {
	case SecretStorageTypeFile:
		return secretstore.NewFileStore(a.SecretFile)
	case SecretStorageTypeEnv:
		return secretstore.NewEnvStore(a.SecretEnvKey)
	case SecretStorageTypeKeyring:
		return secretstore.NewKeyringStore(keyringService, a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported secret storage type: %s", a.SecretStorage)
	}
}

// CredentialConfig builds the credential manager's configuration. The client
// secret is supplied separately since it is loaded lazily from the store.
func (a *AuthConfig) CredentialConfig(secret string) credentials.Config {
	return credentials.Config{
		ClientID:             a.ClientID,
		ClientSecret:         secret,
		TokenURL:             a.TokenURL,
		Scopes:               a.Scopes,
		RefreshMargin:        time.Duration(a.RefreshMarginSeconds) * time.Second,
		DisableAutoRefresh:   a.DisableAutoRefresh,
		DisableStaleFallback: a.DisableStaleFallback,
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json"`
	Server    ServerConfig   `json:"server"`
	Shutdown  ShutdownConfig `json:"shutdown"`
	Upstream  UpstreamConfig `json:"upstream"`
	Auth      AuthConfig     `json:"auth"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultConfigUpstreamBaseURL
	}
	if c.Auth.TokenURL == "" {
		c.Auth.TokenURL = DefaultConfigAuthTokenURL
	}
	if c.Auth.RefreshMarginSeconds == 0 {
		c.Auth.RefreshMarginSeconds = DefaultConfigAuthRefreshMarginSec
	}
	if c.Auth.SecretStorage == "" {
		c.Auth.SecretStorage = DefaultConfigAuthSecretStorage
	}

	// Dynamic defaults based on storage type
	switch c.Auth.SecretStorage {
	case SecretStorageTypeFile:
		if c.Auth.SecretFile == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.secret_file required (auto-detect failed: %w)", err)
			}
			c.Auth.SecretFile = filepath.Join(configDir, "xcorplatform", "secret")
		}
	case SecretStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case SecretStorageTypeEnv:
		// secret_env_key must be explicitly configured (no sensible default)
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Auth.SecretStorage {
	case SecretStorageTypeFile:
		if c.Auth.SecretFile == "" {
			return errors.New("secret_file required for file storage")
		}
	case SecretStorageTypeEnv:
		if c.Auth.SecretEnvKey == "" {
			return errors.New("secret_env_key required for env storage")
		}
	case SecretStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}
