package app

import (
	"path/filepath"
	"testing"
	"time"
)

func validTestConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	cfg.Auth.ClientID = "svc-test"
	cfg.Auth.SecretFile = filepath.Join(t.TempDir(), "secret")
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	if cfg.LogFormat != LogFormatText {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, LogFormatText)
	}
	if cfg.Server.Host != DefaultConfigServerHost {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, DefaultConfigServerHost)
	}
	if cfg.Server.Port != DefaultConfigServerPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultConfigServerPort)
	}
	if cfg.Shutdown.Timeout != 5*time.Second {
		t.Errorf("Shutdown.Timeout = %v, want 5s", cfg.Shutdown.Timeout)
	}
	if cfg.Upstream.BaseURL != DefaultConfigUpstreamBaseURL {
		t.Errorf("Upstream.BaseURL = %q, want %q", cfg.Upstream.BaseURL, DefaultConfigUpstreamBaseURL)
	}
	if cfg.Auth.TokenURL != DefaultConfigAuthTokenURL {
		t.Errorf("Auth.TokenURL = %q, want %q", cfg.Auth.TokenURL, DefaultConfigAuthTokenURL)
	}
	if cfg.Auth.RefreshMarginSeconds != 60 {
		t.Errorf("Auth.RefreshMarginSeconds = %d, want 60", cfg.Auth.RefreshMarginSeconds)
	}
	if cfg.Auth.SecretStorage != SecretStorageTypeFile {
		t.Errorf("Auth.SecretStorage = %q, want file", cfg.Auth.SecretStorage)
	}
	if cfg.Auth.SecretFile == "" {
		t.Error("Auth.SecretFile should be auto-detected for file storage")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing client id",
			mutate:  func(c *Config) { c.Auth.ClientID = "" },
			wantErr: true,
		},
		{
			name:    "invalid token URL",
			mutate:  func(c *Config) { c.Auth.TokenURL = "not-a-url" },
			wantErr: true,
		},
		{
			name:    "invalid upstream URL",
			mutate:  func(c *Config) { c.Upstream.BaseURL = "not-a-url" },
			wantErr: true,
		},
		{
			name:    "unknown storage type",
			mutate:  func(c *Config) { c.Auth.SecretStorage = "vault" },
			wantErr: true,
		},
		{
			name: "env storage without key",
			mutate: func(c *Config) {
				c.Auth.SecretStorage = SecretStorageTypeEnv
				c.Auth.SecretEnvKey = ""
			},
			wantErr: true,
		},
		{
			name: "env storage with key",
			mutate: func(c *Config) {
				c.Auth.SecretStorage = SecretStorageTypeEnv
				c.Auth.SecretEnvKey = "XCOR_CLIENT_SECRET"
			},
			wantErr: false,
		},
		{
			name:    "negative refresh margin",
			mutate:  func(c *Config) { c.Auth.RefreshMarginSeconds = -30 },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.LogFormat = "yaml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestCredentialConfigMapping(t *testing.T) {
	cfg := validTestConfig(t)
	cfg.Auth.Scopes = []string{"platform:read"}
	cfg.Auth.RefreshMarginSeconds = 120
	cfg.Auth.DisableAutoRefresh = true

	credCfg := cfg.Auth.CredentialConfig("hunter2")

	if credCfg.ClientID != "svc-test" {
		t.Errorf("ClientID = %q", credCfg.ClientID)
	}
	if credCfg.ClientSecret != "hunter2" {
		t.Errorf("ClientSecret = %q", credCfg.ClientSecret)
	}
	if credCfg.RefreshMargin != 120*time.Second {
		t.Errorf("RefreshMargin = %v, want 2m", credCfg.RefreshMargin)
	}
	if !credCfg.DisableAutoRefresh {
		t.Error("DisableAutoRefresh not carried over")
	}
}
