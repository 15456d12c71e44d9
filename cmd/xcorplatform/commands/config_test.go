package commands

import (
	"os"
	"path/filepath"
	"testing"
)

// testEnviron returns an environ func serving only the given variables.
func testEnviron(vars ...string) func() []string {
	return func() []string { return vars }
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "secret")

	cfg, err := loadConfig("", nil, testEnviron(
		"XCORPLATFORM_SERVER__PORT=9999",
		"XCORPLATFORM_AUTH__CLIENT_ID=svc-env",
		"XCORPLATFORM_AUTH__SECRET_FILE="+secretFile,
	))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Auth.ClientID != "svc-env" {
		t.Errorf("Auth.ClientID = %q, want %q", cfg.Auth.ClientID, "svc-env")
	}
	// Unset fields fall through to defaults.
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want default", cfg.Server.Host)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
log_format = "json"

[server]
port = 8443

[auth]
client_id = "svc-file"
secret_file = "` + filepath.Join(dir, "secret") + `"
scopes = ["platform:read", "platform:write"]
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := loadConfig(configPath, nil, testEnviron())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	if cfg.Server.Port != 8443 {
		t.Errorf("Server.Port = %d, want 8443", cfg.Server.Port)
	}
	if len(cfg.Auth.Scopes) != 2 {
		t.Errorf("Auth.Scopes = %v, want two entries", cfg.Auth.Scopes)
	}
}

func TestLoadConfigEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
[server]
port = 8443

[auth]
client_id = "svc-file"
secret_file = "` + filepath.Join(dir, "secret") + `"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := loadConfig(configPath, nil, testEnviron(
		"XCORPLATFORM_SERVER__PORT=9000",
	))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want env override 9000", cfg.Server.Port)
	}
	if cfg.Auth.ClientID != "svc-file" {
		t.Errorf("Auth.ClientID = %q, want value from file", cfg.Auth.ClientID)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	// Missing client_id fails validation.
	if _, err := loadConfig("", nil, testEnviron()); err == nil {
		t.Error("expected validation failure without client_id")
	}
}
