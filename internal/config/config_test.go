// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "famlink.yaml", `
server:
  http_addr: "0.0.0.0:9090"
  request_timeout: "45s"

backend:
  kind: "google"
  spreadsheet_id: "sheet-123"
  credentials_file: "/tmp/sa.json"
  remote_timeout: "3s"

blob:
  kind: "gcs"
  bucket: "photos"
  prefix: "fam"

auth:
  jwt_secret: "`+testSecret+`"

cors:
  allowed_origins:
    - "https://a.example.com"
    - "https://b.example.com"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/prom"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:9090" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:9090")
	}
	if cfg.Server.RequestTimeout != 45*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want %v", cfg.Server.RequestTimeout, 45*time.Second)
	}
	if cfg.Backend.Kind != BackendGoogle || cfg.Backend.SpreadsheetID != "sheet-123" {
		t.Errorf("Backend = %+v", cfg.Backend)
	}
	if cfg.Backend.RemoteTimeout != 3*time.Second {
		t.Errorf("Backend.RemoteTimeout = %v, want %v", cfg.Backend.RemoteTimeout, 3*time.Second)
	}
	if cfg.Blob.Kind != BlobGCS || cfg.Blob.Bucket != "photos" || cfg.Blob.Prefix != "fam" {
		t.Errorf("Blob = %+v", cfg.Blob)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Errorf("CORS.AllowedOrigins len = %d, want 2", len(cfg.CORS.AllowedOrigins))
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/prom" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "famlink.toml", `
[server]
http_addr = "127.0.0.1:7000"

[backend]
kind = "sqlite"
remote_timeout = "2s"

[database]
path = "/tmp/workbook.db"
driver = "sqlite3"

[auth]
jwt_secret = "`+testSecret+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:7000" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Database.Path != "/tmp/workbook.db" || cfg.Database.Driver != "sqlite3" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Backend.RemoteTimeout != 2*time.Second {
		t.Errorf("Backend.RemoteTimeout = %v", cfg.Backend.RemoteTimeout)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "famlink.yaml", `
database:
  path: "./famlink.db"
auth:
  jwt_secret: "`+testSecret+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("Server.RequestTimeout = %v", cfg.Server.RequestTimeout)
	}
	if cfg.Backend.Kind != BackendSQLite {
		t.Errorf("Backend.Kind = %q", cfg.Backend.Kind)
	}
	if cfg.Backend.RemoteTimeout != 10*time.Second {
		t.Errorf("Backend.RemoteTimeout = %v", cfg.Backend.RemoteTimeout)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Blob.Kind != BlobMemory {
		t.Errorf("Blob.Kind = %q", cfg.Blob.Kind)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q", cfg.Metrics.Path)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("FAMLINK_TEST_SECRET", testSecret)
	t.Setenv("FAMLINK_TEST_SHEET", "sheet-from-env")

	path := writeConfig(t, "famlink.yaml", `
backend:
  kind: "google"
  spreadsheet_id: "${FAMLINK_TEST_SHEET}"
auth:
  jwt_secret: "${FAMLINK_TEST_SECRET}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.SpreadsheetID != "sheet-from-env" {
		t.Errorf("Backend.SpreadsheetID = %q", cfg.Backend.SpreadsheetID)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Errorf("Auth.JWTSecret not expanded")
	}
}

func TestExpandEnvVars_Unset(t *testing.T) {
	if got := expandEnvVars("a${FAMLINK_SURELY_UNSET_VAR}b"); got != "ab" {
		t.Errorf("expandEnvVars() = %q, want %q", got, "ab")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "short secret",
			content: "backend:\n  kind: memory\nauth:\n  jwt_secret: short\n",
			wantErr: "jwt_secret",
		},
		{
			name:    "google without sheet",
			content: "backend:\n  kind: google\nauth:\n  jwt_secret: " + testSecret + "\n",
			wantErr: "spreadsheet_id",
		},
		{
			name:    "sqlite without path",
			content: "auth:\n  jwt_secret: " + testSecret + "\n",
			wantErr: "database.path",
		},
		{
			name:    "unknown driver",
			content: "database:\n  path: x.db\n  driver: postgres\nauth:\n  jwt_secret: " + testSecret + "\n",
			wantErr: "database.driver",
		},
		{
			name:    "unknown backend",
			content: "backend:\n  kind: excel\nauth:\n  jwt_secret: " + testSecret + "\n",
			wantErr: "backend.kind",
		},
		{
			name:    "gcs without bucket",
			content: "backend:\n  kind: memory\nblob:\n  kind: gcs\nauth:\n  jwt_secret: " + testSecret + "\n",
			wantErr: "blob.bucket",
		},
		{
			name:    "tailscale without hostname",
			content: "tailscale:\n  enabled: true\nbackend:\n  kind: memory\nauth:\n  jwt_secret: " + testSecret + "\n",
			wantErr: "tailscale.hostname",
		},
		{
			name:    "bad duration",
			content: "server:\n  request_timeout: soon\nbackend:\n  kind: memory\nauth:\n  jwt_secret: " + testSecret + "\n",
			wantErr: "request_timeout",
		},
		{
			name:    "bad level",
			content: "backend:\n  kind: memory\nlogging:\n  level: loud\nauth:\n  jwt_secret: " + testSecret + "\n",
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "famlink.yaml", tt.content))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("FAMLINK_CONFIG", "/etc/famlink/custom.toml")
	if got := DefaultPath(); got != "/etc/famlink/custom.toml" {
		t.Errorf("DefaultPath() = %q", got)
	}

	t.Setenv("FAMLINK_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != filepath.Join("/xdg", "famlink", "famlink.yaml") {
		t.Errorf("DefaultPath() = %q", got)
	}
}
