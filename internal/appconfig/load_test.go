package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 3
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":9000"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected missing config_version error, got %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion || cfg.HTTP.HubHistory != 1000 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadReadsDurationsAndExpandsEnv(t *testing.T) {
	t.Setenv("STUDIO_SECRET", "s3cret")
	path := writeConfig(t, `
config_version: 1
state_dir: /tmp/studio-$UID
persist:
  backend: sqlite
realtime:
  url: wss://push.example.com/v1/realtime
  reconnect_min: 250ms
  reconnect_max: 10s
api:
  base_url: https://api.example.com
  catalog_interval: 5m
auth:
  jwt_secret: $STUDIO_SECRET
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Realtime.ReconnectMin != 250*time.Millisecond || cfg.Realtime.ReconnectMax != 10*time.Second {
		t.Fatalf("unexpected reconnect bounds: %+v", cfg.Realtime)
	}
	if cfg.API.CatalogInterval != 5*time.Minute {
		t.Fatalf("unexpected catalog interval: %v", cfg.API.CatalogInterval)
	}
	if cfg.Realtime.ReadTimeout != 90*time.Second {
		t.Fatalf("expected default read timeout, got %v", cfg.Realtime.ReadTimeout)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("expected expanded secret, got %q", cfg.Auth.JWTSecret)
	}
	if strings.Contains(cfg.StateDir, "$UID") {
		t.Fatalf("expected UID expansion, got %q", cfg.StateDir)
	}
	if cfg.Persist.Backend != "sqlite" {
		t.Fatalf("expected sqlite backend, got %q", cfg.Persist.Backend)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"http base url", "http:\n  base_url: example.com", "http.base_url"},
		{"http base path", "http:\n  base_path: https://example.com/x", "http.base_path"},
		{"persist backend", "persist:\n  backend: etcd", "persist.backend"},
		{"realtime url", "realtime:\n  url: https://push.example.com", "realtime.url"},
		{"api base url", "api:\n  base_url: api.example.com", "api.base_url"},
		{"reconnect bounds", "realtime:\n  reconnect_min: 1m\n  reconnect_max: 1s", "reconnect_min"},
	}
	for _, tc := range cases {
		path := writeConfig(t, "config_version: 1\n"+tc.body)
		if _, err := Load(path); err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected %q error, got %v", tc.name, tc.want, err)
		}
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to exist: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load written default: %v", err)
	}
	defaults, _ := DefaultConfig()
	if cfg.Realtime.ReconnectMax != defaults.Realtime.ReconnectMax || cfg.HTTP.Addr != defaults.HTTP.Addr {
		t.Fatalf("expected written default to load back, got %+v", cfg)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
