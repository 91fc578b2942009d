package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("API_ADDR", ":9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/desk")
	t.Setenv("PROPOSALDESK_ACCESS_TTL_SECONDS", "60")
	t.Setenv("PROPOSALDESK_CORS_ORIGIN", "")

	cfg := Load()
	if cfg.Addr != ":9000" || cfg.DatabaseURL != "postgres://localhost/desk" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.AccessTTL != time.Minute {
		t.Fatalf("AccessTTL = %v", cfg.AccessTTL)
	}
	if cfg.CORSOrigin != "*" {
		t.Fatalf("CORSOrigin = %q, want default", cfg.CORSOrigin)
	}
}

func TestLoadIgnoresBadInt(t *testing.T) {
	t.Setenv("PROPOSALDESK_ACCESS_TTL_SECONDS", "soon")
	if got := Load().AccessTTL; got != 12*time.Hour {
		t.Fatalf("AccessTTL = %v, want fallback", got)
	}
}

func TestLoadClientMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.APIURL != defaultAPIURL || cfg.Debounce != 2*time.Second || cfg.ProbeInterval != 5*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.RedisURL != "" || !filepath.IsAbs(cfg.OfflineDir) {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadClientParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "desk.toml")
	contents := `
api_url = "https://desk.example.com/"
token = " abc "
offline_dir = "` + filepath.Join(dir, "backups") + `"
redis_url = "redis://localhost:6379/2"
debounce_ms = 500
probe_seconds = 0
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.APIURL != "https://desk.example.com" || cfg.Token != "abc" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.OfflineDir != filepath.Join(dir, "backups") || cfg.RedisURL != "redis://localhost:6379/2" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Debounce != 500*time.Millisecond || cfg.ProbeInterval != 5*time.Second {
		t.Fatalf("unexpected timings %+v", cfg)
	}
}

func TestLoadClientRejectsInvalidToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desk.toml")
	if err := os.WriteFile(path, []byte("api_url = "), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadClient(path); err == nil {
		t.Fatal("expected parse error")
	}
}
