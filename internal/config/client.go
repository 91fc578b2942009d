package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Client is the terminal client configuration.
type Client struct {
	APIURL string
	Token  string
	// OfflineDir holds FileStore backups when RedisURL is empty.
	OfflineDir    string
	RedisURL      string
	Debounce      time.Duration
	ProbeInterval time.Duration
}

const (
	DefaultClientConfigPath = "~/.config/proposaldesk/desk.toml"
	defaultOfflineDir       = "~/.local/share/proposaldesk/offline"
	defaultAPIURL           = "http://127.0.0.1:8787"
	defaultDebounceMS       = 2000
	defaultProbeSeconds     = 5
)

// LoadClient parses the client config at path (DefaultClientConfigPath when
// empty), falling back to defaults when the file is missing.
func LoadClient(path string) (Client, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Client{}, err
	}

	cfg := Client{
		APIURL:        defaultAPIURL,
		OfflineDir:    mustExpand(defaultOfflineDir),
		Debounce:      defaultDebounceMS * time.Millisecond,
		ProbeInterval: defaultProbeSeconds * time.Second,
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Client{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Client{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL       string `toml:"api_url"`
		Token        string `toml:"token"`
		OfflineDir   string `toml:"offline_dir"`
		RedisURL     string `toml:"redis_url"`
		DebounceMS   int    `toml:"debounce_ms"`
		ProbeSeconds int    `toml:"probe_seconds"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Client{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimRight(strings.TrimSpace(raw.APIURL), "/"); v != "" {
		cfg.APIURL = v
	}
	cfg.Token = strings.TrimSpace(raw.Token)
	if v := strings.TrimSpace(raw.OfflineDir); v != "" {
		cfg.OfflineDir = mustExpand(v)
	}
	cfg.RedisURL = strings.TrimSpace(raw.RedisURL)
	if raw.DebounceMS > 0 {
		cfg.Debounce = time.Duration(raw.DebounceMS) * time.Millisecond
	}
	if raw.ProbeSeconds > 0 {
		cfg.ProbeInterval = time.Duration(raw.ProbeSeconds) * time.Second
	}
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(DefaultClientConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
