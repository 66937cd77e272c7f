package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fogbreaker/engine/internal/domain"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, o := range envOverrides {
		t.Setenv(o.key, "")
	}
}

// validJSON returns a minimal valid configuration JSON string.
func validJSON() string {
	return `{
		"store": "sqlite",
		"db_path": "/tmp/test.db",
		"listen_addr": ":8080",
		"opponent": {"provider": "gemini", "api_key": "k", "model": "gemini-2.5-flash"},
		"agent": {"provider": "ollama", "model": "qwen2.5:7b", "host": "http://localhost:11434"}
	}`
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "config.json")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Valid(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), validJSON())

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want /tmp/test.db", cfg.DBPath)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.Opponent.Provider != ProviderGemini || cfg.Opponent.APIKey != "k" {
		t.Errorf("Opponent = %+v", cfg.Opponent)
	}
	if cfg.Agent.Host != "http://localhost:11434" {
		t.Errorf("Agent.Host = %q", cfg.Agent.Host)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	clearEnv(t)
	if _, err := Load("/nonexistent/config.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_DefaultsOnly(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != "sqlite" {
		t.Errorf("Store = %q, want sqlite", cfg.Store)
	}
	if cfg.DBPath != "fogbreaker.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ListenAddr != ":9800" {
		t.Errorf("ListenAddr = %q, want :9800", cfg.ListenAddr)
	}
	if cfg.DefaultMode != "fast" {
		t.Errorf("DefaultMode = %q, want fast", cfg.DefaultMode)
	}
	if cfg.RateLimitPerMinute != 60 {
		t.Errorf("RateLimitPerMinute = %d, want 60", cfg.RateLimitPerMinute)
	}
	if cfg.Opponent.Provider != ProviderScripted {
		t.Errorf("Opponent.Provider = %q, want scripted without an API key", cfg.Opponent.Provider)
	}
	if cfg.Opponent.MaxTokens != 180 || cfg.Opponent.Temperature != 0.8 {
		t.Errorf("Opponent defaults = %+v", cfg.Opponent)
	}
	if cfg.Opponent.Timeout().Milliseconds() != 4500 {
		t.Errorf("Opponent timeout = %v", cfg.Opponent.Timeout())
	}
	if cfg.Agent.Provider != ProviderScripted {
		t.Errorf("Agent.Provider = %q", cfg.Agent.Provider)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FOG_DB_PATH", "/data/env.db")
	t.Setenv("FOG_LISTEN_ADDR", ":7000")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("OLLAMA_HOST", "http://ollama:11434")

	path := writeConfig(t, t.TempDir(), `{"db_path": "/file.db"}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/data/env.db" {
		t.Errorf("DBPath = %q, want env override", cfg.DBPath)
	}
	if cfg.ListenAddr != ":7000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Opponent.APIKey != "env-key" || cfg.Opponent.Provider != ProviderGemini {
		t.Errorf("Opponent = %+v, want gemini with env key", cfg.Opponent)
	}
	if cfg.Agent.Host != "http://ollama:11434" {
		t.Errorf("Agent.Host = %q", cfg.Agent.Host)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"unknown store", `{"store": "redis"}`},
		{"mongo without uri", `{"store": "mongo"}`},
		{"bad mode", `{"default_mode": "turbo"}`},
		{"negative rate", `{"rate_limit_per_minute": -1}`},
		{"bad log format", `{"log_format": "xml"}`},
		{"gemini without key", `{"opponent": {"provider": "gemini"}}`},
		{"unknown agent provider", `{"agent": {"provider": "claude"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			path := writeConfig(t, t.TempDir(), tc.json)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, domain.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "test.env")
	if err := os.WriteFile(p, []byte("FOG_TEST_DOTENV=from-file\n"), 0644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("FOG_TEST_DOTENV", "")
	os.Unsetenv("FOG_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), p); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("FOG_TEST_DOTENV"); got != "from-file" {
		t.Errorf("FOG_TEST_DOTENV = %q, want from-file", got)
	}
}

func TestNewLogger(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cfg.NewLogger(); err != nil {
		t.Fatalf("NewLogger json: %v", err)
	}
	cfg.LogFormat = "console"
	cfg.LogLevel = "debug"
	if _, err := cfg.NewLogger(); err != nil {
		t.Fatalf("NewLogger console: %v", err)
	}
	cfg.LogLevel = "loud"
	if _, err := cfg.NewLogger(); err == nil {
		t.Fatal("expected error for bad level")
	}
}
