// Package config loads the server configuration from a JSON file and the
// environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/fogbreaker/engine/internal/domain"
)

// OpponentConfig selects the opponent line generator used in real mode.
type OpponentConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	APIKey      string  `json:"api_key"`
	TimeoutSec  float64 `json:"timeout_sec"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int32   `json:"max_tokens"`
}

// Timeout returns TimeoutSec as a duration.
func (o OpponentConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSec * float64(time.Second))
}

// AgentConfig selects the agent line generator used in real mode.
type AgentConfig struct {
	Provider   string  `json:"provider"`
	Model      string  `json:"model"`
	Host       string  `json:"host"`
	TimeoutSec float64 `json:"timeout_sec"`
}

// Timeout returns TimeoutSec as a duration.
func (a AgentConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec * float64(time.Second))
}

// Provider names.
const (
	ProviderScripted = "scripted"
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
)

// Config holds the server's runtime configuration.
type Config struct {
	Store              string         `json:"store"`
	DBPath             string         `json:"db_path"`
	MongoURI           string         `json:"mongo_uri"`
	MongoDatabase      string         `json:"mongo_database"`
	ListenAddr         string         `json:"listen_addr"`
	DefaultMode        string         `json:"default_mode"`
	RateLimitPerMinute int            `json:"rate_limit_per_minute"`
	LogLevel           string         `json:"log_level"`
	LogFormat          string         `json:"log_format"`
	Opponent           OpponentConfig `json:"opponent"`
	Agent              AgentConfig    `json:"agent"`
}

// LoadDotEnv loads KEY=VALUE files into the process environment. Missing
// files are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads a JSON config file, applies environment overrides and defaults,
// and validates. An empty path yields a config built from the environment
// and defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config JSON: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envOverrides maps environment variables onto config fields.
var envOverrides = []struct {
	key   string
	field func(c *Config) *string
}{
	{"FOG_STORE", func(c *Config) *string { return &c.Store }},
	{"FOG_DB_PATH", func(c *Config) *string { return &c.DBPath }},
	{"FOG_MONGO_URI", func(c *Config) *string { return &c.MongoURI }},
	{"FOG_LISTEN_ADDR", func(c *Config) *string { return &c.ListenAddr }},
	{"GEMINI_API_KEY", func(c *Config) *string { return &c.Opponent.APIKey }},
	{"OLLAMA_HOST", func(c *Config) *string { return &c.Agent.Host }},
}

func (c *Config) applyEnv() {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.key); ok && strings.TrimSpace(v) != "" {
			*o.field(c) = strings.TrimSpace(v)
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Store == "" {
		c.Store = "sqlite"
	}
	if c.DBPath == "" {
		c.DBPath = "fogbreaker.db"
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = "fogbreaker"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":9800"
	}
	if c.DefaultMode == "" {
		c.DefaultMode = string(domain.ModeFast)
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Opponent.Provider == "" {
		if c.Opponent.APIKey != "" {
			c.Opponent.Provider = ProviderGemini
		} else {
			c.Opponent.Provider = ProviderScripted
		}
	}
	if c.Opponent.TimeoutSec == 0 {
		c.Opponent.TimeoutSec = 4.5
	}
	if c.Opponent.Temperature == 0 {
		c.Opponent.Temperature = 0.8
	}
	if c.Opponent.MaxTokens == 0 {
		c.Opponent.MaxTokens = 180
	}
	if c.Agent.Provider == "" {
		c.Agent.Provider = ProviderScripted
	}
	if c.Agent.TimeoutSec == 0 {
		c.Agent.TimeoutSec = 8
	}
}

func (c *Config) validate() error {
	var problems []string

	switch c.Store {
	case "memory":
	case "sqlite":
		if c.DBPath == "" {
			problems = append(problems, "db_path is required for the sqlite store")
		}
	case "mongo":
		if c.MongoURI == "" {
			problems = append(problems, "mongo_uri is required for the mongo store")
		}
	default:
		problems = append(problems, fmt.Sprintf("store %q must be memory, sqlite or mongo", c.Store))
	}
	if _, err := domain.LookupMode(c.DefaultMode); err != nil {
		problems = append(problems, "default_mode must be fast or real")
	}
	if c.RateLimitPerMinute < 0 {
		problems = append(problems, "rate_limit_per_minute must not be negative")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		problems = append(problems, "log_format must be json or console")
	}
	switch c.Opponent.Provider {
	case ProviderScripted:
	case ProviderGemini:
		if c.Opponent.APIKey == "" {
			problems = append(problems, "opponent.api_key (or GEMINI_API_KEY) is required for the gemini provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("opponent.provider %q must be gemini or scripted", c.Opponent.Provider))
	}
	switch c.Agent.Provider {
	case ProviderScripted, ProviderOllama:
	default:
		problems = append(problems, fmt.Sprintf("agent.provider %q must be ollama or scripted", c.Agent.Provider))
	}
	if c.Opponent.TimeoutSec < 0 || c.Agent.TimeoutSec < 0 {
		problems = append(problems, "timeouts must not be negative")
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}
