// Package config provides configuration management for recall.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// Defaults for the profile monitor.
const (
	DefaultUpdateInterval    = 5 * time.Second
	DefaultStopCheckInterval = 100 * time.Millisecond
	DefaultLLMPath           = "llm"
	DefaultPromptTokenBudget = 2000

	// DefaultLocateTimeout bounds the `llm logs path` subprocess call.
	DefaultLocateTimeout = 10 * time.Second
)

// Config holds recall runtime configuration.
type Config struct {
	Disabled          bool          // LLM_MEMORY_DISABLED: fragment resolution returns nothing
	UpdatesEnabled    bool          // LLM_MEMORY_UPDATES: background profile updates
	UpdateInterval    time.Duration // LLM_MEMORY_UPDATE_INTERVAL: poll interval
	StopCheckInterval time.Duration // stop-signal check granularity within a poll sleep
	Model             string        // LLM_MEMORY_MODEL: override the per-record model
	LLMPath           string        // LLM_PATH: host tool binary
	PromptTokenBudget int           // max tokens of interaction text embedded in update prompts
	Debug             bool          // LLM_MEMORY_DEBUG: verbose logging
}

// settings mirrors the JSON settings file. All fields optional.
type settings struct {
	Disabled          *bool  `json:"LLM_MEMORY_DISABLED"`
	Updates           *bool  `json:"LLM_MEMORY_UPDATES"`
	UpdateInterval    string `json:"LLM_MEMORY_UPDATE_INTERVAL"`
	Model             string `json:"LLM_MEMORY_MODEL"`
	LLMPath           string `json:"LLM_PATH"`
	PromptTokenBudget int    `json:"LLM_MEMORY_PROMPT_TOKEN_BUDGET"`
	Debug             *bool  `json:"LLM_MEMORY_DEBUG"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		UpdatesEnabled:    true,
		UpdateInterval:    DefaultUpdateInterval,
		StopCheckInterval: DefaultStopCheckInterval,
		LLMPath:           DefaultLLMPath,
		PromptTokenBudget: DefaultPromptTokenBudget,
	}
}

// UserDir returns the host tool's per-user configuration directory.
// Honors LLM_USER_PATH the same way llm itself does.
func UserDir() string {
	if p := os.Getenv("LLM_USER_PATH"); p != "" {
		return p
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "io.datasette.llm")
}

// DataDir returns the memory data directory under the llm user dir.
func DataDir() string {
	return filepath.Join(UserDir(), "memory")
}

// ProfilePath returns the profile document path.
func ProfilePath() string {
	return filepath.Join(DataDir(), "profile.md")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the memory data directory if missing.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o750)
}

// Load reads configuration from the settings file and environment.
// Environment variables win over the settings file. A missing or
// malformed settings file falls back to defaults rather than erroring.
func Load() (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(SettingsPath()); err == nil {
		var s settings
		if err := json.Unmarshal(data, &s); err == nil {
			applySettings(cfg, &s)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applySettings(cfg *Config, s *settings) {
	if s.Disabled != nil {
		cfg.Disabled = *s.Disabled
	}
	if s.Updates != nil {
		cfg.UpdatesEnabled = *s.Updates
	}
	if d, ok := parseInterval(s.UpdateInterval); ok {
		cfg.UpdateInterval = d
	}
	if s.Model != "" {
		cfg.Model = s.Model
	}
	if s.LLMPath != "" {
		cfg.LLMPath = s.LLMPath
	}
	if s.PromptTokenBudget > 0 {
		cfg.PromptTokenBudget = s.PromptTokenBudget
	}
	if s.Debug != nil {
		cfg.Debug = *s.Debug
	}
}

func applyEnv(cfg *Config) {
	if v, ok := parseBoolEnv("LLM_MEMORY_DISABLED"); ok {
		cfg.Disabled = v
	}
	if v, ok := parseBoolEnv("LLM_MEMORY_UPDATES"); ok {
		cfg.UpdatesEnabled = v
	}
	if d, ok := parseInterval(os.Getenv("LLM_MEMORY_UPDATE_INTERVAL")); ok {
		cfg.UpdateInterval = d
	}
	if v := os.Getenv("LLM_MEMORY_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("LLM_PATH"); v != "" {
		cfg.LLMPath = v
	}
	if v, ok := parseBoolEnv("LLM_MEMORY_DEBUG"); ok {
		cfg.Debug = v
	}
}

// parseInterval accepts either a Go duration ("5s", "2m") or a bare
// number of seconds ("5"), matching what users put in the settings file.
func parseInterval(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second)), true
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}

func parseBoolEnv(name string) (value, ok bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

var (
	cached   *Config
	cachedMu sync.Mutex
)

// Get returns the process-wide cached configuration, loading it once.
func Get() *Config {
	cachedMu.Lock()
	defer cachedMu.Unlock()
	if cached == nil {
		cached, _ = Load()
	}
	return cached
}

// Reset clears the cached configuration. Intended for tests.
func Reset() {
	cachedMu.Lock()
	defer cachedMu.Unlock()
	cached = nil
}
