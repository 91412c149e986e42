// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete qwenchat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Model selection and presentation
	Model ModelConfig `toml:"model" json:"model"`

	// Local inference service
	Local LocalConfig `toml:"local" json:"local"`

	// Browser chat server
	Web WebConfig `toml:"web" json:"web"`

	// Terminal rendering
	UI UIConfig `toml:"ui" json:"ui"`

	// Logging
	Logging LoggingConfig `toml:"logging" json:"logging"`

	// Interactive line loop
	Chat ChatConfig `toml:"chat" json:"chat"`
}

// ModelConfig selects the model and the backend used to reach it.
type ModelConfig struct {
	// Name is the model identifier sent with every request
	Name string `toml:"name" json:"name"`
	// Backend is "ollama" (native /api/chat) or "openai" (OpenAI-compatible /v1)
	Backend string `toml:"backend" json:"backend"`
	// AssistantName prefixes replies in the line loop ("Qwen: ...")
	AssistantName string `toml:"assistant_name" json:"assistant_name"`
	// Title appears in banners and the browser page heading
	Title string `toml:"title" json:"title"`
}

// LocalConfig contains local inference service configuration.
type LocalConfig struct {
	// OllamaURL is the base URL of the Ollama server
	OllamaURL string `toml:"ollama_url" json:"ollama_url"`
	// OpenAIURL is the OpenAI-compatible endpoint used by the "openai" backend
	OpenAIURL string `toml:"openai_url" json:"openai_url"`
	// TimeoutSecs bounds a single request. 0 waits indefinitely.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// WebConfig contains browser chat server configuration.
type WebConfig struct {
	Host string `toml:"host" json:"host"`
	Port int    `toml:"port" json:"port"`
	// SessionIdleMins expires browser sessions after this much inactivity
	SessionIdleMins int `toml:"session_idle_mins" json:"session_idle_mins"`
	// RateLimitRPS is the sustained per-client request rate (0 disables limiting)
	RateLimitRPS float64 `toml:"rate_limit_rps" json:"rate_limit_rps"`
	// RateLimitBurst is the per-client burst allowance
	RateLimitBurst int `toml:"rate_limit_burst" json:"rate_limit_burst"`
}

// UIConfig contains terminal rendering preferences.
type UIConfig struct {
	// Markdown renders replies with glamour and highlighted code blocks
	Markdown bool `toml:"markdown" json:"markdown"`
	// WordWrap is the prose wrap width (0 = terminal width)
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
	// CodeTheme is a chroma style name
	CodeTheme string `toml:"code_theme" json:"code_theme"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level" json:"level"`
	// Format is "json" or "console"
	Format string `toml:"format" json:"format"`
	// File receives log output; empty means the front-end's default
	File string `toml:"file" json:"file"`
}

// ChatConfig contains line loop settings.
type ChatConfig struct {
	// HistoryFile stores input history (empty = <config dir>/chat_history)
	HistoryFile string `toml:"history_file" json:"history_file"`
}

// Backend names.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Model: ModelConfig{
			Name:          "qwen2.5-coder:1.5b",
			Backend:       BackendOllama,
			AssistantName: "Qwen",
			Title:         "Qwen2.5-coder",
		},

		Local: LocalConfig{
			OllamaURL:   "http://127.0.0.1:11434",
			OpenAIURL:   "http://127.0.0.1:11434/v1/",
			TimeoutSecs: 0,
		},

		Web: WebConfig{
			Host:            "127.0.0.1",
			Port:            8501,
			SessionIdleMins: 60,
			RateLimitRPS:    2,
			RateLimitBurst:  10,
		},

		UI: UIConfig{
			Markdown:  true,
			WordWrap:  80,
			CodeTheme: "monokai",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the qwenchat configuration directory path.
// QWENCHAT_HOME overrides the default of ~/.qwenchat.
func ConfigDir() (string, error) {
	if dir := os.Getenv("QWENCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".qwenchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// PathInConfigDir joins name onto the config directory.
func PathInConfigDir(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from path, or from the default location when
// path is empty. A missing default file is not an error; a missing explicit
// path is. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := ConfigPathTOML()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// SECURITY: Ensure permissions are correct even if file already existed
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# qwenchat configuration file")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if strings.TrimSpace(c.Model.Name) == "" {
		errs = append(errs, ValidationError{Field: "model.name", Message: "must not be empty"})
	}

	switch strings.ToLower(c.Model.Backend) {
	case BackendOllama, BackendOpenAI:
	default:
		errs = append(errs, ValidationError{
			Field:   "model.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: ollama, openai", c.Model.Backend),
		})
	}

	if err := validateHTTPURL(c.Local.OllamaURL); err != nil {
		errs = append(errs, ValidationError{Field: "local.ollama_url", Message: err.Error()})
	}
	if err := validateHTTPURL(c.Local.OpenAIURL); err != nil {
		errs = append(errs, ValidationError{Field: "local.openai_url", Message: err.Error()})
	}

	if c.Local.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "local.timeout_secs", Message: "must be >= 0 (0 disables the timeout)"})
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "web.port",
			Message: fmt.Sprintf("port %d out of range 1-65535", c.Web.Port),
		})
	}
	if c.Web.SessionIdleMins < 0 {
		errs = append(errs, ValidationError{Field: "web.session_idle_mins", Message: "must be >= 0"})
	}
	if c.Web.RateLimitRPS < 0 {
		errs = append(errs, ValidationError{Field: "web.rate_limit_rps", Message: "must be >= 0"})
	}
	if c.Web.RateLimitBurst < 0 {
		errs = append(errs, ValidationError{Field: "web.rate_limit_burst", Message: "must be >= 0"})
	}

	if c.UI.WordWrap < 0 {
		errs = append(errs, ValidationError{Field: "ui.word_wrap", Message: "must be >= 0"})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: json, console", c.Logging.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got '%s'", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// SetDefaults fills empty fields with default values. Zero-valued numbers
// that carry meaning (timeout_secs, rate_limit_rps) are left alone.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Model.Name == "" {
		c.Model.Name = d.Model.Name
	}
	if c.Model.Backend == "" {
		c.Model.Backend = d.Model.Backend
	}
	c.Model.Backend = strings.ToLower(c.Model.Backend)
	if c.Model.AssistantName == "" {
		c.Model.AssistantName = d.Model.AssistantName
	}
	if c.Model.Title == "" {
		c.Model.Title = d.Model.Title
	}
	if c.Local.OllamaURL == "" {
		c.Local.OllamaURL = d.Local.OllamaURL
	}
	if c.Local.OpenAIURL == "" {
		c.Local.OpenAIURL = d.Local.OpenAIURL
	}
	if c.Web.Host == "" {
		c.Web.Host = d.Web.Host
	}
	if c.Web.Port == 0 {
		c.Web.Port = d.Web.Port
	}
	if c.UI.CodeTheme == "" {
		c.UI.CodeTheme = d.UI.CodeTheme
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//   - QWENCHAT_MODEL: overrides model.name
//   - QWENCHAT_BACKEND: overrides model.backend
//   - QWENCHAT_OLLAMA_URL: overrides local.ollama_url
//   - QWENCHAT_WEB_PORT: overrides web.port
//   - QWENCHAT_LOG_LEVEL: overrides logging.level
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("QWENCHAT_MODEL"); model != "" {
		c.Model.Name = model
	}

	if backend := os.Getenv("QWENCHAT_BACKEND"); backend != "" {
		c.Model.Backend = backend
	}

	if u := os.Getenv("QWENCHAT_OLLAMA_URL"); u != "" {
		c.Local.OllamaURL = u
	}

	if port := os.Getenv("QWENCHAT_WEB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Web.Port = p
		}
	}

	if level := os.Getenv("QWENCHAT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a copy of the configuration. Config holds no reference
// types, so a value copy is a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a JSON representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// InferenceChanged reports whether other selects a different model or
// endpoint, meaning the responder must be rebuilt.
func (c *Config) InferenceChanged(other *Config) bool {
	return c.Model.Name != other.Model.Name ||
		c.Model.Backend != other.Model.Backend ||
		c.Local != other.Local
}
