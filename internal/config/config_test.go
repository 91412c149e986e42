// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config dir at a temp dir and clears env overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("QWENCHAT_HOME", dir)
	for _, key := range []string{"QWENCHAT_MODEL", "QWENCHAT_BACKEND", "QWENCHAT_OLLAMA_URL", "QWENCHAT_WEB_PORT", "QWENCHAT_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "qwen2.5-coder:1.5b", cfg.Model.Name)
	assert.Equal(t, BackendOllama, cfg.Model.Backend)
	assert.Equal(t, "Qwen", cfg.Model.AssistantName)
	assert.Equal(t, 0, cfg.Local.TimeoutSecs, "no timeout by default")
	assert.Equal(t, 8501, cfg.Web.Port)
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Model, cfg.Model)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "nope.toml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
[model]
name = "llama3.2:3b"

[web]
port = 9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3.2:3b", cfg.Model.Name)
	assert.Equal(t, 9000, cfg.Web.Port)
	assert.Equal(t, "Qwen", cfg.Model.AssistantName)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Local.OllamaURL)
	assert.True(t, cfg.UI.Markdown)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")

	writeFile(t, path, "[model\nname=")
	_, err := Load(path)
	require.Error(t, err)

	writeFile(t, path, "[model]\nbackend = \"grpc\"\n")
	_, err = Load(path)
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "model.backend", verrs[0].Field)
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("QWENCHAT_MODEL", "qwen2.5-coder:7b")
	t.Setenv("QWENCHAT_BACKEND", "openai")
	t.Setenv("QWENCHAT_OLLAMA_URL", "http://gpu-box:11434")
	t.Setenv("QWENCHAT_WEB_PORT", "8080")
	t.Setenv("QWENCHAT_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "qwen2.5-coder:7b", cfg.Model.Name)
	assert.Equal(t, BackendOpenAI, cfg.Model.Backend)
	assert.Equal(t, "http://gpu-box:11434", cfg.Local.OllamaURL)
	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	isolate(t)
	t.Setenv("QWENCHAT_WEB_PORT", "eighty")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8501, cfg.Web.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty model", func(c *Config) { c.Model.Name = "  " }, "model.name"},
		{"bad backend", func(c *Config) { c.Model.Backend = "cloud" }, "model.backend"},
		{"bad ollama url", func(c *Config) { c.Local.OllamaURL = "ftp://host" }, "local.ollama_url"},
		{"no host", func(c *Config) { c.Local.OpenAIURL = "http://" }, "local.openai_url"},
		{"negative timeout", func(c *Config) { c.Local.TimeoutSecs = -1 }, "local.timeout_secs"},
		{"port range", func(c *Config) { c.Web.Port = 70000 }, "web.port"},
		{"negative rps", func(c *Config) { c.Web.RateLimitRPS = -1 }, "web.rate_limit_rps"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs), "expected ValidateErrors, got %v", err)
			require.Len(t, verrs, 1)
			assert.Equal(t, tc.field, verrs[0].Field)
		})
	}
}

func TestSetDefaults_KeepsMeaningfulZeros(t *testing.T) {
	cfg := &Config{Web: WebConfig{RateLimitRPS: 0}, Local: LocalConfig{TimeoutSecs: 0}}
	cfg.SetDefaults()

	assert.Equal(t, 0.0, cfg.Web.RateLimitRPS)
	assert.Equal(t, 0, cfg.Local.TimeoutSecs)
	assert.Equal(t, "qwen2.5-coder:1.5b", cfg.Model.Name)
	assert.Equal(t, 8501, cfg.Web.Port)
}

func TestSaveTOML_RoundTripAndPermissions(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Model.Name = "codellama"
	cfg.Web.RateLimitRPS = 0.5
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Model, loaded.Model)
	assert.Equal(t, cfg.Web, loaded.Web)
}

func TestInferenceChanged(t *testing.T) {
	a := Default()
	b := a.Clone()
	assert.False(t, a.InferenceChanged(b))

	b.UI.Markdown = false
	assert.False(t, a.InferenceChanged(b), "ui changes do not touch inference")

	b.Local.TimeoutSecs = 30
	assert.True(t, a.InferenceChanged(b))

	c := a.Clone()
	c.Model.Name = "other"
	assert.True(t, a.InferenceChanged(c))
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[model]\nname = \"first\"\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config, err error) {
			if err == nil {
				reloaded <- cfg
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "[model]\nname = \"second\"\n")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "second", cfg.Model.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
