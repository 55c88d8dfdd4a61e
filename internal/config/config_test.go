package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// No config.yaml in the temp dir
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, int64(10*1024*1024), cfg.Fetch.MaxBodyBytes)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, 4, cfg.Fetch.Concurrency)
	assert.Equal(t, ExtractModeDOM, cfg.Extract.Mode)
	assert.Equal(t, ProviderAnthropic, cfg.Summarize.Provider)
	assert.Equal(t, int64(4096), cfg.Summarize.MaxOutputTokens)
	assert.Equal(t, 150000, cfg.Summarize.MaxInputTokens)
	assert.InDelta(t, 0.0, cfg.Summarize.Temperature, 0.001)
	assert.False(t, cfg.Summarize.Review)
	assert.Equal(t, OversizeHierarchical, cfg.Summarize.Oversize)
	assert.Equal(t, 2, cfg.Summarize.Concurrency)
	assert.Equal(t, 120, cfg.Summarize.TimeoutSecs)
	assert.Equal(t, 5, cfg.Summarize.MaxAttempts)
	assert.Equal(t, BackendAPI, cfg.Anthropic.Backend)
	assert.Equal(t, "us-west-2", cfg.Anthropic.Region)
	assert.Empty(t, cfg.Cache.Path)
	assert.Equal(t, 168, cfg.Cache.TTLHours)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultAnthropicModel, cfg.ResolvedModel())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
summarize:
  provider: openai
  review: true
  oversize: fail
extract:
  mode: readability
  exclude_selectors:
    - ".cookie-banner"
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Summarize.Provider)
	assert.True(t, cfg.Summarize.Review)
	assert.Equal(t, OversizeFail, cfg.Summarize.Oversize)
	assert.Equal(t, ExtractModeReadability, cfg.Extract.Mode)
	assert.Equal(t, []string{".cookie-banner"}, cfg.Extract.ExcludeSelectors)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, DefaultOpenAIModel, cfg.ResolvedModel())
}

func TestLoadExplicitFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fetch:\n  timeout_secs: 5\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Fetch.TimeoutSecs)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	dir := chdirTemp(t)

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
anthropic:
  backend: api
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PAGEDIGEST_LOG_LEVEL", "warn")
	t.Setenv("PAGEDIGEST_ANTHROPIC_BACKEND", "bedrock")
	t.Setenv("PAGEDIGEST_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, BackendBedrock, cfg.Anthropic.Backend)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
	assert.Equal(t, DefaultBedrockModel, cfg.ResolvedModel())
}

func TestResolvedModelExplicit(t *testing.T) {
	cfg := &Config{}
	cfg.Summarize.Model = "claude-haiku-4-5-20251001"
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.ResolvedModel())
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Summarize.Provider = ProviderAnthropic
	cfg.Summarize.MaxOutputTokens = 4096
	cfg.Summarize.MaxInputTokens = 150000
	cfg.Summarize.Oversize = OversizeHierarchical
	cfg.Anthropic.Backend = BackendAPI
	cfg.Extract.Mode = ExtractModeDOM
	cfg.Fetch.TimeoutSecs = 30
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "openai", mutate: func(c *Config) { c.Summarize.Provider = ProviderOpenAI }},
		{name: "unknown provider", mutate: func(c *Config) { c.Summarize.Provider = "gemini" }, wantErr: "summarize.provider"},
		{name: "unknown backend", mutate: func(c *Config) { c.Anthropic.Backend = "vertex" }, wantErr: "anthropic.backend"},
		{name: "unknown extract mode", mutate: func(c *Config) { c.Extract.Mode = "regex" }, wantErr: "extract.mode"},
		{name: "unknown oversize", mutate: func(c *Config) { c.Summarize.Oversize = "truncate" }, wantErr: "summarize.oversize"},
		{name: "zero output tokens", mutate: func(c *Config) { c.Summarize.MaxOutputTokens = 0 }, wantErr: "max_output_tokens"},
		{name: "zero input tokens", mutate: func(c *Config) { c.Summarize.MaxInputTokens = 0 }, wantErr: "max_input_tokens"},
		{name: "zero fetch timeout", mutate: func(c *Config) { c.Fetch.TimeoutSecs = 0 }, wantErr: "fetch.timeout_secs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-secret"
	cfg.OpenAI.Key = ""

	red := cfg.Redacted()
	assert.Equal(t, "********", red.Anthropic.Key)
	assert.Empty(t, red.OpenAI.Key)
	// Original untouched
	assert.Equal(t, "sk-ant-secret", cfg.Anthropic.Key)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagedigest.log")
	err := InitLogger(LogConfig{Level: "info", Format: "json", File: path})
	require.NoError(t, err)

	zap.L().Info("hello")
	_ = zap.L().Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
