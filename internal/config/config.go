package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Summarize SummarizeConfig `yaml:"summarize" mapstructure:"summarize"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// FetchConfig configures the page fetcher.
type FetchConfig struct {
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxAttempts  int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	Concurrency  int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// ExtractConfig configures HTML to Markdown extraction.
type ExtractConfig struct {
	Mode             string   `yaml:"mode" mapstructure:"mode"`
	ExcludeSelectors []string `yaml:"exclude_selectors" mapstructure:"exclude_selectors"`
}

// SummarizeConfig configures the inference step.
type SummarizeConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxOutputTokens   int64   `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	MaxInputTokens    int     `yaml:"max_input_tokens" mapstructure:"max_input_tokens"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	Review            bool    `yaml:"review" mapstructure:"review"`
	Oversize          string  `yaml:"oversize" mapstructure:"oversize"`
	Concurrency       int     `yaml:"concurrency" mapstructure:"concurrency"`
	RequestsPerMinute int     `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Backend string `yaml:"backend" mapstructure:"backend"`
	Region  string `yaml:"region" mapstructure:"region"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CacheConfig configures the optional summary cache. An empty Path disables it.
type CacheConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// PricingConfig holds per-model token pricing keyed by model ID.
type PricingConfig struct {
	Models map[string]ModelPricing `yaml:"models" mapstructure:"models"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// Provider and mode names accepted in configuration.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	BackendAPI     = "api"
	BackendBedrock = "bedrock"

	ExtractModeDOM         = "dom"
	ExtractModeReadability = "readability"

	OversizeHierarchical = "hierarchical"
	OversizeFail         = "fail"
)

// Default models per provider/backend, used when summarize.model is empty.
const (
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultBedrockModel   = "anthropic.claude-3-5-sonnet-20240620-v1:0"
	DefaultOpenAIModel    = "gpt-5-mini-2025-08-07"
)

// Load reads configuration from file and environment. When configFile is
// empty, an optional config.yaml in the working directory is used.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("PAGEDIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; pagedigest/1.0)")
	v.SetDefault("fetch.max_body_bytes", 10*1024*1024)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.concurrency", 4)
	v.SetDefault("extract.mode", ExtractModeDOM)
	v.SetDefault("extract.exclude_selectors", []string{})
	v.SetDefault("summarize.provider", ProviderAnthropic)
	v.SetDefault("summarize.model", "")
	v.SetDefault("summarize.max_output_tokens", 4096)
	v.SetDefault("summarize.max_input_tokens", 150000)
	v.SetDefault("summarize.temperature", 0.0)
	v.SetDefault("summarize.review", false)
	v.SetDefault("summarize.oversize", OversizeHierarchical)
	v.SetDefault("summarize.concurrency", 2)
	v.SetDefault("summarize.requests_per_minute", 50)
	v.SetDefault("summarize.timeout_secs", 120)
	v.SetDefault("summarize.max_attempts", 5)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.backend", BackendAPI)
	v.SetDefault("anthropic.region", "us-west-2")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.ttl_hours", 168)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	// Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	var problems []string

	switch c.Summarize.Provider {
	case ProviderAnthropic:
		if c.Anthropic.Backend != BackendAPI && c.Anthropic.Backend != BackendBedrock {
			problems = append(problems, "anthropic.backend must be api or bedrock")
		}
	case ProviderOpenAI:
	default:
		problems = append(problems, "summarize.provider must be anthropic or openai")
	}

	switch c.Extract.Mode {
	case ExtractModeDOM, ExtractModeReadability:
	default:
		problems = append(problems, "extract.mode must be dom or readability")
	}

	switch c.Summarize.Oversize {
	case OversizeHierarchical, OversizeFail:
	default:
		problems = append(problems, "summarize.oversize must be hierarchical or fail")
	}

	if c.Summarize.MaxOutputTokens <= 0 {
		problems = append(problems, "summarize.max_output_tokens must be positive")
	}
	if c.Summarize.MaxInputTokens <= 0 {
		problems = append(problems, "summarize.max_input_tokens must be positive")
	}
	if c.Fetch.TimeoutSecs <= 0 {
		problems = append(problems, "fetch.timeout_secs must be positive")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ResolvedModel returns summarize.model, or the provider's default when unset.
func (c *Config) ResolvedModel() string {
	if c.Summarize.Model != "" {
		return c.Summarize.Model
	}
	switch {
	case c.Summarize.Provider == ProviderOpenAI:
		return DefaultOpenAIModel
	case c.Anthropic.Backend == BackendBedrock:
		return DefaultBedrockModel
	default:
		return DefaultAnthropicModel
	}
}

// Redacted returns a copy of the config with credentials masked.
func (c *Config) Redacted() Config {
	out := *c
	out.Anthropic.Key = mask(out.Anthropic.Key)
	out.OpenAI.Key = mask(out.OpenAI.Key)
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	if cfg.File != "" {
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, cfg.File)
		zapCfg.ErrorOutputPaths = append(zapCfg.ErrorOutputPaths, cfg.File)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
