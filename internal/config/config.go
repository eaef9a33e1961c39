// Package config loads miow configuration from .miow/config.json with
// environment overrides and sensible defaults.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete miow configuration.
type Config struct {
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`
	Index     IndexConfig     `json:"index" mapstructure:"index"`
	Compile   CompileConfig   `json:"compile" mapstructure:"compile"`
	Retry     RetryConfig     `json:"retry" mapstructure:"retry"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// ProvidersConfig configures the external embedding and completion providers.
type ProvidersConfig struct {
	Embedding  ProviderConfig `json:"embedding" mapstructure:"embedding"`
	Completion ProviderConfig `json:"completion" mapstructure:"completion"`
}

// ProviderConfig configures a single OpenAI-compatible provider endpoint.
type ProviderConfig struct {
	BaseURL   string `json:"baseUrl" mapstructure:"baseUrl"`
	Model     string `json:"model" mapstructure:"model"`
	APIKeyEnv string `json:"apiKeyEnv" mapstructure:"apiKeyEnv"`
	TimeoutMs int    `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// IndexConfig configures the indexing walk.
type IndexConfig struct {
	Excludes         []string `json:"excludes" mapstructure:"excludes"`
	MaxFileSizeBytes int      `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
	IndexTests       bool     `json:"indexTests" mapstructure:"indexTests"`
}

// CompileConfig configures context compilation.
type CompileConfig struct {
	TokenBudget       int  `json:"tokenBudget" mapstructure:"tokenBudget"`
	CategoryMinimum   int  `json:"categoryMinimum" mapstructure:"categoryMinimum"`
	SelectedFilesSoft bool `json:"selectedFilesSoft" mapstructure:"selectedFilesSoft"`
}

// RetryConfig bounds retries against workers and upstream providers.
type RetryConfig struct {
	MaxAttempts      int `json:"maxAttempts" mapstructure:"maxAttempts"`
	InitialBackoffMs int `json:"initialBackoffMs" mapstructure:"initialBackoffMs"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Embedding: ProviderConfig{
				BaseURL:   "https://api.openai.com/v1",
				Model:     "text-embedding-3-small",
				APIKeyEnv: "OPENAI_API_KEY",
				TimeoutMs: 30000,
			},
			Completion: ProviderConfig{
				BaseURL:   "https://api.openai.com/v1",
				Model:     "gpt-4o-mini",
				APIKeyEnv: "OPENAI_API_KEY",
				TimeoutMs: 60000,
			},
		},
		Index: IndexConfig{
			Excludes:         []string{"node_modules", "vendor", "dist", "build", "out", ".next", "target", "coverage", ".git", ".miow"},
			MaxFileSizeBytes: 1024 * 1024,
		},
		Compile: CompileConfig{
			TokenBudget:     8000,
			CategoryMinimum: 1,
		},
		Retry: RetryConfig{
			MaxAttempts:      3,
			InitialBackoffMs: 250,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads .miow/config.json under root, applying environment overrides
// with the MIOW_ prefix. A missing file yields DefaultConfig.
func Load(root string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, ".miow"))

	v.SetEnvPrefix("MIOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if os.IsNotExist(err) || errorsAs(err, &notFound) {
			cfg := DefaultConfig()
			applyEnvOverrides(v, cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	normalize(&cfg)
	return &cfg, nil
}

// Save writes the configuration to .miow/config.json under root.
func Save(root string, cfg *Config) error {
	dir := filepath.Join(root, ".miow")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), append(data, '\n'), 0644)
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("providers.embedding.baseUrl", def.Providers.Embedding.BaseURL)
	v.SetDefault("providers.embedding.model", def.Providers.Embedding.Model)
	v.SetDefault("providers.embedding.apiKeyEnv", def.Providers.Embedding.APIKeyEnv)
	v.SetDefault("providers.embedding.timeoutMs", def.Providers.Embedding.TimeoutMs)
	v.SetDefault("providers.completion.baseUrl", def.Providers.Completion.BaseURL)
	v.SetDefault("providers.completion.model", def.Providers.Completion.Model)
	v.SetDefault("providers.completion.apiKeyEnv", def.Providers.Completion.APIKeyEnv)
	v.SetDefault("providers.completion.timeoutMs", def.Providers.Completion.TimeoutMs)
	v.SetDefault("index.excludes", def.Index.Excludes)
	v.SetDefault("index.maxFileSizeBytes", def.Index.MaxFileSizeBytes)
	v.SetDefault("index.indexTests", def.Index.IndexTests)
	v.SetDefault("compile.tokenBudget", def.Compile.TokenBudget)
	v.SetDefault("compile.categoryMinimum", def.Compile.CategoryMinimum)
	v.SetDefault("compile.selectedFilesSoft", def.Compile.SelectedFilesSoft)
	v.SetDefault("retry.maxAttempts", def.Retry.MaxAttempts)
	v.SetDefault("retry.initialBackoffMs", def.Retry.InitialBackoffMs)
	v.SetDefault("logging.level", def.Logging.Level)
}

// applyEnvOverrides folds any MIOW_* environment values into cfg when no
// config file is present.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	_ = v.Unmarshal(cfg)
	normalize(cfg)
}

// normalize clamps nonsense values back to defaults.
func normalize(cfg *Config) {
	def := DefaultConfig()
	if cfg.Compile.TokenBudget <= 0 {
		cfg.Compile.TokenBudget = def.Compile.TokenBudget
	}
	if cfg.Compile.CategoryMinimum < 0 {
		cfg.Compile.CategoryMinimum = def.Compile.CategoryMinimum
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if cfg.Retry.InitialBackoffMs <= 0 {
		cfg.Retry.InitialBackoffMs = def.Retry.InitialBackoffMs
	}
	if cfg.Index.MaxFileSizeBytes <= 0 {
		cfg.Index.MaxFileSizeBytes = def.Index.MaxFileSizeBytes
	}
	if len(cfg.Index.Excludes) == 0 {
		cfg.Index.Excludes = def.Index.Excludes
	}
}

// errorsAs is a tiny wrapper so the viper error check reads cleanly above.
func errorsAs(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}
