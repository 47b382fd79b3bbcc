// Package config loads rentwatch settings from flags, environment, a
// .rentwatch.yaml file and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jmylchreest/rentwatch/internal/orchestrator"
	"github.com/jmylchreest/rentwatch/internal/store"
)

// EnvPrefix is the prefix of every rentwatch environment variable.
const EnvPrefix = "RENTWATCH"

// Config is the resolved runtime configuration.
type Config struct {
	IndexURL      string        `mapstructure:"index_url" validate:"required,url"`
	Model         string        `mapstructure:"model" validate:"required"`
	FallbackModel string        `mapstructure:"fallback_model" validate:"required"`
	AllowedModels []string      `mapstructure:"allowed_models" validate:"min=1,dive,required"`
	// AILimit of -1 lets the AI pass visit every discovered listing.
	AILimit       int           `mapstructure:"ai_limit" validate:"gte=-1"`
	Temperature   float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	OracleTimeout time.Duration `mapstructure:"oracle_timeout" validate:"min=1s"`

	Fetch     FetchConfig     `mapstructure:"fetch"`
	Store     StoreConfig     `mapstructure:"store"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProviderConfig  `mapstructure:"providers"`
}

// FetchConfig controls how listing pages are downloaded.
type FetchConfig struct {
	Mode              string        `mapstructure:"mode" validate:"oneof=static dynamic auto"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"min=1s"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	WaitDuration      time.Duration `mapstructure:"wait" validate:"gte=0"`
	ChromePath        string        `mapstructure:"chrome_path"`
}

// StoreConfig selects the listing store.
type StoreConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=memory postgres remote"`
	DSN      string `mapstructure:"dsn" validate:"required_if=Driver postgres"`
	APIURL   string `mapstructure:"api_url" validate:"required_if=Driver remote,omitempty,url"`
	MaxConns int    `mapstructure:"max_conns" validate:"gte=0"`
}

// TelemetryConfig sets where the per-strategy CSV logs are written.
type TelemetryConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// ServerConfig configures `rentwatch serve`.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

// ProviderConfig carries oracle credentials and endpoint overrides.
type ProviderConfig struct {
	OpenAIKey        string `mapstructure:"openai_api_key"`
	AnthropicKey     string `mapstructure:"anthropic_api_key"`
	OpenAIBaseURL    string `mapstructure:"openai_base_url" validate:"omitempty,url"`
	AnthropicBaseURL string `mapstructure:"anthropic_base_url" validate:"omitempty,url"`
}

// APIKeys returns the configured keys by provider name.
func (p ProviderConfig) APIKeys() map[string]string {
	keys := map[string]string{}
	if p.OpenAIKey != "" {
		keys["openai"] = p.OpenAIKey
	}
	if p.AnthropicKey != "" {
		keys["anthropic"] = p.AnthropicKey
	}
	return keys
}

// BaseURLs returns the endpoint overrides by provider name.
func (p ProviderConfig) BaseURLs() map[string]string {
	urls := map[string]string{}
	if p.OpenAIBaseURL != "" {
		urls["openai"] = p.OpenAIBaseURL
	}
	if p.AnthropicBaseURL != "" {
		urls["anthropic"] = p.AnthropicBaseURL
	}
	return urls
}

// SetDefaults registers every key with its default so that environment
// variables are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("index_url", orchestrator.DefaultIndexURL)
	v.SetDefault("model", orchestrator.DefaultModel)
	v.SetDefault("fallback_model", orchestrator.DefaultModel)
	v.SetDefault("allowed_models", orchestrator.DefaultAllowedModels)
	v.SetDefault("ai_limit", orchestrator.DefaultAILimit)
	v.SetDefault("temperature", 0.2)
	v.SetDefault("oracle_timeout", 60*time.Second)

	v.SetDefault("fetch.mode", "static")
	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.requests_per_second", 0)
	v.SetDefault("fetch.wait", time.Duration(0))
	v.SetDefault("fetch.chrome_path", "")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.api_url", "")
	v.SetDefault("store.max_conns", 0)

	v.SetDefault("telemetry.dir", "./telemetry")

	v.SetDefault("server.listen", ":8001")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("providers.openai_api_key", "")
	v.SetDefault("providers.anthropic_api_key", "")
	v.SetDefault("providers.openai_base_url", "")
	v.SetDefault("providers.anthropic_base_url", "")
}

// BindEnv enables RENTWATCH_* variables (RENTWATCH_STORE_DRIVER for
// store.driver) and the conventional provider key variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("providers.openai_api_key", EnvPrefix+"_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("providers.anthropic_api_key", EnvPrefix+"_PROVIDERS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
}

// LoadDotEnv reads path into the process environment. A missing file is
// not an error; variables already set are left alone.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that the default model is allowed.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if !slices.Contains(c.AllowedModels, c.Model) {
		return fmt.Errorf("invalid config: model %q is not in allowed_models", c.Model)
	}
	return nil
}

// OrchestratorConfig returns the run parameters.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		DefaultIndexURL: c.IndexURL,
		DefaultModel:    c.Model,
		AllowedModels:   c.AllowedModels,
		AILimit:         c.AILimit,
	}
}

// StoreOptions returns the options for store.Open.
func (c *Config) StoreOptions() store.Config {
	return store.Config{
		Driver:   c.Store.Driver,
		DSN:      c.Store.DSN,
		APIURL:   c.Store.APIURL,
		MaxConns: c.Store.MaxConns,
	}
}
