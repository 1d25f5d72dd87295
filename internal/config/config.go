package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/curationsuite/modelrelay/internal/llm"
	"github.com/curationsuite/modelrelay/internal/logger"
)

// Defaults applied when the config file omits a field.
const (
	DefaultPrimaryModel  = "gpt-4o"
	DefaultFallbackModel = "gpt-5"

	defaultTemperature = 0.1
	defaultTopP        = 1.0
	defaultMaxTokens   = 2048
)

// SamplingConfig holds the optional sampling knobs. Nil fields take the
// defaults above.
type SamplingConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
}

// Config is the executor configuration.
type Config struct {
	PrimaryModel        string         `json:"primary_model"`
	FallbackModel       string         `json:"fallback_model"`
	ChunkingEnabled     *bool          `json:"chunking_enabled,omitempty"`
	TokenLimitOverrides map[string]int `json:"token_limit_overrides,omitempty"`
	Sampling            SamplingConfig `json:"sampling"`
	LogLevel            string         `json:"log_level,omitempty"`
	LogPath             string         `json:"log_path,omitempty"`
}

// Default returns a config with all defaults filled in.
func Default() *Config {
	return &Config{
		PrimaryModel:  DefaultPrimaryModel,
		FallbackModel: DefaultFallbackModel,
	}
}

// Load reads and validates a JSON config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.PrimaryModel == "" {
		cfg.PrimaryModel = DefaultPrimaryModel
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = DefaultFallbackModel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the sampling parameter ranges and the token-limit
// overrides. Parameterless models skip the range checks: their sampling
// settings are ignored with a notice rather than rejected.
func (c *Config) Validate() error {
	registry := llm.NewRegistry(c.TokenLimitOverrides)
	if !registry.SupportsParams(c.PrimaryModel) {
		if set := c.setSamplingFields(); len(set) > 0 {
			logger.Warn("model %s does not support sampling parameters, ignoring: %v", c.PrimaryModel, set)
		}
		return c.validateOverrides()
	}

	s := c.Sampling
	if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, value: %v", *s.Temperature)
	}
	if s.TopP != nil && (*s.TopP < 0 || *s.TopP > 1) {
		return fmt.Errorf("top_p must be between 0 and 1, value: %v", *s.TopP)
	}
	if s.FrequencyPenalty != nil && (*s.FrequencyPenalty < -2 || *s.FrequencyPenalty > 2) {
		return fmt.Errorf("frequency_penalty must be between -2 and 2, value: %v", *s.FrequencyPenalty)
	}
	if s.PresencePenalty != nil && (*s.PresencePenalty < -2 || *s.PresencePenalty > 2) {
		return fmt.Errorf("presence_penalty must be between -2 and 2, value: %v", *s.PresencePenalty)
	}
	if s.MaxTokens != nil && *s.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, value: %d", *s.MaxTokens)
	}

	return c.validateOverrides()
}

func (c *Config) validateOverrides() error {
	for model, limit := range c.TokenLimitOverrides {
		if limit <= 0 {
			return fmt.Errorf("token limit override for %s must be positive, value: %d", model, limit)
		}
	}
	return nil
}

func (c *Config) setSamplingFields() []string {
	var set []string
	if c.Sampling.Temperature != nil {
		set = append(set, "temperature")
	}
	if c.Sampling.TopP != nil {
		set = append(set, "top_p")
	}
	if c.Sampling.FrequencyPenalty != nil {
		set = append(set, "frequency_penalty")
	}
	if c.Sampling.PresencePenalty != nil {
		set = append(set, "presence_penalty")
	}
	if c.Sampling.MaxTokens != nil {
		set = append(set, "max_tokens")
	}
	return set
}

// ChunkingOn reports whether chunking is enabled (default true).
func (c *Config) ChunkingOn() bool {
	return c.ChunkingEnabled == nil || *c.ChunkingEnabled
}

// SamplingParams materializes the sampling configuration with defaults.
func (c *Config) SamplingParams() *llm.SamplingParams {
	params := &llm.SamplingParams{
		Temperature: defaultTemperature,
		TopP:        defaultTopP,
		MaxTokens:   defaultMaxTokens,
	}
	if c.Sampling.Temperature != nil {
		params.Temperature = *c.Sampling.Temperature
	}
	if c.Sampling.TopP != nil {
		params.TopP = *c.Sampling.TopP
	}
	if c.Sampling.FrequencyPenalty != nil {
		params.FrequencyPenalty = *c.Sampling.FrequencyPenalty
	}
	if c.Sampling.PresencePenalty != nil {
		params.PresencePenalty = *c.Sampling.PresencePenalty
	}
	if c.Sampling.MaxTokens != nil {
		params.MaxTokens = *c.Sampling.MaxTokens
	}
	return params
}
