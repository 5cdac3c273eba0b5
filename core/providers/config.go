package providers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// BaseConfig contains configuration common to all providers
type BaseConfig struct {
	// APIKey is the authentication key for the provider
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the model identifier sent to the backend
	Model string `json:"model" yaml:"model"`

	// MaxTokens is the default maximum tokens to generate
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Temperature is the sampling temperature; nil leaves the backend default
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// Timeout bounds each API request when set; zero leaves the client default
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// BaseURL overrides the default API endpoint
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	HTTPClient *http.Client `json:"-" yaml:"-"`
	Logger     *slog.Logger `json:"-" yaml:"-"`
}

// DefaultBaseConfig returns sensible defaults
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		MaxTokens: 4096,
	}
}

func (c *BaseConfig) applyDefaults() {
	d := DefaultBaseConfig()
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks the base configuration
func (c *BaseConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	if t := c.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

func (c *BaseConfig) validateKeyed() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	return c.Validate()
}

// AnthropicConfig contains Anthropic-specific configuration
type AnthropicConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`
}

// DefaultAnthropicTemperature is applied to every Anthropic run.
const DefaultAnthropicTemperature = 0.7

func (c *AnthropicConfig) Validate() error {
	if err := c.validateKeyed(); err != nil {
		return fmt.Errorf("anthropic config: %w", err)
	}
	return nil
}

// OpenAIConfig contains OpenAI-specific configuration
type OpenAIConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`
}

func (c *OpenAIConfig) Validate() error {
	if err := c.validateKeyed(); err != nil {
		return fmt.Errorf("openai config: %w", err)
	}
	return nil
}

// GeminiConfig contains Gemini API configuration
type GeminiConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`
}

func (c *GeminiConfig) Validate() error {
	if err := c.validateKeyed(); err != nil {
		return fmt.Errorf("gemini config: %w", err)
	}
	return nil
}

// DefaultOllamaURL is where the local daemon listens by default.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaConfig configures the local daemon client. No key is needed.
type OllamaConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`

	// ModelCacheTTL bounds how long discovered models are reused
	ModelCacheTTL time.Duration `json:"model_cache_ttl" yaml:"model_cache_ttl"`
}

func (c *OllamaConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return fmt.Errorf("ollama config: %w", err)
	}
	return nil
}
