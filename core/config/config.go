// Package config loads layered YAML configuration for the crews server and
// CLI: built-in defaults, then the project file, the user file, the local
// override file and finally CREWS_* environment variables.
package config

import (
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Tools     ToolsConfig     `yaml:"tools"`
	Crew      CrewConfig      `yaml:"crew"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Upload    UploadConfig    `yaml:"upload"`
	Session   SessionConfig   `yaml:"session"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type ProvidersConfig struct {
	DefaultProvider      string        `yaml:"default_provider"`
	OllamaBaseURL        string        `yaml:"ollama_base_url"`
	AnthropicTemperature float64       `yaml:"anthropic_temperature"`
	ModelCacheTTL        time.Duration `yaml:"model_cache_ttl"`

	// BaseURLs overrides hosted endpoints, keyed by provider name.
	BaseURLs map[string]string `yaml:"base_urls"`
}

type ToolsConfig struct {
	AnswerURL string `yaml:"answer_url"`
}

type CrewConfig struct {
	OutputDir     string `yaml:"output_dir"`
	MaxIterations int    `yaml:"max_iterations"`
	MaxTokens     int    `yaml:"max_tokens"`
}

type KnowledgeConfig struct {
	CodeExtractorSources []string `yaml:"code_extractor_sources"`
	ChunkSize            int      `yaml:"chunk_size"`
	ChunkOverlap         int      `yaml:"chunk_overlap"`
	TopK                 int      `yaml:"top_k"`
}

type UploadConfig struct {
	Patterns []string `yaml:"patterns"`
	MaxBytes int64    `yaml:"max_bytes"`
}

type SessionConfig struct {
	LogLines    int           `yaml:"log_lines"`
	MaxSessions int           `yaml:"max_sessions"`
	TTL         time.Duration `yaml:"ttl"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0,
			ShutdownTimeout: 30 * time.Second,
		},
		Providers: ProvidersConfig{
			DefaultProvider:      "openai",
			OllamaBaseURL:        "http://localhost:11434",
			AnthropicTemperature: 0.7,
			ModelCacheTTL:        time.Minute,
		},
		Crew: CrewConfig{
			OutputDir:     "output",
			MaxIterations: 15,
			MaxTokens:     4096,
		},
		Knowledge: KnowledgeConfig{
			CodeExtractorSources: []string{"knowledge/37_Requirements_10_Best_Practices.pdf"},
			ChunkSize:            800,
			ChunkOverlap:         100,
			TopK:                 4,
		},
		Upload: UploadConfig{
			Patterns: []string{"*.c", "*.h"},
			MaxBytes: 1 << 20,
		},
		Session: SessionConfig{
			LogLines:    500,
			MaxSessions: 1024,
			TTL:         24 * time.Hour,
		},
	}
}
