package cmd

import (
	"fmt"
	"log/slog"

	"github.com/adalundhe/crews/core/config"
	"github.com/adalundhe/crews/core/credentials"
	"github.com/adalundhe/crews/core/knowledge"
	"github.com/adalundhe/crews/core/metrics"
	"github.com/adalundhe/crews/core/orchestrator"
	"github.com/adalundhe/crews/core/providers"
	"github.com/adalundhe/crews/core/selection"
)

// app is the wired runtime shared by serve and run.
type app struct {
	config       *config.Config
	credentials  *credentials.Resolver
	ollama       *providers.OllamaClient
	selector     *selection.Selector
	orchestrator *orchestrator.Orchestrator
}

// newApp builds the runtime from cfg. getenv resolves provider keys; m may be nil.
func newApp(cfg *config.Config, getenv func(string) string, m *metrics.Metrics, logger *slog.Logger) (*app, error) {
	creds := &credentials.Resolver{Path: credentials.DefaultPath(), Getenv: getenv}
	ollama := providers.NewOllamaClient(cfg.Providers.OllamaBaseURL, nil, cfg.Providers.ModelCacheTTL)

	sel, err := selection.NewSelector(selection.Config{
		Credentials:    creds,
		Models:         ollama,
		UploadPatterns: cfg.Upload.Patterns,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	baseURLs := make(map[selection.Provider]string, len(cfg.Providers.BaseURLs))
	for name, url := range cfg.Providers.BaseURLs {
		p, err := selection.ParseProvider(name)
		if err != nil {
			return nil, fmt.Errorf("providers.base_urls: %w", err)
		}
		baseURLs[p] = url
	}

	temperature := cfg.Providers.AnthropicTemperature
	orch, err := orchestrator.New(orchestrator.Config{
		Selector: sel,
		Providers: providers.Options{
			BaseURLs:             baseURLs,
			Ollama:               ollama,
			AnthropicTemperature: &temperature,
			MaxTokens:            cfg.Crew.MaxTokens,
		},
		AnswerURL:        cfg.Tools.AnswerURL,
		KnowledgeSources: cfg.Knowledge.CodeExtractorSources,
		Knowledge: knowledge.Config{
			Chunker: knowledge.ChunkerConfig{
				ChunkSize: cfg.Knowledge.ChunkSize,
				Overlap:   cfg.Knowledge.ChunkOverlap,
			},
			TopK: cfg.Knowledge.TopK,
		},
		OutputRoot:    cfg.Crew.OutputDir,
		MaxIterations: cfg.Crew.MaxIterations,
		MaxTokens:     cfg.Crew.MaxTokens,
		Metrics:       m,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		config:       cfg,
		credentials:  creds,
		ollama:       ollama,
		selector:     sel,
		orchestrator: orch,
	}, nil
}

func (a *app) Close() error {
	return a.orchestrator.Close()
}
