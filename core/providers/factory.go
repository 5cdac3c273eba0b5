package providers

import (
	"context"
	"log/slog"
	"net/http"

	cerrors "github.com/adalundhe/crews/core/errors"
	"github.com/adalundhe/crews/core/selection"
)

// Options tune client construction. Zero values use SDK defaults.
type Options struct {
	// BaseURLs overrides the endpoint for a provider
	BaseURLs map[selection.Provider]string

	// OllamaBaseURL is the local daemon address
	OllamaBaseURL string

	// Ollama reuses an existing daemon client, sharing its model cache
	Ollama *OllamaClient

	// AnthropicTemperature overrides DefaultAnthropicTemperature when set
	AnthropicTemperature *float64

	MaxTokens  int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New builds the client for sel. Every provider value has exactly one branch;
// anything else is rejected with UnsupportedProvider. Clients are constructed
// only after the required key is present, and construction makes no request.
func New(ctx context.Context, sel *selection.Selection, opts Options) (Provider, error) {
	if sel == nil {
		return nil, cerrors.New(cerrors.KindInvalidInput, "no selection")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	base := BaseConfig{
		Model:      sel.Model,
		MaxTokens:  opts.MaxTokens,
		HTTPClient: opts.HTTPClient,
		Logger:     opts.Logger,
		BaseURL:    opts.BaseURLs[sel.Provider],
	}

	var (
		p   Provider
		err error
	)

	switch sel.Provider {
	case selection.ProviderAnthropic:
		if base.APIKey, err = requireKey(sel); err != nil {
			return nil, err
		}
		temperature := DefaultAnthropicTemperature
		if opts.AnthropicTemperature != nil {
			temperature = *opts.AnthropicTemperature
		}
		base.Temperature = &temperature
		p, err = NewAnthropicProvider(AnthropicConfig{BaseConfig: base})

	case selection.ProviderOllama:
		if sel.Model == "" {
			return nil, cerrors.New(cerrors.KindNoLocalModels, "no local model selected")
		}
		if base.BaseURL == "" {
			base.BaseURL = opts.OllamaBaseURL
		}
		p, err = NewOllamaProvider(OllamaConfig{BaseConfig: base}, opts.Ollama)

	case selection.ProviderGemini:
		if base.APIKey, err = requireKey(sel); err != nil {
			return nil, err
		}
		p, err = NewGeminiProvider(ctx, GeminiConfig{BaseConfig: base})

	case selection.ProviderOpenAI:
		if base.APIKey, err = requireKey(sel); err != nil {
			return nil, err
		}
		base.Model = selection.ResolveModel(selection.ProviderOpenAI, sel.Model)
		p, err = NewOpenAIProvider(OpenAIConfig{BaseConfig: base})

	default:
		return nil, cerrors.Newf(cerrors.KindUnsupportedProvider, "unsupported provider %q", sel.Provider)
	}

	if err != nil {
		return nil, cerrors.Wrap(cerrors.KindPipelineExecution, "create "+string(sel.Provider)+" client", err)
	}

	opts.Logger.Debug("llm client created", "provider", p.Name(), "model", p.Model())
	return p, nil
}

func requireKey(sel *selection.Selection) (string, error) {
	name := sel.Provider.CredentialName()
	key := sel.Credentials.Get(name)
	if key == "" {
		return "", cerrors.Newf(cerrors.KindMissingCredential, "missing %s API key", sel.Provider).
			With("missing", name)
	}
	return key, nil
}
