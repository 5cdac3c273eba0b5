package selection

import (
	"strings"

	"github.com/adalundhe/crews/core/credentials"
	cerrors "github.com/adalundhe/crews/core/errors"
)

// Provider identifies an LLM backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
)

// DefaultOpenAIModel is used when an OpenAI run names no model.
const DefaultOpenAIModel = "o1"

// OllamaNotice is shown whenever the local daemon is selected.
const OllamaNotice = "⚠️ Note: Most Ollama models have limited function-calling capabilities. This may affect research quality as they might not effectively use web search tools."

var providerLabels = map[Provider]string{
	ProviderOpenAI:    "OpenAI",
	ProviderAnthropic: "Anthropic",
	ProviderGemini:    "Gemini",
	ProviderOllama:    "Ollama",
}

// Providers lists every provider in display order.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOllama}
}

func (p Provider) String() string {
	return string(p)
}

// Label returns the display name.
func (p Provider) Label() string {
	return providerLabels[p]
}

// CredentialName returns the credential the provider needs, or "" for none.
func (p Provider) CredentialName() string {
	switch p {
	case ProviderOpenAI:
		return credentials.OpenAI
	case ProviderAnthropic:
		return credentials.Anthropic
	case ProviderGemini:
		return credentials.Gemini
	default:
		return ""
	}
}

// Local reports whether the provider runs on the local machine.
func (p Provider) Local() bool {
	return p == ProviderOllama
}

// ParseProvider accepts a provider name or display label, case-insensitively.
func ParseProvider(s string) (Provider, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, p := range Providers() {
		if v == string(p) || v == strings.ToLower(p.Label()) {
			return p, nil
		}
	}
	return "", cerrors.Newf(cerrors.KindUnsupportedProvider, "unsupported provider %q", s)
}

var catalogs = map[Provider][]string{
	ProviderOpenAI: {
		"gpt-4o-mini", "gpt-4o", "o1", "o1-mini", "o1-preview", "o3-mini",
	},
	ProviderAnthropic: {
		"claude-3-haiku-20240307", "claude-3-sonnet-20240229", "claude-3-opus-20240229",
		"claude-3-5-haiku-20241022", "claude-3-5-sonnet-20241022",
	},
	ProviderGemini: {
		"gemini-1.5-pro", "gemini-1.5-flash-8b", "gemini-1.5-flash",
		"gemini-2.0-flash-lite-preview-02-05", "gemini-2.0-flash",
	},
}

// Catalog returns the static model list for a hosted provider. Local
// models are discovered at runtime, so the Ollama catalog is empty.
func Catalog(p Provider) []string {
	models := catalogs[p]
	out := make([]string, len(models))
	copy(out, models)
	return out
}

// AllowsCustomModel reports whether free-text model names are offered.
func (p Provider) AllowsCustomModel() bool {
	return p == ProviderOpenAI
}

var openAIFriendlyNames = map[string]string{
	"GPT-3.5":    "gpt-3.5-turbo",
	"GPT-4":      "gpt-4",
	"o1":         "o1",
	"o1-mini":    "o1-mini",
	"o1-preview": "o1-preview",
}

// ResolveModel maps a user-facing model choice to the identifier sent to the
// provider. Concrete identifiers pass through unchanged, so applying it twice
// gives the same result as applying it once.
func ResolveModel(p Provider, model string) string {
	model = strings.TrimSpace(model)

	switch p {
	case ProviderOpenAI:
		if model == "" {
			return DefaultOpenAIModel
		}
		if mapped, ok := openAIFriendlyNames[model]; ok {
			return mapped
		}
		return model
	case ProviderAnthropic, ProviderGemini:
		if model == "" {
			return catalogs[p][0]
		}
		return model
	default:
		return model
	}
}
