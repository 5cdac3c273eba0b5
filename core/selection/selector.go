// Package selection turns raw user choices into an immutable run configuration
// and refuses runs that cannot succeed before any client or role is built.
package selection

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gobwas/glob"

	"github.com/adalundhe/crews/core/credentials"
	cerrors "github.com/adalundhe/crews/core/errors"
)

// ModelLister discovers models served by the local daemon.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// CredentialSource snapshots keys for a run.
type CredentialSource interface {
	Snapshot(overrides map[string]string, names ...string) (credentials.Set, error)
}

// Input is the raw, unvalidated user choice.
type Input struct {
	Provider     string
	Model        string
	Crew         string
	Prompt       string
	Code         []byte
	CodeFileName string
	Credentials  map[string]string
}

// Selection is the resolved configuration for one run. It is not modified
// after Resolve returns.
type Selection struct {
	Provider     Provider
	Model        string
	Crew         CrewKind
	Prompt       string
	Code         string
	CodeFileName string
	Credentials  credentials.Set

	// WebSearch is false for local providers; roles then run without the answer tool.
	WebSearch bool
}

// Config configures a Selector.
type Config struct {
	Credentials    CredentialSource
	Models         ModelLister
	UploadPatterns []string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// DefaultUploadPatterns are the accepted source file names.
var DefaultUploadPatterns = []string{"*.c", "*.h"}

// DefaultMaxUploadBytes bounds an uploaded source file.
const DefaultMaxUploadBytes = 1 << 20

// Selector validates and gates runs.
type Selector struct {
	creds    CredentialSource
	models   ModelLister
	patterns []glob.Glob
	maxBytes int64
	logger   *slog.Logger
}

// NewSelector compiles the upload patterns and applies defaults.
func NewSelector(cfg Config) (*Selector, error) {
	if cfg.Credentials == nil {
		cfg.Credentials = credentials.NewResolver()
	}
	if len(cfg.UploadPatterns) == 0 {
		cfg.UploadPatterns = DefaultUploadPatterns
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	patterns := make([]glob.Glob, 0, len(cfg.UploadPatterns))
	for _, p := range cfg.UploadPatterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, cerrors.Wrap(cerrors.KindInvalidInput, "compile upload pattern "+p, err)
		}
		patterns = append(patterns, g)
	}

	return &Selector{
		creds:    cfg.Credentials,
		models:   cfg.Models,
		patterns: patterns,
		maxBytes: cfg.MaxUploadBytes,
		logger:   cfg.Logger,
	}, nil
}

// Resolve validates in and returns the run configuration. Failures carry
// kind InvalidInput, UnsupportedProvider, MissingCredential or
// NoLocalModelsAvailable.
func (s *Selector) Resolve(ctx context.Context, in Input) (*Selection, error) {
	crew, err := ParseCrew(in.Crew)
	if err != nil {
		return nil, err
	}

	provider, err := ParseProvider(in.Provider)
	if err != nil {
		return nil, err
	}

	sel := &Selection{
		Provider:  provider,
		Crew:      crew,
		Prompt:    strings.TrimSpace(in.Prompt),
		WebSearch: !provider.Local(),
	}
	if sel.Prompt == "" {
		sel.Prompt = crew.DefaultPrompt()
	}

	if crew.NeedsCode() {
		if err := s.checkUpload(in.CodeFileName, in.Code); err != nil {
			return nil, err
		}
		sel.Code = string(in.Code)
		sel.CodeFileName = filepath.Base(in.CodeFileName)
	}

	required := s.requiredCredentials(provider, crew)
	set, err := s.creds.Snapshot(in.Credentials, required...)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.KindMissingCredential, "resolve credentials", err)
	}
	if missing := set.Missing(required...); len(missing) > 0 {
		return nil, cerrors.Newf(cerrors.KindMissingCredential, "missing credentials for %s", provider).
			With("missing", strings.Join(missing, ","))
	}
	sel.Credentials = set

	model := strings.TrimSpace(in.Model)
	if provider == ProviderOllama {
		model, err = s.localModel(ctx, model)
		if err != nil {
			return nil, err
		}
	}
	sel.Model = ResolveModel(provider, model)

	s.logger.Debug("selection resolved",
		"crew", sel.Crew,
		"provider", sel.Provider,
		"model", sel.Model,
		"web_search", sel.WebSearch)

	return sel, nil
}

// MatchesUpload reports whether name is an accepted source file name.
func (s *Selector) MatchesUpload(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	for _, g := range s.patterns {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (s *Selector) requiredCredentials(p Provider, c CrewKind) []string {
	var names []string
	if name := p.CredentialName(); name != "" {
		names = append(names, name)
	}
	if c.UsesAnswerTool() && !p.Local() {
		names = append(names, credentials.Exa)
	}
	return names
}

func (s *Selector) checkUpload(name string, code []byte) error {
	if name == "" || len(code) == 0 {
		return cerrors.New(cerrors.KindInvalidInput, "a C source file is required for code extraction")
	}
	if !s.MatchesUpload(name) {
		return cerrors.Newf(cerrors.KindInvalidInput, "unsupported file %q", filepath.Base(name))
	}
	if int64(len(code)) > s.maxBytes {
		return cerrors.Newf(cerrors.KindInvalidInput, "file %q exceeds %d bytes", filepath.Base(name), s.maxBytes)
	}
	if !utf8.Valid(code) {
		return cerrors.Newf(cerrors.KindInvalidInput, "file %q is not valid UTF-8 text", filepath.Base(name))
	}
	return nil
}

func (s *Selector) localModel(ctx context.Context, model string) (string, error) {
	var models []string
	if s.models != nil {
		found, err := s.models.ListModels(ctx)
		if err != nil {
			s.logger.Warn("ollama model discovery failed", "error", err)
		} else {
			models = found
		}
	}

	if len(models) == 0 {
		return "", cerrors.New(cerrors.KindNoLocalModels, "no local models available")
	}
	if model == "" {
		model = models[0]
	}
	return model, nil
}
