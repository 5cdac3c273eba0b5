// Package orchestrator ties a resolved selection to a running crew: it builds
// the provider client, the answer tool and the knowledge set, assembles the
// crew and hands it to the runner.
package orchestrator

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/adalundhe/crews/agents"
	"github.com/adalundhe/crews/agents/codeextractor"
	"github.com/adalundhe/crews/core/credentials"
	"github.com/adalundhe/crews/core/crew"
	cerrors "github.com/adalundhe/crews/core/errors"
	"github.com/adalundhe/crews/core/knowledge"
	"github.com/adalundhe/crews/core/metrics"
	"github.com/adalundhe/crews/core/providers"
	"github.com/adalundhe/crews/core/selection"
	"github.com/adalundhe/crews/core/tools"
)

type Config struct {
	Selector  *selection.Selector
	Providers providers.Options

	// AnswerURL overrides the answer service endpoint.
	AnswerURL        string
	AnswerHTTPClient *http.Client

	// KnowledgeSources are the reference documents for the requirement roles.
	KnowledgeSources []string
	Knowledge        knowledge.Config

	OutputRoot    string
	MaxIterations int
	MaxTokens     int

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Observer receives crew events in addition to metrics.
	Observer crew.Observer

	Logger *slog.Logger
}

type Orchestrator struct {
	config Config

	knowledgeOnce sync.Once
	knowledgeSet  *knowledge.Set
	knowledgeErr  error
}

func New(config Config) (*Orchestrator, error) {
	if config.Selector == nil {
		return nil, cerrors.New(cerrors.KindInvalidInput, "orchestrator requires a selector")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.OutputRoot == "" {
		config.OutputRoot = crew.DefaultOutputRoot
	}
	return &Orchestrator{config: config}, nil
}

// Resolve validates raw input into a selection.
func (o *Orchestrator) Resolve(ctx context.Context, in selection.Input) (*selection.Selection, error) {
	return o.config.Selector.Resolve(ctx, in)
}

// Execute runs the crew described by sel and returns its result. logger
// receives the run's progress; nil uses the orchestrator's logger.
func (o *Orchestrator) Execute(ctx context.Context, sel *selection.Selection, logger *slog.Logger) (result *crew.Result, err error) {
	if logger == nil {
		logger = o.config.Logger
	}
	logger = logger.With("crew", sel.Crew.String(), "provider", sel.Provider.String(), "model", sel.Model)

	if m := o.config.Metrics; m != nil {
		m.RunStarted()
		start := time.Now()
		defer func() {
			m.RunFinished(sel.Crew.String(), sel.Provider.String(), time.Since(start), err)
		}()
	}

	opts := o.config.Providers
	opts.Logger = logger
	provider, err := providers.New(ctx, sel, opts)
	if err != nil {
		return nil, err
	}

	deps := crew.Deps{Provider: provider}
	if sel.WebSearch && sel.Crew.UsesAnswerTool() {
		deps.Answer = o.answerTool(sel, logger).Skill()
	} else if sel.Crew.UsesAnswerTool() {
		logger.Warn("web search disabled for this provider")
	}

	if sel.Crew == selection.CrewCodeExtractor {
		if deps.Knowledge, err = o.referenceSet(); err != nil {
			return nil, err
		}
	}

	c, err := agents.Build(sel.Crew, deps, crew.Input{
		Prompt:       sel.Prompt,
		Code:         sel.Code,
		CodeFileName: sel.CodeFileName,
	})
	if err != nil {
		return nil, err
	}

	runner := crew.NewRunner(crew.RunnerConfig{
		OutputRoot:    o.config.OutputRoot,
		MaxIterations: o.config.MaxIterations,
		MaxTokens:     o.config.MaxTokens,
		Logger:        logger,
		Observer:      o.observer(),
	})
	return runner.Run(ctx, c)
}

func (o *Orchestrator) answerTool(sel *selection.Selection, logger *slog.Logger) *tools.AnswerTool {
	opts := tools.AnswerOptions{
		Endpoint:   o.config.AnswerURL,
		HTTPClient: o.config.AnswerHTTPClient,
		Logger:     logger,
	}
	if o.config.Metrics != nil {
		opts.Observer = o.config.Metrics.ObserveTool
	}
	return tools.NewAnswerTool(sel.Credentials.Get(credentials.Exa), opts)
}

func (o *Orchestrator) observer() crew.Observer {
	var obs crew.Observers
	if o.config.Metrics != nil {
		obs = append(obs, o.config.Metrics)
	}
	if o.config.Observer != nil {
		obs = append(obs, o.config.Observer)
	}
	if len(obs) == 0 {
		return crew.NopObserver{}
	}
	return obs
}

// referenceSet builds the requirement reference set once and shares it across
// runs. Sources that fail to load are logged and skipped.
func (o *Orchestrator) referenceSet() (*knowledge.Set, error) {
	o.knowledgeOnce.Do(func() {
		docs, errs := knowledge.LoadSources(o.config.KnowledgeSources)
		for _, err := range errs {
			o.config.Logger.Warn("reference document unavailable", "error", err)
		}
		o.knowledgeSet, o.knowledgeErr = knowledge.NewSet(codeextractor.KnowledgeName, docs, o.config.Knowledge)
		if o.knowledgeErr == nil {
			o.config.Logger.Info("knowledge set ready", "documents", len(docs), "chunks", o.knowledgeSet.Len())
		}
	})
	if o.knowledgeErr != nil {
		return nil, cerrors.Wrap(cerrors.KindPipelineExecution, "build knowledge set", o.knowledgeErr)
	}
	return o.knowledgeSet, nil
}

// Close releases the knowledge index.
func (o *Orchestrator) Close() error {
	if o.knowledgeSet != nil {
		return o.knowledgeSet.Close()
	}
	return nil
}
