package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adalundhe/crews/core/config"
	cerrors "github.com/adalundhe/crews/core/errors"
	"github.com/adalundhe/crews/core/selection"
)

type runOptions struct {
	Crew      string
	Provider  string
	Model     string
	Prompt    string
	CodeFile  string
	Out       string
	OutputDir string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a crew in the terminal",
	Long: `Run one crew synchronously. Progress is logged to stderr and the final
markdown is printed to stdout, or written to --out.

Examples:
  crews run --crew research_assistant --provider openai --model gpt-4o
  crews run --crew design_thinking --provider ollama --prompt "Improve onboarding"
  crews run --crew code_extractor --provider anthropic --code-file bms.c --out reqs.md`,
	Args: cobra.NoArgs,
	RunE: runCrew,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVar(&runOpts.Crew, "crew", string(selection.CrewResearchAssistant), "Crew to run (research_assistant, design_thinking, code_extractor)")
	f.StringVar(&runOpts.Provider, "provider", "", "Provider (openai, anthropic, gemini, ollama); default from config")
	f.StringVar(&runOpts.Model, "model", "", "Model name; default is the provider's first model")
	f.StringVar(&runOpts.Prompt, "prompt", "", "Prompt; default is the crew's example prompt")
	f.StringVar(&runOpts.CodeFile, "code-file", "", "C source file for the code extractor")
	f.StringVarP(&runOpts.Out, "out", "o", "", "Write the result to this file instead of stdout")
	f.StringVar(&runOpts.OutputDir, "output-dir", "", "Directory for task output files")
}

// userError presents a classified failure with its user-facing message.
type userError struct {
	err error
}

func (e *userError) Error() string { return cerrors.UserMessage(e.err) }
func (e *userError) Unwrap() error { return e.err }

func runCrew(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := *mgr.Get()
	config.Overlay(&cfg, &config.Config{Crew: config.CrewConfig{OutputDir: runOpts.OutputDir}})

	logger := slog.Default()
	a, err := newApp(&cfg, mgr.Getenv, nil, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return executeRun(ctx, a, runOpts, cmd.OutOrStdout(), logger)
}

func executeRun(ctx context.Context, a *app, opts runOptions, stdout io.Writer, logger *slog.Logger) error {
	if opts.Provider == "" {
		opts.Provider = a.config.Providers.DefaultProvider
	}

	in := selection.Input{
		Provider: opts.Provider,
		Model:    opts.Model,
		Crew:     opts.Crew,
		Prompt:   opts.Prompt,
	}
	if opts.CodeFile != "" {
		code, err := os.ReadFile(opts.CodeFile)
		if err != nil {
			return fmt.Errorf("read code file: %w", err)
		}
		in.Code = code
		in.CodeFileName = filepath.Base(opts.CodeFile)
	}

	sel, err := a.orchestrator.Resolve(ctx, in)
	if err != nil {
		return &userError{err: err}
	}
	if !sel.WebSearch && sel.Crew.UsesAnswerTool() {
		logger.Warn("web search is unavailable with local models; the crew runs without it")
	}

	result, err := a.orchestrator.Execute(ctx, sel, logger)
	if err != nil {
		return &userError{err: err}
	}

	if opts.Out == "" {
		_, err = fmt.Fprintln(stdout, result.Artifact)
		return err
	}
	if err := os.WriteFile(opts.Out, []byte(result.Artifact+"\n"), 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	logger.Info("result written", "file", opts.Out)
	return nil
}
