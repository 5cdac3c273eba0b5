// Package cmd provides the crews command line: the web server, one-shot runs
// in the terminal, model discovery and credential management.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adalundhe/crews/core/config"
)

var (
	logLevel   string
	logFormat  string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "crews",
	Short: "Crews - sequential multi-agent crews behind a browser front end",
	Long: `Crews runs fixed multi-agent crews (research assistant, design thinking and
C code requirement extraction) against OpenAI, Anthropic, Gemini or a local
Ollama daemon, from the browser or the terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Project config file (default .crews/config.yaml)")
}

func Execute() error {
	return rootCmd.Execute()
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (valid: text, json)", format)
	}
}

// loadConfig reads every configuration layer. --config replaces the project
// layer.
func loadConfig() (*config.Manager, error) {
	paths := config.DefaultPaths()
	if configFile != "" {
		paths.Project = configFile
	}
	m := config.NewManager(config.Options{Paths: paths, Getenv: os.Getenv, Logger: slog.Default()})
	if err := m.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return m, nil
}
