package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adalundhe/crews/core/config"
	"github.com/adalundhe/crews/core/metrics"
	"github.com/adalundhe/crews/core/server"
	"github.com/adalundhe/crews/core/session"
)

var (
	serveAddr      string
	serveOutputDir string
	serveOllamaURL string
	serveWatch     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web front end",
	Long: `Serve the browser UI and JSON API. Runs execute in the background and stream
their progress over a websocket; the finished markdown can be viewed and
downloaded from the page.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&serveOutputDir, "output-dir", "", "Directory for task output files")
	serveCmd.Flags().StringVar(&serveOllamaURL, "ollama-url", "", "Ollama daemon address")
	serveCmd.Flags().BoolVar(&serveWatch, "watch-config", true, "Log configuration file changes")
}

// serveOverrides turns the serve flags into a configuration layer.
func serveOverrides() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Addr: serveAddr},
		Providers: config.ProvidersConfig{OllamaBaseURL: serveOllamaURL},
		Crew:      config.CrewConfig{OutputDir: serveOutputDir},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr, err := loadConfig()
	if err != nil {
		return err
	}
	defer mgr.Close()

	cfg := *mgr.Get()
	config.Overlay(&cfg, serveOverrides())

	if serveWatch {
		watchConfig(ctx, mgr)
	}

	logger := slog.Default()
	m := metrics.New()

	a, err := newApp(&cfg, mgr.Getenv, m, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := session.NewManager(session.Config{
		LogLines:    cfg.Session.LogLines,
		MaxSessions: cfg.Session.MaxSessions,
		SessionTTL:  cfg.Session.TTL,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	level, _ := parseLevel(logLevel)
	srv, err := server.New(server.Config{
		Orchestrator:   a.orchestrator,
		Sessions:       sessions,
		Models:         a.ollama,
		Credentials:    a.credentials,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Metrics:        m,
		RunLogLevel:    level,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	return srv.ListenAndServe(ctx, server.ListenConfig{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
}

// watchConfig reports configuration edits. Crews and clients are built at
// startup, so changes apply on the next start.
func watchConfig(ctx context.Context, mgr *config.Manager) {
	mgr.OnChange(func(*config.Config) {
		slog.Warn("configuration changed on disk; restart the server to apply it")
	})
	if err := mgr.Watch(ctx); err != nil {
		slog.Warn("config watch unavailable", "error", err)
	}
}
