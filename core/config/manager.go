package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/adalundhe/crews/core/selection"
)

// DefaultReloadDebounce coalesces bursts of file events into one reload.
const DefaultReloadDebounce = 100 * time.Millisecond

// Paths locates the configuration layers. Empty entries are skipped.
type Paths struct {
	Project string
	User    string
	Local   string
	DotEnv  string
}

// DefaultPaths returns .crews/config.yaml, ~/.config/crews/config.yaml,
// .crews/local/config.yaml and .env.
func DefaultPaths() Paths {
	p := Paths{
		Project: filepath.Join(".crews", "config.yaml"),
		Local:   filepath.Join(".crews", "local", "config.yaml"),
		DotEnv:  ".env",
	}
	if dir, err := os.UserConfigDir(); err == nil {
		p.User = filepath.Join(dir, "crews", "config.yaml")
	}
	return p
}

type Options struct {
	Paths Paths

	// Getenv reads the process environment. Nil uses os.Getenv.
	Getenv func(string) string

	Logger *slog.Logger
}

type Manager struct {
	config atomic.Pointer[Config]
	dotenv atomic.Pointer[map[string]string]

	paths  Paths
	getenv func(string) string
	logger *slog.Logger

	watchers  []func(*Config)
	watcherMu sync.RWMutex
	stopWatch chan struct{}
	watchOnce sync.Once
}

func NewManager(opts Options) *Manager {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	m := &Manager{
		paths:     opts.Paths,
		getenv:    opts.Getenv,
		logger:    opts.Logger,
		stopWatch: make(chan struct{}),
	}
	m.config.Store(DefaultConfig())
	empty := map[string]string{}
	m.dotenv.Store(&empty)
	return m
}

// Get returns the current configuration. Callers must not modify it.
func (m *Manager) Get() *Config {
	return m.config.Load()
}

// Paths returns the layer locations the manager reads.
func (m *Manager) Paths() Paths {
	return m.paths
}

// Load rebuilds the configuration from every layer. On failure the previous
// configuration stays in place.
func (m *Manager) Load() error {
	dotenv, err := m.loadDotEnv()
	if err != nil {
		return fmt.Errorf("dotenv: %w", err)
	}
	m.dotenv.Store(&dotenv)

	cfg := DefaultConfig()

	if err := loadYAMLFile(m.paths.Project, cfg); err != nil {
		return fmt.Errorf("project config: %w", err)
	}
	if err := loadYAMLFile(m.paths.User, cfg); err != nil {
		return fmt.Errorf("user config: %w", err)
	}
	if err := loadYAMLFile(m.paths.Local, cfg); err != nil {
		return fmt.Errorf("local config: %w", err)
	}

	if err := m.applyEnvironment(cfg); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.config.Store(cfg)
	m.notifyWatchers(cfg)
	return nil
}

// Getenv reads key from the process environment, falling back to the values
// read from the .env file. The process environment is never modified.
func (m *Manager) Getenv(key string) string {
	if v := m.getenv(key); v != "" {
		return v
	}
	return (*m.dotenv.Load())[key]
}

func (m *Manager) loadDotEnv() (map[string]string, error) {
	if m.paths.DotEnv == "" {
		return map[string]string{}, nil
	}
	values, err := godotenv.Read(m.paths.DotEnv)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	return values, err
}

func loadYAMLFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

type envBinding struct {
	key   string
	apply func(cfg *Config, v string) error
}

var envBindings = []envBinding{
	{"CREWS_SERVER_ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"CREWS_DEFAULT_PROVIDER", func(c *Config, v string) error { c.Providers.DefaultProvider = v; return nil }},
	{"CREWS_OLLAMA_BASE_URL", func(c *Config, v string) error { c.Providers.OllamaBaseURL = v; return nil }},
	{"CREWS_ANTHROPIC_TEMPERATURE", func(c *Config, v string) error {
		return parseFloat(v, &c.Providers.AnthropicTemperature)
	}},
	{"CREWS_ANSWER_URL", func(c *Config, v string) error { c.Tools.AnswerURL = v; return nil }},
	{"CREWS_OUTPUT_DIR", func(c *Config, v string) error { c.Crew.OutputDir = v; return nil }},
	{"CREWS_MAX_ITERATIONS", func(c *Config, v string) error { return parseInt(v, &c.Crew.MaxIterations) }},
	{"CREWS_MAX_TOKENS", func(c *Config, v string) error { return parseInt(v, &c.Crew.MaxTokens) }},
	{"CREWS_KNOWLEDGE_SOURCES", func(c *Config, v string) error {
		c.Knowledge.CodeExtractorSources = filepath.SplitList(v)
		return nil
	}},
	{"CREWS_UPLOAD_MAX_BYTES", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.Upload.MaxBytes = n
		return nil
	}},
	{"CREWS_SESSION_LOG_LINES", func(c *Config, v string) error { return parseInt(v, &c.Session.LogLines) }},
}

// applyEnvironment overlays CREWS_* variables, read through Getenv so .env
// values apply too.
func (m *Manager) applyEnvironment(cfg *Config) error {
	for _, b := range envBindings {
		v := strings.TrimSpace(m.Getenv(b.key))
		if v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			return fmt.Errorf("%s: %w", b.key, err)
		}
	}
	return nil
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if _, err := selection.ParseProvider(c.Providers.DefaultProvider); err != nil {
		return fmt.Errorf("providers.default_provider: %w", err)
	}
	if t := c.Providers.AnthropicTemperature; t < 0 || t > 1 {
		return fmt.Errorf("providers.anthropic_temperature must be within [0, 1], got %v", t)
	}
	if c.Crew.MaxIterations <= 0 {
		return fmt.Errorf("crew.max_iterations must be positive")
	}
	if c.Crew.OutputDir == "" {
		return fmt.Errorf("crew.output_dir is required")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	return nil
}

func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

func (m *Manager) Reload() error {
	return m.Load()
}

// Watch reloads the configuration whenever one of its files changes, until
// ctx is done or Close is called. Parent directories that do not exist are
// not watched.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	targets := m.watchTargets()
	dirs := make(map[string]bool)
	for path := range targets {
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	go m.watchLoop(ctx, w, targets)
	return nil
}

func (m *Manager) watchTargets() map[string]bool {
	targets := make(map[string]bool)
	for _, p := range []string{m.paths.Project, m.paths.User, m.paths.Local, m.paths.DotEnv} {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			targets[abs] = true
		}
	}
	return targets
}

func (m *Manager) watchLoop(ctx context.Context, w *fsnotify.Watcher, targets map[string]bool) {
	defer w.Close()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopWatch:
			return
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config watcher error", "error", err)
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !targets[abs] {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(DefaultReloadDebounce, m.reloadFromWatch)
		}
	}
}

func (m *Manager) reloadFromWatch() {
	if err := m.Reload(); err != nil {
		m.logger.Warn("config reload failed, keeping previous configuration", "error", err)
		return
	}
	m.logger.Info("configuration reloaded")
}

func (m *Manager) Close() error {
	m.watchOnce.Do(func() {
		close(m.stopWatch)
	})
	return nil
}

func parseInt(s string, dst *int) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseFloat(s string, dst *float64) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}
