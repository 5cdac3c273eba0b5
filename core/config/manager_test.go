package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testPaths(t *testing.T) Paths {
	t.Helper()
	dir := t.TempDir()
	return Paths{
		Project: filepath.Join(dir, "project", "config.yaml"),
		User:    filepath.Join(dir, "user", "config.yaml"),
		Local:   filepath.Join(dir, "project", "local", "config.yaml"),
		DotEnv:  filepath.Join(dir, ".env"),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func noEnv(string) string { return "" }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr: got %s, want :8080", cfg.Server.Addr)
	}
	if cfg.Providers.AnthropicTemperature != 0.7 {
		t.Errorf("AnthropicTemperature: got %v, want 0.7", cfg.Providers.AnthropicTemperature)
	}
	if cfg.Crew.MaxIterations != 15 {
		t.Errorf("MaxIterations: got %d, want 15", cfg.Crew.MaxIterations)
	}
	if cfg.Upload.MaxBytes != 1<<20 {
		t.Errorf("Upload.MaxBytes: got %d, want 1MiB", cfg.Upload.MaxBytes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestManagerGetBeforeLoad(t *testing.T) {
	m := NewManager(Options{Paths: testPaths(t), Getenv: noEnv})

	cfg := m.Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Providers.OllamaBaseURL != "http://localhost:11434" {
		t.Errorf("OllamaBaseURL: got %s", cfg.Providers.OllamaBaseURL)
	}
}

func TestManagerLayerPrecedence(t *testing.T) {
	paths := testPaths(t)
	writeFile(t, paths.Project, `
server:
  addr: ":9000"
crew:
  output_dir: project-out
  max_iterations: 20
`)
	writeFile(t, paths.User, `
crew:
  max_iterations: 30
providers:
  default_provider: anthropic
`)
	writeFile(t, paths.Local, `
crew:
  max_iterations: 40
`)

	m := NewManager(Options{Paths: paths, Getenv: noEnv})
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.Get()
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr: got %s, want :9000", cfg.Server.Addr)
	}
	if cfg.Crew.OutputDir != "project-out" {
		t.Errorf("OutputDir: got %s, want project-out", cfg.Crew.OutputDir)
	}
	if cfg.Crew.MaxIterations != 40 {
		t.Errorf("MaxIterations: got %d, want 40 (local wins)", cfg.Crew.MaxIterations)
	}
	if cfg.Providers.DefaultProvider != "anthropic" {
		t.Errorf("DefaultProvider: got %s, want anthropic", cfg.Providers.DefaultProvider)
	}
	if cfg.Upload.MaxBytes != 1<<20 {
		t.Errorf("unset fields keep defaults, got MaxBytes %d", cfg.Upload.MaxBytes)
	}
}

func TestManagerEnvironmentOverrides(t *testing.T) {
	paths := testPaths(t)
	writeFile(t, paths.Project, "crew:\n  max_iterations: 20\n")
	writeFile(t, paths.DotEnv, "CREWS_OUTPUT_DIR=from-dotenv\nCREWS_MAX_ITERATIONS=5\nOPENAI_API_KEY=sk-dotenv\n")

	env := map[string]string{
		"CREWS_MAX_ITERATIONS":        "7",
		"CREWS_ANTHROPIC_TEMPERATURE": "0.2",
		"CREWS_KNOWLEDGE_SOURCES":     "a.pdf" + string(os.PathListSeparator) + "b.pdf",
	}
	m := NewManager(Options{Paths: paths, Getenv: func(k string) string { return env[k] }})
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.Get()
	if cfg.Crew.MaxIterations != 7 {
		t.Errorf("MaxIterations: got %d, want 7 (process env beats .env)", cfg.Crew.MaxIterations)
	}
	if cfg.Crew.OutputDir != "from-dotenv" {
		t.Errorf("OutputDir: got %s, want from-dotenv", cfg.Crew.OutputDir)
	}
	if cfg.Providers.AnthropicTemperature != 0.2 {
		t.Errorf("AnthropicTemperature: got %v, want 0.2", cfg.Providers.AnthropicTemperature)
	}
	if len(cfg.Knowledge.CodeExtractorSources) != 2 {
		t.Errorf("CodeExtractorSources: got %v", cfg.Knowledge.CodeExtractorSources)
	}
	if got := m.Getenv("OPENAI_API_KEY"); got != "sk-dotenv" {
		t.Errorf("Getenv(OPENAI_API_KEY): got %q, want sk-dotenv", got)
	}
	if os.Getenv("CREWS_OUTPUT_DIR") == "from-dotenv" {
		t.Error(".env values must not leak into the process environment")
	}
}

func TestManagerInvalidConfigKeepsPrevious(t *testing.T) {
	paths := testPaths(t)
	m := NewManager(Options{Paths: paths, Getenv: noEnv})
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	before := m.Get()

	writeFile(t, paths.Project, "providers:\n  default_provider: cohere\n")
	if err := m.Load(); err == nil {
		t.Fatal("expected unsupported provider to fail validation")
	}
	if m.Get() != before {
		t.Error("failed load must keep the previous configuration")
	}

	env := map[string]string{"CREWS_MAX_TOKENS": "lots"}
	writeFile(t, paths.Project, "")
	m = NewManager(Options{Paths: paths, Getenv: func(k string) string { return env[k] }})
	if err := m.Load(); err == nil {
		t.Error("expected malformed CREWS_MAX_TOKENS to fail")
	}
}

func TestManagerOnChange(t *testing.T) {
	m := NewManager(Options{Paths: testPaths(t), Getenv: noEnv})

	var called int
	m.OnChange(func(*Config) { called++ })

	if err := m.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if called != 1 {
		t.Errorf("OnChange called %d times, want 1", called)
	}
}

func TestManagerWatchReloads(t *testing.T) {
	paths := testPaths(t)
	writeFile(t, paths.Project, "server:\n  addr: \":9000\"\n")

	m := NewManager(Options{Paths: paths, Getenv: noEnv})
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer m.Close()

	changed := make(chan string, 4)
	m.OnChange(func(c *Config) { changed <- c.Server.Addr })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Watch(ctx); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeFile(t, paths.Project, "server:\n  addr: \":9100\"\n")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case addr := <-changed:
			if addr == ":9100" {
				return
			}
		case <-deadline:
			t.Fatal("configuration was not reloaded after the file changed")
		}
	}
}
