package crew

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	cerrors "github.com/adalundhe/crews/core/errors"
)

// DefaultOutputRoot is where task sinks are written when no root is configured.
const DefaultOutputRoot = "output"

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// OutputRoot is the directory task output files are written under.
	OutputRoot string

	// MaxIterations bounds the model round trips per task.
	MaxIterations int

	// MaxTokens is passed to every completion request. Zero leaves the
	// provider default in place.
	MaxTokens int

	Logger   *slog.Logger
	Observer Observer
}

// TaskOutput is the recorded result of one task.
type TaskOutput struct {
	Task     string        `json:"task"`
	Role     string        `json:"role"`
	Output   string        `json:"output"`
	File     string        `json:"file,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Result is the outcome of a successful run.
type Result struct {
	// Artifact is the output of the final task.
	Artifact string       `json:"artifact"`
	Tasks    []TaskOutput `json:"tasks"`
}

// Runner executes a crew's tasks strictly in order. The first failing task
// aborts the run and no partial result is returned.
type Runner struct {
	config RunnerConfig
}

func NewRunner(config RunnerConfig) *Runner {
	if config.OutputRoot == "" {
		config.OutputRoot = DefaultOutputRoot
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultMaxIterations
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Observer == nil {
		config.Observer = NopObserver{}
	}
	return &Runner{config: config}
}

// OutputRoot returns the directory sinks are written under.
func (r *Runner) OutputRoot() string {
	return r.config.OutputRoot
}

// Run executes c and returns the final artifact with per-task outputs.
func (r *Runner) Run(ctx context.Context, c *Crew) (result *Result, err error) {
	if c == nil {
		return nil, cerrors.New(cerrors.KindInvalidInput, "crew is required")
	}

	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = cerrors.Newf(cerrors.KindPipelineExecution, "panic in crew %s: %v", c.Kind, p)
			r.config.Logger.Error("crew panicked", "crew", c.Kind, "panic", p)
		}
	}()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger := r.config.Logger.With("crew", c.Kind)
	logger.Info("crew started", "tasks", len(c.Tasks))
	started := time.Now()

	outputs := make(map[string]TaskOutput, len(c.Tasks))
	completed := make([]TaskOutput, 0, len(c.Tasks))

	for i, task := range c.Tasks {
		if err := ctx.Err(); err != nil {
			return nil, cerrors.Wrap(cerrors.KindPipelineExecution, "run cancelled", err)
		}

		out, err := r.executeTask(ctx, c, task, outputs, logger.With("task", task.Name, "step", i+1))
		if err != nil {
			logger.Error("crew failed", "task", task.Name, "error", err)
			return nil, fmt.Errorf("task %s: %w", task.Name, err)
		}

		outputs[task.Name] = out
		completed = append(completed, out)
	}

	logger.Info("crew finished", "elapsed", time.Since(started))
	return &Result{
		Artifact: completed[len(completed)-1].Output,
		Tasks:    completed,
	}, nil
}

func (r *Runner) executeTask(ctx context.Context, c *Crew, task Task, outputs map[string]TaskOutput, logger *slog.Logger) (out TaskOutput, err error) {
	role, _ := c.Role(task.Role)

	r.config.Observer.TaskStarted(c.Kind, task)
	start := time.Now()
	defer func() {
		r.config.Observer.TaskFinished(c.Kind, task, time.Since(start), err)
	}()

	logger.Info("task started", "role", role.Name)

	a, err := newAgent(c.Kind, role, r.config.MaxIterations, r.config.MaxTokens, logger, r.config.Observer)
	if err != nil {
		return TaskOutput{}, err
	}

	prior := make([]TaskOutput, 0, len(task.Context))
	for _, name := range task.Context {
		prior = append(prior, outputs[name])
	}

	text, err := a.execute(ctx, task, prior)
	if err != nil {
		return TaskOutput{}, err
	}

	out = TaskOutput{
		Task:     task.Name,
		Role:     role.Name,
		Output:   text,
		Duration: time.Since(start),
	}

	if task.OutputFile != "" {
		path, err := r.writeSink(task.OutputFile, text)
		if err != nil {
			return TaskOutput{}, err
		}
		out.File = path
	}

	logger.Info("task finished", "elapsed", out.Duration, "file", out.File)
	return out, nil
}

// writeSink writes content to rel under the output root through a temp file
// so readers never observe a partial file.
func (r *Runner) writeSink(rel, content string) (string, error) {
	path := filepath.Join(r.config.OutputRoot, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", cerrors.Wrap(cerrors.KindPipelineExecution, "create output directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".sink-*")
	if err != nil {
		return "", cerrors.Wrap(cerrors.KindPipelineExecution, "create output file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return "", cerrors.Wrap(cerrors.KindPipelineExecution, "write output file", err)
	}
	if err := tmp.Close(); err != nil {
		return "", cerrors.Wrap(cerrors.KindPipelineExecution, "write output file", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", cerrors.Wrap(cerrors.KindPipelineExecution, "write output file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", cerrors.Wrap(cerrors.KindPipelineExecution, "write output file", err)
	}
	return path, nil
}
