package tpltask

import (
	"context"
	"fmt"

	"github.com/goliatone/go-tpltask/internal/config"
	"github.com/goliatone/go-tpltask/pkg/engine"
	"github.com/goliatone/go-tpltask/pkg/task"
	"github.com/goliatone/go-tpltask/pkg/templatetask"
)

// Input aliases task.Input so callers can build inputs without importing the
// task package directly.
type Input = task.Input

// Path is a single template path or glob.
type Path = task.Path

// Paths is an ordered list of template paths or globs.
type Paths = task.Paths

// Specifier pairs an input with a mode, render data and a sanitize flag.
type Specifier = task.Specifier

// FileMappings is the ordered output → input table of a task.
type FileMappings = task.FileMappings

// TaskConfig mirrors one entry of the configuration file.
type TaskConfig = config.Task

// Logger is the structured logging surface tasks report through.
type Logger = task.Logger

// Task is a configured template task bound to its host.
type Task struct {
	*templatetask.Task
	host *task.Base
	path string
}

// NewTask builds the named task from cfg. Outputs are written under cfg.Dist.
func NewTask(name string, cfg TaskConfig, logger Logger) (*Task, error) {
	if logger == nil {
		logger = task.NopLogger()
	}
	host := task.New(name,
		task.WithDist(cfg.Dist),
		task.WithFiles(cfg.Files),
		task.WithLogger(logger),
	)

	options := []templatetask.Option{templatetask.WithConcurrency(cfg.Concurrency)}
	if cfg.PrecompiledGlobal != "" {
		options = append(options, templatetask.WithEngineOptions(engine.WithPrecompiledGlobal(cfg.PrecompiledGlobal)))
	}

	inner, err := templatetask.New(host, templatetask.Config{
		Path:      cfg.Path,
		NoCache:   cfg.NoCache,
		CacheSize: cfg.CacheSize,
		Globals:   cfg.Globals,
	}, options...)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", name, err)
	}
	return &Task{Task: inner, host: host, path: cfg.Path}, nil
}

// Name returns the task name.
func (t *Task) Name() string {
	return t.host.Name()
}

// Watched returns the paths whose changes should re-run the task: every input
// location plus the template base directory.
func (t *Task) Watched() []string {
	paths := t.host.Watched()
	if t.path != "" {
		paths = append(paths, t.path)
	}
	return paths
}

// Dist returns the directory outputs are written under.
func (t *Task) Dist() string {
	return t.host.Dist()
}

// Outputs returns the absolute paths the task writes to.
func (t *Task) Outputs() []string {
	return t.host.Outputs()
}

// Load reads configPath and builds the named tasks, or every task in sorted
// order when names is empty.
func Load(configPath string, logger Logger, names ...string) ([]*Task, error) {
	file, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	selected, err := file.Select(names...)
	if err != nil {
		return nil, err
	}

	tasks := make([]*Task, 0, len(selected))
	for _, name := range selected {
		t, err := NewTask(name, file.Tasks[name], logger)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Run loads configPath and executes the named tasks in order, stopping at the
// first failure.
func Run(ctx context.Context, configPath string, names ...string) error {
	tasks, err := Load(configPath, nil, names...)
	if err != nil {
		return err
	}
	return ExecuteAll(ctx, tasks)
}

// ExecuteAll executes tasks one after another.
func ExecuteAll(ctx context.Context, tasks []*Task) error {
	for _, t := range tasks {
		if err := t.Execute(ctx); err != nil {
			return err
		}
	}
	return nil
}
