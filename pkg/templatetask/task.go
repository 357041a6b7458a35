package templatetask

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-tpltask/pkg/engine"
	"github.com/goliatone/go-tpltask/pkg/task"
)

// Environment is the slice of engine.Environment a Task drives.
type Environment interface {
	ReadSource(path string) ([]byte, error)
	Compile(source []byte) (*pongo2.Template, error)
	Execute(tmpl *pongo2.Template, data any) (string, error)
	Precompile(path string) (string, error)
}

var _ Environment = (*engine.Environment)(nil)

// Config holds the options a task is constructed with.
type Config struct {
	// Path is the base directory for template lookup. Defaults to the working
	// directory.
	Path string
	// NoCache re-reads template sources on every reference. Defaults to true
	// when nil.
	NoCache *bool
	// CacheSize bounds the source cache when caching is enabled.
	CacheSize int
	// Globals are visible to every compiled template.
	Globals map[string]any
}

// Option customises a Task.
type Option func(*Task)

// WithEnvironment replaces the environment built from Config.
func WithEnvironment(env Environment) Option {
	return func(t *Task) {
		t.env = env
	}
}

// WithEngineOptions appends options used when building the environment.
func WithEngineOptions(options ...engine.Option) Option {
	return func(t *Task) {
		t.engineOptions = append(t.engineOptions, options...)
	}
}

// WithConcurrency bounds how many templates precompile at once.
func WithConcurrency(n int) Option {
	return func(t *Task) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// WithSanitizer replaces the policy applied to compile output when a
// specifier asks for sanitizing.
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(t *Task) {
		if policy != nil {
			t.sanitizer = policy
		}
	}
}

// Task compiles or precompiles templates and hands the text to a Writer. One
// environment is built at construction and reused by every call.
type Task struct {
	env           Environment
	writer        task.Writer
	concurrency   int
	sanitizer     *bluemonday.Policy
	engineOptions []engine.Option
}

var _ task.Processor = (*Task)(nil)

// New builds a Task writing through writer.
func New(writer task.Writer, cfg Config, options ...Option) (*Task, error) {
	if writer == nil {
		return nil, errors.New("templatetask: writer is required")
	}

	t := &Task{
		writer:      writer,
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(t)
	}
	if t.sanitizer == nil {
		t.sanitizer = bluemonday.UGCPolicy()
	}

	if t.env == nil {
		env, err := newEnvironment(cfg, t.engineOptions)
		if err != nil {
			return nil, err
		}
		t.env = env
	}
	return t, nil
}

func newEnvironment(cfg Config, extra []engine.Option) (*engine.Environment, error) {
	baseDir := strings.TrimSpace(cfg.Path)
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("templatetask: resolve working directory: %w", err)
		}
		baseDir = wd
	}
	noCache := true
	if cfg.NoCache != nil {
		noCache = *cfg.NoCache
	}

	options := []engine.Option{
		engine.WithBaseDir(baseDir),
		engine.WithNoCache(noCache),
		engine.WithCacheSize(cfg.CacheSize),
		engine.WithGlobals(cfg.Globals),
	}
	env, err := engine.New(append(options, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("templatetask: build environment: %w", err)
	}
	return env, nil
}

// Process routes input to Compile or Precompile. A specifier whose type is
// "precompile" precompiles its input, any other specifier compiles; bare
// paths and lists always precompile.
func (t *Task) Process(ctx context.Context, input task.Input, output string) error {
	switch in := input.(type) {
	case task.Specifier:
		if in.Type == task.ModePrecompile {
			return t.Precompile(ctx, in.Input, output)
		}
		_, err := t.Compile(ctx, in, output)
		return err
	case task.Path, task.Paths:
		return t.Precompile(ctx, in, output)
	default:
		return fmt.Errorf("%w: %T", task.ErrInvalidInput, input)
	}
}

// Compile reads the single template named by spec.Input, renders it with
// spec.Data and writes the text to output. A list input fails with
// ErrListInput before any file is touched. Errors from reading, compiling,
// rendering and writing are returned unchanged and nothing is written.
func (t *Task) Compile(ctx context.Context, spec task.Specifier, output string) (string, error) {
	var path task.Path
	switch in := spec.Input.(type) {
	case task.Path:
		path = in
	case task.Paths:
		return "", ErrListInput
	default:
		return "", fmt.Errorf("%w: compile input must be a path, got %T", task.ErrInvalidInput, spec.Input)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	source, err := t.env.ReadSource(string(path))
	if err != nil {
		return "", err
	}
	tmpl, err := t.env.Compile(source)
	if err != nil {
		return "", err
	}
	data := spec.Data
	if data == nil {
		data = map[string]any{}
	}
	rendered, err := t.env.Execute(tmpl, data)
	if err != nil {
		return "", err
	}
	if spec.Sanitize {
		rendered = t.sanitizer.Sanitize(rendered)
	}
	if err := t.writer.Write(ctx, output, rendered); err != nil {
		return "", err
	}
	return rendered, nil
}

// Precompile precompiles every template in input concurrently and writes the
// results, in input order, joined by the platform line separator. The first
// failing file fails the batch and nothing is written. Render data is never
// applied.
func (t *Task) Precompile(ctx context.Context, input task.Input, output string) error {
	if input == nil {
		return fmt.Errorf("%w: nil input", task.ErrInvalidInput)
	}
	paths := task.List(input)
	results := make([]string, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := t.env.Precompile(path)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return t.writer.Write(ctx, output, strings.Join(results, LineSeparator))
}

type runner interface {
	Execute(ctx context.Context, p task.Processor) error
}

// Execute runs every file mapping of the host through Process. The writer
// given to New must be a host able to execute, such as *task.Base.
func (t *Task) Execute(ctx context.Context) error {
	host, ok := t.writer.(runner)
	if !ok {
		return fmt.Errorf("templatetask: writer %T cannot execute file mappings", t.writer)
	}
	return host.Execute(ctx, t)
}
