package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Writer persists the final text of one output. The output value is opaque
// to processors.
type Writer interface {
	Write(ctx context.Context, output, text string) error
}

// Processor turns one input into the text written to output.
type Processor interface {
	Process(ctx context.Context, input Input, output string) error
}

// Logger is the structured logging surface tasks report progress through.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

// Option customises a Base.
type Option func(*Base)

// WithDist sets the directory outputs are written under.
func WithDist(dir string) Option {
	return func(b *Base) {
		b.dist = dir
	}
}

// WithFiles sets the output → input mappings Execute walks.
func WithFiles(files FileMappings) Option {
	return func(b *Base) {
		b.files = append(FileMappings(nil), files...)
	}
}

// WithLogger routes progress messages to logger.
func WithLogger(logger Logger) Option {
	return func(b *Base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Base carries what every task shares: a name, an output directory, the file
// mappings to process and a Writer that lands text on disk.
type Base struct {
	name   string
	dist   string
	files  FileMappings
	logger Logger
}

var _ Writer = (*Base)(nil)

// New constructs a Base. Outputs are written relative to the working
// directory unless WithDist is given.
func New(name string, options ...Option) *Base {
	b := &Base{
		name:   name,
		logger: nopLogger{},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(b)
	}
	return b
}

// Name returns the task name.
func (b *Base) Name() string {
	return b.name
}

// Dist returns the output directory.
func (b *Base) Dist() string {
	return b.dist
}

// Files returns a copy of the configured mappings.
func (b *Base) Files() FileMappings {
	return append(FileMappings(nil), b.files...)
}

// Logger returns the configured logger.
func (b *Base) Logger() Logger {
	return b.logger
}

// OutputPath returns where output lands on disk.
func (b *Base) OutputPath(output string) string {
	if filepath.IsAbs(output) {
		return output
	}
	return filepath.Join(b.dist, output)
}

// Write stores text at OutputPath(output), creating parent directories.
func (b *Base) Write(ctx context.Context, output, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if output == "" {
		return errors.New("task: output name is required")
	}
	path := b.OutputPath(output)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("task: create output dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("task: write %q: %w", path, err)
	}
	b.logger.Debug("wrote output", "task", b.name, "path", path, "bytes", len(text))
	return nil
}

// Execute expands every mapping's globs and hands it to p in declared order.
// The first failure stops the run.
func (b *Base) Execute(ctx context.Context, p Processor) error {
	if p == nil {
		return errors.New("task: processor is required")
	}
	b.logger.Info("running task", "task", b.name, "files", len(b.files))

	for _, mapping := range b.files {
		if err := ctx.Err(); err != nil {
			return err
		}
		input, err := Expand(mapping.Input)
		if err != nil {
			return fmt.Errorf("task %q: output %q: %w", b.name, mapping.Output, err)
		}
		b.logger.Debug("processing output", "task", b.name, "output", mapping.Output)
		if err := p.Process(ctx, input, mapping.Output); err != nil {
			b.logger.Error("task failed", "task", b.name, "output", mapping.Output, "error", err)
			return fmt.Errorf("task %q: output %q: %w", b.name, mapping.Output, err)
		}
	}

	b.logger.Info("task finished", "task", b.name)
	return nil
}

// Outputs returns the absolute path of every output the mappings write.
func (b *Base) Outputs() []string {
	out := make([]string, 0, len(b.files))
	for _, mapping := range b.files {
		path := b.OutputPath(mapping.Output)
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		out = append(out, path)
	}
	return out
}

// Watched returns the literal input paths and glob bases the mappings read,
// for callers that re-run the task on change.
func (b *Base) Watched() []string {
	var out []string
	for _, mapping := range b.files {
		for _, path := range List(mapping.Input) {
			if isPattern(path) {
				out = append(out, globBase(path))
				continue
			}
			out = append(out, path)
		}
	}
	return out
}
