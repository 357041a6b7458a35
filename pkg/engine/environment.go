package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/flosch/pongo2/v6"
)

const (
	defaultCacheSize         = 256
	defaultPrecompiledGlobal = "tpltaskPrecompiled"
)

// ErrInvalidUTF8 reports a template source that is not valid UTF-8 text.
var ErrInvalidUTF8 = errors.New("engine: template source is not valid UTF-8")

// Option configures the environment before construction.
type Option func(*config)

type config struct {
	baseDir           string
	noCache           bool
	cacheSize         int
	globals           map[string]any
	filters           map[string]FilterFunc
	precompiledGlobal string
}

// FilterFunc is the signature accepted by RegisterFilter and WithFilters.
type FilterFunc func(input any, param any) (any, error)

// WithBaseDir sets the directory template names and includes resolve against.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		cfg.baseDir = strings.TrimSpace(dir)
	}
}

// WithNoCache disables the template source cache so every reference re-reads
// the file from disk.
func WithNoCache(noCache bool) Option {
	return func(cfg *config) {
		cfg.noCache = noCache
	}
}

// WithCacheSize bounds the number of template sources kept when caching is
// enabled.
func WithCacheSize(size int) Option {
	return func(cfg *config) {
		if size > 0 {
			cfg.cacheSize = size
		}
	}
}

// WithGlobals seeds values available to every rendered template.
func WithGlobals(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globals == nil {
			cfg.globals = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globals[strings.TrimSpace(key)] = value
		}
	}
}

// WithFilters registers filters when the environment is built.
func WithFilters(filters map[string]FilterFunc) Option {
	return func(cfg *config) {
		if len(filters) == 0 {
			return
		}
		if cfg.filters == nil {
			cfg.filters = make(map[string]FilterFunc, len(filters))
		}
		for name, fn := range filters {
			cfg.filters[strings.TrimSpace(name)] = fn
		}
	}
}

// WithPrecompiledGlobal overrides the browser global precompiled templates
// register themselves on.
func WithPrecompiledGlobal(name string) Option {
	return func(cfg *config) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cfg.precompiledGlobal = trimmed
		}
	}
}

// Environment resolves, compiles, renders and precompiles templates against a
// single base directory.
type Environment struct {
	mu sync.RWMutex

	set               *pongo2.TemplateSet
	loader            *sourceLoader
	baseDir           string
	precompiledGlobal string
}

// New builds an Environment. The base directory is required and made
// absolute.
func New(options ...Option) (*Environment, error) {
	cfg := &config{
		noCache:           true,
		cacheSize:         defaultCacheSize,
		precompiledGlobal: defaultPrecompiledGlobal,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	if cfg.baseDir == "" {
		return nil, errors.New("engine: base dir is required")
	}
	baseDir, err := filepath.Abs(cfg.baseDir)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve base dir: %w", err)
	}

	loader, err := newSourceLoader(baseDir, cfg.noCache, cfg.cacheSize)
	if err != nil {
		return nil, err
	}

	set := pongo2.NewSet("tpltask", loader)
	// Debug disables pongo2's own template cache.
	set.Debug = cfg.noCache

	env := &Environment{
		set:               set,
		loader:            loader,
		baseDir:           baseDir,
		precompiledGlobal: cfg.precompiledGlobal,
	}
	registerDefaultFilters()

	if err := env.AddGlobals(cfg.globals); err != nil {
		return nil, fmt.Errorf("engine: apply globals: %w", err)
	}
	for name, fn := range cfg.filters {
		if err := env.RegisterFilter(name, fn); err != nil {
			return nil, fmt.Errorf("engine: register filter %q: %w", name, err)
		}
	}

	return env, nil
}

// BaseDir returns the absolute directory templates resolve against.
func (e *Environment) BaseDir() string {
	return e.baseDir
}

// Caching reports whether template sources are cached between references.
func (e *Environment) Caching() bool {
	return e.loader.cache != nil
}

// ReadSource returns the raw bytes of the template file at path. Relative
// paths are taken relative to the working directory. Read errors are returned
// unchanged.
func (e *Environment) ReadSource(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return e.loader.read(abs)
}

// Compile parses source into a template bound to this environment. Parsing
// mutates the shared template set, so compiles are serialised.
func (e *Environment) Compile(source []byte) (*pongo2.Template, error) {
	if !utf8.Valid(source) {
		return nil, ErrInvalidUTF8
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set.FromBytes(source)
}

// Execute renders a compiled template with data. A nil data renders against
// an empty context.
func (e *Environment) Execute(tmpl *pongo2.Template, data any) (string, error) {
	if tmpl == nil {
		return "", errors.New("engine: template is nil")
	}
	ctx, err := renderContext(data)
	if err != nil {
		return "", fmt.Errorf("engine: %w", err)
	}

	var buf bytes.Buffer

	e.mu.RLock()
	err = tmpl.ExecuteWriter(ctx, &buf)
	e.mu.RUnlock()

	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Render resolves name against the base directory, compiles it and renders
// it with data. The result is also copied to every writer in out.
func (e *Environment) Render(name string, data any, out ...io.Writer) (string, error) {
	source, err := e.loader.read(e.loader.Abs("", name))
	if err != nil {
		return "", err
	}
	tmpl, err := e.Compile(source)
	if err != nil {
		return "", fmt.Errorf("engine: load template %q: %w", name, err)
	}
	rendered, err := e.Execute(tmpl, data)
	if err != nil {
		return "", fmt.Errorf("engine: execute template %q: %w", name, err)
	}
	for _, w := range out {
		if _, err := io.WriteString(w, rendered); err != nil {
			return "", err
		}
	}
	return rendered, nil
}

// RegisterFilter makes fn available to templates as name. pongo2 keeps
// filters in a process wide table, so each name can be taken once.
func (e *Environment) RegisterFilter(name string, fn FilterFunc) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return errors.New("engine: filter name and function required")
	}
	if pongo2.FilterExists(name) {
		return fmt.Errorf("engine: filter %q already exists", name)
	}
	return pongo2.RegisterFilter(name, adaptFilter(name, fn))
}

func adaptFilter(name string, fn FilterFunc) pongo2.FilterFunction {
	return func(in, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var arg any
		if param != nil {
			arg = param.Interface()
		}
		result, err := fn(in.Interface(), arg)
		if err != nil {
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
		}
		return pongo2.AsValue(result), nil
	}
}

// AddGlobals merges values into the context every template renders with.
// Later calls win on key clashes.
func (e *Environment) AddGlobals(values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	globals, err := renderContext(values)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set.Globals == nil {
		e.set.Globals = pongo2.Context{}
	}
	e.set.Globals.Update(globals)
	return nil
}
