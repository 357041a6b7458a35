package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-tpltask/pkg/task"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "tpltask.yaml"

// Environment variables that override every task.
const (
	EnvPath    = "TPLTASK_PATH"
	EnvNoCache = "TPLTASK_NO_CACHE"
	EnvDist    = "TPLTASK_DIST"
)

// ErrUnknownTask reports a task name missing from the file.
var ErrUnknownTask = errors.New("config: unknown task")

// File is the decoded configuration file.
type File struct {
	Tasks map[string]Task `yaml:"tasks"`
}

// Task configures one template task. Relative paths resolve against the
// working directory.
type Task struct {
	Path        string         `yaml:"path,omitempty"`
	NoCache     *bool          `yaml:"noCache,omitempty"`
	Dist        string         `yaml:"dist,omitempty"`
	Concurrency int            `yaml:"concurrency,omitempty"`
	CacheSize   int            `yaml:"cacheSize,omitempty"`
	Globals     map[string]any `yaml:"globals,omitempty"`

	// PrecompiledGlobal names the browser global precompiled templates
	// register under.
	PrecompiledGlobal string            `yaml:"global,omitempty"`
	Files             task.FileMappings `yaml:"files"`
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := file.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return file, nil
}

// Parse decodes and validates configuration bytes. Unknown keys are errors.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	for _, name := range files {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %q: %w", name, err)
		}
	}
	return nil
}

// ApplyEnv overrides path, noCache and dist of every task from lookup.
func (f *File) ApplyEnv(lookup func(string) (string, bool)) error {
	path, hasPath := lookup(EnvPath)
	dist, hasDist := lookup(EnvDist)
	rawNoCache, hasNoCache := lookup(EnvNoCache)

	var noCache bool
	if hasNoCache {
		parsed, err := strconv.ParseBool(strings.TrimSpace(rawNoCache))
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvNoCache, err)
		}
		noCache = parsed
	}

	for name, t := range f.Tasks {
		if hasPath {
			t.Path = path
		}
		if hasDist {
			t.Dist = dist
		}
		if hasNoCache {
			v := noCache
			t.NoCache = &v
		}
		f.Tasks[name] = t
	}
	return nil
}

// Validate checks the file holds at least one task and every task has
// outputs.
func (f *File) Validate() error {
	if len(f.Tasks) == 0 {
		return errors.New("config: no tasks defined")
	}
	for _, name := range f.Names() {
		t := f.Tasks[name]
		if len(t.Files) == 0 {
			return fmt.Errorf("config: task %q has no files", name)
		}
		if t.Concurrency < 0 || t.CacheSize < 0 {
			return fmt.Errorf("config: task %q: concurrency and cacheSize must not be negative", name)
		}
		for _, mapping := range t.Files {
			if strings.TrimSpace(mapping.Output) == "" {
				return fmt.Errorf("config: task %q has an empty output name", name)
			}
		}
	}
	return nil
}

// Names returns task names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Tasks))
	for name := range f.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the named tasks, or all of them in sorted order when names is
// empty.
func (f *File) Select(names ...string) ([]string, error) {
	if len(names) == 0 {
		return f.Names(), nil
	}
	for _, name := range names {
		if _, ok := f.Tasks[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
		}
	}
	return names, nil
}

// Save writes f to path as YAML. An existing file is only replaced when
// overwrite is set.
func Save(path string, f *File, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: %q already exists", path)
		}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create dir: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	return nil
}
