package engine

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// sourceLoader implements pongo2.TemplateLoader over the local filesystem.
// Names resolve against baseDir; only names starting with "./" or "../" are
// taken relative to the including template. cache is nil when caching is
// disabled.
type sourceLoader struct {
	baseDir string
	cache   *lru.Cache[string, []byte]
}

func newSourceLoader(baseDir string, noCache bool, size int) (*sourceLoader, error) {
	loader := &sourceLoader{baseDir: baseDir}
	if noCache {
		return loader, nil
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("engine: create source cache: %w", err)
	}
	loader.cache = cache
	return loader, nil
}

// Abs resolves name for pongo2. base is the including template's path, empty
// for templates built from bytes.
func (l *sourceLoader) Abs(base, name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	if base != "" && (strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../")) {
		return filepath.Join(filepath.Dir(base), name)
	}
	return filepath.Join(l.baseDir, filepath.FromSlash(name))
}

// Get returns the source at an absolute path produced by Abs.
func (l *sourceLoader) Get(path string) (io.Reader, error) {
	data, err := l.read(path)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func (l *sourceLoader) read(path string) ([]byte, error) {
	if l.cache != nil {
		if data, ok := l.cache.Get(path); ok {
			return data, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		l.cache.Add(path, data)
	}
	return data, nil
}

// name returns the registration name for a template path: relative to the
// base directory when inside it, the cleaned path otherwise.
func (l *sourceLoader) name(path string) string {
	abs, err := filepath.Abs(path)
	if err == nil {
		if rel, err := filepath.Rel(l.baseDir, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(filepath.Clean(path))
}
