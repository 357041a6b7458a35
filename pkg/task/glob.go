package task

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNoMatches reports a glob pattern that matched no files.
var ErrNoMatches = errors.New("task: pattern matched no files")

// Expand resolves glob patterns in an input. A Path holding a pattern becomes
// Paths; patterns inside Paths are flattened in place. Literal paths are kept
// as written, even when they do not exist, and so are existing files whose
// names contain pattern characters.
func Expand(in Input) (Input, error) {
	switch v := in.(type) {
	case Path:
		if !isPattern(string(v)) {
			return v, nil
		}
		matches, err := glob(string(v))
		if err != nil {
			return nil, err
		}
		return Paths(matches), nil
	case Paths:
		out := make(Paths, 0, len(v))
		for _, path := range v {
			if !isPattern(path) {
				out = append(out, path)
				continue
			}
			matches, err := glob(path)
			if err != nil {
				return nil, err
			}
			out = append(out, matches...)
		}
		return out, nil
	case Specifier:
		expanded, err := Expand(v.Input)
		if err != nil {
			return nil, err
		}
		v.Input = expanded
		return v, nil
	default:
		return nil, ErrInvalidInput
	}
}

// isPattern reports whether path should be globbed. A file that exists under
// the literal name, such as "pages/[id].njk", is never treated as a pattern.
func isPattern(path string) bool {
	if !strings.ContainsAny(path, "*?[{") {
		return false
	}
	_, err := os.Stat(path)
	return err != nil
}

func glob(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(filepath.FromSlash(pattern), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("task: expand %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatches, pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

// globBase returns the literal directory prefix of a pattern.
func globBase(pattern string) string {
	base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
	return filepath.FromSlash(base)
}
