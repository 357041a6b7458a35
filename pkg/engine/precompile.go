package engine

import (
	"encoding/json"
	"fmt"
)

const precompiledFormat = `(function() {(window.%[1]s = window.%[1]s || {})[%[2]s] = {"name":%[2]s,"source":%[3]s};})();`

// Precompile parses the template at path and returns a JavaScript statement
// that registers its source under the template name on the precompiled
// global. Nothing is rendered. Read and parse errors are returned unchanged.
func (e *Environment) Precompile(path string) (string, error) {
	source, err := e.ReadSource(path)
	if err != nil {
		return "", err
	}
	if _, err := e.Compile(source); err != nil {
		return "", err
	}
	return e.precompiled(e.loader.name(path), source)
}

// TemplateName returns the name a precompiled template at path registers
// under.
func (e *Environment) TemplateName(path string) string {
	return e.loader.name(path)
}

func (e *Environment) precompiled(name string, source []byte) (string, error) {
	nameJSON, err := json.Marshal(name)
	if err != nil {
		return "", fmt.Errorf("engine: encode template name: %w", err)
	}
	sourceJSON, err := json.Marshal(string(source))
	if err != nil {
		return "", fmt.Errorf("engine: encode template source: %w", err)
	}
	return fmt.Sprintf(precompiledFormat, e.precompiledGlobal, nameJSON, sourceJSON), nil
}
