package task

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Mode selects how a Specifier is processed.
type Mode string

const (
	// ModeCompile renders a single template with data into final text.
	ModeCompile Mode = "compile"
	// ModePrecompile turns templates into loadable source without rendering.
	ModePrecompile Mode = "precompile"
)

// Input is one of Path, Paths or Specifier.
type Input interface {
	isInput()
}

// Path names a single template file.
type Path string

// Paths names a batch of template files.
type Paths []string

// Specifier selects a mode explicitly and carries render data. Input is a
// Path or Paths.
type Specifier struct {
	Type     Mode
	Input    Input
	Data     map[string]any
	Sanitize bool
}

func (Path) isInput()      {}
func (Paths) isInput()     {}
func (Specifier) isInput() {}

// ErrInvalidInput reports an input that is none of the supported shapes.
var ErrInvalidInput = errors.New("task: invalid input")

// List normalises a Path or Paths into a slice. Any other input yields nil.
func List(in Input) []string {
	switch v := in.(type) {
	case Path:
		return []string{string(v)}
	case Paths:
		return append([]string(nil), v...)
	case Specifier:
		return List(v.Input)
	default:
		return nil
	}
}

// DecodeInput picks the Input variant from a YAML node: a scalar is a Path, a
// sequence is Paths and a mapping is a Specifier.
func DecodeInput(node *yaml.Node) (Input, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var path string
		if err := node.Decode(&path); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if path == "" {
			return nil, fmt.Errorf("%w: empty path", ErrInvalidInput)
		}
		return Path(path), nil
	case yaml.SequenceNode:
		var paths []string
		if err := node.Decode(&paths); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return Paths(paths), nil
	case yaml.MappingNode:
		return decodeSpecifier(node)
	case yaml.AliasNode:
		return DecodeInput(node.Alias)
	default:
		return nil, fmt.Errorf("%w: unsupported yaml node at line %d", ErrInvalidInput, node.Line)
	}
}

func decodeSpecifier(node *yaml.Node) (Input, error) {
	var raw struct {
		Type     string         `yaml:"type"`
		Input    yaml.Node      `yaml:"input"`
		Data     map[string]any `yaml:"data"`
		Sanitize bool           `yaml:"sanitize"`
	}
	if err := node.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if raw.Type == "" || raw.Input.Kind == 0 {
		return nil, fmt.Errorf("%w: specifier at line %d needs both type and input", ErrInvalidInput, node.Line)
	}

	inner, err := DecodeInput(&raw.Input)
	if err != nil {
		return nil, err
	}
	if _, nested := inner.(Specifier); nested {
		return nil, fmt.Errorf("%w: specifier input must be a path or a list of paths", ErrInvalidInput)
	}

	return Specifier{
		Type:     Mode(raw.Type),
		Input:    inner,
		Data:     raw.Data,
		Sanitize: raw.Sanitize,
	}, nil
}

// FileMapping pairs an output name with the input that produces it.
type FileMapping struct {
	Output string
	Input  Input
}

// FileMappings decodes a YAML mapping of output → input keeping the declared
// order.
type FileMappings []FileMapping

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *FileMappings) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("task: files must be a mapping of output to input, line %d", node.Line)
	}

	out := make(FileMappings, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var output string
		if err := node.Content[i].Decode(&output); err != nil {
			return fmt.Errorf("task: decode output name: %w", err)
		}
		input, err := DecodeInput(node.Content[i+1])
		if err != nil {
			return fmt.Errorf("task: files[%q]: %w", output, err)
		}
		out = append(out, FileMapping{Output: output, Input: input})
	}
	*m = out
	return nil
}
