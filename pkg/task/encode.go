package task

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// EncodeInput returns the YAML node DecodeInput reads back as in.
func EncodeInput(in Input) (*yaml.Node, error) {
	switch v := in.(type) {
	case Path:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(v)}, nil
	case Paths:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, path := range v {
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: path})
		}
		return node, nil
	case Specifier:
		inner, err := EncodeInput(v.Input)
		if err != nil {
			return nil, err
		}
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		node.Content = append(node.Content,
			scalar("type"), scalar(string(v.Type)),
			scalar("input"), inner,
		)
		if len(v.Data) > 0 {
			data := &yaml.Node{}
			if err := data.Encode(v.Data); err != nil {
				return nil, fmt.Errorf("task: encode data: %w", err)
			}
			node.Content = append(node.Content, scalar("data"), data)
		}
		if v.Sanitize {
			node.Content = append(node.Content, scalar("sanitize"), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"})
		}
		return node, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidInput, in)
	}
}

// MarshalYAML implements yaml.Marshaler keeping mapping order.
func (m FileMappings) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, mapping := range m {
		value, err := EncodeInput(mapping.Input)
		if err != nil {
			return nil, fmt.Errorf("task: files[%q]: %w", mapping.Output, err)
		}
		node.Content = append(node.Content, scalar(mapping.Output), value)
	}
	return node, nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
