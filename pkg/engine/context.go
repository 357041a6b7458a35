package engine

import (
	"fmt"

	"github.com/flosch/pongo2/v6"
)

// renderContext turns render data into a pongo2 context. Data comes from YAML
// documents, so only mappings are accepted at the top level. Scalars such as
// time.Time or uint64 are passed through untouched.
func renderContext(data any) (pongo2.Context, error) {
	switch v := data.(type) {
	case nil:
		return pongo2.Context{}, nil
	case pongo2.Context:
		return normaliseMap(v), nil
	case map[string]any:
		return normaliseMap(v), nil
	case map[any]any:
		return normaliseMap(stringKeys(v)), nil
	default:
		return nil, fmt.Errorf("render data must be a mapping, got %T", data)
	}
}

func normaliseMap(in map[string]any) pongo2.Context {
	out := make(pongo2.Context, len(in))
	for key, value := range in {
		if key == "" {
			continue
		}
		out[key] = normalise(value)
	}
	return out
}

// normalise rewrites nested YAML mappings with non-string keys so templates
// can reach them with dotted lookups.
func normalise(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = normalise(item)
		}
		return out
	case map[any]any:
		return normalise(stringKeys(v))
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalise(item)
		}
		return out
	default:
		return value
	}
}

func stringKeys(in map[any]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[fmt.Sprint(key)] = value
	}
	return out
}
