package loader

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

func decodeYAML(data []byte) (*Program, error) {
	var p Program
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProgram, err)
	}
	for _, b := range p.Blocks {
		if b == nil {
			continue
		}
		for _, c := range b.Commands {
			if c == nil || c.Params == nil {
				continue
			}
			for k, v := range c.Params {
				c.Params[k] = normalize(v)
			}
		}
	}
	return &p, nil
}

// normalize converts the map[interface{}]interface{} values yaml.v2 produces
// for nested mappings into map[string]any, so params look the same whatever
// the source format.
func normalize(v any) any {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case []interface{}:
		for n := range t {
			t[n] = normalize(t[n])
		}
		return t
	default:
		return v
	}
}
