package inventory

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// entry is one key/value pair of a YAML mapping.
type entry[T any] struct {
	Key   string
	Value T
}

// ordered decodes a YAML mapping keeping document order, which plain Go
// maps lose. Host insertion order decides which host a link endpoint
// fragment resolves to, so it must follow the file.
type ordered[T any] []entry[T]

func (o *ordered[T]) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		var v T
		if err := n.Content[i+1].Decode(&v); err != nil {
			return err
		}
		*o = append(*o, entry[T]{Key: n.Content[i].Value, Value: v})
	}
	return nil
}

// stringVars flattens scalar YAML values to strings. Nested values are
// dropped; inventory variables of interest are all scalars.
func stringVars(in map[string]interface{}) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch v.(type) {
		case nil, map[string]interface{}, []interface{}:
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

// mergeVars returns parent overlaid with child. Neither input is modified.
func mergeVars(parent, child map[string]string) map[string]string {
	out := make(map[string]string, len(parent)+len(child))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range child {
		out[k] = v
	}
	return out
}
