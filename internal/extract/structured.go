package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// jsonText flattens a JSON document into "path.to.key: value" lines.
// Object keys are sorted so repeated extraction is byte-identical.
func jsonText(_ context.Context, content []byte) (string, error) {
	var v any
	if err := json.Unmarshal(content, &v); err != nil {
		return "", fmt.Errorf("parse json: %w", err)
	}

	var lines []string
	flattenValue("", v, &lines)
	return strings.Join(lines, "\n"), nil
}

func flattenValue(path string, v any, lines *[]string) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenValue(joinPath(path, k), t[k], lines)
		}
	case []any:
		for i, item := range t {
			flattenValue(path+"["+strconv.Itoa(i)+"]", item, lines)
		}
	case nil:
		*lines = append(*lines, leaf(path, "null"))
	case string:
		*lines = append(*lines, leaf(path, t))
	default:
		*lines = append(*lines, leaf(path, fmt.Sprint(t)))
	}
}

// yamlText flattens a YAML document the same way, in document order.
func yamlText(_ context.Context, content []byte) (string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return "", fmt.Errorf("parse yaml: %w", err)
	}

	var lines []string
	flattenNode("", &root, &lines)
	return strings.Join(lines, "\n"), nil
}

func flattenNode(path string, n *yaml.Node, lines *[]string) {
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			flattenNode(path, c, lines)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			flattenNode(joinPath(path, n.Content[i].Value), n.Content[i+1], lines)
		}
	case yaml.SequenceNode:
		for i, c := range n.Content {
			flattenNode(path+"["+strconv.Itoa(i)+"]", c, lines)
		}
	case yaml.AliasNode:
		if n.Alias != nil {
			flattenNode(path, n.Alias, lines)
		}
	case yaml.ScalarNode:
		*lines = append(*lines, leaf(path, n.Value))
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func leaf(path, value string) string {
	if path == "" {
		return value
	}
	return path + ": " + value
}
