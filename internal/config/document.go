package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"
)

// decodeDocument parses a config document: a mapping of section name to a
// mapping of key to scalar or numeric list. Individual values of an
// unsupported shape are dropped with a warning so reads fall back to
// defaults; a document of the wrong shape is an error.
func decodeDocument(raw []byte) (map[string]map[string]Value, error) {
	sections := map[string]map[string]Value{}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return sections, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: top level must be a mapping of sections", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		nameNode, body := root.Content[i], root.Content[i+1]
		name := strings.TrimSpace(nameNode.Value)
		if name == "" {
			return nil, fmt.Errorf("line %d: empty section name", nameNode.Line)
		}
		sec := sections[name]
		if sec == nil {
			sec = map[string]Value{}
			sections[name] = sec
		}
		if body.Kind == yaml.ScalarNode && body.ShortTag() == "!!null" {
			continue
		}
		if body.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: section %q must be a mapping", body.Line, name)
		}
		for j := 0; j+1 < len(body.Content); j += 2 {
			keyNode, valNode := body.Content[j], body.Content[j+1]
			v, err := decodeValue(valNode)
			if err != nil {
				slog.Warn("[WARN-CONFIG] ignoring unsupported value",
					"section", name, "key", keyNode.Value, "line", valNode.Line, "error", err)
				continue
			}
			sec[keyNode.Value] = v
		}
	}
	return sections, nil
}

func decodeValue(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return decodeScalar(n)
	case yaml.SequenceNode:
		list := make([]float64, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := decodeScalar(item)
			if err != nil {
				return Value{}, err
			}
			f, ok := As[float64](v)
			if !ok {
				return Value{}, fmt.Errorf("list item %q is not a number", item.Value)
			}
			list = append(list, f)
		}
		return DoubleListValue(list), nil
	case yaml.AliasNode:
		if n.Alias != nil {
			return decodeValue(n.Alias)
		}
	}
	return Value{}, errors.New("unsupported value shape")
}

func decodeScalar(n *yaml.Node) (Value, error) {
	if n.Kind != yaml.ScalarNode {
		return Value{}, errors.New("expected a scalar")
	}
	switch n.ShortTag() {
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case "!!int":
		var i int
		if err := n.Decode(&i); err != nil {
			return Value{}, err
		}
		return IntValue(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, err
		}
		return DoubleValue(f), nil
	case "!!null":
		return StringValue(""), nil
	default:
		return StringValue(n.Value), nil
	}
}

// encodeDocument renders sections with the global section first and every
// other section and key sorted, so identical state always yields identical
// bytes.
func encodeDocument(sections map[string]map[string]Value) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range sortedSectionNames(sections) {
		body := &yaml.Node{Kind: yaml.MappingNode}
		sec := sections[name]
		for _, key := range slices.Sorted(maps.Keys(sec)) {
			body.Content = append(body.Content, stringNode(key), encodeValue(sec[key]))
		}
		root.Content = append(root.Content, stringNode(name), body)
	}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	return yaml.Marshal(doc)
}

func stringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func encodeValue(v Value) *yaml.Node {
	switch v.kind {
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.b)}
	case KindInt:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(v.i)}
	case KindDouble:
		return floatNode(v.d)
	case KindDoubleList:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, f := range v.list {
			seq.Content = append(seq.Content, floatNode(f))
		}
		return seq
	default:
		return stringNode(v.s)
	}
}

// floatNode always renders a float literal ("5.0", not "5") so the value
// reloads as a double.
func floatNode(f float64) *yaml.Node {
	var text string
	switch {
	case math.IsNaN(f):
		text = ".nan"
	case math.IsInf(f, 1):
		text = ".inf"
	case math.IsInf(f, -1):
		text = "-.inf"
	default:
		text = strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(text, ".eE") {
			text += ".0"
		}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: text}
}

func sortedSectionNames(sections map[string]map[string]Value) []string {
	names := make([]string, 0, len(sections))
	for name := range sections {
		if name != GlobalSection {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	if _, ok := sections[GlobalSection]; ok {
		names = append([]string{GlobalSection}, names...)
	}
	return names
}
