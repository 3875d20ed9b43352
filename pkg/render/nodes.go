package render

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

func str(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func integer(value int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.Itoa(value)}
}

func boolean(value bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatBool(value)}
}

func number(value float64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(value, 'f', -1, 64)}
}

func duration(d time.Duration) *yaml.Node {
	if d%time.Second == 0 {
		return str(fmt.Sprintf("%ds", d/time.Second))
	}

	return str(d.String())
}

func flowList(values []string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range values {
		seq.Content = append(seq.Content, str(v))
	}

	return seq
}

func list(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Content: items}
}

// mapping keeps insertion order, which is what makes the output order-stable.
type mapping struct {
	node *yaml.Node
}

func newMapping() *mapping {
	return &mapping{node: &yaml.Node{Kind: yaml.MappingNode}}
}

func (m *mapping) set(key string, value *yaml.Node) *mapping {
	m.node.Content = append(m.node.Content, str(key), value)

	return m
}

func (m *mapping) setMap(key string, value *mapping) *mapping {
	return m.set(key, value.node)
}
