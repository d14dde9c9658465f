// Package literal converts YAML values to the canonical strings stored in a
// types.Table and parses those strings back into typed values.
//
// Scalars keep their verbatim source text, so 1 stays "1" and 0.0 stays
// "0.0". Sequences and mappings are rendered as single-line flow YAML, which
// Parse accepts again.
package literal

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/notesync/pkg/types"
)

// YAML core tags as reported by yaml.Node.ShortTag.
const (
	tagNull      = "!!null"
	tagBool      = "!!bool"
	tagInt       = "!!int"
	tagFloat     = "!!float"
	tagStr       = "!!str"
	tagTimestamp = "!!timestamp"
	tagSeq       = "!!seq"
	tagMap       = "!!map"
)

// ErrNotLiteral is returned by Parse for text that is not a literal.
var ErrNotLiteral = errors.New("not a literal")

// Kind classifies a parsed Value.
type Kind int

// Value kinds.
const (
	KindString Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindTimestamp
	KindList
	KindMap
)

var kindNames = map[Kind]string{
	KindString:    "string",
	KindNull:      "null",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindTimestamp: "timestamp",
	KindList:      "list",
	KindMap:       "map",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Canonical returns the canonical table form of a YAML value node.
func Canonical(n *yaml.Node) string {
	if n == nil {
		return types.ExplicitNull
	}
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		return Canonical(n.Alias)
	}
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() == tagNull {
			return types.ExplicitNull
		}
		return strings.TrimSpace(n.Value)
	case yaml.SequenceNode, yaml.MappingNode:
		return flow(n)
	default:
		return strings.TrimSpace(n.Value)
	}
}

// flow renders a collection node as one line of flow-style YAML.
func flow(n *yaml.Node) string {
	c := stripped(n)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return strings.TrimSpace(n.Value)
	}
	_ = enc.Close()

	// The encoder may fold long flow collections; a line break between
	// flow items is equivalent to a single space.
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, " ")
}

// stripped deep-copies n without comments and with flow style on every
// collection.
func stripped(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		return stripped(n.Alias)
	}
	c := &yaml.Node{
		Kind:  n.Kind,
		Style: n.Style &^ (yaml.FlowStyle | yaml.LiteralStyle | yaml.FoldedStyle),
		Tag:   n.Tag,
		Value: n.Value,
	}
	if n.Kind == yaml.SequenceNode || n.Kind == yaml.MappingNode {
		c.Style |= yaml.FlowStyle
	}
	if n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		c.Style |= yaml.DoubleQuotedStyle
	}
	for _, child := range n.Content {
		c.Content = append(c.Content, stripped(child))
	}
	return c
}

// Value is a typed literal backed by a YAML node.
type Value struct {
	node *yaml.Node
}

// Parse interprets s as a literal. Plain scalars resolving to null, bool,
// int, float or timestamp, quoted scalars and flow collections are
// literals; anything else returns ErrNotLiteral.
func Parse(s string) (*Value, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, ErrNotLiteral
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotLiteral, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, ErrNotLiteral
	}
	n := doc.Content[0]
	if n.HeadComment != "" || n.LineComment != "" || n.FootComment != "" || doc.FootComment != "" {
		return nil, ErrNotLiteral
	}

	switch n.Kind {
	case yaml.ScalarNode:
		if n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) != 0 {
			return &Value{node: n}, nil
		}
		if n.Style != 0 || n.ShortTag() == tagStr {
			return nil, ErrNotLiteral
		}
		return &Value{node: n}, nil
	case yaml.SequenceNode, yaml.MappingNode:
		if n.Style&yaml.FlowStyle == 0 {
			return nil, ErrNotLiteral
		}
		return &Value{node: n}, nil
	default:
		return nil, ErrNotLiteral
	}
}

// Kind reports the value's kind.
func (v *Value) Kind() Kind {
	switch v.node.Kind {
	case yaml.SequenceNode:
		return KindList
	case yaml.MappingNode:
		return KindMap
	}
	switch v.node.ShortTag() {
	case tagNull:
		return KindNull
	case tagBool:
		return KindBool
	case tagInt:
		return KindInt
	case tagFloat:
		return KindFloat
	case tagTimestamp:
		return KindTimestamp
	default:
		return KindString
	}
}

// Float returns the numeric value of an int or float literal.
func (v *Value) Float() (float64, bool) {
	k := v.Kind()
	if k != KindInt && k != KindFloat {
		return 0, false
	}
	var f float64
	if err := v.node.Decode(&f); err != nil {
		return 0, false
	}
	return f, true
}

// Items returns the elements of a list literal, or nil for other kinds.
func (v *Value) Items() []*Value {
	if v.node.Kind != yaml.SequenceNode {
		return nil
	}
	items := make([]*Value, len(v.node.Content))
	for i, c := range v.node.Content {
		if c.Kind == yaml.AliasNode && c.Alias != nil {
			c = c.Alias
		}
		items[i] = &Value{node: c}
	}
	return items
}

// String returns the canonical form of the value.
func (v *Value) String() string {
	return Canonical(v.node)
}

// Node returns a copy of the value's node ready to be placed in a
// document. Quoted strings lose their quoting style so the encoder picks
// one; collections are emitted in block style.
func (v *Value) Node() *yaml.Node {
	return blockCopy(v.node)
}

func blockCopy(n *yaml.Node) *yaml.Node {
	c := &yaml.Node{
		Kind:  n.Kind,
		Tag:   n.Tag,
		Value: n.Value,
	}
	if n.Kind == yaml.ScalarNode && n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) != 0 {
		c.Tag = tagStr
	}
	for _, child := range n.Content {
		c.Content = append(c.Content, blockCopy(child))
	}
	return c
}

// StringNode returns a plain string scalar node holding s.
func StringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagStr, Value: s}
}

// NullNode returns a null scalar node.
func NullNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagNull, Value: "null"}
}
