// Package docnode is the document-tree model: a thin, order-preserving
// vocabulary over *yaml.Node for the scalar/mapping/sequence variant the
// spec calls for. It is adapted from the teacher's formatNode/sortMappingNode
// walk over yaml.Node.Content (gopkg.in/yaml.v3 already keeps mapping pairs
// as a flat, ordered []*Node), but where the teacher reorders keys for
// cosmetic formatting, docnode never reorders: insertion order must survive
// unchanged because downstream consumers and content hashes depend on it.
package docnode

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML document into its root mapping/sequence/scalar node.
// The returned node is the DocumentNode's single child, matching what
// callers of the rest of this package expect to walk.
func Parse(text string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	if len(doc.Content) == 0 {
		return NewMapping(), nil
	}
	return doc.Content[0], nil
}

// NewMapping returns an empty, order-preserving mapping node.
func NewMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// NewSequence returns an empty sequence node.
func NewSequence() *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
}

// NewString returns a plain scalar string node.
func NewString(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// IsMapping reports whether node is a mapping node.
func IsMapping(node *yaml.Node) bool {
	return node != nil && node.Kind == yaml.MappingNode
}

// IsSequence reports whether node is a sequence node.
func IsSequence(node *yaml.Node) bool {
	return node != nil && node.Kind == yaml.SequenceNode
}

// IsScalar reports whether node is a scalar node.
func IsScalar(node *yaml.Node) bool {
	return node != nil && node.Kind == yaml.ScalarNode
}

// SingleKey returns the sole (key, value) pair of a mapping node that has
// exactly one entry, or ok=false otherwise. This is the shape the
// expression evaluator and directive discovery both test for ("a mapping
// with exactly one entry").
func SingleKey(node *yaml.Node) (key string, value *yaml.Node, ok bool) {
	if !IsMapping(node) || len(node.Content) != 2 {
		return "", nil, false
	}
	return node.Content[0].Value, node.Content[1], true
}

// Get returns the value associated with key in a mapping node, or nil if
// absent.
func Get(mapping *yaml.Node, key string) *yaml.Node {
	if !IsMapping(mapping) {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// Has reports whether a mapping node contains key.
func Has(mapping *yaml.Node, key string) bool {
	return Get(mapping, key) != nil
}

// Set inserts or replaces key's value in a mapping node, preserving the
// position of an existing key and appending new keys at the end (so
// discovery order for newly-synthesized keys matches traversal order).
func Set(mapping *yaml.Node, key string, value *yaml.Node) {
	keyNode := NewString(key)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content, keyNode, value)
}

// Delete removes key from a mapping node, if present.
func Delete(mapping *yaml.Node, key string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content = append(mapping.Content[:i], mapping.Content[i+2:]...)
			return
		}
	}
}

// Rename replaces oldKey with newKey in place (same position) and sets its
// value to newValue. Used by directive handlers that splice a
// (new-key, new-value) pair in place of the directive they consumed.
func Rename(mapping *yaml.Node, oldKey, newKey string, newValue *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == oldKey {
			mapping.Content[i] = NewString(newKey)
			mapping.Content[i+1] = newValue
			return
		}
	}
	Set(mapping, newKey, newValue)
}

// Keys returns a mapping node's keys in insertion order.
func Keys(mapping *yaml.Node) []string {
	if !IsMapping(mapping) {
		return nil
	}
	keys := make([]string, 0, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keys = append(keys, mapping.Content[i].Value)
	}
	return keys
}

// Clone performs a deep copy of node, used when a resource node must be
// mutated independently of the template it was read from (e.g. a
// per-resource traversal context).
func Clone(node *yaml.Node) *yaml.Node {
	if node == nil {
		return nil
	}
	clone := *node
	clone.Content = make([]*yaml.Node, len(node.Content))
	for i, child := range node.Content {
		clone.Content[i] = Clone(child)
	}
	return &clone
}

// Dump serialises node as YAML with the given indentation. Anchors and
// aliases are stripped before encoding (CloudFormation-style provisioners
// reject them), and trailing-space-only lines the encoder sometimes emits
// for empty block scalars are cleaned up the same way the teacher's
// formatter.cleanEmptyLines did after encoding docker-compose files.
func Dump(node *yaml.Node, indent int) (string, error) {
	sanitized := Clone(node)
	stripAnchors(sanitized)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indent)
	if err := enc.Encode(sanitized); err != nil {
		return "", fmt.Errorf("encoding template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding template: %w", err)
	}
	return cleanEmptyLines(buf.String()), nil
}

// DumpJSON renders node as JSON text via a generic interface{} decode —
// used for documents handed verbatim to an external API (a stack policy
// body) rather than reserialised as a CloudFormation template.
func DumpJSON(node *yaml.Node) (string, error) {
	var v interface{}
	if err := node.Decode(&v); err != nil {
		return "", fmt.Errorf("decoding node: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding json: %w", err)
	}
	return string(out), nil
}

func stripAnchors(node *yaml.Node) {
	if node == nil {
		return
	}
	node.Anchor = ""
	node.Alias = nil
	for _, child := range node.Content {
		stripAnchors(child)
	}
}

func cleanEmptyLines(text string) string {
	lines := bytes.Split([]byte(text), []byte("\n"))
	for i, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 && len(line) > 0 {
			lines[i] = []byte{}
		}
	}
	start := 0
	for start < len(lines) && len(bytes.TrimSpace(lines[start])) == 0 {
		start++
	}
	return string(bytes.Join(lines[start:], []byte("\n")))
}
