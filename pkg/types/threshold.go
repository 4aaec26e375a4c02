package types

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
)

// NodeKind tags a threshold tree node as a leaf value or a nested branch.
type NodeKind int

const (
	LeafNode NodeKind = iota
	BranchNode
)

// Node is one entry of a ThresholdTree: either a leaf carrying a scalar or
// list value, or a branch carrying a nested Tree.
type Node struct {
	kind     NodeKind
	value    any
	children Tree
}

// Tree is an arbitrarily nested threshold configuration keyed by name.
type Tree map[string]*Node

// Leaf returns a leaf node. Integer values are normalized to float64.
func Leaf(v any) *Node {
	return &Node{kind: LeafNode, value: normalizeScalar(v)}
}

// Branch returns a branch node wrapping t.
func Branch(t Tree) *Node {
	if t == nil {
		t = Tree{}
	}
	return &Node{kind: BranchNode, children: t}
}

// Kind returns the node tag.
func (n *Node) Kind() NodeKind { return n.kind }

// IsBranch reports whether n holds a nested tree.
func (n *Node) IsBranch() bool { return n != nil && n.kind == BranchNode }

// Value returns the leaf value, or nil for branches.
func (n *Node) Value() any {
	if n == nil || n.kind != LeafNode {
		return nil
	}
	return n.value
}

// Children returns the nested tree of a branch, or nil for leaves.
func (n *Node) Children() Tree {
	if n == nil || n.kind != BranchNode {
		return nil
	}
	return n.children
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	if n.kind == BranchNode {
		return Branch(n.children.Clone())
	}
	return &Node{kind: LeafNode, value: cloneValue(n.value)}
}

// absent reports whether the node carries no override: a nil node, a nil leaf or a NaN leaf.
func (n *Node) absent() bool {
	if n == nil {
		return true
	}
	if n.kind == BranchNode {
		return false
	}
	if n.value == nil {
		return true
	}
	f, ok := n.value.(float64)
	return ok && math.IsNaN(f)
}

// Clone returns a deep copy of t.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, n := range t {
		out[k] = n.Clone()
	}
	return out
}

// Merge deep-merges override onto base and returns a new tree. Where both
// sides hold branches the merge recurses; otherwise the override node replaces
// the base node wholesale. Absent override values (nil, NaN) never erase a
// base value. Neither input is modified.
func Merge(base, override Tree) Tree {
	out := base.Clone()
	if out == nil {
		out = Tree{}
	}
	for k, o := range override {
		if o.absent() {
			continue
		}
		if b, ok := out[k]; ok && b.IsBranch() && o.IsBranch() {
			out[k] = Branch(Merge(b.children, o.children))
			continue
		}
		out[k] = o.Clone()
	}
	return out
}

// Lookup walks path through nested branches.
func (t Tree) Lookup(path ...string) (*Node, bool) {
	cur := t
	for i, key := range path {
		n, ok := cur[key]
		if !ok || n == nil {
			return nil, false
		}
		if i == len(path)-1 {
			return n, true
		}
		if !n.IsBranch() {
			return nil, false
		}
		cur = n.children
	}
	return nil, false
}

// Float returns the numeric leaf at path.
func (t Tree) Float(path ...string) (float64, bool) {
	n, ok := t.Lookup(path...)
	if !ok {
		return 0, false
	}
	f, ok := n.Value().(float64)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Bool returns the boolean leaf at path.
func (t Tree) Bool(path ...string) (bool, bool) {
	n, ok := t.Lookup(path...)
	if !ok {
		return false, false
	}
	b, ok := n.Value().(bool)
	return b, ok
}

// Text returns the string leaf at path.
func (t Tree) Text(path ...string) (string, bool) {
	n, ok := t.Lookup(path...)
	if !ok {
		return "", false
	}
	s, ok := n.Value().(string)
	return s, ok
}

// Sub returns the branch at path, or nil.
func (t Tree) Sub(path ...string) Tree {
	n, ok := t.Lookup(path...)
	if !ok {
		return nil
	}
	return n.Children()
}

// Keys returns the sorted top-level keys.
func (t Tree) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TreeFromMap converts a decoded YAML/JSON document into a Tree. Nil and NaN
// values are dropped, since they never act as overrides.
func TreeFromMap(m map[string]any) Tree {
	out := make(Tree, len(m))
	for k, v := range m {
		if n := nodeFromAny(v); n != nil {
			out[k] = n
		}
	}
	return out
}

func nodeFromAny(v any) *Node {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return Branch(TreeFromMap(x))
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, vv := range x {
			m[fmt.Sprint(k)] = vv
		}
		return Branch(TreeFromMap(m))
	case Tree:
		return Branch(x.Clone())
	default:
		n := Leaf(x)
		if n.absent() {
			return nil
		}
		return n
	}
}

// ToMap converts t into plain nested maps suitable for any serializer.
func (t Tree) ToMap() map[string]any {
	out := make(map[string]any, len(t))
	for k, n := range t {
		if n == nil {
			continue
		}
		if n.kind == BranchNode {
			out[k] = n.children.ToMap()
		} else {
			out[k] = cloneValue(n.value)
		}
	}
	return out
}

// UnmarshalYAML decodes a YAML mapping into the tree.
func (t *Tree) UnmarshalYAML(node *yaml.Node) error {
	var m map[string]any
	if err := node.Decode(&m); err != nil {
		return fmt.Errorf("decoding threshold tree: %w", err)
	}
	*t = TreeFromMap(m)
	return nil
}

// MarshalYAML encodes the tree as a plain mapping.
func (t Tree) MarshalYAML() (any, error) {
	return t.ToMap(), nil
}

// UnmarshalJSON decodes a JSON object into the tree.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decoding threshold tree: %w", err)
	}
	*t = TreeFromMap(m)
	return nil
}

// MarshalJSON encodes the tree as a plain object with sorted keys.
func (t Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.ToMap())
}

func normalizeScalar(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case []any:
		return cloneValue(n)
	default:
		return v
	}
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(normalizeScalar(e))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return x
	}
}
