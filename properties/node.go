package properties

import (
	"strings"
)

// Kind of value a node holds.
type Kind int

const (
	// KindScalar a single string.
	KindScalar Kind = iota
	// KindList an ordered sequence of strings.
	KindList
	// KindMap an ordered mapping of segment to node.
	KindMap
)

func (t Kind) String() string {
	switch t {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	default:
		return "map"
	}
}

// Scalar node.
func Scalar(s string) *Node {
	return &Node{kind: KindScalar, scalar: s}
}

// List node.
func List(values ...string) *Node {
	return &Node{kind: KindList, list: append([]string{}, values...)}
}

// Map node, children retain their insertion order.
func Map() *Node {
	return &Node{kind: KindMap, children: map[string]*Node{}}
}

// Node a value within the store.
type Node struct {
	kind     Kind
	scalar   string
	list     []string
	keys     []string
	children map[string]*Node
}

// Kind of the node.
func (t *Node) Kind() Kind {
	return t.kind
}

// Value of a scalar, lists are joined by commas, maps have no value.
func (t *Node) Value() string {
	switch t.kind {
	case KindScalar:
		return t.scalar
	case KindList:
		return strings.Join(t.list, ",")
	default:
		return ""
	}
}

// Values of a list, a scalar is a list of one.
func (t *Node) Values() []string {
	switch t.kind {
	case KindScalar:
		return []string{t.scalar}
	case KindList:
		return append([]string{}, t.list...)
	default:
		return nil
	}
}

// Keys of a map in insertion order.
func (t *Node) Keys() []string {
	return append([]string{}, t.keys...)
}

// Child of a map.
func (t *Node) Child(k string) (n *Node, ok bool) {
	if t.kind != KindMap {
		return nil, false
	}

	n, ok = t.children[k]
	return n, ok
}

// Clone deep copy of the node.
func (t *Node) Clone() *Node {
	if t == nil {
		return nil
	}

	switch t.kind {
	case KindScalar:
		return Scalar(t.scalar)
	case KindList:
		return List(t.list...)
	default:
		dup := Map()
		for _, k := range t.keys {
			dup.put(k, t.children[k].Clone())
		}
		return dup
	}
}

func (t *Node) put(k string, n *Node) {
	if _, ok := t.children[k]; !ok {
		t.keys = append(t.keys, k)
	}

	t.children[k] = n
}

func (t *Node) remove(k string) {
	if _, ok := t.children[k]; !ok {
		return
	}

	delete(t.children, k)
	for i, existing := range t.keys {
		if existing == k {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			return
		}
	}
}
