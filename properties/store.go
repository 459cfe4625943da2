package properties

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Reader read only access to the properties.
type Reader interface {
	Get(p Path) (*Node, error)
	GetOr(p Path, fallback *Node) *Node
	String(p Path) (string, error)
	StringOr(p Path, fallback string) string
	Strings(p Path) ([]string, error)
	Bool(p Path) bool
	Int(p Path) (int, error)
	Members(group string) []string
}

// Editor read and write access to the properties.
type Editor interface {
	Reader
	Set(p Path, n *Node) error
	SetString(p Path, s string) error
	Delete(p Path) error
}

// New empty store.
func New() *Store {
	return &Store{root: Map()}
}

// Store owns the root of the property tree. every method is guarded by a single
// lock, use Update for read-modify-write sequences that must not interleave
// with other writers.
type Store struct {
	m    sync.RWMutex
	root *Node
}

// Get the node at the path, applying default inheritance. the returned node is a copy.
func (t *Store) Get(p Path) (*Node, error) {
	t.m.RLock()
	defer t.m.RUnlock()
	return tree{root: t.root}.Get(p)
}

// GetOr the node at the path or the fallback.
func (t *Store) GetOr(p Path, fallback *Node) *Node {
	t.m.RLock()
	defer t.m.RUnlock()
	return tree{root: t.root}.GetOr(p, fallback)
}

// String value at the path.
func (t *Store) String(p Path) (string, error) {
	t.m.RLock()
	defer t.m.RUnlock()
	return tree{root: t.root}.String(p)
}

// StringOr value at the path or the fallback.
func (t *Store) StringOr(p Path, fallback string) string {
	t.m.RLock()
	defer t.m.RUnlock()
	return tree{root: t.root}.StringOr(p, fallback)
}

// Strings values at the path. scalars are split on commas.
func (t *Store) Strings(p Path) ([]string, error) {
	t.m.RLock()
	defer t.m.RUnlock()
	return tree{root: t.root}.Strings(p)
}

// Bool value at the path, missing or unparseable values are false.
func (t *Store) Bool(p Path) bool {
	t.m.RLock()
	defer t.m.RUnlock()
	return tree{root: t.root}.Bool(p)
}

// Int value at the path.
func (t *Store) Int(p Path) (int, error) {
	t.m.RLock()
	defer t.m.RUnlock()
	return tree{root: t.root}.Int(p)
}

// Members of the group, excluding the defaults member, in insertion order.
func (t *Store) Members(group string) []string {
	t.m.RLock()
	defer t.m.RUnlock()
	return tree{root: t.root}.Members(group)
}

// Set the node at the path, creating intermediate maps. a nil node deletes the path.
func (t *Store) Set(p Path, n *Node) error {
	t.m.Lock()
	defer t.m.Unlock()
	return tree{root: t.root}.Set(p, n)
}

// SetString sets a scalar at the path.
func (t *Store) SetString(p Path, s string) error {
	return t.Set(p, Scalar(s))
}

// Delete the node at the path.
func (t *Store) Delete(p Path) error {
	return t.Set(p, nil)
}

// Update runs the function with exclusive access to the store.
func (t *Store) Update(do func(Editor) error) error {
	t.m.Lock()
	defer t.m.Unlock()
	return do(tree{root: t.root})
}

// Clone produces a deep, independent copy of the store.
func (t *Store) Clone() *Store {
	t.m.RLock()
	defer t.m.RUnlock()
	return &Store{root: t.root.Clone()}
}

// Flatten the store into its ordered assignments.
func (t *Store) Flatten() []Assignment {
	t.m.RLock()
	defer t.m.RUnlock()
	return flatten(nil, t.root, nil)
}

// Unflatten rebuilds a store from assignments.
func Unflatten(assignments ...Assignment) (s *Store, err error) {
	s = New()
	for _, a := range assignments {
		if err = s.Set(a.Path, a.Node); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Assignment of a value to a path.
type Assignment struct {
	Path Path
	Node *Node
}

func flatten(prefix Path, n *Node, dst []Assignment) []Assignment {
	if n.kind != KindMap {
		return append(dst, Assignment{Path: prefix.Clone(), Node: n.Clone()})
	}

	for _, k := range n.keys {
		dst = flatten(prefix.Append(k), n.children[k], dst)
	}

	return dst
}

// tree implements the store operations without locking.
type tree struct {
	root *Node
}

// lookup exact node, no default inheritance.
func (t tree) lookup(p Path) (*Node, error) {
	cur := t.root
	for i, seg := range p {
		if cur.kind != KindMap {
			return nil, InvalidPath{Path: p, Reason: fmt.Sprintf("'%s' is a %s", p[:i], cur.kind)}
		}

		next, ok := cur.children[seg]
		if !ok {
			return nil, MissingProperty{Path: p}
		}

		cur = next
	}

	return cur, nil
}

func (t tree) resolve(p Path) (n *Node, err error) {
	if err = p.validate(); err != nil {
		return nil, err
	}

	if n, err = t.lookup(p); err == nil || !IsMissing(err) {
		return n, err
	}

	fallback, ok := p.Member()
	if !ok {
		return nil, err
	}

	n, ferr := t.lookup(fallback)
	switch {
	case ferr == nil:
		return n, nil
	case IsMissing(ferr):
		return nil, err
	default:
		return nil, ferr
	}
}

func (t tree) Get(p Path) (*Node, error) {
	n, err := t.resolve(p)
	if err != nil {
		return nil, err
	}

	return n.Clone(), nil
}

func (t tree) GetOr(p Path, fallback *Node) *Node {
	n, err := t.Get(p)
	if err != nil {
		return fallback
	}

	return n
}

func (t tree) String(p Path) (string, error) {
	n, err := t.resolve(p)
	if err != nil {
		return "", err
	}

	if n.kind == KindMap {
		return "", InvalidPath{Path: p, Reason: "is a map"}
	}

	return n.Value(), nil
}

func (t tree) StringOr(p Path, fallback string) string {
	s, err := t.String(p)
	if err != nil {
		return fallback
	}

	return s
}

func (t tree) Strings(p Path) ([]string, error) {
	n, err := t.resolve(p)
	if err != nil {
		return nil, err
	}

	switch n.kind {
	case KindList:
		return n.Values(), nil
	case KindScalar:
		values := []string{}
		for _, v := range strings.Split(n.scalar, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		return values, nil
	default:
		return nil, InvalidPath{Path: p, Reason: "is a map"}
	}
}

func (t tree) Bool(p Path) bool {
	b, err := strconv.ParseBool(t.StringOr(p, "false"))
	return err == nil && b
}

func (t tree) Int(p Path) (int, error) {
	s, err := t.String(p)
	if err != nil {
		return 0, err
	}

	i, err := strconv.Atoi(strings.TrimSpace(s))
	return i, errors.Wrapf(err, "property %s is not an integer", p)
}

func (t tree) Members(group string) (members []string) {
	n, ok := t.root.Child(group)
	if !ok || n.kind != KindMap {
		return nil
	}

	for _, k := range n.keys {
		if k == Defaults {
			continue
		}
		members = append(members, k)
	}

	return members
}

func (t tree) Set(p Path, n *Node) error {
	if err := p.validate(); err != nil {
		return err
	}

	if n == nil {
		return t.remove(p)
	}

	cur := t.root
	for i, seg := range p[:len(p)-1] {
		child, ok := cur.children[seg]
		if !ok {
			child = Map()
			cur.put(seg, child)
		} else if child.kind != KindMap {
			return InvalidPath{Path: p, Reason: fmt.Sprintf("'%s' is a %s", p[:i+1], child.kind)}
		}

		cur = child
	}

	cur.put(p[len(p)-1], n.Clone())

	return nil
}

func (t tree) SetString(p Path, s string) error {
	return t.Set(p, Scalar(s))
}

func (t tree) Delete(p Path) error {
	return t.Set(p, nil)
}

func (t tree) remove(p Path) error {
	parent, err := t.lookup(p[:len(p)-1])
	switch {
	case IsMissing(err):
		return nil
	case err != nil:
		return err
	case parent.kind != KindMap:
		return InvalidPath{Path: p, Reason: fmt.Sprintf("'%s' is a %s", p[:len(p)-1], parent.kind)}
	}

	parent.remove(p[len(p)-1])
	return nil
}
