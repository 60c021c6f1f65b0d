// Package jsast holds a mutable JavaScript/TypeScript syntax tree stored as an
// arena of nodes addressed by integer handles, together with the lexical scope
// tree computed for it.
//
// Nodes keep the exact whitespace that preceded them in the original source, so
// printing an unmodified tree reproduces the input byte for byte and edits only
// disturb the text they touch.
package jsast

import (
	"fmt"
	"iter"
	"strings"
)

// NodeID is a handle into a Tree's node arena.
type NodeID int32

// NoNode is the zero handle; it never names a real node.
const NoNode NodeID = -1

// Position is a 1-based line/column location plus the byte offset in the
// original source.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid reports whether the position refers to a real source location.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Node is a single syntax node. Leaves carry Text; inner nodes carry Children.
type Node struct {
	Kind  string
	Field string // field name in the parent, if any
	Named bool

	// Text is the source text of a leaf.
	Text string
	// Leading is the text between the previous sibling (or parent start) and this node.
	Leading string
	// Trailing is the text between the last child and the end of this node.
	Trailing string

	Parent   NodeID
	Children []NodeID
	Pos      Position

	// Synthetic nodes were created by a rewrite and have no source position.
	Synthetic bool
}

// Tree is a syntax tree plus its scope information.
type Tree struct {
	Path   string
	Source []byte
	Root   NodeID

	nodes []Node

	scopes    []Scope
	nodeScope map[NodeID]ScopeID // scope introduced by a node
	inScope   []ScopeID          // innermost scope enclosing each original node
	bindingOf map[NodeID]*Binding
	refs      map[NodeID]struct{}
}

// NewTree returns an empty tree for path/source. Builders add nodes with Add.
func NewTree(path string, source []byte) *Tree {
	return &Tree{
		Path:      path,
		Source:    source,
		Root:      NoNode,
		nodeScope: make(map[NodeID]ScopeID),
		bindingOf: make(map[NodeID]*Binding),
		refs:      make(map[NodeID]struct{}),
	}
}

// Add appends n to the arena, detached, and returns its handle. Link it with
// AppendChild or one of the insertion helpers.
func (t *Tree) Add(n Node) NodeID {
	id := NodeID(len(t.nodes))
	n.Parent = NoNode
	n.Children = nil

	t.nodes = append(t.nodes, n)

	return id
}

// Len returns the number of nodes ever allocated, including detached ones.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node for id. It panics on an invalid handle.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// Kind returns the node kind, or "" for NoNode.
func (t *Tree) Kind(id NodeID) string {
	if id == NoNode {
		return ""
	}

	return t.nodes[id].Kind
}

// Parent returns the parent handle or NoNode.
func (t *Tree) Parent(id NodeID) NodeID {
	if id == NoNode {
		return NoNode
	}

	return t.nodes[id].Parent
}

// Children returns the child handles of id. The slice must not be modified.
func (t *Tree) Children(id NodeID) []NodeID {
	return t.nodes[id].Children
}

// NamedChildren returns the named children of id.
func (t *Tree) NamedChildren(id NodeID) []NodeID {
	var named []NodeID

	for _, c := range t.nodes[id].Children {
		if t.nodes[c].Named {
			named = append(named, c)
		}
	}

	return named
}

// Field returns the first child of id stored under field, or NoNode.
func (t *Tree) Field(id NodeID, field string) NodeID {
	if id == NoNode {
		return NoNode
	}

	for _, c := range t.nodes[id].Children {
		if t.nodes[c].Field == field {
			return c
		}
	}

	return NoNode
}

// FieldAll returns every child of id stored under field.
func (t *Tree) FieldAll(id NodeID, field string) []NodeID {
	var out []NodeID

	for _, c := range t.nodes[id].Children {
		if t.nodes[c].Field == field {
			out = append(out, c)
		}
	}

	return out
}

// HasToken reports whether id has a direct anonymous child whose text is tok,
// e.g. the "async" keyword of a function.
func (t *Tree) HasToken(id NodeID, tok string) bool {
	for _, c := range t.nodes[id].Children {
		n := &t.nodes[c]
		if !n.Named && n.Kind == tok {
			return true
		}
	}

	return false
}

// Index returns the position of child within its parent's children, or -1.
func (t *Tree) Index(child NodeID) int {
	parent := t.nodes[child].Parent
	if parent == NoNode {
		return -1
	}

	for i, c := range t.nodes[parent].Children {
		if c == child {
			return i
		}
	}

	return -1
}

// Ancestors yields the parents of id from the nearest outward.
func (t *Tree) Ancestors(id NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		for p := t.Parent(id); p != NoNode; p = t.Parent(p) {
			if !yield(p) {
				return
			}
		}
	}
}

// Preorder yields id and all its descendants, parents before children.
// The subtree is snapshotted per node, so callers may mutate nodes they have
// already been handed.
func (t *Tree) Preorder(id NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		t.preorder(id, yield)
	}
}

func (t *Tree) preorder(id NodeID, yield func(NodeID) bool) bool {
	if !yield(id) {
		return false
	}

	children := append([]NodeID(nil), t.nodes[id].Children...)
	for _, c := range children {
		if !t.preorder(c, yield) {
			return false
		}
	}

	return true
}

// Contains reports whether node lies inside (or is) ancestor.
func (t *Tree) Contains(ancestor, node NodeID) bool {
	for n := node; n != NoNode; n = t.Parent(n) {
		if n == ancestor {
			return true
		}
	}

	return false
}

// Text returns the printed source of the subtree rooted at id, without its
// leading whitespace.
func (t *Tree) Text(id NodeID) string {
	var b strings.Builder
	t.print(&b, id)

	return b.String()
}

// Print renders the whole tree.
func (t *Tree) Print() string {
	if t.Root == NoNode {
		return string(t.Source)
	}

	var b strings.Builder
	b.WriteString(t.nodes[t.Root].Leading)
	t.print(&b, t.Root)

	return b.String()
}

func (t *Tree) print(b *strings.Builder, id NodeID) {
	n := &t.nodes[id]
	if len(n.Children) == 0 {
		b.WriteString(n.Text)
		b.WriteString(n.Trailing)

		return
	}

	for _, c := range n.Children {
		b.WriteString(t.nodes[c].Leading)
		t.print(b, c)
	}

	b.WriteString(n.Trailing)
}
