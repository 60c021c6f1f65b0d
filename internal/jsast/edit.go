package jsast

import "slices"

// KindRaw marks synthetic leaves holding verbatim source text.
const KindRaw = "raw"

// AppendChild links child as the last child of parent.
func (t *Tree) AppendChild(parent, child NodeID) {
	t.Detach(child)
	t.nodes[child].Parent = parent
	t.nodes[parent].Children = append(t.nodes[parent].Children, child)
}

// Raw allocates a detached synthetic leaf printing text verbatim.
func (t *Tree) Raw(text string) NodeID {
	return t.Add(Node{Kind: KindRaw, Text: text, Synthetic: true})
}

// Compose allocates a synthetic inner node of kind whose children are parts,
// in order. Parts that are attached elsewhere are moved.
func (t *Tree) Compose(kind string, parts ...NodeID) NodeID {
	id := t.Add(Node{Kind: kind, Named: true, Synthetic: true})
	for _, p := range parts {
		t.AppendChild(id, p)
	}

	return id
}

// Wrap replaces old with a synthetic node of kind built from parts, which
// may include old itself. The new node takes over old's slot and leading text.
func (t *Tree) Wrap(old NodeID, kind string, parts ...NodeID) NodeID {
	id := t.Add(Node{Kind: kind, Named: true, Synthetic: true})
	t.Replace(old, id)

	for _, p := range parts {
		t.AppendChild(id, p)
	}

	return id
}

// SetKind changes the kind of id, e.g. to turn a declaration into an
// expression without touching its text.
func (t *Tree) SetKind(id NodeID, kind string) {
	t.nodes[id].Kind = kind
}

// SetLeading replaces the whitespace printed before id.
func (t *Tree) SetLeading(id NodeID, leading string) {
	t.nodes[id].Leading = leading
}

// Detach unlinks id from its parent. It is a no-op for detached nodes.
func (t *Tree) Detach(id NodeID) {
	parent := t.nodes[id].Parent
	if parent == NoNode {
		return
	}

	siblings := t.nodes[parent].Children
	if i := slices.Index(siblings, id); i >= 0 {
		t.nodes[parent].Children = slices.Delete(siblings, i, i+1)
	}

	t.nodes[id].Parent = NoNode
}

// Remove unlinks id together with its leading whitespace. If id was the first
// child, its leading text is handed to the new first sibling so indentation of
// the enclosing construct is preserved.
func (t *Tree) Remove(id NodeID) {
	parent := t.nodes[id].Parent
	if parent == NoNode {
		return
	}

	if t.Index(id) == 0 && len(t.nodes[parent].Children) > 1 {
		next := t.nodes[parent].Children[1]
		t.nodes[next].Leading = t.nodes[id].Leading
	}

	t.Detach(id)
}

// Replace puts repl in old's slot. repl inherits old's leading whitespace and
// field name; old is left detached.
func (t *Tree) Replace(old, repl NodeID) {
	parent := t.nodes[old].Parent
	if parent == NoNode {
		if t.Root == old {
			t.nodes[repl].Leading = t.nodes[old].Leading
			t.Root = repl
		}

		return
	}

	t.Detach(repl)

	i := t.Index(old)
	t.nodes[repl].Leading = t.nodes[old].Leading
	t.nodes[repl].Field = t.nodes[old].Field
	t.nodes[repl].Parent = parent
	t.nodes[parent].Children[i] = repl
	t.nodes[old].Parent = NoNode
	t.nodes[old].Leading = ""
}

// InsertChild links n as the index-th child of parent.
func (t *Tree) InsertChild(parent NodeID, index int, n NodeID) {
	t.Detach(n)
	t.nodes[n].Parent = parent
	t.nodes[parent].Children = slices.Insert(t.nodes[parent].Children, index, n)
}

// InsertBefore links n as the sibling immediately before ref.
func (t *Tree) InsertBefore(ref, n NodeID) {
	t.InsertChild(t.nodes[ref].Parent, t.Index(ref), n)
}

// InsertAfter links n as the sibling immediately after ref.
func (t *Tree) InsertAfter(ref, n NodeID) {
	t.InsertChild(t.nodes[ref].Parent, t.Index(ref)+1, n)
}

// ChildToken returns the first direct anonymous child of id spelled tok, or NoNode.
func (t *Tree) ChildToken(id NodeID, tok string) NodeID {
	for _, c := range t.nodes[id].Children {
		if !t.nodes[c].Named && t.nodes[c].Kind == tok {
			return c
		}
	}

	return NoNode
}

// Origin returns the position of id, or of its nearest non-synthetic
// ancestor when id was created by a rewrite.
func (t *Tree) Origin(id NodeID) Position {
	for n := id; n != NoNode; n = t.Parent(n) {
		if !t.nodes[n].Synthetic {
			return t.nodes[n].Pos
		}
	}

	return Position{}
}
