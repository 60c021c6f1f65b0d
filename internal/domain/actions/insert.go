package actions

import (
	"strconv"

	"actionlift.dev/pkg/actionlift/internal/jsast"
)

// placement says where a hoisted declaration goes relative to ref.
type placement struct {
	ref    jsast.NodeID
	before bool
}

// topStatement returns the direct child of the program that contains node.
func (s *state) topStatement(node jsast.NodeID) jsast.NodeID {
	t := s.tree
	for n := node; n != jsast.NoNode; n = t.Parent(n) {
		if t.Parent(n) == t.Root {
			return n
		}
	}

	return jsast.NoNode
}

// placeHoisted picks the insertion point for a declaration hoisted out of fn:
// right before the top-level declaration containing it, or after the last
// import when fn sits in a plain top-level statement that follows it.
func (s *state) placeHoisted(fn jsast.NodeID) (placement, error) {
	t := s.tree

	top := s.topStatement(fn)
	if top != jsast.NoNode && jsast.IsDeclarationStatement(t.Kind(top)) {
		return placement{ref: top, before: true}, nil
	}

	last := s.lastImport()
	if last == jsast.NoNode {
		return placement{}, s.fail(fn, CodeMissingEnclosingDeclaration,
			"no top-level declaration or import to anchor the hoisted action")
	}

	// Imports are hoisted by the loader but the var initializer is not.
	if top != jsast.NoNode && t.Index(top) < t.Index(last) {
		return placement{ref: top, before: true}, nil
	}

	return placement{ref: last}, nil
}

func (s *state) lastImport() jsast.NodeID {
	t := s.tree
	last := jsast.NoNode

	for _, c := range t.Children(t.Root) {
		if t.Kind(c) == jsast.KindImportStatement {
			last = c
		}
	}

	return last
}

// insertStatement links stmt at p, keeping the blank-line layout of the
// statement it is placed next to.
func (s *state) insertStatement(p placement, stmt jsast.NodeID) {
	t := s.tree

	if p.before {
		t.SetLeading(stmt, t.Node(p.ref).Leading)
		t.InsertBefore(p.ref, stmt)
		t.SetLeading(p.ref, "\n")

		return
	}

	t.SetLeading(stmt, "\n")
	t.InsertAfter(p.ref, stmt)
}

// register returns the local name of the registration function, adding the
// runtime import on first use. The import goes after any hashbang and
// remaining directives, ahead of every other statement.
func (s *state) register() string {
	if s.registerName != "" {
		return s.registerName
	}

	t := s.tree
	s.registerName = s.names.fresh(registerBase)

	imp := t.Raw("import { " + s.opts.RegisterName + " as " + s.registerName + " } from " +
		strconv.Quote(s.opts.RuntimeModule) + ";")

	children := t.Children(t.Root)
	index := 0

	for index < len(children) {
		c := children[index]
		if t.Kind(c) != "hash_bang_line" && directiveValue(t, c) == "" {
			break
		}

		index++
	}

	switch {
	case len(children) == 0:
		t.AppendChild(t.Root, imp)
	case index == 0:
		first := children[0]
		t.SetLeading(imp, t.Node(first).Leading)
		t.InsertChild(t.Root, 0, imp)
		t.SetLeading(first, "\n")
	default:
		t.SetLeading(imp, "\n")
		t.InsertChild(t.Root, index, imp)
	}

	t.Node(imp).Kind = jsast.KindImportStatement

	return s.registerName
}

// registration builds `$$register(<value>, "<file id>", "<name>")` around
// value, in value's slot when it is attached.
func (s *state) registration(value jsast.NodeID, name string) jsast.NodeID {
	t := s.tree
	head := t.Raw(s.register() + "(")
	tail := t.Raw(", " + strconv.Quote(s.fileID) + ", " + strconv.Quote(name) + ")")

	if t.Parent(value) != jsast.NoNode {
		return t.Wrap(value, "call_expression", head, value, tail)
	}

	t.SetLeading(value, "")

	return t.Compose("call_expression", head, value, tail)
}
