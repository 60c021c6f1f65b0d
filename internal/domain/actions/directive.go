package actions

import (
	"github.com/hbollon/go-edlib"

	"actionlift.dev/pkg/actionlift/internal/jsast"
)

// Directive marks a module or function as server-only.
const Directive = "use server"

// maxDirectiveTypo is the edit distance under which an unknown prologue
// string is reported as a probable misspelling of Directive.
const maxDirectiveTypo = 2

// Classify reports how node is marked: a program carrying the directive is a
// server file, a function whose body carries it is an inline action.
func Classify(tree *jsast.Tree, node jsast.NodeID) Mode {
	body := node
	if tree.Kind(node) != jsast.KindProgram {
		if !jsast.IsFunctionLike(tree.Kind(node)) {
			return NotMarked
		}

		body = tree.Field(node, "body")
		if tree.Kind(body) != jsast.KindStatementBlock {
			return NotMarked
		}
	}

	for _, stmt := range prologue(tree, body) {
		if directiveValue(tree, stmt) == Directive {
			if body == node {
				return ModuleServerFile
			}

			return InlineAction
		}
	}

	return NotMarked
}

func (s *state) classify(node jsast.NodeID) Mode {
	return Classify(s.tree, node)
}

// prologue returns the directive statements that open body.
func prologue(tree *jsast.Tree, body jsast.NodeID) []jsast.NodeID {
	var out []jsast.NodeID

	for _, c := range tree.Children(body) {
		n := tree.Node(c)

		switch {
		case !n.Named:
			if n.Kind == "{" {
				continue
			}

			return out
		case n.Kind == jsast.KindComment || n.Kind == "hash_bang_line":
			continue
		case directiveValue(tree, c) != "" || isEmptyDirective(tree, c):
			out = append(out, c)
		default:
			return out
		}
	}

	return out
}

// directiveValue returns the raw text of a directive statement without its
// quotes, or "" if stmt is not a lone string literal statement.
func directiveValue(tree *jsast.Tree, stmt jsast.NodeID) string {
	if tree.Kind(stmt) != jsast.KindExpressionStatement {
		return ""
	}

	named := tree.NamedChildren(stmt)
	if len(named) != 1 || tree.Kind(named[0]) != jsast.KindString {
		return ""
	}

	text := tree.Text(named[0])
	if len(text) < 2 {
		return ""
	}

	return text[1 : len(text)-1]
}

func isEmptyDirective(tree *jsast.Tree, stmt jsast.NodeID) bool {
	named := tree.NamedChildren(stmt)

	return tree.Kind(stmt) == jsast.KindExpressionStatement &&
		len(named) == 1 && tree.Kind(named[0]) == jsast.KindString && len(tree.Text(named[0])) == 2
}

// stripDirective removes every occurrence of the directive from the prologue
// of body, which is a program or a function node.
func (s *state) stripDirective(node jsast.NodeID) {
	t := s.tree

	body := node
	if t.Kind(node) != jsast.KindProgram {
		body = t.Field(node, "body")
		if t.Kind(body) != jsast.KindStatementBlock {
			return
		}
	}

	for _, stmt := range prologue(t, body) {
		if directiveValue(t, stmt) == Directive {
			t.Remove(stmt)
		}
	}
}

// collectCandidates returns every function carrying the directive, parents
// before children. It runs before any mutation.
func (s *state) collectCandidates() []jsast.NodeID {
	var out []jsast.NodeID

	for n := range s.tree.Preorder(s.tree.Root) {
		if jsast.IsFunctionLike(s.tree.Kind(n)) && s.classify(n) == InlineAction {
			out = append(out, n)
		}
	}

	return out
}

// nearMisses warns about prologue strings that look like a misspelt directive.
func (s *state) nearMisses() {
	t := s.tree

	check := func(body jsast.NodeID) {
		for _, stmt := range prologue(t, body) {
			v := directiveValue(t, stmt)
			if v == Directive || v == "" {
				continue
			}

			if edlib.LevenshteinDistance(v, Directive) <= maxDirectiveTypo {
				s.warn(stmt, "unknown directive %q, did you mean %q?", v, Directive)
			}
		}
	}

	for n := range t.Preorder(t.Root) {
		switch {
		case n == t.Root:
			check(n)
		case jsast.IsFunctionLike(t.Kind(n)):
			if body := t.Field(n, "body"); t.Kind(body) == jsast.KindStatementBlock {
				check(body)
			}
		}
	}
}
