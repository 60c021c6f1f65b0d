package actions

import (
	"slices"

	"actionlift.dev/pkg/actionlift/internal/jsast"
)

// FreeVariables returns the sorted names fn reads from enclosing function or
// block scopes. Globals, module-level bindings and anything declared inside fn
// are excluded since they stay visible, or stay local, once fn is hoisted.
func FreeVariables(tree *jsast.Tree, fn jsast.NodeID) []string {
	return freeVariables(tree, fn, "parameters", "parameter", "body")
}

// parameterCaptures reports whether fn's parameter list reads any variable
// from an enclosing function or block scope.
func parameterCaptures(tree *jsast.Tree, fn jsast.NodeID) bool {
	return len(freeVariables(tree, fn, "parameters", "parameter")) > 0
}

func freeVariables(tree *jsast.Tree, fn jsast.NodeID, fields ...string) []string {
	own := tree.OwnScope(fn)
	if own == jsast.NoScope {
		return nil
	}

	seen := make(map[string]bool)

	var names []string

	for _, part := range functionParts(tree, fn, fields...) {
		for ref := range tree.References(part) {
			b := tree.BindingOf(ref)
			if b == nil || b.Scope == jsast.ModuleScope || tree.IsWithin(b.Scope, own) {
				continue
			}

			if !seen[b.Name] {
				seen[b.Name] = true
				names = append(names, b.Name)
			}
		}
	}

	slices.Sort(names)

	return names
}

// functionParts are the children of fn in the given fields. Only parameters
// and body are evaluated inside fn's own scope; a method key is evaluated
// outside and stays at the original site.
func functionParts(tree *jsast.Tree, fn jsast.NodeID, fields ...string) []jsast.NodeID {
	var parts []jsast.NodeID

	for _, c := range tree.Children(fn) {
		if slices.Contains(fields, tree.Node(c).Field) {
			parts = append(parts, c)
		}
	}

	return parts
}

// lexicalContext returns the first `this` or free `arguments` an arrow
// function inherits from its enclosing function, or NoNode. Nested regular
// functions and classes bind their own and are not searched.
func lexicalContext(tree *jsast.Tree, fn jsast.NodeID) jsast.NodeID {
	if tree.Kind(fn) != jsast.KindArrowFunction {
		return jsast.NoNode
	}

	var walk func(n jsast.NodeID) jsast.NodeID
	walk = func(n jsast.NodeID) jsast.NodeID {
		switch kind := tree.Kind(n); {
		case kind == "this":
			return n
		case kind == jsast.KindIdentifier && tree.Text(n) == "arguments" &&
			tree.IsReference(n) && tree.BindingOf(n) == nil:
			return n
		case kind == jsast.KindClass || kind == jsast.KindClassDeclaration:
			return jsast.NoNode
		case n != fn && jsast.IsFunctionLike(kind) && kind != jsast.KindArrowFunction:
			return jsast.NoNode
		}

		for _, c := range tree.Children(n) {
			if found := walk(c); found != jsast.NoNode {
				return found
			}
		}

		return jsast.NoNode
	}

	return walk(fn)
}
