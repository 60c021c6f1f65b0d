package jsast

import (
	"strings"
	"unicode"
)

// Resolve builds the scope tree and classifies every identifier as a
// declaration or a reference. It runs in two phases: all declarations are
// collected first so that hoisted functions and vars resolve regardless of
// source order, then every reference is looked up through its scope chain.
//
// Resolve must be called once, after the tree is fully built and before any
// rewrite.
func (t *Tree) Resolve() {
	r := &resolver{
		tree:  t,
		decls: make(map[NodeID]struct{}),
	}

	t.scopes = t.scopes[:0]
	t.inScope = make([]ScopeID, t.Len())
	for i := range t.inScope {
		t.inScope[i] = NoScope
	}

	module := r.push(ScopeModule, t.Root, NoScope)
	r.declare(t.Root, module)
	r.resolve(t.Root)
}

type resolver struct {
	tree  *Tree
	decls map[NodeID]struct{}
}

func (r *resolver) push(kind ScopeKind, node NodeID, parent ScopeID) ScopeID {
	t := r.tree
	id := ScopeID(len(t.scopes))
	t.scopes = append(t.scopes, Scope{
		Kind:     kind,
		Parent:   parent,
		Node:     node,
		Bindings: make(map[string]*Binding),
	})

	if node != NoNode {
		t.nodeScope[node] = id
	}

	return id
}

// bind records name in scope. The first declaration wins, which matches the
// runtime for var/function redeclarations.
func (r *resolver) bind(scope ScopeID, ident NodeID, kind BindingKind) {
	t := r.tree
	r.decls[ident] = struct{}{}

	name := t.Node(ident).Text
	if name == "" {
		return
	}

	if _, exists := t.scopes[scope].Bindings[name]; exists {
		return
	}

	t.scopes[scope].Bindings[name] = &Binding{Name: name, Kind: kind, Scope: scope, Decl: ident}
}

// varScope is the nearest function or module scope.
func (r *resolver) varScope(scope ScopeID) ScopeID {
	for s := scope; s != NoScope; s = r.tree.scopes[s].Parent {
		if k := r.tree.scopes[s].Kind; k == ScopeFunction || k == ScopeModule {
			return s
		}
	}

	return ModuleScope
}

// declare walks node in scope, opening child scopes and binding names.
func (r *resolver) declare(node NodeID, scope ScopeID) {
	t := r.tree
	t.inScope[node] = scope
	n := t.Node(node)

	if typeContexts[n.Kind] {
		r.markAll(node, scope)
		return
	}

	switch n.Kind {
	case KindFunctionDeclaration, KindGeneratorFunctionDeclaration:
		if name := t.Field(node, "name"); name != NoNode {
			t.inScope[name] = scope
			r.bind(scope, name, BindingFunction)
		}

		r.function(node, r.push(ScopeFunction, node, scope), "name")

		return

	case KindFunctionExpression, KindGeneratorFunction:
		own := r.push(ScopeFunction, node, scope)
		if name := t.Field(node, "name"); name != NoNode {
			t.inScope[name] = own
			r.bind(own, name, BindingFunction)
		}

		r.function(node, own, "name")

		return

	case KindArrowFunction:
		own := r.push(ScopeFunction, node, scope)
		if p := t.Field(node, "parameter"); p != NoNode {
			t.inScope[p] = own
			r.pattern(p, own, BindingParameter)
		}

		r.function(node, own, "parameter")

		return

	case KindMethodDefinition:
		// The key, computed or not, belongs to the enclosing scope.
		if key := t.Field(node, "name"); key != NoNode {
			r.declare(key, scope)
		}

		r.function(node, r.push(ScopeFunction, node, scope), "name")

		return

	case KindClassDeclaration, KindAbstractClassDeclaration:
		if name := t.Field(node, "name"); name != NoNode {
			t.inScope[name] = scope
			r.bind(scope, name, BindingClass)
		}

		own := r.push(ScopeClass, node, scope)
		r.children(node, own, "name")

		return

	case KindClass:
		own := r.push(ScopeClass, node, scope)
		if name := t.Field(node, "name"); name != NoNode {
			t.inScope[name] = own
			r.bind(own, name, BindingClass)
		}

		r.children(node, own, "name")

		return

	case KindEnumDeclaration:
		if name := t.Field(node, "name"); name != NoNode {
			t.inScope[name] = scope
			r.bind(scope, name, BindingConst)
		}

		r.children(node, scope, "name")

		return

	case KindStatementBlock, KindSwitchBody, KindClassStaticBlock:
		r.children(node, r.push(ScopeBlock, node, scope), "")
		return

	case KindForStatement, KindForInStatement:
		own := r.push(ScopeFor, node, scope)
		if n.Kind == KindForInStatement {
			if kind := t.Field(node, "kind"); kind != NoNode {
				left := t.Field(node, "left")
				target := own
				bk := bindingKindFor(t.Node(kind).Kind)
				if bk == BindingVar {
					target = r.varScope(scope)
				}

				if left != NoNode {
					r.markAll(left, own)
					r.pattern(left, target, bk)
				}
			}
		}

		r.children(node, own, "left")

		if left := t.Field(node, "left"); left != NoNode && t.inScope[left] == NoScope {
			r.declare(left, own)
		}

		return

	case KindCatchClause:
		own := r.push(ScopeCatch, node, scope)
		if p := t.Field(node, "parameter"); p != NoNode {
			r.markAll(p, own)
			r.pattern(p, own, BindingCatch)
		}

		r.children(node, own, "parameter")

		return

	case KindLexicalDeclaration, KindVariableDeclaration:
		kind := BindingVar
		target := r.varScope(scope)

		if n.Kind == KindLexicalDeclaration {
			kind = BindingLet
			if t.HasToken(node, "const") {
				kind = BindingConst
			}

			target = scope
		}

		for _, c := range t.Children(node) {
			t.inScope[c] = scope
			if t.Kind(c) != KindVariableDeclarator {
				r.declare(c, scope)
				continue
			}

			if name := t.Field(c, "name"); name != NoNode {
				r.markAll(name, scope)
				r.pattern(name, target, kind)
			}

			r.children(c, scope, "name")
		}

		return

	case KindImportStatement:
		r.markAll(node, scope)
		r.imports(node)

		return
	}

	r.children(node, scope, "")
}

// function declares the parameters and body of a function-like node in own.
// Children under skipField were handled by the caller.
func (r *resolver) function(node NodeID, own ScopeID, skipField string) {
	t := r.tree
	for _, c := range t.Children(node) {
		f := t.Node(c).Field
		if skipField != "" && f == skipField {
			continue
		}

		switch {
		case f == "parameters":
			t.inScope[c] = own
			for _, p := range t.Children(c) {
				t.inScope[p] = own
				r.parameter(p, own)
			}
		case f == "body" && t.Kind(c) == KindStatementBlock:
			// Body declarations share the parameter scope.
			t.inScope[c] = own
			r.children(c, own, "")
		default:
			r.declare(c, own)
		}
	}
}

func (r *resolver) parameter(p NodeID, own ScopeID) {
	t := r.tree
	if !t.Node(p).Named {
		return
	}

	target := p
	switch t.Kind(p) {
	case KindRequiredParameter, KindOptionalParameter:
		r.children(p, own, "pattern")
		target = t.Field(p, "pattern")
	case KindComment:
		return
	}

	if target == NoNode {
		return
	}

	r.markAll(target, own)
	r.pattern(target, own, BindingParameter)
}

func (r *resolver) children(node NodeID, scope ScopeID, skipField string) {
	t := r.tree
	for _, c := range t.Children(node) {
		if skipField != "" && t.Node(c).Field == skipField {
			continue
		}

		r.declare(c, scope)
	}
}

// markAll assigns scope to every node of a subtree without interpreting it.
// Patterns are then bound separately, and default values inside them still
// need a scope for resolution.
func (r *resolver) markAll(node NodeID, scope ScopeID) {
	for n := range r.tree.Preorder(node) {
		r.tree.inScope[n] = scope
	}
}

// pattern binds every name a destructuring target introduces.
func (r *resolver) pattern(node NodeID, scope ScopeID, kind BindingKind) {
	t := r.tree
	switch t.Kind(node) {
	case KindIdentifier, KindShorthandPropertyPattern:
		r.bind(scope, node, kind)
	case KindObjectPattern, KindArrayPattern, KindRestPattern:
		for _, c := range t.NamedChildren(node) {
			r.pattern(c, scope, kind)
		}
	case KindPairPattern:
		r.pattern(t.Field(node, "value"), scope, kind)
	case KindAssignmentPattern, KindObjectAssignmentPattern:
		r.pattern(t.Field(node, "left"), scope, kind)
	case KindRequiredParameter, KindOptionalParameter:
		r.pattern(t.Field(node, "pattern"), scope, kind)
	}
}

func (r *resolver) imports(node NodeID) {
	t := r.tree
	for n := range t.Preorder(node) {
		switch t.Kind(n) {
		case KindImportClause:
			for _, c := range t.Children(n) {
				if t.Kind(c) == KindIdentifier {
					r.bind(ModuleScope, c, BindingImport)
				}
			}
		case KindNamespaceImport:
			for _, c := range t.Children(n) {
				if t.Kind(c) == KindIdentifier {
					r.bind(ModuleScope, c, BindingImport)
				}
			}
		case KindImportSpecifier:
			local := t.Field(n, "alias")
			if local == NoNode {
				local = t.Field(n, "name")
			}

			if local != NoNode {
				r.bind(ModuleScope, local, BindingImport)
			}
		}
	}
}

func bindingKindFor(keyword string) BindingKind {
	switch keyword {
	case "let":
		return BindingLet
	case "const":
		return BindingConst
	default:
		return BindingVar
	}
}

// resolve is the second phase.
func (r *resolver) resolve(root NodeID) {
	t := r.tree
	for n := range t.Preorder(root) {
		if !r.isReference(n) {
			continue
		}

		t.refs[n] = struct{}{}
		if b := t.Lookup(t.inScope[n], t.Node(n).Text); b != nil {
			t.bindingOf[n] = b
		}
	}
}

func (r *resolver) isReference(n NodeID) bool {
	t := r.tree
	node := t.Node(n)

	switch node.Kind {
	case KindIdentifier, KindShorthandProperty:
	default:
		return false
	}

	if _, ok := r.decls[n]; ok {
		return false
	}

	if t.inScope[n] == NoScope {
		return false
	}

	parent := t.Parent(n)
	switch t.Kind(parent) {
	case KindImportSpecifier, KindImportClause, KindNamespaceImport, KindNamespaceExport:
		return false
	case KindExportSpecifier:
		if node.Field == "alias" {
			return false
		}

		// `export { a } from "m"` names a binding of another module.
		if t.Field(t.Parent(t.Parent(parent)), "source") != NoNode {
			return false
		}
	case "jsx_opening_element", "jsx_closing_element", "jsx_self_closing_element":
		if isIntrinsicElement(node.Text) {
			return false
		}
	}

	for a := range t.Ancestors(n) {
		if typeContexts[t.Kind(a)] {
			return false
		}
	}

	return true
}

// isIntrinsicElement reports whether a JSX tag names a host element such as
// div rather than a component binding.
func isIntrinsicElement(name string) bool {
	if name == "" || strings.Contains(name, "-") {
		return true
	}

	return unicode.IsLower(rune(name[0]))
}
