package jsast

import "iter"

// ScopeID is a handle into a Tree's scope arena.
type ScopeID int32

// NoScope is returned for nodes outside any known scope.
const NoScope ScopeID = -1

// ModuleScope is the root scope of every resolved tree.
const ModuleScope ScopeID = 0

// ScopeKind classifies a lexical scope.
type ScopeKind uint8

const (
	ScopeModule ScopeKind = iota
	// ScopeFunction holds parameters and body declarations of a function, arrow or method.
	ScopeFunction
	ScopeBlock
	ScopeCatch
	ScopeClass
	ScopeFor
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeModule:
		return "module"
	case ScopeFunction:
		return "function"
	case ScopeBlock:
		return "block"
	case ScopeCatch:
		return "catch"
	case ScopeClass:
		return "class"
	case ScopeFor:
		return "for"
	default:
		return "unknown"
	}
}

// BindingKind is the declaration form that introduced a binding.
type BindingKind uint8

const (
	BindingVar BindingKind = iota
	BindingLet
	BindingConst
	BindingFunction
	BindingClass
	BindingParameter
	BindingImport
	BindingCatch
)

func (k BindingKind) String() string {
	return [...]string{"var", "let", "const", "function", "class", "parameter", "import", "catch"}[k]
}

// Binding is a declared name.
type Binding struct {
	Name  string
	Kind  BindingKind
	Scope ScopeID
	// Decl is the identifier node at the declaration site.
	Decl NodeID
}

// Scope is a node in the scope tree.
type Scope struct {
	Kind     ScopeKind
	Parent   ScopeID
	Node     NodeID
	Bindings map[string]*Binding
}

// Scope returns the scope for id.
func (t *Tree) Scope(id ScopeID) *Scope {
	return &t.scopes[id]
}

// Scopes returns the number of scopes in the tree.
func (t *Tree) Scopes() int {
	return len(t.scopes)
}

// OwnScope returns the scope introduced by node, or NoScope if node does not
// open one. Function-like nodes own the scope holding their parameters.
func (t *Tree) OwnScope(node NodeID) ScopeID {
	if s, ok := t.nodeScope[node]; ok {
		return s
	}

	return NoScope
}

// ScopeOf returns the innermost scope node appears in. Nodes created after
// resolution report the scope of their nearest original ancestor.
func (t *Tree) ScopeOf(node NodeID) ScopeID {
	for n := node; n != NoNode; n = t.Parent(n) {
		if int(n) < len(t.inScope) {
			return t.inScope[n]
		}
	}

	return NoScope
}

// Lookup resolves name starting at scope and walking outward. It returns nil
// for names with no declaration in the chain.
func (t *Tree) Lookup(scope ScopeID, name string) *Binding {
	for s := scope; s != NoScope; s = t.scopes[s].Parent {
		if b, ok := t.scopes[s].Bindings[name]; ok {
			return b
		}
	}

	return nil
}

// IsWithin reports whether scope is ancestor or one of its descendants.
func (t *Tree) IsWithin(scope, ancestor ScopeID) bool {
	for s := scope; s != NoScope; s = t.scopes[s].Parent {
		if s == ancestor {
			return true
		}
	}

	return false
}

// IsReference reports whether the identifier node is a use of a name rather
// than a declaration, property key or type.
func (t *Tree) IsReference(node NodeID) bool {
	_, ok := t.refs[node]
	return ok
}

// BindingOf returns the binding a reference resolves to, or nil when the name
// is ambient (global or undeclared).
func (t *Tree) BindingOf(ref NodeID) *Binding {
	return t.bindingOf[ref]
}

// References yields the reference identifiers in the subtree rooted at node.
func (t *Tree) References(node NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		for n := range t.Preorder(node) {
			if t.IsReference(n) && !yield(n) {
				return
			}
		}
	}
}
