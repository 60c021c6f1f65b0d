package actions

import (
	"strings"

	"actionlift.dev/pkg/actionlift/internal/jsast"
)

// site is where a candidate function sits relative to the module body.
type site int

const (
	// siteNested functions live inside another function, block or expression
	// and must be hoisted.
	siteNested site = iota
	// siteTopDeclaration is a function declaration in the program body, possibly exported.
	siteTopDeclaration
	// siteTopDeclarator is the initializer of a top-level `const f = ...`.
	siteTopDeclarator
	// siteDefaultExport is the operand of `export default`.
	siteDefaultExport
)

func (s *state) siteOf(fn jsast.NodeID) site {
	t := s.tree
	parent := t.Parent(fn)

	switch t.Kind(fn) {
	case jsast.KindFunctionDeclaration, jsast.KindGeneratorFunctionDeclaration:
		if parent == t.Root {
			return siteTopDeclaration
		}

		if t.Kind(parent) == jsast.KindExportStatement && t.Parent(parent) == t.Root {
			if t.HasToken(parent, "default") {
				return siteDefaultExport
			}

			return siteTopDeclaration
		}

	case jsast.KindArrowFunction, jsast.KindFunctionExpression, jsast.KindGeneratorFunction:
		if t.Kind(parent) == jsast.KindExportStatement && t.Parent(parent) == t.Root && t.HasToken(parent, "default") {
			return siteDefaultExport
		}

		if t.Kind(parent) == jsast.KindVariableDeclarator && t.Node(fn).Field == "value" &&
			t.Kind(t.Field(parent, "name")) == jsast.KindIdentifier && s.isTopLevelDeclaration(t.Parent(parent)) {
			return siteTopDeclarator
		}
	}

	return siteNested
}

// isTopLevelDeclaration reports whether decl is a var/let/const statement in
// the program body or directly under a top-level export.
func (s *state) isTopLevelDeclaration(decl jsast.NodeID) bool {
	t := s.tree

	switch t.Kind(decl) {
	case jsast.KindLexicalDeclaration, jsast.KindVariableDeclaration:
	default:
		return false
	}

	p := t.Parent(decl)

	return p == t.Root || (t.Kind(p) == jsast.KindExportStatement && t.Parent(p) == t.Root)
}

func shapeOf(kind string) Shape {
	switch kind {
	case jsast.KindFunctionDeclaration, jsast.KindGeneratorFunctionDeclaration:
		return ShapeFunctionDeclaration
	case jsast.KindFunctionExpression, jsast.KindGeneratorFunction:
		return ShapeFunctionExpression
	case jsast.KindArrowFunction:
		return ShapeArrowFunction
	case jsast.KindMethodDefinition:
		return ShapeObjectMethod
	default:
		return ShapeValue
	}
}

// expressionKind is the expression form of a function declaration kind.
func expressionKind(kind string) string {
	if kind == jsast.KindGeneratorFunctionDeclaration {
		return jsast.KindGeneratorFunction
	}

	return jsast.KindFunctionExpression
}

// prepare strips fn's own directive, marks it processed and checks it is async.
func (s *state) prepare(fn jsast.NodeID) error {
	s.handled[fn] = true
	s.stripDirective(fn)

	if !s.tree.HasToken(fn, "async") {
		return s.fail(fn, CodeNotAsync, "server actions must be async functions")
	}

	return nil
}

// extractInline processes a function carrying its own directive.
func (s *state) extractInline(fn jsast.NodeID) error {
	t := s.tree

	if t.Kind(fn) == jsast.KindMethodDefinition && t.Kind(t.Parent(fn)) == jsast.KindClassBody {
		return s.fail(fn, CodeUnsupportedClassMethod, "class methods cannot be server actions")
	}

	if err := s.prepare(fn); err != nil {
		return err
	}

	switch s.siteOf(fn) {
	case siteTopDeclaration:
		s.registerDeclaration(fn)
	case siteTopDeclarator:
		s.registerDeclarator(t.Parent(fn))
	case siteDefaultExport:
		return s.exportDefault(t.Parent(fn))
	case siteNested:
		return s.hoist(fn)
	}

	return nil
}

// registerDeclaration rewrites a top-level `async function f() {}` into
// `var f = $$register(async function f() {}, id, "f");` in place, so exports
// naming f keep working.
func (s *state) registerDeclaration(fn jsast.NodeID) {
	t := s.tree
	name := t.Text(t.Field(fn, "name"))
	pos := t.Node(fn).Pos

	t.SetKind(fn, expressionKind(t.Kind(fn)))
	call := s.registration(fn, name)
	t.Wrap(call, jsast.KindVariableDeclaration, t.Raw("var "+name+" = "), call, t.Raw(";"))

	s.exportLater(name)
	s.record(Action{Name: name, Binding: name, LocalName: name, Shape: ShapeFunctionDeclaration, Pos: pos})
}

// registerDeclarator wraps the initializer of a top-level declarator in the
// registration call and turns the declaration into a var.
func (s *state) registerDeclarator(declarator jsast.NodeID) {
	t := s.tree
	name := t.Text(t.Field(declarator, "name"))
	value := t.Field(declarator, "value")
	shape := shapeOf(t.Kind(value))
	pos := t.Node(value).Pos

	s.registration(value, name)
	s.varKeyword(t.Parent(declarator))

	s.exportLater(name)
	s.record(Action{Name: name, Binding: name, LocalName: name, Shape: shape, Pos: pos})
}

// varKeyword turns a let/const declaration into a var declaration.
func (s *state) varKeyword(decl jsast.NodeID) {
	t := s.tree
	if t.Kind(decl) != jsast.KindLexicalDeclaration {
		return
	}

	for _, tok := range []string{"const", "let"} {
		if kw := t.ChildToken(decl, tok); kw != jsast.NoNode {
			t.Node(kw).Text = "var"
			t.SetKind(kw, "var")
		}
	}

	t.SetKind(decl, jsast.KindVariableDeclaration)
}

// exportLater queues a top-level action binding for the trailing export
// unless the file already exports it.
func (s *state) exportLater(name string) {
	if s.exported[name] {
		return
	}

	s.exported[name] = true
	s.trailing = append(s.trailing, name)
}

// hoist moves a nested action to module scope. The hoisted function takes its
// captures through a leading parameter and the original site is replaced by a
// reference bound to those captures.
func (s *state) hoist(fn jsast.NodeID) error {
	t := s.tree
	pos := t.Node(fn).Pos
	shape := shapeOf(t.Kind(fn))
	local := s.localName(fn)
	captures := FreeVariables(t, fn)
	inParams := parameterCaptures(t, fn)

	if n := lexicalContext(t, fn); n != jsast.NoNode {
		s.warn(n, "server action uses %q from its enclosing function, which is undefined once hoisted", t.Text(n))
	}

	// The runtime import must exist before placement so there is always an anchor.
	s.register()

	p, err := s.placeHoisted(fn)
	if err != nil {
		return err
	}

	name := s.names.fresh(inlineActionBase)

	ref := name
	if len(captures) > 0 {
		ref = name + ".bind(null, " + lazyCaptures(captures) + ")"
	}

	expr := s.replaceSite(fn, ref)
	if len(captures) > 0 {
		s.threadCaptures(expr, captures, inParams)
	}

	decl := t.Compose(jsast.KindVariableDeclaration,
		t.Raw("var "+name+" = "),
		s.registration(expr, name),
		t.Raw(";"),
	)
	s.insertStatement(p, decl)

	s.exported[name] = true
	s.trailing = append(s.trailing, name)
	s.record(Action{
		Name:      name,
		Binding:   name,
		LocalName: local,
		Captures:  captures,
		Shape:     shape,
		Hoisted:   true,
		Pos:       pos,
	})

	return nil
}

// lazyCaptures renders an object whose value getter packs the captured
// variables on first access and then caches them as a plain property.
func lazyCaptures(captures []string) string {
	return `{ get value() { return Object.defineProperty(this, "value", { value: [` +
		strings.Join(captures, ", ") + `] }).value; } }`
}

// replaceSite puts ref where fn was and returns fn detached and converted to a
// function expression.
func (s *state) replaceSite(fn jsast.NodeID, ref string) jsast.NodeID {
	t := s.tree

	switch t.Kind(fn) {
	case jsast.KindFunctionDeclaration, jsast.KindGeneratorFunctionDeclaration:
		name := t.Text(t.Field(fn, "name"))
		s.rebindDeclaration(fn, t.Raw("var "+name+" = "+ref+";"))
		t.SetKind(fn, expressionKind(t.Kind(fn)))

		return fn

	case jsast.KindMethodDefinition:
		key := t.Field(fn, "name")
		t.Replace(fn, t.Raw(t.Text(key)+": "+ref))

		return s.methodExpression(fn)

	default:
		t.Replace(fn, t.Raw(ref))
		return fn
	}
}

// rebindDeclaration replaces a nested function declaration with stmt. Function
// declarations are visible throughout their block, so stmt goes to the top of
// the block (after its directives) rather than where the declaration was.
func (s *state) rebindDeclaration(fn, stmt jsast.NodeID) {
	t := s.tree
	block := t.Parent(fn)

	if t.Kind(block) != jsast.KindStatementBlock {
		t.Replace(fn, stmt)
		return
	}

	leading := t.Node(fn).Leading
	t.Remove(fn)

	index := s.bodyStart(block)
	if children := t.Children(block); index < len(children) && t.Node(children[index]).Named {
		leading = t.Node(children[index]).Leading
	}

	t.SetLeading(stmt, leading)
	t.InsertChild(block, index, stmt)
}

// bodyStart is the child index of the first statement after the opening brace
// and any directives of block.
func (s *state) bodyStart(block jsast.NodeID) int {
	t := s.tree
	children := t.Children(block)

	index := 0
	if len(children) > 0 && t.Kind(children[0]) == "{" {
		index = 1
	}

	for index < len(children) && directiveValue(t, children[index]) != "" {
		index++
	}

	return index
}

// methodExpression builds `async function(<params>) <body>` from a detached
// object method. The method name is dropped so the body keeps resolving that
// name to whatever it referred to before.
func (s *state) methodExpression(method jsast.NodeID) jsast.NodeID {
	t := s.tree
	head := "async function"

	if t.HasToken(method, "*") {
		head += "*"
	}

	parts := []jsast.NodeID{t.Raw(head)}
	afterName := false

	for _, c := range append([]jsast.NodeID(nil), t.Children(method)...) {
		if t.Node(c).Field == "name" {
			afterName = true
			continue
		}

		if afterName {
			parts = append(parts, c)
		}
	}

	if len(parts) > 1 {
		t.SetLeading(parts[1], "")
	}

	kind := jsast.KindFunctionExpression
	if t.HasToken(method, "*") {
		kind = jsast.KindGeneratorFunction
	}

	return t.Compose(kind, parts...)
}

// threadCaptures adds the closure parameter to expr and unpacks it into the
// captured names at the top of the body. When the parameter list itself reads
// a capture the closure parameter becomes the `{ value: [..] }` pattern so the
// names are bound before any default is evaluated.
func (s *state) threadCaptures(expr jsast.NodeID, captures []string, inParams bool) {
	t := s.tree
	list := "[" + strings.Join(captures, ", ") + "]"

	closure := "{ value: " + list + " }"
	if !inParams {
		if s.closureName == "" {
			s.closureName = s.names.fresh(closureBase)
		}

		closure = s.closureName
	}

	if params := t.Field(expr, "parameters"); params != jsast.NoNode {
		text := closure
		if hasParameters(t, params) {
			text += ", "
		}

		t.InsertChild(params, 1, t.Raw(text))
	} else if param := t.Field(expr, "parameter"); param != jsast.NoNode {
		t.Wrap(param, jsast.KindFormalParameters, t.Raw("("+closure+", "), param, t.Raw(")"))
	}

	if inParams {
		return
	}

	// let keeps assignments to a capture working on the hoisted copy.
	unpack := "let " + list + " = " + closure + ".value;"

	body := t.Field(expr, "body")
	if t.Kind(body) != jsast.KindStatementBlock {
		t.Wrap(body, jsast.KindStatementBlock, t.Raw("{ "+unpack+" return "), body, t.Raw("; }"))
		return
	}

	index := s.bodyStart(body)
	leading := " "

	if children := t.Children(body); index < len(children) && t.Node(children[index]).Named {
		leading = t.Node(children[index]).Leading
	}

	stmt := t.Raw(unpack)
	t.SetLeading(stmt, leading)
	t.InsertChild(body, index, stmt)
}

func hasParameters(t *jsast.Tree, params jsast.NodeID) bool {
	for _, c := range t.NamedChildren(params) {
		if t.Kind(c) != jsast.KindComment {
			return true
		}
	}

	return false
}

// localName is the name fn was known by at its original site, if any.
func (s *state) localName(fn jsast.NodeID) string {
	t := s.tree

	if name := t.Field(fn, "name"); name != jsast.NoNode {
		switch t.Kind(name) {
		case jsast.KindIdentifier, "property_identifier":
			return t.Text(name)
		}

		return ""
	}

	parent := t.Parent(fn)
	switch t.Kind(parent) {
	case jsast.KindVariableDeclarator:
		if name := t.Field(parent, "name"); t.Kind(name) == jsast.KindIdentifier {
			return t.Text(name)
		}
	case jsast.KindPair:
		if key := t.Field(parent, "key"); t.Kind(key) == "property_identifier" {
			return t.Text(key)
		}
	case jsast.KindAssignmentExpression:
		if left := t.Field(parent, "left"); t.Kind(left) == jsast.KindIdentifier {
			return t.Text(left)
		}
	}

	return ""
}
