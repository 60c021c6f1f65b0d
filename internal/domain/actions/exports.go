package actions

import (
	"slices"
	"strings"

	"actionlift.dev/pkg/actionlift/internal/jsast"
)

// typeOnlyDeclarations never produce runtime values.
var typeOnlyDeclarations = map[string]bool{
	"interface_declaration":  true,
	"type_alias_declaration": true,
	"ambient_declaration":    true,
	"function_signature":     true,
}

// exportedLocals collects the local names the file exports itself, ignoring
// re-exports from other modules.
func (s *state) exportedLocals() map[string]bool {
	t := s.tree
	out := make(map[string]bool)

	for _, stmt := range t.Children(t.Root) {
		if t.Kind(stmt) != jsast.KindExportStatement || t.Field(stmt, "source") != jsast.NoNode {
			continue
		}

		if decl := t.Field(stmt, "declaration"); decl != jsast.NoNode {
			if name := t.Field(decl, "name"); name != jsast.NoNode {
				out[t.Text(name)] = true
			}

			for _, d := range t.Children(decl) {
				if t.Kind(d) == jsast.KindVariableDeclarator {
					if name := t.Field(d, "name"); t.Kind(name) == jsast.KindIdentifier {
						out[t.Text(name)] = true
					}
				}
			}
		}

		if value := t.Field(stmt, "value"); t.Kind(value) == jsast.KindIdentifier {
			out[t.Text(value)] = true
		}

		for _, c := range t.Children(stmt) {
			if t.Kind(c) != jsast.KindExportClause {
				continue
			}

			for _, spec := range t.NamedChildren(c) {
				if name := t.Field(spec, "name"); name != jsast.NoNode {
					out[t.Text(name)] = true
				}
			}
		}
	}

	return out
}

// normalizeExports registers every export of a server file.
func (s *state) normalizeExports() error {
	t := s.tree

	for _, stmt := range slices.Clone(t.Children(t.Root)) {
		if t.Kind(stmt) != jsast.KindExportStatement {
			continue
		}

		if err := s.normalizeExport(stmt); err != nil {
			return err
		}
	}

	return nil
}

func (s *state) normalizeExport(stmt jsast.NodeID) error {
	t := s.tree

	if t.HasToken(stmt, "type") {
		return nil
	}

	decl := t.Field(stmt, "declaration")
	value := t.Field(stmt, "value")
	clause := childOfKind(t, stmt, jsast.KindExportClause)

	switch {
	case t.HasToken(stmt, "default") && (decl != jsast.NoNode || value != jsast.NoNode):
		return s.exportDefault(stmt)
	case decl != jsast.NoNode:
		return s.exportDeclaration(decl)
	case childOfKind(t, stmt, jsast.KindNamespaceExport) != jsast.NoNode:
		return s.fail(stmt, CodeUnsupportedNamespaceReexport,
			"namespace re-exports cannot be enumerated as server actions; export the actions by name")
	case t.HasToken(stmt, "*"):
		// `export * from` re-exports actions the source module registers itself.
		return nil
	case clause != jsast.NoNode && t.Field(stmt, "source") != jsast.NoNode:
		return s.reexport(stmt, clause)
	case clause != jsast.NoNode:
		return s.exportSpecifiers(clause)
	case len(t.NamedChildren(stmt)) == 0:
		return s.fail(stmt, CodeAmbiguousExportWithoutDeclaration, "export has neither a declaration nor specifiers")
	default:
		s.warn(stmt, "unsupported export form is not registered")
		return nil
	}
}

func childOfKind(t *jsast.Tree, node jsast.NodeID, kind string) jsast.NodeID {
	for _, c := range t.Children(node) {
		if t.Kind(c) == kind {
			return c
		}
	}

	return jsast.NoNode
}

// exportDeclaration handles `export function f` and `export const f = ...`.
func (s *state) exportDeclaration(decl jsast.NodeID) error {
	t := s.tree

	switch kind := t.Kind(decl); kind {
	case jsast.KindFunctionDeclaration, jsast.KindGeneratorFunctionDeclaration:
		if err := s.prepare(decl); err != nil {
			return err
		}

		s.registerDeclaration(decl)

	case jsast.KindLexicalDeclaration, jsast.KindVariableDeclaration:
		for _, d := range slices.Clone(t.Children(decl)) {
			if t.Kind(d) != jsast.KindVariableDeclarator {
				continue
			}

			if err := s.exportDeclarator(d); err != nil {
				return err
			}
		}

	case jsast.KindClassDeclaration, jsast.KindAbstractClassDeclaration:
		s.warn(decl, "exported class %s is not a server action", t.Text(t.Field(decl, "name")))

	default:
		if !typeOnlyDeclarations[kind] {
			s.warn(decl, "export of %s is not registered", strings.ReplaceAll(kind, "_", " "))
		}
	}

	return nil
}

func (s *state) exportDeclarator(d jsast.NodeID) error {
	t := s.tree
	name := t.Field(d, "name")
	value := t.Field(d, "value")

	switch {
	case t.Kind(name) != jsast.KindIdentifier:
		s.warn(d, "destructured export %s is not registered", t.Text(name))
		return nil
	case value == jsast.NoNode:
		s.warn(d, "uninitialized export %s is not registered", t.Text(name))
		return nil
	case s.registered[t.Text(name)]:
		return nil
	}

	if jsast.IsFunctionLike(t.Kind(value)) {
		if err := s.prepare(value); err != nil {
			return err
		}
	}

	s.registerDeclarator(d)

	return nil
}

// exportDefault rewrites `export default <fn>` into a named registered binding
// plus `export { name as default }`.
func (s *state) exportDefault(stmt jsast.NodeID) error {
	t := s.tree

	if decl := t.Field(stmt, "declaration"); decl != jsast.NoNode {
		switch t.Kind(decl) {
		case jsast.KindFunctionDeclaration, jsast.KindGeneratorFunctionDeclaration:
			if err := s.prepare(decl); err != nil {
				return err
			}

			name := t.Text(t.Field(decl, "name"))
			pos := t.Node(decl).Pos

			t.SetKind(decl, expressionKind(t.Kind(decl)))
			s.defaultBinding(stmt, s.registration(decl, name), name)
			s.record(Action{Name: name, Binding: name, LocalName: name, Shape: ShapeFunctionDeclaration, Pos: pos})

			return nil

		case jsast.KindClassDeclaration, jsast.KindAbstractClassDeclaration:
			s.warn(decl, "default-exported class is not a server action")
			return nil
		}

		return s.fail(decl, CodeUnsupportedDefaultExportShape, "default export of %s is not supported in a server file",
			strings.ReplaceAll(t.Kind(decl), "_", " "))
	}

	value := t.Field(stmt, "value")
	inner := unparen(t, value)

	switch kind := t.Kind(inner); kind {
	case jsast.KindIdentifier:
		return s.exportDefaultIdentifier(stmt, inner)

	case jsast.KindArrowFunction, jsast.KindFunctionExpression, jsast.KindGeneratorFunction:
		if err := s.prepare(inner); err != nil {
			return err
		}

		s.anonymousDefault(stmt, value, shapeOf(kind))

		return nil

	case jsast.KindAssignmentExpression:
		if right := unparen(t, t.Field(inner, "right")); jsast.IsFunctionLike(t.Kind(right)) {
			if err := s.prepare(right); err != nil {
				return err
			}
		}

		s.anonymousDefault(stmt, value, ShapeValue)

		return nil
	}

	return s.fail(value, CodeUnsupportedDefaultExportShape,
		"default export of %s cannot be registered; export an async function or an identifier",
		strings.ReplaceAll(t.Kind(inner), "_", " "))
}

func (s *state) anonymousDefault(stmt, value jsast.NodeID, shape Shape) {
	pos := s.tree.Node(value).Pos
	name := s.names.fresh(inlineActionBase)
	s.defaultBinding(stmt, s.registration(value, name), name)
	s.record(Action{Name: name, Binding: name, Shape: shape, Pos: pos})
}

// defaultBinding replaces an export default statement with
// `var name = <call>;` followed by `export { name as default };`.
func (s *state) defaultBinding(stmt, call jsast.NodeID, name string) {
	t := s.tree
	t.SetLeading(call, "")
	decl := t.Wrap(stmt, jsast.KindVariableDeclaration, t.Raw("var "+name+" = "), call, t.Raw(";"))
	s.insertStatement(placement{ref: decl}, t.Raw("export { "+name+" as default };"))
	s.exported[name] = true
}

func unparen(t *jsast.Tree, n jsast.NodeID) jsast.NodeID {
	for t.Kind(n) == jsast.KindParenthesized {
		inner := t.NamedChildren(n)
		if len(inner) != 1 {
			return n
		}

		n = inner[0]
	}

	return n
}

func (s *state) exportDefaultIdentifier(stmt, ident jsast.NodeID) error {
	t := s.tree
	name := t.Text(ident)

	if !s.registered[name] {
		if err := s.registerLocal(name, ident); err != nil {
			return err
		}
	}

	target := name
	if helper, ok := s.direct[name]; ok {
		target = helper
	}

	t.Replace(stmt, t.Raw("export { "+target+" as default };"))

	return nil
}

// exportSpecifiers handles `export { a, b as c }` without a source.
func (s *state) exportSpecifiers(clause jsast.NodeID) error {
	t := s.tree

	for _, spec := range slices.Clone(t.NamedChildren(clause)) {
		if t.Kind(spec) != jsast.KindExportSpecifier || t.HasToken(spec, "type") {
			continue
		}

		nameNode := t.Field(spec, "name")
		if t.Kind(nameNode) != jsast.KindIdentifier {
			continue
		}

		name := t.Text(nameNode)
		if !s.registered[name] {
			if err := s.registerLocal(name, spec); err != nil {
				return err
			}
		}

		helper, ok := s.direct[name]
		if !ok {
			continue
		}

		exportedAs := name
		if alias := t.Field(spec, "alias"); alias != jsast.NoNode {
			exportedAs = t.Text(alias)
		}

		t.Replace(spec, t.Raw(helper+" as "+exportedAs))
	}

	return nil
}

// registerLocal registers the module-level binding name, rewriting its
// declaration when it is a function or an initialized variable and falling
// back to registering the value through a helper otherwise.
func (s *state) registerLocal(name string, at jsast.NodeID) error {
	t := s.tree
	b := t.Scope(jsast.ModuleScope).Bindings[name]

	if b != nil {
		decl := t.Parent(b.Decl)

		switch {
		case b.Kind == jsast.BindingFunction && t.Field(decl, "name") == b.Decl && s.siteOf(decl) == siteTopDeclaration:
			if err := s.prepare(decl); err != nil {
				return err
			}

			s.registerDeclaration(decl)

			return nil

		case t.Kind(decl) == jsast.KindVariableDeclarator && t.Field(decl, "name") == b.Decl &&
			t.Field(decl, "value") != jsast.NoNode && s.isTopLevelDeclaration(t.Parent(decl)):
			return s.exportDeclarator(decl)

		case b.Kind == jsast.BindingClass:
			s.warn(at, "exported class %s is not a server action", name)
			return nil
		}
	}

	s.registerDirect(name, at)

	return nil
}

// registerDirect registers a binding that cannot be rewritten in place, such
// as an import, through `var $$ACTION = $$register(name, id, "name");` at the
// end of the module.
func (s *state) registerDirect(name string, at jsast.NodeID) {
	t := s.tree
	helper := s.names.fresh(directBase)

	stmt := t.Compose(jsast.KindVariableDeclaration,
		t.Raw("var "+helper+" = "),
		s.registration(t.Raw(name), name),
		t.Raw(";"),
	)
	t.SetLeading(stmt, "\n")
	t.AppendChild(t.Root, stmt)

	s.direct[name] = helper
	s.record(Action{Name: name, Binding: helper, LocalName: name, Shape: ShapeValue, Pos: t.Origin(at)})
}

// reexport handles `export { a as b } from "m"`. Names re-exported unchanged
// are registered by their own module and pass through. Renamed ones are
// imported under a fresh name and registered under the new name.
func (s *state) reexport(stmt, clause jsast.NodeID) error {
	t := s.tree
	source := t.Text(t.Field(stmt, "source"))

	var (
		kept  []string
		added []jsast.NodeID
	)

	for _, spec := range t.NamedChildren(clause) {
		if t.Kind(spec) != jsast.KindExportSpecifier {
			continue
		}

		name := t.Field(spec, "name")
		alias := t.Field(spec, "alias")

		if t.HasToken(spec, "type") || alias == jsast.NoNode || t.Text(alias) == t.Text(name) {
			kept = append(kept, t.Text(spec))
			continue
		}

		exportedAs := t.Text(alias)
		if s.registered[exportedAs] {
			continue
		}

		local := s.names.fresh(reexportBase)
		helper := s.names.fresh(directBase)

		imp := t.Raw("import { " + t.Text(name) + " as " + local + " } from " + source + ";")
		t.SetKind(imp, jsast.KindImportStatement)

		reg := t.Compose(jsast.KindVariableDeclaration,
			t.Raw("var "+helper+" = "),
			s.registration(t.Raw(local), exportedAs),
			t.Raw(";"),
		)

		added = append(added, imp, reg, t.Raw("export { "+helper+" as "+exportedAs+" };"))
		s.record(Action{Name: exportedAs, Binding: helper, Shape: ShapeValue, Pos: t.Node(spec).Pos})
	}

	if len(added) == 0 {
		return nil
	}

	anchor := stmt
	if len(kept) == 0 {
		t.Replace(stmt, added[0])
		anchor, added = added[0], added[1:]
	} else {
		t.Replace(clause, t.Raw("{ "+strings.Join(kept, ", ")+" }"))
	}

	for _, n := range added {
		s.insertStatement(placement{ref: anchor}, n)
		anchor = n
	}

	return nil
}
