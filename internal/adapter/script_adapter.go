package adapter

import (
	"fmt"
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"actionlift.dev/pkg/actionlift/internal/jsast"
)

// Dialect selects the grammar used for a source file.
type Dialect string

const (
	// DialectJavaScript covers .js/.jsx/.mjs/.cjs, including JSX.
	DialectJavaScript Dialect = "javascript"
	// DialectTypeScript covers .ts/.mts/.cts.
	DialectTypeScript Dialect = "typescript"
	// DialectTSX covers .tsx.
	DialectTSX Dialect = "tsx"
)

// DialectFor picks the grammar from a file extension. Unknown extensions are
// parsed as JavaScript.
func DialectFor(path string) Dialect {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return DialectTypeScript
	case ".tsx":
		return DialectTSX
	default:
		return DialectJavaScript
	}
}

// IsScriptFile reports whether path has an extension the parser understands.
func IsScriptFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs", ".cjs", ".ts", ".mts", ".cts", ".tsx":
		return !strings.HasSuffix(path, ".d.ts")
	}

	return false
}

// ScriptAdapter turns JavaScript or TypeScript source into a resolved
// jsast.Tree the transformation pass can rewrite.
type ScriptAdapter interface {
	// Parse builds and resolves a tree for path/source. Syntax errors are
	// reported as *jsast.SyntaxError.
	Parse(path string, source []byte) (*jsast.Tree, error)
}

// LocalScriptAdapter provides a ScriptAdapter backed by tree-sitter.
type LocalScriptAdapter struct{}

// NewLocalScriptAdapter constructs a LocalScriptAdapter.
func NewLocalScriptAdapter() *LocalScriptAdapter {
	return &LocalScriptAdapter{}
}

// Parse lowers the tree-sitter syntax tree into a jsast.Tree. A parser is
// created per call because tree-sitter parsers are not safe for concurrent use.
func (a *LocalScriptAdapter) Parse(path string, source []byte) (*jsast.Tree, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(languageFor(DialectFor(path))); err != nil {
		return nil, fmt.Errorf("set language for %s: %w", path, err)
	}

	tsTree := parser.Parse(source, nil)
	if tsTree == nil {
		return nil, fmt.Errorf("parse %s: parser returned no tree", path)
	}
	defer tsTree.Close()

	root := tsTree.RootNode()
	if root.HasError() {
		return nil, syntaxError(path, source, root)
	}

	tree := jsast.NewTree(path, source)
	l := &lowering{tree: tree, src: source}

	start := root.StartByte()
	id := l.lower(root, "", start)
	node := tree.Node(id)
	node.Leading = string(source[:start])

	if end := root.EndByte(); end < uint(len(source)) {
		node.Trailing += string(source[end:])
	}

	tree.Root = id
	tree.Resolve()

	return tree, nil
}

func languageFor(d Dialect) *tree_sitter.Language {
	switch d {
	case DialectTypeScript:
		return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	case DialectTSX:
		return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
	default:
		return tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	}
}

type lowering struct {
	tree *jsast.Tree
	src  []byte
}

// lower copies n and its subtree into the arena. cursor is the end of the
// previous sibling, so the gap up to n's start becomes n's leading text.
func (l *lowering) lower(n *tree_sitter.Node, field string, cursor uint) jsast.NodeID {
	start, end := n.StartByte(), n.EndByte()
	leading := ""

	if start > cursor {
		leading = string(l.src[cursor:start])
	} else {
		start = max(start, cursor)
	}

	id := l.tree.Add(jsast.Node{
		Kind:    n.Kind(),
		Field:   field,
		Named:   n.IsNamed(),
		Leading: leading,
		Pos:     position(n),
	})

	count := n.ChildCount()
	if count == 0 {
		l.tree.Node(id).Text = string(l.src[start:max(start, end)])
		return id
	}

	for i := range count {
		child := n.Child(i)
		if child == nil {
			continue
		}

		cid := l.lower(child, n.FieldNameForChild(uint32(i)), start)
		l.tree.AppendChild(id, cid)
		start = max(start, child.EndByte())
	}

	if end > start {
		l.tree.Node(id).Trailing = string(l.src[start:end])
	}

	return id
}

func position(n *tree_sitter.Node) jsast.Position {
	p := n.StartPosition()

	return jsast.Position{
		Offset: int(n.StartByte()),
		Line:   int(p.Row) + 1,
		Column: int(p.Column) + 1,
	}
}

// syntaxError locates the first ERROR or MISSING node in source order.
func syntaxError(path string, source []byte, root *tree_sitter.Node) error {
	bad := firstError(root)
	if bad == nil {
		bad = root
	}

	near := bad.Utf8Text(source)
	if bad.IsMissing() {
		near = "missing " + bad.Kind()
	}

	if i := strings.IndexByte(near, '\n'); i >= 0 {
		near = near[:i]
	}

	const maxNear = 40
	if len(near) > maxNear {
		near = near[:maxNear]
	}

	return &jsast.SyntaxError{Path: path, Pos: position(bad), Near: near}
}

func firstError(n *tree_sitter.Node) *tree_sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}

	if !n.HasError() {
		return nil
	}

	for i := range n.ChildCount() {
		if child := n.Child(i); child != nil {
			if bad := firstError(child); bad != nil {
				return bad
			}
		}
	}

	return n
}
