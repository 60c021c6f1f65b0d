// Package actions implements the server-action extraction pass: functions
// marked with the "use server" directive are hoisted to module scope,
// registered under a stable identity, and replaced at their original site by a
// reference that carries any captured variables explicitly.
package actions

import (
	"fmt"
	"strings"

	"actionlift.dev/pkg/actionlift/internal/jsast"
)

// Default runtime wiring for the registration call.
const (
	DefaultRuntimeModule = "@actionlift/runtime/server"
	DefaultRegisterName  = "registerServerReference"
)

// Mode is the outcome of directive classification.
type Mode int

const (
	// NotMarked files carry no directive anywhere and are left untouched.
	NotMarked Mode = iota
	// ModuleServerFile files carry the directive at module level; every export is an action.
	ModuleServerFile
	// InlineAction files mark individual functions.
	InlineAction
)

func (m Mode) String() string {
	switch m {
	case ModuleServerFile:
		return "module"
	case InlineAction:
		return "inline"
	default:
		return "none"
	}
}

// Shape is the syntactic form an action was written in.
type Shape string

const (
	ShapeFunctionDeclaration Shape = "function-declaration"
	ShapeFunctionExpression  Shape = "function-expression"
	ShapeArrowFunction       Shape = "arrow-function"
	ShapeObjectMethod        Shape = "object-method"
	// ShapeValue is an exported binding that is not a function literal, registered as is.
	ShapeValue Shape = "value"
)

// Action describes one registered action.
type Action struct {
	// Name is the name the action is registered and listed under.
	Name string `json:"name"`
	// Binding is the top-level identifier holding the registered value.
	Binding string `json:"binding"`
	// LocalName is the original binding name, empty for anonymous functions.
	LocalName string         `json:"local_name,omitempty"`
	Captures  []string       `json:"captures,omitempty"`
	Shape     Shape          `json:"shape"`
	Hoisted   bool           `json:"hoisted"`
	Pos       jsast.Position `json:"-"`
}

// Diagnostic is a non-fatal finding.
type Diagnostic struct {
	Pos     jsast.Position
	Message string
}

// Options configures a single run of the pass.
type Options struct {
	// FileID is the identity actions are registered under. When empty it is
	// derived from the tree path with FileID.
	FileID string
	// RuntimeModule and RegisterName name the import providing the registration call.
	RuntimeModule string
	RegisterName  string
	// ManifestComment appends the manifest as a trailing comment.
	ManifestComment bool
}

// Result is the output of a successful run.
type Result struct {
	Code        string
	Mode        Mode
	Manifest    Manifest
	Actions     []Action
	Diagnostics []Diagnostic
	// Changed is false when the file carried no directive and Code is the input.
	Changed bool
}

// state is everything the pass knows about the file being rewritten.
type state struct {
	tree   *jsast.Tree
	opts   Options
	fileID string
	mode   Mode

	names *nameGen

	// Helper identifiers, allocated on first use.
	registerName string
	closureName  string

	handled    map[jsast.NodeID]bool
	registered map[string]bool
	// direct maps a local name to the helper it was registered through when
	// the binding itself could not be rewritten.
	direct map[string]string
	// exported holds the local names the file already exports.
	exported map[string]bool

	actions  []Action
	trailing []string
	diags    []Diagnostic
}

// Transform runs the pass over tree, mutating it. On error the tree is left in
// an undefined state and must be discarded.
func Transform(tree *jsast.Tree, opts Options) (*Result, error) {
	if opts.RuntimeModule == "" {
		opts.RuntimeModule = DefaultRuntimeModule
	}

	if opts.RegisterName == "" {
		opts.RegisterName = DefaultRegisterName
	}

	fileID := opts.FileID
	if fileID == "" {
		fileID = FileID(tree.Path, "", false)
	}

	s := &state{
		tree:       tree,
		opts:       opts,
		fileID:     fileID,
		names:      newNameGen(tree),
		handled:    make(map[jsast.NodeID]bool),
		registered: make(map[string]bool),
		direct:     make(map[string]string),
	}

	return s.run()
}

func (s *state) run() (*Result, error) {
	t := s.tree
	s.mode = s.classify(t.Root)
	s.nearMisses()

	candidates := s.collectCandidates()
	if s.mode == NotMarked && len(candidates) == 0 {
		return &Result{
			Code:        t.Print(),
			Mode:        NotMarked,
			Manifest:    Manifest{ID: s.fileID, Names: []string{}},
			Diagnostics: s.diags,
		}, nil
	}

	if s.mode == NotMarked {
		s.mode = InlineAction
	}

	s.exported = s.exportedLocals()

	if s.mode == ModuleServerFile {
		s.stripDirective(t.Root)

		if err := s.normalizeExports(); err != nil {
			return nil, err
		}
	}

	for _, fn := range candidates {
		if s.handled[fn] {
			continue
		}

		if err := s.extractInline(fn); err != nil {
			return nil, err
		}
	}

	return s.finish(), nil
}

// finish appends the trailing export and manifest and prints the result.
func (s *state) finish() *Result {
	t := s.tree

	if len(s.trailing) > 0 {
		exp := t.Raw("export { " + strings.Join(s.trailing, ", ") + " };")
		t.SetLeading(exp, "\n")
		t.AppendChild(t.Root, exp)
	}

	manifest := s.manifest()
	code := t.Print()

	if s.opts.ManifestComment {
		if !strings.HasSuffix(code, "\n") {
			code += "\n"
		}

		code += manifest.Comment() + "\n"
	}

	return &Result{
		Code:        code,
		Mode:        s.mode,
		Manifest:    manifest,
		Actions:     s.actions,
		Diagnostics: s.diags,
		Changed:     true,
	}
}

func (s *state) record(a Action) {
	s.registered[a.Name] = true
	if a.LocalName != "" && !a.Hoisted {
		s.registered[a.LocalName] = true
	}

	s.actions = append(s.actions, a)
}

func (s *state) warn(node jsast.NodeID, format string, args ...any) {
	s.diags = append(s.diags, Diagnostic{
		Pos:     s.tree.Origin(node),
		Message: fmt.Sprintf(format, args...),
	})
}
