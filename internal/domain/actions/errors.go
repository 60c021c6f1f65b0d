package actions

import (
	"errors"
	"fmt"
	"strings"

	"actionlift.dev/pkg/actionlift/internal/jsast"
)

// Code identifies the kind of failure that aborted a file.
type Code string

const (
	// CodeNotAsync: a function marked as a server action is not async.
	CodeNotAsync Code = "NotAsync"
	// CodeUnsupportedDefaultExportShape: `export default <expr>` with an expression that
	// cannot become an action.
	CodeUnsupportedDefaultExportShape Code = "UnsupportedDefaultExportShape"
	// CodeUnsupportedNamespaceReexport: `export * as ns from` in a server file.
	CodeUnsupportedNamespaceReexport Code = "UnsupportedNamespaceReexport"
	// CodeMissingEnclosingDeclaration: a hoisted function found no anchor statement.
	CodeMissingEnclosingDeclaration Code = "MissingEnclosingDeclaration"
	// CodeAmbiguousExportWithoutDeclaration: an export with neither declaration nor specifiers.
	CodeAmbiguousExportWithoutDeclaration Code = "AmbiguousExportWithoutDeclaration"
	// CodeUnsupportedClassMethod: a class method carries the directive.
	CodeUnsupportedClassMethod Code = "UnsupportedClassMethod"
	// CodeSyntaxError: the parser rejected the file.
	CodeSyntaxError Code = "SyntaxError"
)

// PassError is a file-scoped failure with a source location.
type PassError struct {
	Code    Code
	Path    string
	Pos     jsast.Position
	Message string
}

func (e *PassError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%s: %s: %s", e.Path, e.Pos, e.Code, e.Message)
	}

	return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
}

// Frame renders the error with the offending line, one line of context on
// each side and a caret under the column.
func (e *PassError) Frame(source []byte) string {
	lines := strings.Split(string(source), "\n")

	line := max(e.Pos.Line, 1)
	col := max(e.Pos.Column, 1)
	line = min(line, len(lines))

	var b strings.Builder
	fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", e.Code, e.Path, line, col, e.Message)

	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}

	fmt.Fprintf(&b, "%4d | %s\n", line, lines[line-1])
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))

	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}

	return b.String()
}

// AsPassError unwraps err to a *PassError if there is one in its chain.
func AsPassError(err error) (*PassError, bool) {
	var pe *PassError
	if errors.As(err, &pe) {
		return pe, true
	}

	return nil, false
}

func (s *state) fail(node jsast.NodeID, code Code, format string, args ...any) *PassError {
	pos := jsast.Position{}
	if node != jsast.NoNode {
		pos = s.tree.Origin(node)
	}

	return &PassError{
		Code:    code,
		Path:    s.tree.Path,
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapParseError converts a parser syntax error into a SyntaxError
// PassError. Other errors are returned unchanged.
func WrapParseError(err error) error {
	var se *jsast.SyntaxError
	if !errors.As(err, &se) {
		return err
	}

	return &PassError{
		Code:    CodeSyntaxError,
		Path:    se.Path,
		Pos:     se.Pos,
		Message: fmt.Sprintf("unexpected %q", se.Near),
	}
}
