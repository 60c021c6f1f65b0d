package actions

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"actionlift.dev/pkg/actionlift/internal/jsast"
)

func TestManifest_JSON(t *testing.T) {
	assert.Equal(t, `{"id":"a.js","names":[]}`, Manifest{ID: "a.js"}.JSON())
	assert.Equal(t, `{"id":"a.js","names":["x","y"]}`, Manifest{ID: "a.js", Names: []string{"x", "y"}}.JSON())
}

func TestManifest_CommentEscapesTerminator(t *testing.T) {
	m := Manifest{ID: "weird*/path.js", Names: []string{"a"}}

	c := m.Comment()
	assert.Equal(t, 1, strings.Count(c, "*/"))
	assert.True(t, strings.HasSuffix(c, " */"))

	got, ok := ParseManifestComment("code;\n" + c + "\n")
	require.True(t, ok)
	assert.Equal(t, m, got)
}

func TestParseManifestComment_Missing(t *testing.T) {
	_, ok := ParseManifestComment("export const a = 1;\n")
	assert.False(t, ok)

	_, ok = ParseManifestComment("/* @server-actions {not json} */")
	assert.False(t, ok)
}

func TestFileID(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "app", "actions.js")
	outside := filepath.Join(filepath.Dir(root), "elsewhere", "x.js")

	assert.Equal(t, "app/actions.js", FileID(inside, root, false))
	assert.True(t, strings.HasPrefix(FileID(outside, root, false), "file:///"))
	assert.True(t, strings.HasPrefix(FileID(inside, "", false), "file:///"))

	hashed := FileID(inside, root, true)
	assert.Len(t, hashed, 16)
	assert.Equal(t, hashed, FileID(inside, root, true))
	assert.NotEqual(t, hashed, FileID(filepath.Join(root, "app", "other.js"), root, true))
}

func TestPassError_Frame(t *testing.T) {
	src := []byte("\"use server\";\nexport function save() {}\nexport const x = 1;\n")
	err := &PassError{
		Code:    CodeNotAsync,
		Path:    "app/actions.js",
		Pos:     jsast.Position{Line: 2, Column: 8},
		Message: "server actions must be async functions",
	}

	want := "NotAsync in app/actions.js at 2:8: server actions must be async functions\n\n" +
		"   1 | \"use server\";\n" +
		"   2 | export function save() {}\n" +
		"     |        ^\n" +
		"   3 | export const x = 1;\n"

	assert.Equal(t, want, err.Frame(src))
	assert.Equal(t, "app/actions.js:2:8: NotAsync: server actions must be async functions", err.Error())
}

func TestAsPassError(t *testing.T) {
	_, ok := AsPassError(assert.AnError)
	assert.False(t, ok)

	pe, ok := AsPassError(WrapParseError(&jsast.SyntaxError{Path: "a.js", Pos: jsast.Position{Line: 1, Column: 3}, Near: ")"}))
	require.True(t, ok)
	assert.Equal(t, CodeSyntaxError, pe.Code)
	assert.Equal(t, `unexpected ")"`, pe.Message)
}
