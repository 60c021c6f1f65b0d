package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "actionlift.dev/pkg/actionlift/internal/model"
)

func result(id string, status m.Status, names ...string) m.FileResult {
	return m.FileResult{
		Source: m.Source{Origin: &m.File{ShortPath: m.Path(id)}, ID: id},
		Status: status,
		Names:  names,
	}
}

func TestBuildDirectory(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	dir := BuildDirectory("b1", at, []m.FileResult{
		result("z.js", m.Transformed, "zed"),
		result("a.js", m.Transformed, "one", "two"),
		result("plain.js", m.Unchanged),
		result("bad.js", m.Failed, "ignored"),
	})

	assert.Equal(t, "b1", dir.BuildID)
	assert.Equal(t, at, dir.GeneratedAt)
	assert.Equal(t, []m.DirectoryFile{
		{ID: "a.js", Path: "a.js", Names: []string{"one", "two"}},
		{ID: "z.js", Path: "z.js", Names: []string{"zed"}},
	}, dir.Files)
	assert.Equal(t, map[string]m.DirectoryAction{
		"a.js#one": {File: "a.js", Name: "one"},
		"a.js#two": {File: "a.js", Name: "two"},
		"z.js#zed": {File: "z.js", Name: "zed"},
	}, dir.Actions)
}

func TestBuildDirectory_Empty(t *testing.T) {
	dir := BuildDirectory("b", time.Time{}, nil)

	assert.NotNil(t, dir.Files)
	assert.NotNil(t, dir.Actions)
}

func TestMergeDirectory(t *testing.T) {
	base := BuildDirectory("old", time.Time{}, []m.FileResult{
		result("a.js", m.Transformed, "a"),
		result("b.js", m.Transformed, "b"),
		result("c.js", m.Transformed, "c"),
	})

	update := BuildDirectory("new", time.Time{}, []m.FileResult{
		result("b.js", m.Transformed, "b2"),
		result("d.js", m.Transformed, "d"),
		result("c.js", m.Unchanged),
	})

	merged := MergeDirectory(base, update, []string{"b.js", "c.js", "d.js"})

	assert.Equal(t, "new", merged.BuildID)
	require.Len(t, merged.Files, 3)
	assert.Equal(t, []string{"a.js", "b.js", "d.js"}, []string{merged.Files[0].ID, merged.Files[1].ID, merged.Files[2].ID})
	assert.Equal(t, []string{"b2"}, merged.Files[1].Names)
	assert.Contains(t, merged.Actions, "a.js#a")
	assert.Contains(t, merged.Actions, "b.js#b2")
	assert.NotContains(t, merged.Actions, "b.js#b")
	assert.NotContains(t, merged.Actions, "c.js#c")
}
