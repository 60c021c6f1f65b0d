package domain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"actionlift.dev/pkg/actionlift/internal/adapter"
	"actionlift.dev/pkg/actionlift/internal/controller"
	controllermocks "actionlift.dev/pkg/actionlift/internal/controller/mocks"
	m "actionlift.dev/pkg/actionlift/internal/model"
)

// startMode matches the single StartOption a workflow passes for mode.
func startMode(mode controller.StartMode) any {
	return mock.MatchedBy(func(opt controller.StartOption) bool {
		var cfg controller.StartConfig
		opt(&cfg)

		return cfg.Mode() == mode
	})
}

// expectSession expects one Start/Wait/Close lifecycle in mode. Progress
// calls are allowed but not required.
func expectSession(ui *controllermocks.MockUI, mode controller.StartMode) {
	ui.EXPECT().Start(mock.Anything, startMode(mode)).Return(nil).Once()
	ui.EXPECT().Wait(mock.Anything).Return().Once()
	ui.EXPECT().Close(mock.Anything).Return().Once()
	expectProgress(ui)
}

func expectProgress(ui *controllermocks.MockUI) {
	ui.EXPECT().DisplayRunInfo(mock.Anything, mock.Anything).Return().Maybe()
	ui.EXPECT().DisplayFileResult(mock.Anything, mock.Anything).Return().Maybe()
}

// displayed collects every DisplayResults call.
type displayed struct {
	results   [][]m.FileResult
	summaries []m.Summary
}

func expectResults(ui *controllermocks.MockUI) *displayed {
	d := &displayed{}

	ui.EXPECT().DisplayResults(mock.Anything, mock.Anything, mock.Anything).
		Run(func(_ context.Context, results []m.FileResult, summary m.Summary) {
			d.results = append(d.results, results)
			d.summaries = append(d.summaries, summary)
		}).
		Return(nil)

	return d
}

func (d *displayed) lastSummary(t *testing.T) m.Summary {
	t.Helper()
	require.NotEmpty(t, d.summaries)

	return d.summaries[len(d.summaries)-1]
}

func (d *displayed) lastResults(t *testing.T) []m.FileResult {
	t.Helper()
	require.NotEmpty(t, d.results)

	return d.results[len(d.results)-1]
}

// newProject writes files under a fresh directory holding a package.json and
// returns the directory.
func newProject(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), "{}\n")

	for name, content := range files {
		writeFile(t, filepath.Join(root, name), content)
	}

	return root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestWorkflow(ui controller.UI, cache adapter.CacheStore, watcher adapter.Watcher) *workflow {
	fs := adapter.NewLocalSourceFSAdapter()

	wf := NewWorkflow(
		fs,
		adapter.NewLocalDirectoryStore(),
		watcher,
		ui,
		NewTransformer(fs, adapter.NewLocalScriptAdapter()),
		cache,
	).(*workflow)
	wf.newID = func() string { return "build-1" }

	return wf
}
