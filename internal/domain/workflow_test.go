package domain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"actionlift.dev/pkg/actionlift/internal/adapter"
	adaptermocks "actionlift.dev/pkg/actionlift/internal/adapter/mocks"
	"actionlift.dev/pkg/actionlift/internal/controller"
	controllermocks "actionlift.dev/pkg/actionlift/internal/controller/mocks"
	m "actionlift.dev/pkg/actionlift/internal/model"
)

const serverFile = `"use server";

export async function greet(name) {
  return "hi " + name;
}
`

const inlineFile = `export function Page() {
  async function save() {
    "use server";
    return 1;
  }
  return save;
}
`

const plainFile = "export const answer = 42;\n"

const notAsyncFile = `"use server";

export function broken() {
  return 1;
}
`

func projectFiles() map[string]string {
	return map[string]string{
		"app/actions.js":            serverFile,
		"app/page.jsx":              inlineFile,
		"lib/util.js":               plainFile,
		"node_modules/dep/index.js": serverFile,
		"README.md":                 "# readme\n",
	}
}

func transformArgs(root string) TransformArgs {
	return TransformArgs{
		Paths:         []m.Path{m.Path(root + "/...")},
		Output:        m.Path(filepath.Join(root, "out")),
		Threads:       2,
		DirectoryFile: m.Path(filepath.Join(root, ".actionlift", "actions.json")),
		SpillDir:      filepath.Join(root, ".spill"),
	}
}

func readOutput(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

func TestWorkflow_Transform_WritesOutputsAndDirectory(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := newProject(t, projectFiles())
	ui := controllermocks.NewMockUI(t)
	expectSession(ui, controller.ModeTransform)
	shown := expectResults(ui)

	wf := newTestWorkflow(ui, nil, nil)

	err := wf.Transform(context.Background(), transformArgs(root))
	require.NoError(t, err)

	actionsOut := readOutput(t, filepath.Join(root, "out", "app", "actions.js"))
	assert.Contains(t, actionsOut, `$$register(async function greet(name)`)
	assert.Contains(t, actionsOut, `"app/actions.js", "greet")`)

	pageOut := readOutput(t, filepath.Join(root, "out", "app", "page.jsx"))
	assert.Contains(t, pageOut, "var $$INLINE_ACTION = $$register(")

	assert.Equal(t, plainFile, readOutput(t, filepath.Join(root, "out", "lib", "util.js")))
	assert.NoFileExists(t, filepath.Join(root, "out", "node_modules", "dep", "index.js"))

	dir, err := adapter.NewLocalDirectoryStore().LoadDirectory(m.Path(filepath.Join(root, ".actionlift", "actions.json")))
	require.NoError(t, err)
	assert.Equal(t, "build-1", dir.BuildID)
	require.Len(t, dir.Files, 2)
	assert.Equal(t, "app/actions.js", dir.Files[0].ID)
	assert.Equal(t, []string{"greet"}, dir.Files[0].Names)
	assert.Equal(t, "app/page.jsx", dir.Files[1].ID)
	assert.Equal(t, m.DirectoryAction{File: "app/actions.js", Name: "greet"}, dir.Actions["app/actions.js#greet"])

	summary := shown.lastSummary(t)
	assert.Equal(t, "build-1", summary.BuildID)
	assert.Equal(t, 3, summary.Files)
	assert.Equal(t, 2, summary.Transformed)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, 2, summary.Actions)

	results := shown.lastResults(t)
	require.Len(t, results, 3)
	assert.Equal(t, m.Path(filepath.Join("app", "actions.js")), results[0].Source.Origin.ShortPath)
	assert.Nil(t, results[0].Code, "displayed results carry no code")

	ui.AssertNumberOfCalls(t, "DisplayFileResult", 3)
	ui.AssertNotCalled(t, "DisplayError", mock.Anything, mock.Anything)

	entries, err := os.ReadDir(filepath.Join(root, ".spill"))
	require.NoError(t, err)
	assert.Empty(t, entries, "spool must be removed after the run")
}

func TestWorkflow_Transform_StopsOnFirstRejectedFile(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := newProject(t, map[string]string{
		"app/actions.js": serverFile,
		"app/broken.js":  notAsyncFile,
	})
	ui := controllermocks.NewMockUI(t)
	expectSession(ui, controller.ModeTransform)
	shown := expectResults(ui)
	ui.EXPECT().DisplayError(mock.Anything, mock.MatchedBy(func(err error) bool {
		return errors.Is(err, ErrFilesFailed)
	})).Return().Once()

	wf := newTestWorkflow(ui, nil, nil)

	args := transformArgs(root)
	args.Threads = 1

	err := wf.Transform(context.Background(), args)
	require.ErrorIs(t, err, ErrFilesFailed)
	assert.Contains(t, err.Error(), "NotAsync")

	assert.NoDirExists(t, filepath.Join(root, "out"))
	assert.NoFileExists(t, string(args.DirectoryFile))

	var rejected *m.FileResult
	for _, r := range shown.lastResults(t) {
		if r.Status == m.Failed {
			rejected = &r
		}
	}

	require.NotNil(t, rejected)
	assert.Equal(t, "NotAsync", rejected.ErrCode)
	assert.Contains(t, rejected.Err, "export function broken()")
}

func TestWorkflow_Transform_KeepGoing(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := newProject(t, map[string]string{
		"app/actions.js": serverFile,
		"app/broken.js":  notAsyncFile,
	})
	ui := controllermocks.NewMockUI(t)
	expectSession(ui, controller.ModeTransform)
	shown := expectResults(ui)
	ui.EXPECT().DisplayError(mock.Anything, mock.Anything).Return().Once()

	wf := newTestWorkflow(ui, nil, nil)

	args := transformArgs(root)
	args.KeepGoing = true

	err := wf.Transform(context.Background(), args)
	require.ErrorIs(t, err, ErrFilesFailed)
	assert.Contains(t, err.Error(), "1 of 2 files")

	assert.FileExists(t, filepath.Join(root, "out", "app", "actions.js"))
	assert.NoFileExists(t, filepath.Join(root, "out", "app", "broken.js"))

	dir, err := adapter.NewLocalDirectoryStore().LoadDirectory(args.DirectoryFile)
	require.NoError(t, err)
	require.Len(t, dir.Files, 1)
	assert.Equal(t, "app/actions.js", dir.Files[0].ID)

	summary := shown.lastSummary(t)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Transformed)
}

func TestWorkflow_Transform_UsesCache(t *testing.T) {
	root := newProject(t, projectFiles())

	cache, err := adapter.OpenInMemoryCacheStore()
	require.NoError(t, err)

	defer func() { _ = cache.Close() }()

	ui := controllermocks.NewMockUI(t)
	ui.EXPECT().Start(mock.Anything, startMode(controller.ModeTransform)).Return(nil).Times(4)
	ui.EXPECT().Wait(mock.Anything).Return().Times(4)
	ui.EXPECT().Close(mock.Anything).Return().Times(4)
	expectProgress(ui)
	shown := expectResults(ui)

	wf := newTestWorkflow(ui, cache, nil)

	args := transformArgs(root)
	args.UseCache = true

	require.NoError(t, wf.Transform(context.Background(), args))
	first := readOutput(t, filepath.Join(root, "out", "app", "actions.js"))
	assert.Equal(t, 0, shown.lastSummary(t).Cached)

	require.NoError(t, os.RemoveAll(filepath.Join(root, "out")))
	require.NoError(t, wf.Transform(context.Background(), args))
	assert.Equal(t, 3, shown.lastSummary(t).Cached)
	assert.Equal(t, first, readOutput(t, filepath.Join(root, "out", "app", "actions.js")))

	// Changing an option invalidates every entry.
	args.Pass.ManifestComment = true
	require.NoError(t, wf.Transform(context.Background(), args))
	assert.Equal(t, 0, shown.lastSummary(t).Cached)
	assert.Contains(t, readOutput(t, filepath.Join(root, "out", "app", "actions.js")), "/* @server-actions ")

	// Changing a file invalidates only that file.
	writeFile(t, filepath.Join(root, "lib", "util.js"), "export const answer = 43;\n")
	require.NoError(t, wf.Transform(context.Background(), args))
	assert.Equal(t, 2, shown.lastSummary(t).Cached)
}

func TestWorkflow_Transform_Stdout(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := newProject(t, projectFiles())
	ui := controllermocks.NewMockUI(t)
	expectSession(ui, controller.ModeTransform)
	expectResults(ui)

	var titles, outputs []string

	ui.EXPECT().DisplayOutput(mock.Anything, mock.Anything, mock.Anything).
		Run(func(_ context.Context, title string, text string) {
			titles = append(titles, title)
			outputs = append(outputs, text)
		}).
		Return()

	wf := newTestWorkflow(ui, nil, nil)

	args := transformArgs(root)
	args.Stdout = true

	require.NoError(t, wf.Transform(context.Background(), args))

	require.Equal(t, []string{filepath.Join("app", "actions.js"), filepath.Join("app", "page.jsx")}, titles)
	assert.Contains(t, outputs[0], "$$register(async function greet")
	assert.NoDirExists(t, filepath.Join(root, "out"))
	assert.NoFileExists(t, string(args.DirectoryFile))
}

func TestWorkflow_Transform_Diff(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := newProject(t, map[string]string{"app/actions.js": serverFile})
	ui := controllermocks.NewMockUI(t)
	expectSession(ui, controller.ModeTransform)
	expectResults(ui)

	title := filepath.Join("app", "actions.js")
	ui.EXPECT().DisplayOutput(mock.Anything, title, mock.MatchedBy(func(diff string) bool {
		return strings.HasPrefix(diff, "--- a/"+title+"\n") &&
			strings.Contains(diff, "-export async function greet(name) {\n") &&
			strings.Contains(diff, "+export var greet = $$register(async function greet(name) {\n")
	})).Return().Once()

	wf := newTestWorkflow(ui, nil, nil)

	args := transformArgs(root)
	args.Diff = true

	require.NoError(t, wf.Transform(context.Background(), args))
	assert.NoDirExists(t, filepath.Join(root, "out"))
}

func TestWorkflow_Transform_IncludeExclude(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := newProject(t, map[string]string{
		"app/actions.js":      serverFile,
		"app/actions.test.js": serverFile,
		"app/types.ts":        "export type A = string;\n",
	})
	ui := controllermocks.NewMockUI(t)
	expectSession(ui, controller.ModeTransform)
	shown := expectResults(ui)

	wf := newTestWorkflow(ui, nil, nil)

	args := transformArgs(root)
	args.Filter.Include = []string{"*.js"}
	args.Filter.Exclude = []string{"*.test.js"}

	require.NoError(t, wf.Transform(context.Background(), args))

	results := shown.lastResults(t)
	require.Len(t, results, 1)
	assert.Equal(t, "app/actions.js", results[0].Source.ID)
}

func TestWorkflow_Transform_MissingPath(t *testing.T) {
	defer goleak.VerifyNone(t)

	ui := controllermocks.NewMockUI(t)
	expectSession(ui, controller.ModeTransform)
	ui.EXPECT().DisplayError(mock.Anything, mock.MatchedBy(func(err error) bool {
		return errors.Is(err, os.ErrNotExist)
	})).Return().Once()

	wf := newTestWorkflow(ui, nil, nil)

	args := transformArgs(t.TempDir())
	args.Paths = []m.Path{m.Path(filepath.Join(t.TempDir(), "missing"))}

	err := wf.Transform(context.Background(), args)
	require.ErrorIs(t, err, os.ErrNotExist)
	ui.AssertNotCalled(t, "DisplayResults", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkflow_Transform_StartFails(t *testing.T) {
	ui := controllermocks.NewMockUI(t)
	startErr := errors.New("no terminal")
	ui.EXPECT().Start(mock.Anything, mock.Anything).Return(startErr).Once()

	wf := newTestWorkflow(ui, nil, nil)

	err := wf.Transform(context.Background(), transformArgs(t.TempDir()))
	require.ErrorIs(t, err, startErr)
	ui.AssertNotCalled(t, "Close", mock.Anything)
}

func TestWorkflow_Transform_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := newProject(t, projectFiles())
	ui := controllermocks.NewMockUI(t)
	expectSession(ui, controller.ModeTransform)
	ui.EXPECT().DisplayError(mock.Anything, mock.Anything).Return().Once()

	wf := newTestWorkflow(ui, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := wf.Transform(ctx, transformArgs(root))
	require.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, filepath.Join(root, "out"))
}

func TestWorkflow_List(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := newProject(t, map[string]string{
		"app/actions.js": serverFile,
		"app/broken.js":  notAsyncFile,
	})
	ui := controllermocks.NewMockUI(t)
	expectSession(ui, controller.ModeList)
	shown := expectResults(ui)

	wf := newTestWorkflow(ui, nil, nil)

	err := wf.List(context.Background(), ListArgs{Paths: []m.Path{m.Path(root + "/...")}, Threads: 1})
	require.NoError(t, err)

	results := shown.lastResults(t)
	require.Len(t, results, 2)
	assert.Equal(t, m.Transformed, results[0].Status)
	assert.Equal(t, []string{"greet"}, results[0].Names)
	assert.Equal(t, m.Failed, results[1].Status)

	ui.AssertNotCalled(t, "DisplayError", mock.Anything, mock.Anything)
	assert.NoDirExists(t, filepath.Join(root, "out"))
}

func TestWorkflow_Manifest(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := newProject(t, projectFiles())
	args := transformArgs(root)

	build := controllermocks.NewMockUI(t)
	expectSession(build, controller.ModeTransform)
	expectResults(build)
	require.NoError(t, newTestWorkflow(build, nil, nil).Transform(context.Background(), args))

	ui := controllermocks.NewMockUI(t)
	ui.EXPECT().Start(mock.Anything, startMode(controller.ModeManifest)).Return(nil).Once()
	ui.EXPECT().DisplayDirectory(mock.Anything, mock.MatchedBy(func(dir m.Directory) bool {
		return dir.BuildID == "build-1" && len(dir.Files) == 2
	})).Return(nil).Once()
	ui.EXPECT().Wait(mock.Anything).Return().Once()
	ui.EXPECT().Close(mock.Anything).Return().Once()

	wf := newTestWorkflow(ui, nil, nil)

	require.NoError(t, wf.Manifest(context.Background(), ManifestArgs{File: args.DirectoryFile}))

	err := wf.Manifest(context.Background(), ManifestArgs{File: m.Path(filepath.Join(root, "none.json"))})
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "run transform first")
}

func TestWorkflow_Watch_MergesChangedFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := newProject(t, map[string]string{"app/actions.js": serverFile})
	added := filepath.Join(root, "app", "more.js")
	outside := filepath.Join(t.TempDir(), "elsewhere.js")

	watcher := adaptermocks.NewMockWatcher(t)
	watcher.EXPECT().Watch(mock.Anything, []m.Path{m.Path(root)}, mock.Anything).
		Run(func(_ context.Context, _ []m.Path, onChange func([]m.Path)) {
			writeFile(t, added, "\"use server\";\n\nexport async function more() {}\n")
			writeFile(t, outside, serverFile)
			onChange([]m.Path{m.Path(added), m.Path(outside), m.Path(filepath.Join(root, "app", "gone.js"))})
		}).
		Return(nil).Once()

	ui := controllermocks.NewMockUI(t)
	ui.EXPECT().Start(mock.Anything, startMode(controller.ModeWatch)).Return(nil).Once()
	ui.EXPECT().Close(mock.Anything).Return().Once()
	expectProgress(ui)
	shown := expectResults(ui)

	wf := newTestWorkflow(ui, nil, watcher)
	args := transformArgs(root)

	require.NoError(t, wf.Watch(context.Background(), args))

	require.Len(t, shown.results, 2)
	require.Len(t, shown.results[1], 1, "only the in-scope existing file is re-transformed")
	ui.AssertNotCalled(t, "Wait", mock.Anything)

	dir, err := adapter.NewLocalDirectoryStore().LoadDirectory(args.DirectoryFile)
	require.NoError(t, err)
	require.Len(t, dir.Files, 2)
	assert.Equal(t, "app/actions.js", dir.Files[0].ID)
	assert.Equal(t, "app/more.js", dir.Files[1].ID)
	assert.Contains(t, dir.Actions, "app/more.js#more")
	assert.Contains(t, dir.Actions, "app/actions.js#greet")

	assert.FileExists(t, filepath.Join(root, "out", "app", "more.js"))
}
