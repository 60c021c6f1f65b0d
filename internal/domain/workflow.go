// Package domain orchestrates the server-action pass over a project: source
// discovery, parallel transformation, caching, output and the action
// directory.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"actionlift.dev/pkg/actionlift/internal/adapter"
	"actionlift.dev/pkg/actionlift/internal/controller"
	m "actionlift.dev/pkg/actionlift/internal/model"
	"actionlift.dev/pkg/actionlift/pkg/filespill"
)

// ErrFilesFailed is returned when at least one file was rejected by the pass.
var ErrFilesFailed = errors.New("transform failed")

// TransformArgs contains the arguments of a transform run.
type TransformArgs struct {
	Paths  []m.Path
	Filter SourceFilter
	Pass   PassOptions
	// Output is the directory transformed files are written under, mirroring
	// their path relative to the project root.
	Output m.Path
	// Stdout prints transformed files instead of writing them.
	Stdout bool
	// Diff prints unified diffs instead of writing files.
	Diff      bool
	Threads   int
	KeepGoing bool
	UseCache  bool
	// DirectoryFile is where the merged action directory is written. Empty
	// disables it.
	DirectoryFile m.Path
	// SpillDir holds the temporary results spool. Empty uses the system default.
	SpillDir string

	// merge updates an existing directory instead of replacing it.
	merge bool
}

func (a TransformArgs) preview() bool {
	return a.Stdout || a.Diff
}

// ListArgs contains the arguments of a list run.
type ListArgs struct {
	Paths    []m.Path
	Filter   SourceFilter
	Pass     PassOptions
	Threads  int
	UseCache bool
}

// ManifestArgs contains the arguments for displaying a saved directory.
type ManifestArgs struct {
	File m.Path
}

// Workflow defines the commands the CLI exposes.
type Workflow interface {
	Transform(ctx context.Context, args TransformArgs) error
	List(ctx context.Context, args ListArgs) error
	// Watch runs Transform once and again for every batch of changed files
	// until ctx is done.
	Watch(ctx context.Context, args TransformArgs) error
	Manifest(ctx context.Context, args ManifestArgs) error
}

type workflow struct {
	adapter.SourceFSAdapter
	adapter.DirectoryStore
	controller.UI
	Transformer

	cache   adapter.CacheStore
	watcher adapter.Watcher

	now   func() time.Time
	newID func() string
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
// cache may be nil, which disables caching regardless of the run arguments.
func NewWorkflow(
	fsAdapter adapter.SourceFSAdapter,
	directoryStore adapter.DirectoryStore,
	watcher adapter.Watcher,
	ui controller.UI,
	transformer Transformer,
	cache adapter.CacheStore,
) Workflow {
	return &workflow{
		SourceFSAdapter: fsAdapter,
		DirectoryStore:  directoryStore,
		UI:              ui,
		Transformer:     transformer,
		cache:           cache,
		watcher:         watcher,
		now:             time.Now,
		newID:           uuid.NewString,
	}
}

// outcome is what a run produced. results carry no code and are sorted by path.
type outcome struct {
	results []m.FileResult
	summary m.Summary
}

func (w *workflow) Transform(ctx context.Context, args TransformArgs) error {
	if err := w.Start(ctx, controller.WithTransformMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	err := w.runAndReport(ctx, args)

	w.Wait(ctx)
	w.Close(ctx)

	return err
}

func (w *workflow) List(ctx context.Context, args ListArgs) error {
	if err := w.Start(ctx, controller.WithListMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	out, err := w.run(ctx, TransformArgs{
		Paths:     args.Paths,
		Filter:    args.Filter,
		Pass:      args.Pass,
		Threads:   args.Threads,
		UseCache:  args.UseCache,
		KeepGoing: true,
	}, false)
	if err == nil || errors.Is(err, ErrFilesFailed) {
		if derr := w.DisplayResults(ctx, out.results, out.summary); derr != nil {
			err = errors.Join(err, derr)
		}
	}

	if err != nil && !errors.Is(err, ErrFilesFailed) {
		w.DisplayError(ctx, err)
	}

	w.Wait(ctx)
	w.Close(ctx)

	// Rejected files are part of the listing, not a failure of the command.
	if errors.Is(err, ErrFilesFailed) {
		return nil
	}

	return err
}

func (w *workflow) Watch(ctx context.Context, args TransformArgs) error {
	if err := w.Start(ctx, controller.WithWatchMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	defer w.Close(ctx)

	if err := w.runAndReport(ctx, args); err != nil && !errors.Is(err, ErrFilesFailed) {
		return err
	}

	paths := args.Paths
	if len(paths) == 0 {
		paths = []m.Path{"."}
	}

	patterns := make([]pathPattern, 0, len(paths))
	roots := make([]m.Path, 0, len(paths))

	for _, p := range paths {
		pattern := parsePattern(p)
		patterns = append(patterns, pattern)
		roots = append(roots, m.Path(pattern.root))
	}

	slog.Info("watching for changes", "roots", len(roots))

	return w.watcher.Watch(ctx, roots, func(changed []m.Path) {
		batch := w.watchBatch(changed, patterns, args)
		if len(batch) == 0 {
			return
		}

		slog.Info("re-transforming changed files", "count", len(batch))

		next := args
		next.Paths = batch
		next.merge = true

		// Failures are reported through the UI; watching continues.
		_ = w.runAndReport(ctx, next)
	})
}

// watchBatch keeps the changed paths that still exist and fall under the
// watched patterns and filters. Files written by the run itself are ignored.
func (w *workflow) watchBatch(changed []m.Path, patterns []pathPattern, args TransformArgs) []m.Path {
	var batch []m.Path

	output := pathPattern{root: string(args.Output), recursive: true}

	for _, p := range changed {
		if args.Output != "" && output.contains(string(p)) {
			continue
		}

		if _, err := w.FileInfo(p); err != nil {
			slog.Debug("skipping removed file", "path", p)
			continue
		}

		inScope := slices.ContainsFunc(patterns, func(pattern pathPattern) bool {
			return pattern.contains(string(p))
		})
		if !inScope {
			continue
		}

		if keep, err := w.selected(string(p), args.Filter, false); err != nil || !keep {
			continue
		}

		batch = append(batch, p)
	}

	return batch
}

func (w *workflow) Manifest(ctx context.Context, args ManifestArgs) error {
	dir, err := w.LoadDirectory(args.File)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no action directory at %s, run transform first: %w", args.File, err)
		}

		return fmt.Errorf("load directory: %w", err)
	}

	if err := w.Start(ctx, controller.WithManifestMode()); err != nil {
		return err
	}

	err = w.DisplayDirectory(ctx, dir)

	w.Wait(ctx)
	w.Close(ctx)

	return err
}

func (w *workflow) runAndReport(ctx context.Context, args TransformArgs) error {
	out, err := w.run(ctx, args, true)

	if err == nil || errors.Is(err, ErrFilesFailed) {
		if derr := w.DisplayResults(ctx, out.results, out.summary); derr != nil {
			err = errors.Join(err, derr)
		}
	}

	if err != nil {
		w.DisplayError(ctx, err)
	}

	return err
}

// run transforms every source. Results are spooled to disk while workers
// run, then replayed to write outputs and the directory. Without KeepGoing
// the first rejected file cancels the run and nothing is written.
//
//nolint:cyclop,funlen // The run stages are easier to follow in one place.
func (w *workflow) run(ctx context.Context, args TransformArgs, write bool) (outcome, error) {
	var out outcome

	start := w.now()
	buildID := w.newID()
	log := slog.With("build_id", buildID)

	sources, err := w.collectSources(ctx, args.Paths, args.Filter, args.Output)
	if err != nil {
		return out, fmt.Errorf("get sources: %w", err)
	}

	threads := args.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	w.DisplayRunInfo(ctx, controller.RunInfo{
		BuildID: buildID,
		Files:   len(sources),
		Threads: threads,
		Cache:   args.UseCache && w.cache != nil,
	})

	log.Info("transform started", "files", len(sources), "threads", threads)

	spill, err := filespill.New[m.FileResult](args.SpillDir)
	if err != nil {
		return out, fmt.Errorf("open results spool: %w", err)
	}

	defer func() {
		if err := spill.Close(); err != nil {
			log.Warn("failed to close results spool", "error", err)
		}
	}()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(threads)

	for _, source := range sources {
		group.Go(func() error {
			result, err := w.transformCached(groupCtx, source, args)
			if err != nil {
				return fmt.Errorf("transform %s: %w", source.Origin.ShortPath, err)
			}

			if err := spill.Append(result); err != nil {
				return err
			}

			w.DisplayFileResult(groupCtx, withoutCode(result))

			if result.Status != m.Failed {
				return nil
			}

			log.Warn("file rejected", "file", source.ID, "code", result.ErrCode)

			if !args.KeepGoing {
				return fmt.Errorf("%w: %s: %s", ErrFilesFailed, source.Origin.ShortPath, result.ErrCode)
			}

			return nil
		})
	}

	runErr := group.Wait()

	// index maps each sorted result back to its spool position.
	var index []uint64

	replay := func(i uint64, r m.FileResult) error {
		out.results = append(out.results, withoutCode(r))
		index = append(index, i)

		if runErr != nil || !write || args.preview() || r.Status == m.Failed || args.Output == "" {
			return nil
		}

		return w.writeOutput(args.Output, r)
	}

	if err := spill.Range(replay); err != nil {
		return out, errors.Join(runErr, fmt.Errorf("replay results: %w", err))
	}

	order := make([]int, len(out.results))
	for i := range order {
		order[i] = i
	}

	slices.SortFunc(order, func(a, b int) int {
		return strings.Compare(sortKey(out.results[a]), sortKey(out.results[b]))
	})

	sorted := make([]m.FileResult, len(order))
	sortedIndex := make([]uint64, len(order))

	for i, j := range order {
		sorted[i] = out.results[j]
		sortedIndex[i] = index[j]
	}

	out.results = sorted
	out.summary = m.Summary{BuildID: buildID}

	for _, r := range out.results {
		out.summary.Add(r)
	}

	out.summary.Elapsed = w.now().Sub(start)

	if runErr != nil {
		return out, runErr
	}

	if write && args.preview() {
		if err := w.preview(ctx, args, spill, out.results, sortedIndex); err != nil {
			return out, err
		}
	}

	if write && !args.preview() && args.DirectoryFile != "" {
		if err := w.saveDirectory(args, buildID, out.results); err != nil {
			return out, err
		}
	}

	log.Info("transform finished",
		"files", out.summary.Files,
		"transformed", out.summary.Transformed,
		"failed", out.summary.Failed,
		"cached", out.summary.Cached,
		"actions", out.summary.Actions,
		"elapsed", out.summary.Elapsed)

	if out.summary.Failed > 0 {
		return out, fmt.Errorf("%w: %d of %d files", ErrFilesFailed, out.summary.Failed, out.summary.Files)
	}

	return out, nil
}

func (w *workflow) transformCached(ctx context.Context, source m.Source, args TransformArgs) (m.FileResult, error) {
	if !args.UseCache || w.cache == nil {
		return w.TransformSource(ctx, source, args.Pass)
	}

	key := adapter.CacheKey(source.ID, source.Origin.Hash, args.Pass.fingerprint()...)

	cached, err := w.cache.Load(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return m.FileResult{}, ctx.Err()
		}

		slog.Warn("cache lookup failed", "file", source.ID, "error", err)
	}

	if cached != nil {
		cached.Source = source
		cached.Cached = true

		return *cached, nil
	}

	result, err := w.TransformSource(ctx, source, args.Pass)
	if err != nil {
		return result, err
	}

	if err := w.cache.Save(ctx, key, result); err != nil {
		slog.Warn("cache store failed", "file", source.ID, "error", err)
	}

	return result, nil
}

func (w *workflow) writeOutput(outputDir m.Path, r m.FileResult) error {
	target := w.JoinPath(string(outputDir), string(r.Source.Origin.ShortPath))

	if err := w.WriteFile(target, r.Code, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	slog.Debug("wrote output", "file", r.Source.ID, "path", target)

	return nil
}

// preview prints transformed code or diffs in path order.
func (w *workflow) preview(ctx context.Context, args TransformArgs, spill filespill.Spill[m.FileResult], results []m.FileResult, index []uint64) error {
	for i, r := range results {
		if r.Status != m.Transformed {
			continue
		}

		full, err := spill.Get(index[i])
		if err != nil {
			return fmt.Errorf("read spooled result: %w", err)
		}

		title := string(r.Source.Origin.ShortPath)

		if !args.Diff {
			w.DisplayOutput(ctx, title, string(full.Code))
			continue
		}

		before, err := w.ReadFile(r.Source.Origin.FullPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", r.Source.Origin.FullPath, err)
		}

		diff, err := UnifiedDiff(title, before, full.Code)
		if err != nil {
			return fmt.Errorf("diff %s: %w", title, err)
		}

		if diff != "" {
			w.DisplayOutput(ctx, title, diff)
		}
	}

	return nil
}

func (w *workflow) saveDirectory(args TransformArgs, buildID string, results []m.FileResult) error {
	dir := BuildDirectory(buildID, w.now().UTC(), results)

	if args.merge {
		base, err := w.LoadDirectory(args.DirectoryFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load directory: %w", err)
		}

		touched := make([]string, 0, len(results))
		for _, r := range results {
			touched = append(touched, r.Source.ID)
		}

		dir = MergeDirectory(base, dir, touched)
	}

	if err := w.SaveDirectory(args.DirectoryFile, dir); err != nil {
		return fmt.Errorf("save directory: %w", err)
	}

	slog.Debug("saved action directory", "path", args.DirectoryFile, "files", len(dir.Files), "actions", len(dir.Actions))

	return nil
}

func withoutCode(r m.FileResult) m.FileResult {
	r.Code = nil
	return r
}

func sortKey(r m.FileResult) string {
	if r.Source.Origin == nil {
		return r.Source.ID
	}

	return string(r.Source.Origin.FullPath)
}
