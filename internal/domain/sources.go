package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"actionlift.dev/pkg/actionlift/internal/adapter"
	"actionlift.dev/pkg/actionlift/internal/domain/actions"
	m "actionlift.dev/pkg/actionlift/internal/model"
)

// recursiveSuffix marks a path pattern that includes every directory below it.
const recursiveSuffix = "/..."

// pathPattern is one parsed command-line path.
type pathPattern struct {
	root      string
	recursive bool
}

// parsePattern splits "./src/..." into its root and the recursive flag.
// An empty pattern means the current directory.
func parsePattern(p m.Path) pathPattern {
	s := filepath.ToSlash(string(p))

	switch {
	case s == "" || s == ".":
		return pathPattern{root: "."}
	case s == "...":
		return pathPattern{root: ".", recursive: true}
	case strings.HasSuffix(s, recursiveSuffix):
		root := strings.TrimSuffix(s, recursiveSuffix)
		if root == "" {
			root = "/"
		}

		return pathPattern{root: filepath.FromSlash(root), recursive: true}
	default:
		return pathPattern{root: filepath.FromSlash(s)}
	}
}

// contains reports whether path falls under the pattern.
func (p pathPattern) contains(path string) bool {
	root, err := filepath.Abs(p.root)
	if err != nil {
		return false
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	if abs == root {
		return true
	}

	if p.recursive {
		rel, err := filepath.Rel(root, abs)
		return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
	}

	return filepath.Dir(abs) == root
}

// SourceFilter selects which discovered files are transformed.
type SourceFilter struct {
	// Include, when non-empty, keeps only files matching one of the globs.
	Include []string
	// Exclude drops files matching any of the globs.
	Exclude []string
	// Root overrides project root discovery.
	Root m.Path
	// HashIDs replaces file identities with their hash.
	HashIDs bool
}

// collectSources resolves path patterns into script sources sorted by path.
// Each file gets its project root and identity; a file given explicitly is
// kept even when the include globs would not select it. Directories in skip
// (the output directory) are never walked.
func (w *workflow) collectSources(ctx context.Context, paths []m.Path, filter SourceFilter, skip ...m.Path) ([]m.Source, error) {
	if len(paths) == 0 {
		paths = []m.Path{"."}
	}

	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		if abs, err := filepath.Abs(string(p)); err == nil && p != "" {
			skipped[abs] = true
		}
	}

	roots := newRootResolver(w.SourceFSAdapter, filter.Root)
	seen := make(map[string]bool)

	var sources []m.Source

	add := func(path string, explicit bool) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		if seen[abs] {
			return nil
		}

		keep, err := w.selected(abs, filter, explicit)
		if err != nil || !keep {
			return err
		}

		seen[abs] = true

		src, err := w.newSource(abs, roots, filter.HashIDs)
		if err != nil {
			return err
		}

		sources = append(sources, src)

		return nil
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pattern := parsePattern(p)

		info, err := w.FileInfo(m.Path(pattern.root))
		if err != nil {
			return nil, fmt.Errorf("path %s: %w", p, err)
		}

		if !info.IsDir() {
			if err := add(pattern.root, true); err != nil {
				return nil, err
			}

			continue
		}

		err = w.Walk(m.Path(pattern.root), pattern.recursive, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if info.IsDir() {
				if abs, err := filepath.Abs(path); err == nil && skipped[abs] {
					return filepath.SkipDir
				}

				return nil
			}

			if !adapter.IsScriptFile(path) {
				return nil
			}

			return add(path, false)
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}

	slices.SortFunc(sources, func(a, b m.Source) int {
		return strings.Compare(string(a.Origin.FullPath), string(b.Origin.FullPath))
	})

	slog.Debug("collected sources", "patterns", len(paths), "files", len(sources))

	return sources, nil
}

func (w *workflow) selected(abs string, filter SourceFilter, explicit bool) (bool, error) {
	target := abs
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, abs); err == nil && !strings.HasPrefix(rel, "..") {
			target = rel
		}
	}

	excluded, err := w.Match(filter.Exclude, m.Path(target))
	if err != nil {
		return false, fmt.Errorf("exclude: %w", err)
	}

	if excluded {
		return false, nil
	}

	if explicit || len(filter.Include) == 0 {
		return true, nil
	}

	included, err := w.Match(filter.Include, m.Path(target))
	if err != nil {
		return false, fmt.Errorf("include: %w", err)
	}

	return included, nil
}

func (w *workflow) newSource(abs string, roots *rootResolver, hashIDs bool) (m.Source, error) {
	hash, err := w.HashFile(m.Path(abs))
	if err != nil {
		return m.Source{}, fmt.Errorf("hash %s: %w", abs, err)
	}

	root, err := roots.rootOf(abs)
	if err != nil {
		return m.Source{}, err
	}

	short := m.Path(filepath.Base(abs))

	base := string(root)
	if base == "" {
		base, _ = os.Getwd()
	}

	if rel, err := w.RelPath(m.Path(base), m.Path(abs)); err == nil && !strings.HasPrefix(string(rel), "..") {
		short = rel
	}

	return m.Source{
		Origin: &m.File{FullPath: m.Path(abs), ShortPath: short, Hash: hash},
		Root:   root,
		ID:     actions.FileID(abs, string(root), hashIDs),
	}, nil
}

// rootResolver memoizes project root lookups per directory.
type rootResolver struct {
	fs       adapter.SourceFSAdapter
	explicit m.Path
	byDir    map[string]m.Path
}

func newRootResolver(fs adapter.SourceFSAdapter, explicit m.Path) *rootResolver {
	if explicit != "" {
		if abs, err := filepath.Abs(string(explicit)); err == nil {
			explicit = m.Path(abs)
		}
	}

	return &rootResolver{fs: fs, explicit: explicit, byDir: make(map[string]m.Path)}
}

func (r *rootResolver) rootOf(abs string) (m.Path, error) {
	if r.explicit != "" {
		return r.explicit, nil
	}

	dir := filepath.Dir(abs)
	if root, ok := r.byDir[dir]; ok {
		return root, nil
	}

	root, err := r.fs.FindProjectRoot(m.Path(dir))
	if errors.Is(err, adapter.ErrNoProjectRoot) {
		slog.Debug("no project root, using file URL identity", "dir", dir)

		root, err = "", nil
	}

	if err != nil {
		return "", fmt.Errorf("project root of %s: %w", abs, err)
	}

	r.byDir[dir] = root

	return root, nil
}
