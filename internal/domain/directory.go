package domain

import (
	"slices"
	"strings"
	"time"

	m "actionlift.dev/pkg/actionlift/internal/model"
)

// BuildDirectory merges the manifests of results into the action directory.
// Failed files and files without actions are left out; files are sorted by
// identity so the output does not depend on scheduling.
func BuildDirectory(buildID string, generatedAt time.Time, results []m.FileResult) m.Directory {
	dir := m.Directory{
		BuildID:     buildID,
		GeneratedAt: generatedAt,
		Files:       []m.DirectoryFile{},
		Actions:     map[string]m.DirectoryAction{},
	}

	for _, r := range results {
		if r.Status == m.Failed || len(r.Names) == 0 {
			continue
		}

		path := ""
		if r.Source.Origin != nil {
			path = string(r.Source.Origin.ShortPath)
		}

		dir.Files = append(dir.Files, m.DirectoryFile{
			ID:    r.Source.ID,
			Path:  path,
			Names: slices.Clone(r.Names),
		})

		for _, name := range r.Names {
			dir.Actions[m.ActionKey(r.Source.ID, name)] = m.DirectoryAction{File: r.Source.ID, Name: name}
		}
	}

	slices.SortFunc(dir.Files, func(a, b m.DirectoryFile) int {
		return strings.Compare(a.ID, b.ID)
	})

	return dir
}

// MergeDirectory replaces the entries of every file in update within base and
// keeps the rest. Files in update without actions are removed from base.
func MergeDirectory(base, update m.Directory, touched []string) m.Directory {
	replaced := make(map[string]bool, len(touched))
	for _, id := range touched {
		replaced[id] = true
	}

	merged := m.Directory{
		BuildID:     update.BuildID,
		GeneratedAt: update.GeneratedAt,
		Files:       []m.DirectoryFile{},
		Actions:     map[string]m.DirectoryAction{},
	}

	for _, f := range base.Files {
		if replaced[f.ID] {
			continue
		}

		merged.Files = append(merged.Files, f)

		for _, name := range f.Names {
			merged.Actions[m.ActionKey(f.ID, name)] = m.DirectoryAction{File: f.ID, Name: name}
		}
	}

	for _, f := range update.Files {
		merged.Files = append(merged.Files, f)
	}

	for k, v := range update.Actions {
		merged.Actions[k] = v
	}

	slices.SortFunc(merged.Files, func(a, b m.DirectoryFile) int {
		return strings.Compare(a.ID, b.ID)
	})

	return merged
}
