package domain

import (
	"context"
	"fmt"
	"strconv"

	"actionlift.dev/pkg/actionlift/internal/adapter"
	"actionlift.dev/pkg/actionlift/internal/domain/actions"
	m "actionlift.dev/pkg/actionlift/internal/model"
)

// PassOptions configures the server-action pass for every file of a run.
type PassOptions struct {
	RuntimeModule   string
	RegisterName    string
	ManifestComment bool
}

// fingerprint identifies the options that change the pass output, for cache keys.
func (o PassOptions) fingerprint() []string {
	return []string{o.RuntimeModule, o.RegisterName, strconv.FormatBool(o.ManifestComment)}
}

// Transformer runs the pass over one source file.
type Transformer interface {
	// TransformSource returns the file's result. A file the pass rejects is
	// reported as a Failed result, not as an error; errors are reserved for
	// I/O failures and cancellation.
	TransformSource(ctx context.Context, source m.Source, opts PassOptions) (m.FileResult, error)
}

type transformer struct {
	adapter.SourceFSAdapter
	adapter.ScriptAdapter
}

// NewTransformer creates a Transformer reading files through fs and parsing
// them with scripts.
func NewTransformer(fs adapter.SourceFSAdapter, scripts adapter.ScriptAdapter) Transformer {
	return &transformer{SourceFSAdapter: fs, ScriptAdapter: scripts}
}

func (t *transformer) TransformSource(ctx context.Context, source m.Source, opts PassOptions) (m.FileResult, error) {
	result := m.FileResult{Source: source}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if source.Origin == nil {
		return result, fmt.Errorf("source %q has no origin", source.ID)
	}

	src, err := t.ReadFile(source.Origin.FullPath)
	if err != nil {
		return result, fmt.Errorf("read %s: %w", source.Origin.FullPath, err)
	}

	display := source.Origin.ShortPath
	if display == "" {
		display = source.Origin.FullPath
	}

	tree, err := t.Parse(string(display), src)
	if err != nil {
		return failed(result, actions.WrapParseError(err), src)
	}

	out, err := actions.Transform(tree, actions.Options{
		FileID:          source.ID,
		RuntimeModule:   opts.RuntimeModule,
		RegisterName:    opts.RegisterName,
		ManifestComment: opts.ManifestComment,
	})
	if err != nil {
		return failed(result, err, src)
	}

	result.Status = m.Unchanged
	if out.Changed {
		result.Status = m.Transformed
	}

	result.Mode = out.Mode.String()
	result.Names = out.Manifest.Names
	result.Code = []byte(out.Code)

	for _, a := range out.Actions {
		result.Actions = append(result.Actions, m.Action{
			Name:      a.Name,
			Binding:   a.Binding,
			LocalName: a.LocalName,
			Captures:  a.Captures,
			Shape:     string(a.Shape),
			Hoisted:   a.Hoisted,
			Line:      a.Pos.Line,
			Column:    a.Pos.Column,
		})
	}

	for _, d := range out.Diagnostics {
		result.Diagnostics = append(result.Diagnostics, m.Diagnostic{
			Line:    d.Pos.Line,
			Column:  d.Pos.Column,
			Message: d.Message,
		})
	}

	return result, nil
}

// failed turns a pass error into a Failed result with a code frame. Errors
// that are not pass errors are returned as is.
func failed(result m.FileResult, err error, src []byte) (m.FileResult, error) {
	pe, ok := actions.AsPassError(err)
	if !ok {
		return result, err
	}

	result.Status = m.Failed
	result.ErrCode = string(pe.Code)
	result.Err = pe.Frame(src)

	return result, nil
}
