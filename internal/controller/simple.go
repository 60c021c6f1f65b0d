package controller

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "actionlift.dev/pkg/actionlift/internal/model"
)

// SimpleUI implements UI using cobra Command's output writer.
// Once generated output has been printed, reports go to stderr so stdout
// stays pipeable.
type SimpleUI struct {
	cmd     *cobra.Command
	mu      sync.Mutex
	mode    StartMode
	outputs bool
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.mode = newStartConfig(options).mode
	s.outputs = false
	s.mu.Unlock()

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(context.Context) {}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(context.Context) {}

// DisplayRunInfo prints what is about to be processed.
func (s *SimpleUI) DisplayRunInfo(ctx context.Context, info RunInfo) {
	if ctx.Err() != nil || s.currentMode() != ModeWatch {
		return
	}

	s.printf("Transforming %d file(s) with %d worker(s)\n", info.Files, info.Threads)
}

// DisplayFileResult prints rejected files as they are found, and every file
// in watch mode.
func (s *SimpleUI) DisplayFileResult(ctx context.Context, result m.FileResult) {
	if ctx.Err() != nil {
		return
	}

	if result.Status == m.Failed {
		s.reportf("%s %s [%s]\n%s\n", failedMark, displayPath(result), result.ErrCode, result.Err)
		return
	}

	if s.currentMode() == ModeWatch {
		s.printf("%s %s: %d action(s)\n", okMark, displayPath(result), len(result.Names))
	}
}

// DisplayOutput prints generated code or a diff.
func (s *SimpleUI) DisplayOutput(ctx context.Context, title string, text string) {
	if ctx.Err() != nil {
		return
	}

	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	s.mu.Lock()
	s.outputs = true
	s.mu.Unlock()

	s.printf("// %s\n%s", title, text)
}

// DisplayResults prints the per-file table, warnings and the summary line.
func (s *SimpleUI) DisplayResults(ctx context.Context, results []m.FileResult, summary m.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.currentMode() == ModeWatch {
		s.printf("%s\n", summaryLine(summary))
		return nil
	}

	s.reportf("\n%s", renderResultsTable(results))

	if warnings := renderWarnings(results); warnings != "" {
		s.reportf("\n%s", warnings)
	}

	s.reportf("\n%s\n", summaryLine(summary))

	return nil
}

// DisplayDirectory prints the action directory as a table.
func (s *SimpleUI) DisplayDirectory(ctx context.Context, dir m.Directory) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("Build %s generated %s\n\n%s", dir.BuildID, dir.GeneratedAt.Format("2006-01-02 15:04:05 MST"), renderDirectoryTable(dir))

	return nil
}

// DisplayError prints err.
func (s *SimpleUI) DisplayError(ctx context.Context, err error) {
	if ctx.Err() != nil || err == nil {
		return
	}

	s.reportf("error: %v\n", err)
}

func (s *SimpleUI) currentMode() StartMode {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mode
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

// reportf writes to stdout, or to stderr after generated output was printed.
func (s *SimpleUI) reportf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.cmd.OutOrStdout()
	if s.outputs {
		w = s.cmd.ErrOrStderr()
	}

	_, _ = fmt.Fprintf(w, format, args...)
}

const (
	okMark     = "✓"
	failedMark = "✗"
)

func displayPath(r m.FileResult) string {
	if r.Source.Origin != nil && r.Source.Origin.ShortPath != "" {
		return string(r.Source.Origin.ShortPath)
	}

	return r.Source.ID
}

func statusLabel(r m.FileResult) string {
	label := r.Status.String()
	if r.Status == m.Failed && r.ErrCode != "" {
		label += " (" + r.ErrCode + ")"
	}

	if r.Cached {
		label += ", cached"
	}

	return label
}

func renderResultsTable(results []m.FileResult) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Path", "Mode", "Status", "Actions"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
	})

	total := 0

	for _, r := range results {
		mode := r.Mode
		if mode == "" {
			mode = "-"
		}

		table.Append([]string{displayPath(r), mode, statusLabel(r), fmt.Sprintf("%d", len(r.Names))})

		total += len(r.Names)
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", len(results)),
		"",
		"",
		fmt.Sprintf("%d", total),
	})

	table.Render()

	return tableBuffer.String()
}

func renderWarnings(results []m.FileResult) string {
	var b strings.Builder

	for _, r := range results {
		for _, d := range r.Diagnostics {
			fmt.Fprintf(&b, "warning: %s:%d:%d: %s\n", displayPath(r), d.Line, d.Column, d.Message)
		}
	}

	return b.String()
}

func renderDirectoryTable(dir m.Directory) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Action", "File", "Name"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)

	keys := make([]string, 0, len(dir.Actions))
	for k := range dir.Actions {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		a := dir.Actions[k]
		table.Append([]string{k, a.File, a.Name})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", len(dir.Files)),
		"",
		fmt.Sprintf("%d", len(dir.Actions)),
	})

	table.Render()

	return tableBuffer.String()
}

func summaryLine(s m.Summary) string {
	line := fmt.Sprintf("%d file(s): %d transformed, %d unchanged, %d failed, %d action(s)",
		s.Files, s.Transformed, s.Unchanged, s.Failed, s.Actions)

	if s.Cached > 0 {
		line += fmt.Sprintf(", %d cached", s.Cached)
	}

	if s.Warnings > 0 {
		line += fmt.Sprintf(", %d warning(s)", s.Warnings)
	}

	return line + fmt.Sprintf(" in %s", s.Elapsed.Round(time.Millisecond))
}
