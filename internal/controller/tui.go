package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "actionlift.dev/pkg/actionlift/internal/model"
)

// Reserved lines around the viewport: title, status, blank, help.
const chromeHeight = 4

// maxEvents bounds the watch-mode event log.
const maxEvents = 200

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// TUI implements UI with a Bubble Tea program showing progress and a
// scrollable results pane.
type TUI struct {
	output io.Writer
	input  io.Reader

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// Start launches the program in the background.
func (p *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.program != nil {
		return errors.New("ui already started")
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(p.output), tea.WithAltScreen()}
	if p.input != nil {
		opts = append(opts, tea.WithInput(p.input))
	}

	program := tea.NewProgram(newResultsModel(newStartConfig(options).mode), opts...)
	done := make(chan struct{})

	go func() {
		defer close(done)

		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			slog.Error("terminal UI stopped", "error", err)
		}
	}()

	p.program = program
	p.done = done

	return nil
}

// Close stops the program and waits for it to restore the terminal.
func (p *TUI) Close(ctx context.Context) {
	p.mu.Lock()
	program, done := p.program, p.done
	p.program, p.done = nil, nil
	p.mu.Unlock()

	if program == nil {
		return
	}

	program.Quit()

	select {
	case <-done:
	case <-ctx.Done():
		program.Kill()
		<-done
	}
}

// Wait blocks until the user quits the program.
func (p *TUI) Wait(ctx context.Context) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// DisplayRunInfo implements UI.
func (p *TUI) DisplayRunInfo(_ context.Context, info RunInfo) {
	p.send(runInfoMsg(info))
}

// DisplayFileResult implements UI.
func (p *TUI) DisplayFileResult(_ context.Context, result m.FileResult) {
	p.send(fileResultMsg(result))
}

// DisplayOutput implements UI.
func (p *TUI) DisplayOutput(_ context.Context, title string, text string) {
	p.send(outputMsg{title: title, text: text})
}

// DisplayResults implements UI.
func (p *TUI) DisplayResults(ctx context.Context, results []m.FileResult, summary m.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body := renderResultsTable(results)
	if warnings := renderWarnings(results); warnings != "" {
		body += "\n" + warnings
	}

	for _, r := range results {
		if r.Status == m.Failed {
			body += "\n" + failStyle.Render(failedMark+" "+displayPath(r)) + "\n" + r.Err
		}
	}

	p.send(resultsMsg{body: body, summary: summary})

	return nil
}

// DisplayDirectory implements UI.
func (p *TUI) DisplayDirectory(ctx context.Context, dir m.Directory) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	header := fmt.Sprintf("Build %s generated %s\n\n", dir.BuildID, dir.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	p.send(resultsMsg{body: header + renderDirectoryTable(dir)})

	return nil
}

// DisplayError implements UI.
func (p *TUI) DisplayError(_ context.Context, err error) {
	if err != nil {
		p.send(errorMsg{err: err})
	}
}

func (p *TUI) send(msg tea.Msg) {
	p.mu.Lock()
	program := p.program
	p.mu.Unlock()

	if program != nil {
		program.Send(msg)
	}
}

type (
	runInfoMsg    RunInfo
	fileResultMsg m.FileResult
	outputMsg     struct{ title, text string }
	resultsMsg    struct {
		body    string
		summary m.Summary
	}
	errorMsg struct{ err error }
)

// resultsModel is the Bubble Tea model behind TUI.
type resultsModel struct {
	mode      StartMode
	info      RunInfo
	processed int
	failed    int
	events    []string
	outputs   []string
	body      string
	summary   string
	err       error
	viewport  viewport.Model
	ready     bool
	quitting  bool
}

func newResultsModel(mode StartMode) resultsModel {
	return resultsModel{mode: mode}
}

func (rm resultsModel) Init() tea.Cmd {
	return nil
}

func (rm resultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-chromeHeight, 1)
		if !rm.ready {
			rm.viewport = viewport.New(msg.Width, height)
			rm.ready = true
		} else {
			rm.viewport.Width = msg.Width
			rm.viewport.Height = height
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			rm.quitting = true
			return rm, tea.Quit
		}

		var cmd tea.Cmd
		rm.viewport, cmd = rm.viewport.Update(msg)

		return rm, cmd

	case runInfoMsg:
		rm.info = RunInfo(msg)
		rm.processed = 0
		rm.failed = 0

	case fileResultMsg:
		rm.processed++

		r := m.FileResult(msg)
		if r.Status == m.Failed {
			rm.failed++
		}

		if rm.mode == ModeWatch {
			rm.events = append(rm.events, eventLine(r))
			if len(rm.events) > maxEvents {
				rm.events = rm.events[len(rm.events)-maxEvents:]
			}
		}

	case outputMsg:
		rm.outputs = append(rm.outputs, titleStyle.Render("// "+msg.title)+"\n"+msg.text)

	case resultsMsg:
		rm.body = msg.body
		if msg.summary.Files > 0 || msg.summary.BuildID != "" {
			rm.summary = summaryLine(msg.summary)
		}

	case errorMsg:
		rm.err = msg.err
	}

	if rm.ready {
		atBottom := rm.viewport.AtBottom()
		rm.viewport.SetContent(rm.content())

		if rm.mode == ModeWatch && atBottom {
			rm.viewport.GotoBottom()
		}
	}

	return rm, nil
}

func eventLine(r m.FileResult) string {
	if r.Status == m.Failed {
		return failStyle.Render(fmt.Sprintf("%s %s [%s]", failedMark, displayPath(r), r.ErrCode))
	}

	return okStyle.Render(okMark) + fmt.Sprintf(" %s: %d action(s)", displayPath(r), len(r.Names))
}

func (rm resultsModel) content() string {
	var b strings.Builder

	for _, e := range rm.events {
		b.WriteString(e + "\n")
	}

	if len(rm.events) > 0 {
		b.WriteString("\n")
	}

	for _, o := range rm.outputs {
		b.WriteString(o)

		if !strings.HasSuffix(o, "\n") {
			b.WriteString("\n")
		}
	}

	b.WriteString(rm.body)

	if rm.summary != "" {
		b.WriteString("\n" + rm.summary + "\n")
	}

	if rm.err != nil {
		b.WriteString("\n" + failStyle.Render("error: "+rm.err.Error()) + "\n")
	}

	return b.String()
}

func (rm resultsModel) status() string {
	if rm.mode == ModeManifest {
		return "action directory"
	}

	status := fmt.Sprintf("%d/%d file(s) processed", rm.processed, rm.info.Files)
	if rm.failed > 0 {
		status += fmt.Sprintf(", %d failed", rm.failed)
	}

	if rm.mode == ModeWatch {
		status += ", watching for changes"
	}

	return status
}

func (rm resultsModel) View() string {
	if rm.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("actionlift "+rm.mode.String()) + "\n")
	b.WriteString(statusStyle.Render(rm.status()) + "\n")

	if rm.ready {
		b.WriteString(rm.viewport.View())
	} else {
		b.WriteString(rm.content())
	}

	b.WriteString("\n" + helpStyle.Render("↑/k up • ↓/j down • pgup/pgdown page • q quit"))

	return b.String()
}
