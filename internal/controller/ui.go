// Package controller provides the output adapters that display transform
// progress, results and the action directory.
package controller

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	m "actionlift.dev/pkg/actionlift/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeTransform StartMode = iota
	ModeList
	ModeWatch
	ModeManifest
)

func (s StartMode) String() string {
	switch s {
	case ModeList:
		return "list"
	case ModeWatch:
		return "watch"
	case ModeManifest:
		return "manifest"
	default:
		return "transform"
	}
}

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode StartMode
}

// Mode returns the configured mode.
func (c StartConfig) Mode() StartMode {
	return c.mode
}

// WithTransformMode sets the UI to transform mode.
func WithTransformMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeTransform
	}
}

// WithListMode sets the UI to list mode.
func WithListMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeList
	}
}

// WithWatchMode sets the UI to watch mode. Results keep arriving until the
// workflow closes the UI.
func WithWatchMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeWatch
	}
}

// WithManifestMode sets the UI to directory display mode.
func WithManifestMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeManifest
	}
}

func newStartConfig(options []StartOption) StartConfig {
	var cfg StartConfig
	for _, opt := range options {
		opt(&cfg)
	}

	return cfg
}

// RunInfo describes a run before any file is processed.
type RunInfo struct {
	BuildID string
	Files   int
	Threads int
	Cache   bool
}

// UI defines the interface for displaying workflow output.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	Wait(ctx context.Context) // Wait for UI to finish (user closes it)
	DisplayRunInfo(ctx context.Context, info RunInfo)
	DisplayFileResult(ctx context.Context, result m.FileResult)
	// DisplayOutput shows generated text (transformed code or a diff) under a title.
	DisplayOutput(ctx context.Context, title string, text string)
	DisplayResults(ctx context.Context, results []m.FileResult, summary m.Summary) error
	DisplayDirectory(ctx context.Context, dir m.Directory) error
	DisplayError(ctx context.Context, err error)
}

// NewUI picks the interactive TUI when stdout is a terminal and the plain
// table output otherwise.
func NewUI(cmd *cobra.Command, useTTY bool) UI {
	if useTTY {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether f is an interactive terminal.
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
