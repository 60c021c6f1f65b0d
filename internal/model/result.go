package model

import (
	"fmt"
	"time"
)

// Status is the outcome of running the pass over one file.
type Status int

const (
	// Unchanged indicates the file carries no directive and was left as is.
	Unchanged Status = iota
	// Transformed indicates the file registered at least one action or was a server file.
	Transformed
	// Failed indicates the pass rejected the file.
	Failed
)

func (s Status) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Transformed:
		return "transformed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Action describes one registered server action.
type Action struct {
	Name      string
	Binding   string
	LocalName string
	Captures  []string
	Shape     string
	Hoisted   bool
	Line      int
	Column    int
}

// Diagnostic is a non-fatal warning attached to a file.
type Diagnostic struct {
	Line    int
	Column  int
	Message string
}

// FileResult holds the outcome of the pass for a single source file.
type FileResult struct {
	Source      Source
	Status      Status
	Mode        string
	Names       []string
	Actions     []Action
	Diagnostics []Diagnostic
	Code        []byte
	// ErrCode and Err are set when Status is Failed. Err carries the rendered
	// code frame.
	ErrCode string
	Err     string
	Cached  bool
}

// Summary aggregates the results of a run.
type Summary struct {
	BuildID     string
	Files       int
	Transformed int
	Unchanged   int
	Failed      int
	Cached      int
	Actions     int
	Warnings    int
	Elapsed     time.Duration
}

// Add counts r into the summary.
func (s *Summary) Add(r FileResult) {
	s.Files++
	s.Actions += len(r.Names)
	s.Warnings += len(r.Diagnostics)

	if r.Cached {
		s.Cached++
	}

	switch r.Status {
	case Transformed:
		s.Transformed++
	case Failed:
		s.Failed++
	default:
		s.Unchanged++
	}
}
