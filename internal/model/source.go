// Package model defines the data structures shared by the adapters, the
// workflow and the UI.
package model

// Path represents a file system path.
type Path string

// File represents a script file on disk.
type File struct {
	FullPath  Path
	ShortPath Path // relative to the project root when one is known
	Hash      string
}

// Source is a file selected for transformation.
type Source struct {
	Origin *File
	// Root is the project root the file identity is derived from. Empty when
	// no package.json was found above the file.
	Root Path
	// ID is the identity the file's actions are registered under.
	ID string
}
