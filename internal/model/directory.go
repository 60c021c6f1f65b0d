package model

import "time"

// Directory is the merged action directory written after a transform run. It
// maps every registered action to the file that defines it.
type Directory struct {
	BuildID     string                     `json:"build_id" yaml:"build_id"`
	GeneratedAt time.Time                  `json:"generated_at" yaml:"generated_at"`
	Files       []DirectoryFile            `json:"files" yaml:"files"`
	Actions     map[string]DirectoryAction `json:"actions" yaml:"actions"`
}

// DirectoryFile lists the actions of one file.
type DirectoryFile struct {
	ID    string   `json:"id" yaml:"id"`
	Path  string   `json:"path" yaml:"path"`
	Names []string `json:"names" yaml:"names"`
}

// DirectoryAction locates one action. Directory.Actions is keyed by
// ActionKey(file, name).
type DirectoryAction struct {
	File string `json:"file" yaml:"file"`
	Name string `json:"name" yaml:"name"`
}

// ActionKey is the directory key of action name in the file with the given id.
func ActionKey(fileID, name string) string {
	return fileID + "#" + name
}
