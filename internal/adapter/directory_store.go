package adapter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	m "actionlift.dev/pkg/actionlift/internal/model"
)

// DirectoryStore persists the merged action directory. The encoding follows
// the file extension: .yaml and .yml are written as YAML, anything else as
// indented JSON.
type DirectoryStore interface {
	SaveDirectory(path m.Path, dir m.Directory) error
	LoadDirectory(path m.Path) (m.Directory, error)
}

// LocalDirectoryStore is the file-backed DirectoryStore.
type LocalDirectoryStore struct{}

// NewLocalDirectoryStore constructs a LocalDirectoryStore.
func NewLocalDirectoryStore() *LocalDirectoryStore {
	return &LocalDirectoryStore{}
}

// SaveDirectory writes dir to path through a temporary file in the same
// directory, so readers never observe a partially written directory.
func (s *LocalDirectoryStore) SaveDirectory(path m.Path, dir m.Directory) error {
	data, err := encodeDirectory(string(path), dir)
	if err != nil {
		return fmt.Errorf("encode directory: %w", err)
	}

	target := string(path)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create directory for %s: %w", target, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".actions-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("rename to %s: %w", target, err)
	}

	return nil
}

// LoadDirectory reads a directory previously written by SaveDirectory.
func (s *LocalDirectoryStore) LoadDirectory(path m.Path) (m.Directory, error) {
	var dir m.Directory

	data, err := os.ReadFile(string(path))
	if err != nil {
		return dir, err
	}

	if isYAML(string(path)) {
		err = yaml.Unmarshal(data, &dir)
	} else {
		err = json.Unmarshal(data, &dir)
	}

	if err != nil {
		return dir, fmt.Errorf("decode %s: %w", path, err)
	}

	return dir, nil
}

func encodeDirectory(path string, dir m.Directory) ([]byte, error) {
	if dir.Files == nil {
		dir.Files = []m.DirectoryFile{}
	}

	if dir.Actions == nil {
		dir.Actions = map[string]m.DirectoryAction{}
	}

	if isYAML(path) {
		return yaml.Marshal(dir)
	}

	data, err := json.MarshalIndent(dir, "", "  ")
	if err != nil {
		return nil, err
	}

	return append(data, '\n'), nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
