package actions

import (
	"encoding/json"
	"strings"
)

const manifestMarker = "/* @server-actions "

// Manifest lists the actions a file registers.
type Manifest struct {
	ID    string   `json:"id" yaml:"id"`
	Names []string `json:"names" yaml:"names"`
}

// JSON encodes the manifest as `{"id":...,"names":[...]}`.
func (m Manifest) JSON() string {
	if m.Names == nil {
		m.Names = []string{}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return `{"id":"","names":[]}`
	}

	return string(b)
}

// Comment renders the manifest as a trailing block comment.
func (m Manifest) Comment() string {
	return manifestMarker + strings.ReplaceAll(m.JSON(), "*/", `*\/`) + " */"
}

// ParseManifestComment extracts the manifest appended to transformed code.
func ParseManifestComment(code string) (Manifest, bool) {
	i := strings.LastIndex(code, manifestMarker)
	if i < 0 {
		return Manifest{}, false
	}

	rest := code[i+len(manifestMarker):]

	j := strings.Index(rest, " */")
	if j < 0 {
		return Manifest{}, false
	}

	var m Manifest
	if err := json.Unmarshal([]byte(rest[:j]), &m); err != nil {
		return Manifest{}, false
	}

	return m, true
}

// manifest lists registered names in discovery order.
func (s *state) manifest() Manifest {
	names := make([]string, 0, len(s.actions))
	seen := make(map[string]bool, len(s.actions))

	for _, a := range s.actions {
		if !seen[a.Name] {
			seen[a.Name] = true
			names = append(names, a.Name)
		}
	}

	return Manifest{ID: s.fileID, Names: names}
}
