package jsast

import "fmt"

// SyntaxError reports input the parser could not make sense of.
type SyntaxError struct {
	Path string
	Pos  Position
	// Near is the source text at the error, truncated.
	Near string
}

func (e *SyntaxError) Error() string {
	if e.Near == "" {
		return fmt.Sprintf("%s:%s: syntax error", e.Path, e.Pos)
	}

	return fmt.Sprintf("%s:%s: syntax error near %q", e.Path, e.Pos, e.Near)
}
