package actions

import (
	"strconv"
	"strings"

	"actionlift.dev/pkg/actionlift/internal/jsast"
)

// Bases for helper identifiers introduced by the pass.
const (
	inlineActionBase = "$$INLINE_ACTION"
	closureBase      = "$$CLOSURE"
	registerBase     = "$$register"
	directBase       = "$$ACTION"
	reexportBase     = "$$reexport"
)

// nameGen hands out identifiers that collide with nothing spelled in the file.
type nameGen struct {
	used map[string]bool
}

func newNameGen(tree *jsast.Tree) *nameGen {
	g := &nameGen{used: make(map[string]bool)}

	for n := range tree.Preorder(tree.Root) {
		node := tree.Node(n)
		if len(node.Children) == 0 && node.Named && strings.HasSuffix(node.Kind, "identifier") {
			g.used[node.Text] = true
		}
	}

	return g
}

// fresh returns base, or base followed by the smallest positive counter that
// is still free.
func (g *nameGen) fresh(base string) string {
	name := base
	for i := 1; g.used[name]; i++ {
		name = base + strconv.Itoa(i)
	}

	g.used[name] = true

	return name
}
