package graph

import (
	"fmt"
	"strings"
)

// Mermaid renders the topology as a Mermaid flowchart. Effectful nodes are
// drawn as rectangles, pure nodes with rounded edges.
func (g *Graph[S]) Mermaid() string {
	var b strings.Builder

	b.WriteString("flowchart TD\n")
	fmt.Fprintf(&b, "    %s([START])\n", Start)

	for _, name := range g.order {
		n := g.nodes[name]
		if n.opts.Kind == KindEffectful {
			fmt.Fprintf(&b, "    %s[%s]\n", name, name)
		} else {
			fmt.Fprintf(&b, "    %s(%s)\n", name, name)
		}
	}

	fmt.Fprintf(&b, "    %s([END])\n", End)
	fmt.Fprintf(&b, "    %s --> %s\n", Start, g.entry)

	for _, name := range g.order {
		e := g.nodes[name].edge
		if !e.conditional() {
			fmt.Fprintf(&b, "    %s --> %s\n", name, e.to)
			continue
		}
		for _, branch := range []bool{true, false} {
			fmt.Fprintf(&b, "    %s -->|%t| %s\n", name, branch, e.routes[branch])
		}
	}

	return b.String()
}
