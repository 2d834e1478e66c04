package graph

import (
	"context"
	"fmt"
)

// End marks the sink of the graph. AddEdge(name, End) makes name terminal.
const End = "__end__"

// Start names the virtual source node used in renderings.
const Start = "__start__"

// Kind classifies a node by its side effects.
type Kind int

const (
	// KindPure nodes are synchronous and deterministic.
	KindPure Kind = iota
	// KindEffectful nodes call models or tools and may block.
	KindEffectful
)

func (k Kind) String() string {
	if k == KindEffectful {
		return "effectful"
	}
	return "pure"
}

// NodeFunc transforms a complete state into its complete successor.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// Condition selects a branch of a conditional edge.
type Condition[S any] func(state S) bool

// NodeOptions configures a node.
type NodeOptions struct {
	Kind        Kind
	Description string
}

// WithKind sets the node kind.
func WithKind(k Kind) func(o *NodeOptions) {
	return func(o *NodeOptions) { o.Kind = k }
}

// WithDescription attaches a human readable description.
func WithDescription(d string) func(o *NodeOptions) {
	return func(o *NodeOptions) { o.Description = d }
}

type edge[S any] struct {
	to     string // unconditional target, End for terminal nodes
	cond   Condition[S]
	routes map[bool]string
}

func (e *edge[S]) conditional() bool { return e.routes != nil }

func (e *edge[S]) targets() []string {
	if !e.conditional() {
		return []string{e.to}
	}
	var out []string
	for _, b := range []bool{true, false} {
		if to, ok := e.routes[b]; ok {
			out = append(out, to)
		}
	}
	return out
}

type node[S any] struct {
	name string
	fn   NodeFunc[S]
	opts NodeOptions
	edge *edge[S]
}

// Builder collects nodes and edges. Mistakes are recorded and reported
// together by Compile. A Builder is not safe for concurrent use.
type Builder[S any] struct {
	nodes    map[string]*node[S]
	order    []string
	entry    string
	problems []string
}

// NewBuilder creates an empty builder.
func NewBuilder[S any]() *Builder[S] {
	return &Builder[S]{nodes: make(map[string]*node[S])}
}

func (b *Builder[S]) problemf(format string, args ...any) {
	b.problems = append(b.problems, fmt.Sprintf(format, args...))
}

// AddNode registers a node. Names must be unique.
func (b *Builder[S]) AddNode(name string, fn NodeFunc[S], optFns ...func(o *NodeOptions)) *Builder[S] {
	switch {
	case name == "" || name == End || name == Start:
		b.problemf("invalid node name %q", name)
		return b
	case fn == nil:
		b.problemf("node %q has no function", name)
		return b
	}

	if _, ok := b.nodes[name]; ok {
		b.problemf("duplicate node %q", name)
		return b
	}

	opts := NodeOptions{Kind: KindPure}
	for _, fn := range optFns {
		fn(&opts)
	}

	b.nodes[name] = &node[S]{name: name, fn: fn, opts: opts}
	b.order = append(b.order, name)

	return b
}

// SetEntry sets the first node of every run.
func (b *Builder[S]) SetEntry(name string) *Builder[S] {
	b.entry = name
	return b
}

// AddEdge adds an unconditional edge. Use End as target to mark from terminal.
func (b *Builder[S]) AddEdge(from, to string) *Builder[S] {
	b.setEdge(from, &edge[S]{to: to})
	return b
}

// AddConditionalEdges routes from to routes[cond(state)]. routes must map
// both true and false.
func (b *Builder[S]) AddConditionalEdges(from string, cond Condition[S], routes map[bool]string) *Builder[S] {
	if cond == nil {
		b.problemf("conditional edge from %q has no condition", from)
		return b
	}

	for _, key := range []bool{true, false} {
		if _, ok := routes[key]; !ok {
			b.problemf("conditional edge from %q has no route for %t", from, key)
		}
	}

	cp := make(map[bool]string, len(routes))
	for k, v := range routes {
		cp[k] = v
	}

	b.setEdge(from, &edge[S]{cond: cond, routes: cp})

	return b
}

func (b *Builder[S]) setEdge(from string, e *edge[S]) {
	n, ok := b.nodes[from]
	if !ok {
		b.problemf("edge from unknown node %q", from)
		return
	}
	if n.edge != nil {
		b.problemf("node %q has more than one outgoing edge", from)
		return
	}
	n.edge = e
}
