package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hupe1980/payroute/logging"
)

// Hooks observe a run. Any field may be nil. Hooks run synchronously on the
// run goroutine.
type Hooks[S any] struct {
	OnNodeEnter   func(ctx context.Context, node string, state S)
	OnNodeLeave   func(ctx context.Context, node string, dur time.Duration, err error)
	OnRunComplete func(ctx context.Context, trace Trace, err error)
}

// Options configures a compiled graph.
type Options[S any] struct {
	Hooks  []Hooks[S]
	Logger logging.Logger
}

// WithHooks adds observation hooks.
func WithHooks[S any](h Hooks[S]) func(o *Options[S]) {
	return func(o *Options[S]) { o.Hooks = append(o.Hooks, h) }
}

// WithLogger sets the logger used for node level debug events.
func WithLogger[S any](l logging.Logger) func(o *Options[S]) {
	return func(o *Options[S]) { o.Logger = l }
}

// Step records one executed node.
type Step struct {
	Node     string        `json:"node"`
	Duration time.Duration `json:"duration"`
}

// Trace describes a finished or aborted run.
type Trace struct {
	Path     []string      `json:"path"`
	Steps    []Step        `json:"steps"`
	Terminal string        `json:"terminal,omitempty"`
	Duration time.Duration `json:"duration"`
}

// NodeInfo describes a node of a compiled graph.
type NodeInfo struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Description string   `json:"description,omitempty"`
	Terminal    bool     `json:"terminal"`
	Next        []string `json:"next,omitempty"`
}

// Graph is a validated, immutable topology.
type Graph[S any] struct {
	nodes map[string]*node[S]
	order []string
	entry string
	opts  Options[S]
}

// Compile validates the collected topology and returns an executable graph.
// All problems are reported at once in a *BuildError.
func (b *Builder[S]) Compile(optFns ...func(o *Options[S])) (*Graph[S], error) {
	problems := append([]string(nil), b.problems...)

	switch {
	case b.entry == "":
		problems = append(problems, "entry node not set")
	case b.nodes[b.entry] == nil:
		problems = append(problems, fmt.Sprintf("entry node %q is unknown", b.entry))
	}

	for _, name := range b.order {
		n := b.nodes[name]
		if n.edge == nil {
			problems = append(problems, fmt.Sprintf("node %q has no outgoing edge and is not terminal", name))
			continue
		}
		for _, to := range n.edge.targets() {
			if to != End && b.nodes[to] == nil {
				problems = append(problems, fmt.Sprintf("edge %q -> %q targets an unknown node", name, to))
			}
		}
	}

	if len(problems) == 0 {
		problems = append(problems, b.structureProblems()...)
	}

	if len(problems) > 0 {
		return nil, &BuildError{Problems: problems}
	}

	opts := Options[S]{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	nodes := make(map[string]*node[S], len(b.nodes))
	for k, v := range b.nodes {
		nodes[k] = v
	}

	return &Graph[S]{
		nodes: nodes,
		order: append([]string(nil), b.order...),
		entry: b.entry,
		opts:  opts,
	}, nil
}

// structureProblems detects cycles and unreachable nodes. It assumes every
// edge target exists.
func (b *Builder[S]) structureProblems() []string {
	const (
		unvisited = iota
		active
		done
	)

	var problems []string
	color := make(map[string]int, len(b.nodes))

	var visit func(name string, stack []string)
	visit = func(name string, stack []string) {
		switch color[name] {
		case active:
			problems = append(problems, fmt.Sprintf("cycle detected: %v -> %s", stack, name))
			return
		case done:
			return
		}

		color[name] = active
		for _, to := range b.nodes[name].edge.targets() {
			if to != End {
				visit(to, append(stack, name))
			}
		}
		color[name] = done
	}

	visit(b.entry, nil)

	for _, name := range b.order {
		if color[name] == unvisited {
			problems = append(problems, fmt.Sprintf("node %q is unreachable from %q", name, b.entry))
		}
	}

	return problems
}

// Entry returns the entry node name.
func (g *Graph[S]) Entry() string { return g.entry }

// Nodes describes the nodes in insertion order.
func (g *Graph[S]) Nodes() []NodeInfo {
	infos := make([]NodeInfo, 0, len(g.order))
	for _, name := range g.order {
		n := g.nodes[name]
		info := NodeInfo{
			Name:        name,
			Kind:        n.opts.Kind.String(),
			Description: n.opts.Description,
		}
		for _, to := range n.edge.targets() {
			if to == End {
				info.Terminal = true
				continue
			}
			info.Next = append(info.Next, to)
		}
		infos = append(infos, info)
	}
	return infos
}

// Terminals returns the sorted names of all terminal nodes.
func (g *Graph[S]) Terminals() []string {
	var out []string
	for _, info := range g.Nodes() {
		if info.Terminal {
			out = append(out, info.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Run executes the graph from the entry node until a terminal node returns.
// On error the zero state is returned together with the partial trace.
func (g *Graph[S]) Run(ctx context.Context, initial S) (S, Trace, error) {
	var (
		zero  S
		trace Trace
	)

	start := time.Now()
	state := initial
	visited := make(map[string]bool, len(g.nodes))
	cur := g.entry

	fail := func(err error) (S, Trace, error) {
		trace.Duration = time.Since(start)
		g.complete(ctx, trace, err)
		return zero, trace, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("graph: run cancelled before %q: %w", cur, err))
		}

		if visited[cur] {
			return fail(&NodeError{Node: cur, Err: ErrNodeRevisited})
		}
		visited[cur] = true

		n := g.nodes[cur]

		g.enter(ctx, cur, state)
		nodeStart := time.Now()

		next, err := n.fn(ctx, state)

		dur := time.Since(nodeStart)
		g.leave(ctx, cur, dur, err)

		trace.Path = append(trace.Path, cur)
		trace.Steps = append(trace.Steps, Step{Node: cur, Duration: dur})

		if err != nil {
			return fail(&NodeError{Node: cur, Err: err})
		}
		state = next

		target := n.edge.to
		if n.edge.conditional() {
			target = n.edge.routes[n.edge.cond(state)]
		}

		if target == End {
			trace.Terminal = cur
			trace.Duration = time.Since(start)
			g.complete(ctx, trace, nil)
			return state, trace, nil
		}

		cur = target
	}
}

func (g *Graph[S]) enter(ctx context.Context, name string, state S) {
	g.opts.Logger.Debug("graph.node.start", "node", name)
	for _, h := range g.opts.Hooks {
		if h.OnNodeEnter != nil {
			h.OnNodeEnter(ctx, name, state)
		}
	}
}

func (g *Graph[S]) leave(ctx context.Context, name string, dur time.Duration, err error) {
	if err != nil {
		g.opts.Logger.Debug("graph.node.error", "node", name, "duration_ms", dur.Milliseconds(), "error", err.Error())
	} else {
		g.opts.Logger.Debug("graph.node.complete", "node", name, "duration_ms", dur.Milliseconds())
	}
	for _, h := range g.opts.Hooks {
		if h.OnNodeLeave != nil {
			h.OnNodeLeave(ctx, name, dur, err)
		}
	}
}

func (g *Graph[S]) complete(ctx context.Context, trace Trace, err error) {
	logging.LogGraphRun(g.opts.Logger, trace.Terminal, len(trace.Path), trace.Duration, err)
	for _, h := range g.opts.Hooks {
		if h.OnRunComplete != nil {
			h.OnRunComplete(ctx, trace, err)
		}
	}
}
