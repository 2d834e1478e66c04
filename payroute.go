// Package payroute routes a single user utterance through the purchase flow:
// a politeness gate, a payment intent check and a tool eligibility check in
// front of a tool-calling sub-agent that pays through MCP tools.
//
// Most applications interact with this package by:
//  1. Creating a Router via New (explicit collaborators) or NewFromConfig
//  2. Running utterances synchronously (Run / RunSync) or asynchronously (Invoke)
//
// A Router is immutable after construction and safe for concurrent use; every
// run gets its own FlowState and shares nothing with other runs.
package payroute

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/payroute/capability"
	"github.com/hupe1980/payroute/core"
	"github.com/hupe1980/payroute/graph"
	"github.com/hupe1980/payroute/logging"
	"github.com/hupe1980/payroute/metrics"
	"github.com/hupe1980/payroute/purchase"
	"github.com/hupe1980/payroute/tool"
)

// Topology names a supported flow.
type Topology string

// Supported topologies.
const (
	TopologyPurchase Topology = "purchase"
)

// ParseTopology resolves a topology name. "purchase_flow" is accepted as an
// alias of "purchase".
func ParseTopology(name string) (Topology, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "purchase", "purchase_flow":
		return TopologyPurchase, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnknownTopology, name)
	}
}

// Topologies lists the supported topologies.
func Topologies() []Topology { return []Topology{TopologyPurchase} }

// Options configures a Router.
type Options struct {
	Topology Topology
	// Ports per node; Ports.Default serves nodes without an entry.
	Ports    capability.Ports
	Registry tool.Registry
	Agent    purchase.SubAgent
	// Metrics, when set, instruments the graph and the registry.
	Metrics *metrics.Metrics
	Hooks   []graph.Hooks[core.FlowState]
	Logger  logging.Logger
}

// RunResult is the outcome of one run.
type RunResult struct {
	State    core.FlowState `json:"state"`
	Terminal string         `json:"terminal"`
	Path     []string       `json:"path"`
	RunID    string         `json:"run_id"`
	Duration time.Duration  `json:"duration"`
}

// Output returns the user-facing reply.
func (r RunResult) Output() string { return r.State.Output }

// Outcome is delivered by Invoke.
type Outcome struct {
	Result RunResult
	Err    error
}

// Router runs utterances through a compiled topology.
type Router struct {
	topology Topology
	graph    *purchase.Graph
	registry tool.Registry
	logger   logging.Logger
}

// New creates a Router from explicit collaborators.
func New(optFns ...func(o *Options)) (*Router, error) {
	opts := Options{Topology: TopologyPurchase}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	topology, err := ParseTopology(string(opts.Topology))
	if err != nil {
		return nil, err
	}

	registry := opts.Registry
	if registry != nil && opts.Metrics != nil {
		registry = metrics.InstrumentRegistry(registry, opts.Metrics)
	}

	graphOpts := make([]func(o *graph.Options[core.FlowState]), 0, len(opts.Hooks)+1)
	for _, h := range opts.Hooks {
		graphOpts = append(graphOpts, graph.WithHooks(h))
	}
	if opts.Metrics != nil {
		graphOpts = append(graphOpts, graph.WithHooks(metrics.GraphHooks[core.FlowState](opts.Metrics)))
	}

	g, err := purchase.Build(purchase.Deps{
		Ports:    opts.Ports,
		Registry: registry,
		Agent:    opts.Agent,
		Logger:   opts.Logger,
	}, graphOpts...)
	if err != nil {
		return nil, err
	}

	return &Router{topology: topology, graph: g, registry: registry, logger: opts.Logger}, nil
}

// Topology returns the active topology.
func (r *Router) Topology() Topology { return r.topology }

// Graph returns the compiled topology for introspection.
func (r *Router) Graph() *purchase.Graph { return r.graph }

// Mermaid renders the topology as a Mermaid flowchart.
func (r *Router) Mermaid() string { return r.graph.Mermaid() }

// Tools lists the tools currently offered by the registry.
func (r *Router) Tools(ctx context.Context) ([]tool.Descriptor, error) {
	return r.registry.Discover(ctx)
}

// Run executes one utterance. The context carries the run id for the
// duration of the run.
func (r *Router) Run(ctx context.Context, input string) (RunResult, error) {
	runID := uuid.NewString()
	ctx = core.WithRunID(ctx, runID)

	r.logger.Info("router.run.start", "run_id", runID, "topology", string(r.topology))

	final, trace, err := r.graph.Run(ctx, core.NewFlowState(input))

	result := RunResult{
		State:    final,
		Terminal: trace.Terminal,
		Path:     trace.Path,
		RunID:    runID,
		Duration: trace.Duration,
	}

	if err != nil {
		r.logger.Error("router.run.error", "run_id", runID, "path", trace.Path, "error", err.Error())
		return result, fmt.Errorf("run %s: %w", runID, err)
	}

	r.logger.Info("router.run.complete", "run_id", runID, "terminal", trace.Terminal, "duration_ms", trace.Duration.Milliseconds())

	return result, nil
}

// RunSync is Run for callers that must not block inside another run: it
// fails fast with core.ErrNestedInvocation when ctx belongs to an active run.
func (r *Router) RunSync(ctx context.Context, input string) (RunResult, error) {
	if runID, ok := core.RunID(ctx); ok {
		return RunResult{}, fmt.Errorf("%w (run %s)", core.ErrNestedInvocation, runID)
	}
	return r.Run(ctx, input)
}

// Invoke starts a run in the background. The channel yields exactly one
// Outcome and is then closed.
func (r *Router) Invoke(ctx context.Context, input string) <-chan Outcome {
	ch := make(chan Outcome, 1)

	go func() {
		defer close(ch)

		res, err := r.Run(ctx, input)
		ch <- Outcome{Result: res, Err: err}
	}()

	return ch
}

// Wait blocks until the outcome of an Invoke arrives or ctx is done.
func Wait(ctx context.Context, ch <-chan Outcome) (RunResult, error) {
	select {
	case <-ctx.Done():
		return RunResult{}, ctx.Err()
	case out, ok := <-ch:
		if !ok {
			return RunResult{}, errors.New("invocation channel closed without outcome")
		}
		return out.Result, out.Err
	}
}
