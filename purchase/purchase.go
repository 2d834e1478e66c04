// Package purchase wires the purchase conversation flow: a politeness
// gate, a payment intent check, a tool eligibility check and finally the
// tool-calling sub-agent.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/payroute/agent"
	"github.com/hupe1980/payroute/capability"
	"github.com/hupe1980/payroute/core"
	"github.com/hupe1980/payroute/graph"
	"github.com/hupe1980/payroute/logging"
	"github.com/hupe1980/payroute/tool"
)

// SubAgent answers a request using the given tools.
type SubAgent interface {
	Run(ctx context.Context, input string, tools []tool.Tool) (string, error)
}

// Deps are the collaborators of the purchase nodes.
type Deps struct {
	Ports    capability.Ports
	Registry tool.Registry
	Agent    SubAgent
	Logger   logging.Logger
}

// Validate reports missing collaborators.
func (d Deps) Validate() error {
	var errs []error
	for _, name := range LLMNodes {
		if d.Ports.For(name) == nil {
			errs = append(errs, fmt.Errorf("no capability port for node %q", name))
		}
	}
	if d.Registry == nil {
		errs = append(errs, errors.New("tool registry is required"))
	}
	if d.Agent == nil {
		errs = append(errs, errors.New("sub-agent is required"))
	}
	return errors.Join(errs...)
}

// Graph is the compiled purchase flow.
type Graph = graph.Graph[core.FlowState]

// Build compiles the purchase topology:
//
//	START -> politeness
//	politeness -> classify_pay_amount | polite_warning
//	classify_pay_amount -> check_tool | ask_product
//	check_tool -> agent | no_tool
//	ask_product, polite_warning, agent, no_tool -> END
func Build(deps Deps, optFns ...func(o *graph.Options[core.FlowState])) (*Graph, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("purchase: %w", err)
	}

	n := &nodes{deps: deps, logger: logging.OrNoOp(deps.Logger)}

	b := graph.NewBuilder[core.FlowState]().
		AddNode(NodePoliteness, n.politeness,
			graph.WithKind(graph.KindEffectful), graph.WithDescription("classifies formal polite speech")).
		AddNode(NodePoliteWarning, politeWarning,
			graph.WithDescription("asks the user to use polite speech")).
		AddNode(NodeClassifyPayAmount, n.classifyPayAmount,
			graph.WithKind(graph.KindEffectful), graph.WithDescription("classifies a clear intent to pay an amount")).
		AddNode(NodeAskProduct, askProduct,
			graph.WithDescription("asks which product to buy")).
		AddNode(NodeCheckTool, n.checkTool,
			graph.WithKind(graph.KindEffectful), graph.WithDescription("checks whether a discovered tool can fulfil the request")).
		AddNode(NodeAgent, n.agent,
			graph.WithKind(graph.KindEffectful), graph.WithDescription("runs the tool-calling sub-agent")).
		AddNode(NodeNoTool, noTool,
			graph.WithDescription("reports that no suitable tool exists")).
		SetEntry(NodePoliteness).
		AddConditionalEdges(NodePoliteness, isHonorific,
			map[bool]string{true: NodeClassifyPayAmount, false: NodePoliteWarning}).
		AddConditionalEdges(NodeClassifyPayAmount, intentPayAmount,
			map[bool]string{true: NodeCheckTool, false: NodeAskProduct}).
		AddConditionalEdges(NodeCheckTool, toolEligible,
			map[bool]string{true: NodeAgent, false: NodeNoTool}).
		AddEdge(NodeAskProduct, graph.End).
		AddEdge(NodePoliteWarning, graph.End).
		AddEdge(NodeAgent, graph.End).
		AddEdge(NodeNoTool, graph.End)

	optFns = append([]func(o *graph.Options[core.FlowState]){graph.WithLogger[core.FlowState](deps.Logger)}, optFns...)

	return b.Compile(optFns...)
}

func isHonorific(s core.FlowState) bool     { return s.IsHonorific }
func intentPayAmount(s core.FlowState) bool { return s.IntentPayAmount }
func toolEligible(s core.FlowState) bool    { return s.ToolEligible }

func politeWarning(_ context.Context, s core.FlowState) (core.FlowState, error) {
	s.Output = MsgPoliteWarning
	return s, nil
}

func askProduct(_ context.Context, s core.FlowState) (core.FlowState, error) {
	s.Output = MsgAskProduct
	return s, nil
}

func noTool(_ context.Context, s core.FlowState) (core.FlowState, error) {
	s.Output = MsgNoTool
	return s, nil
}

type nodes struct {
	deps   Deps
	logger logging.Logger
}

// classify folds every port failure into false.
func (n *nodes) classify(ctx context.Context, node, instruction, input string) bool {
	yes, err := n.deps.Ports.For(node).ClassifyYesNo(ctx, instruction, input)
	if err != nil {
		n.logger.Warn("graph.node.fallback", "node", node, "timeout", core.IsTimeout(err), "error", err.Error())
		return false
	}
	return yes
}

func (n *nodes) politeness(ctx context.Context, s core.FlowState) (core.FlowState, error) {
	s.IsHonorific = n.classify(ctx, NodePoliteness, PolitenessInstruction, s.Input)
	return s, nil
}

func (n *nodes) classifyPayAmount(ctx context.Context, s core.FlowState) (core.FlowState, error) {
	s.IntentPayAmount = n.classify(ctx, NodeClassifyPayAmount, PayIntentInstruction, s.Input)
	return s, nil
}

func (n *nodes) checkTool(ctx context.Context, s core.FlowState) (core.FlowState, error) {
	s.ToolEligible = false

	descs, err := n.deps.Registry.Discover(ctx)
	if err != nil {
		n.logger.Warn("graph.node.fallback", "node", NodeCheckTool, "timeout", core.IsTimeout(err), "error", err.Error())
		return s, nil
	}

	input := capability.WithSection(s.Input, "Tools", tool.FormatCatalog(descs))
	s.ToolEligible = n.classify(ctx, NodeCheckTool, ToolCheckInstruction, input)

	return s, nil
}

func (n *nodes) agent(ctx context.Context, s core.FlowState) (core.FlowState, error) {
	descs, err := n.deps.Registry.Discover(ctx)
	if err != nil {
		s.Output = n.degraded(ctx, s.Input, err)
		return s, nil
	}

	out, err := n.deps.Agent.Run(ctx, s.Input, tool.FromDescriptors(descs, n.deps.Registry))
	if err != nil {
		return s, fmt.Errorf("sub-agent: %w", err)
	}

	if strings.TrimSpace(out) == "" {
		out = MsgNoOutput
	}
	s.Output = out

	return s, nil
}

// degraded builds the visible answer used when tools cannot be listed: the
// failure notice, followed by a direct answer when the port can give one.
func (n *nodes) degraded(ctx context.Context, input string, cause error) string {
	n.logger.Warn("graph.node.degraded", "node", NodeAgent, "error", cause.Error())

	msg := agent.DegradedPrefix + cause.Error()

	answer, err := n.deps.Ports.For(NodeAgent).Generate(ctx, input)
	if err != nil {
		n.logger.Warn("graph.node.degraded", "node", NodeAgent, "error", err.Error())
		return msg
	}
	if answer = strings.TrimSpace(answer); answer != "" {
		msg += "\n\n" + answer
	}

	return msg
}
