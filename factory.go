package payroute

import (
	"fmt"

	"github.com/hupe1980/payroute/agent"
	"github.com/hupe1980/payroute/capability"
	"github.com/hupe1980/payroute/config"
	"github.com/hupe1980/payroute/model"
	"github.com/hupe1980/payroute/model/provider"
	"github.com/hupe1980/payroute/purchase"
	"github.com/hupe1980/payroute/tool/mcp"
)

// ModelFactory builds the model for one node.
type ModelFactory func(node string, cfg provider.Config) (model.Model, error)

// FactoryOptions customizes NewFromConfig.
type FactoryOptions struct {
	Options
	// NewModel defaults to provider.New.
	NewModel ModelFactory
	// MCPProviders are appended to the servers of the configuration, e.g.
	// in-process servers.
	MCPProviders []mcp.Provider
}

// NewFromConfig wires a Router from a configuration document: one model per
// LLM node (per-node override, global fallback), the MCP registry and the
// sub-agent. Per-node ports, the registry and the agent already set in
// FactoryOptions.Options take precedence.
func NewFromConfig(cfg *config.Config, optFns ...func(o *FactoryOptions)) (*Router, error) {
	fo := FactoryOptions{
		NewModel: func(_ string, c provider.Config) (model.Model, error) { return provider.New(c) },
	}
	for _, fn := range optFns {
		fn(&fo)
	}

	topology, err := ParseTopology(cfg.Topology)
	if err != nil {
		return nil, err
	}

	opts := fo.Options
	opts.Topology = topology

	nodes := make(map[string]capability.Port, len(opts.Ports.Nodes))
	for name, port := range opts.Ports.Nodes {
		nodes[name] = port
	}
	opts.Ports.Nodes = nodes

	var agentModel model.Model

	for _, node := range purchase.LLMNodes {
		hasPort := opts.Ports.Nodes[node] != nil
		needsAgent := node == purchase.NodeAgent && opts.Agent == nil
		if hasPort && !needsAgent {
			continue
		}

		m, err := fo.NewModel(node, cfg.NodeLLM(node))
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", node, err)
		}
		if node == purchase.NodeAgent {
			agentModel = m
		}

		if hasPort {
			continue
		}

		opts.Ports.Set(node, capability.NewModelPort(m, func(o *capability.Options) {
			o.Timeout = cfg.Timeouts.LLM
			o.Logger = opts.Logger
			if node == purchase.NodeAgent {
				o.Instructions = agentInstruction(cfg)
			}
		}))
	}

	if opts.Registry == nil {
		doc, err := cfg.Servers()
		if err != nil {
			return nil, err
		}

		providers, err := doc.Providers()
		if err != nil {
			return nil, err
		}
		providers = append(providers, fo.MCPProviders...)

		opts.Registry = mcp.NewRegistry(providers, func(o *mcp.Options) {
			o.Timeout = cfg.Timeouts.Tool
			o.Logger = opts.Logger
		})
	}

	if opts.Agent == nil {
		opts.Agent = agent.NewToolAgent(agentModel, func(o *agent.ToolAgentOptions) {
			o.Instruction = agentInstruction(cfg)
			o.MaxIterations = cfg.Agent.MaxIterations
			o.MaxParseErrors = cfg.Agent.MaxParseErrors
			o.MaxParallel = cfg.Agent.MaxParallel
			o.ToolTimeout = cfg.Timeouts.Tool
			o.Logger = opts.Logger
		})
	}

	return New(func(o *Options) { *o = opts })
}

func agentInstruction(cfg *config.Config) string {
	if cfg.Agent.Instruction != "" {
		return cfg.Agent.Instruction
	}
	return agent.DefaultInstruction
}
