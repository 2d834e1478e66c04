// Package mcp implements tool.Registry on top of Model Context Protocol
// servers. Every Discover and Invoke opens its own short-lived session per
// provider, so no connection state is shared between operations.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/payroute/core"
	"github.com/hupe1980/payroute/logging"
	"github.com/hupe1980/payroute/tool"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// DefaultTimeout bounds a single discover or invoke operation.
const DefaultTimeout = 30 * time.Second

// Options configures a Registry.
type Options struct {
	// Timeout bounds each Discover / Invoke call. Zero disables the bound.
	Timeout time.Duration
	// Prefix controls "<provider>_<tool>" naming. When nil, names are
	// prefixed only if more than one provider is configured.
	Prefix *bool
	// ClientName and ClientVersion are sent in the initialize handshake.
	ClientName    string
	ClientVersion string
	Logger        logging.Logger
}

// Registry discovers and invokes tools across a fixed set of providers.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	providers []Provider
	opts      Options
	prefix    bool
}

var _ tool.Registry = (*Registry)(nil)

// NewRegistry creates a Registry over providers.
func NewRegistry(providers []Provider, optFns ...func(o *Options)) *Registry {
	opts := Options{
		Timeout:       DefaultTimeout,
		ClientName:    "payroute",
		ClientVersion: "0.1.0",
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	prefix := len(providers) > 1
	if opts.Prefix != nil {
		prefix = *opts.Prefix
	}

	return &Registry{providers: providers, opts: opts, prefix: prefix}
}

// FromDocument creates a Registry for every server in doc.
func FromDocument(doc ServersDocument, optFns ...func(o *Options)) (*Registry, error) {
	providers, err := doc.Providers()
	if err != nil {
		return nil, err
	}
	return NewRegistry(providers, optFns...), nil
}

// Providers returns the provider names in lookup order.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name)
	}
	return names
}

type resolved struct {
	desc     tool.Descriptor
	provider Provider
	remote   string
}

// Discover lists the tools of every provider. Any provider failure fails the
// whole discovery.
func (r *Registry) Discover(ctx context.Context) ([]tool.Descriptor, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	entries, err := r.discover(ctx)
	if err != nil {
		return nil, err
	}

	descs := make([]tool.Descriptor, 0, len(entries))
	for _, e := range entries {
		descs = append(descs, e.desc)
	}
	return descs, nil
}

// Invoke resolves name against a fresh discovery, validates args and calls
// the tool on its provider. The result is the collapsed text content.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	start := time.Now()

	entries, err := r.discover(ctx)
	if err != nil {
		return "", err
	}

	var target *resolved
	for i := range entries {
		if entries[i].desc.Name == name {
			target = &entries[i]
			break
		}
	}
	if target == nil {
		return "", &tool.ToolError{Tool: name, Message: "tool not found", Code: tool.CodeUnknownTool, Op: tool.OpInvoke}
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := target.desc.InputSchema.Validate(args); err != nil {
		return "", &tool.ToolError{
			Tool:    name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    tool.CodeValidationError,
			Op:      tool.OpInvoke,
			Details: err,
			Err:     err,
		}
	}

	var text string
	err = r.withSession(ctx, target.provider, func(c *client.Client) error {
		req := mcp.CallToolRequest{}
		req.Params.Name = target.remote
		req.Params.Arguments = args

		res, err := c.CallTool(ctx, req)
		if err != nil {
			return err
		}

		text = CollapseResult(res)
		if res.IsError {
			return &tool.ToolError{Tool: name, Message: text, Code: tool.CodeInvocationFailed, Op: tool.OpInvoke}
		}
		return nil
	})
	if err != nil {
		err = tool.InvocationError(name, core.WrapTimeout(err))
		logging.LogToolCall(r.opts.Logger, name, time.Since(start), err)
		return "", err
	}

	logging.LogToolCall(r.opts.Logger, name, time.Since(start), nil)

	return text, nil
}

func (r *Registry) discover(ctx context.Context) ([]resolved, error) {
	var out []resolved

	for _, p := range r.providers {
		var tools []mcp.Tool
		err := r.withSession(ctx, p, func(c *client.Client) error {
			res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
			if err != nil {
				return err
			}
			tools = res.Tools
			return nil
		})
		if err != nil {
			r.opts.Logger.Warn("tool.discover.error", "provider", p.Name, "error", err.Error())
			return nil, tool.DiscoveryError(p.Name, core.WrapTimeout(err))
		}

		for _, t := range tools {
			name := t.Name
			if r.prefix {
				name = p.Name + "_" + t.Name
			}
			out = append(out, resolved{
				desc: tool.Descriptor{
					Name:        name,
					Description: t.Description,
					InputSchema: tool.ParseSchema(inputSchema(t)),
					Provider:    p.Name,
				},
				provider: p,
				remote:   t.Name,
			})
		}

		r.opts.Logger.Debug("tool.discover.success", "provider", p.Name, "count", len(tools))
	}

	return out, nil
}

// withSession opens, initializes and always closes one provider session.
func (r *Registry) withSession(ctx context.Context, p Provider, fn func(c *client.Client) error) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	c, err := p.Dial(ctx)
	if err != nil {
		return fmt.Errorf("connect %s: %w", p.Name, err)
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			r.opts.Logger.Debug("tool.session.close_error", "provider", p.Name, "error", cerr.Error())
		}
	}()

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: r.opts.ClientName, Version: r.opts.ClientVersion}

	if _, err := c.Initialize(ctx, init); err != nil {
		return fmt.Errorf("initialize %s: %w", p.Name, err)
	}

	return fn(c)
}

func (r *Registry) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.opts.Timeout)
}

// inputSchema extracts the tool input schema through its wire form, which
// covers both structured and raw schemas.
func inputSchema(t mcp.Tool) map[string]any {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil
	}

	var wire struct {
		InputSchema map[string]any `json:"inputSchema"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil
	}
	return wire.InputSchema
}

// CollapseResult joins all text content parts with "\n". Without any text
// part it falls back to the JSON rendering of the raw result.
func CollapseResult(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}

	var texts []string
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			texts = append(texts, tc.Text)
		case *mcp.TextContent:
			texts = append(texts, tc.Text)
		}
	}
	if len(texts) > 0 {
		return strings.Join(texts, "\n")
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf("%v", res)
	}
	return string(raw)
}
