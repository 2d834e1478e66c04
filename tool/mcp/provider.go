package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/server"
)

// DialFunc opens a new, not yet initialized client connection.
type DialFunc func(ctx context.Context) (*client.Client, error)

// Provider is a named MCP server reachable through Dial. Every Dial yields a
// fresh connection that the caller must close.
type Provider struct {
	Name string
	Dial DialFunc
	// Timeout optionally bounds each session with this provider.
	Timeout time.Duration
}

// StdioProvider spawns command with args and env (KEY=VALUE pairs) per session.
func StdioProvider(name, command string, args, env []string) Provider {
	return Provider{Name: name, Dial: func(context.Context) (*client.Client, error) {
		return client.NewStdioMCPClient(command, env, args...)
	}}
}

// SSEProvider connects to a server-sent events endpoint.
func SSEProvider(name, url string, headers map[string]string) Provider {
	return Provider{Name: name, Dial: func(ctx context.Context) (*client.Client, error) {
		var opts []transport.ClientOption
		if len(headers) > 0 {
			opts = append(opts, transport.WithHeaders(headers))
		}
		c, err := client.NewSSEMCPClient(url, opts...)
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	}}
}

// HTTPProvider connects to a streamable HTTP endpoint.
func HTTPProvider(name, url string, headers map[string]string) Provider {
	return Provider{Name: name, Dial: func(ctx context.Context) (*client.Client, error) {
		var opts []transport.StreamableHTTPCOption
		if len(headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(headers))
		}
		c, err := client.NewStreamableHttpClient(url, opts...)
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	}}
}

// InProcessProvider talks to an MCP server living in the same process.
func InProcessProvider(name string, srv *server.MCPServer) Provider {
	return Provider{Name: name, Dial: func(ctx context.Context) (*client.Client, error) {
		c, err := client.NewInProcessClient(srv)
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	}}
}

// ProviderFromConfig builds a Provider for a declared server.
func ProviderFromConfig(name string, sc ServerConfig) (Provider, error) {
	if err := sc.Validate(); err != nil {
		return Provider{}, fmt.Errorf("mcp server %q: %w", name, err)
	}

	var p Provider
	switch sc.ResolvedTransport() {
	case TransportStdio:
		command, args, err := sc.CommandLine()
		if err != nil {
			return Provider{}, fmt.Errorf("mcp server %q: %w", name, err)
		}
		p = StdioProvider(name, command, args, sc.EnvList())
	case TransportSSE:
		p = SSEProvider(name, sc.URL, sc.Headers)
	default:
		p = HTTPProvider(name, sc.URL, sc.Headers)
	}
	p.Timeout = sc.Timeout

	return p, nil
}
