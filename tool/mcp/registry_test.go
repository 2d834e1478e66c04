package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/payroute/core"
	"github.com/hupe1980/payroute/internal/payserver"
	"github.com/hupe1980/payroute/tool"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payProvider(name string) Provider {
	return InProcessProvider(name, payserver.New(func(o *payserver.Options) {
		o.Now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	}))
}

func failingProvider(name string, err error) Provider {
	return Provider{Name: name, Dial: func(context.Context) (*client.Client, error) {
		return nil, err
	}}
}

func TestRegistry_DiscoverSingleProvider(t *testing.T) {
	r := NewRegistry([]Provider{payProvider("pay")})

	descs, err := r.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 2)

	byName := map[string]tool.Descriptor{}
	for _, d := range descs {
		byName[d.Name] = d
	}

	payAmount, ok := byName[payserver.ToolPayAmount]
	require.True(t, ok, "single provider names are not prefixed")
	assert.Equal(t, "pay", payAmount.Provider)
	assert.Equal(t, []string{"amount"}, payAmount.InputSchema.Required)
	assert.Equal(t, tool.KindInteger, payAmount.InputSchema.Properties["amount"].Kind)

	pay := byName[payserver.ToolPay]
	assert.Equal(t, tool.KindString, pay.InputSchema.Properties["command"].Kind)
}

func TestRegistry_DiscoverPrefixesMultipleProviders(t *testing.T) {
	r := NewRegistry([]Provider{payProvider("a"), payProvider("b")})

	descs, err := r.Discover(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"a_pay_amount", "a_pay", "b_pay_amount", "b_pay"}, names)
	assert.Equal(t, []string{"a", "b"}, r.Providers())
}

func TestRegistry_PrefixOverride(t *testing.T) {
	prefix := true
	r := NewRegistry([]Provider{payProvider("pay")}, func(o *Options) { o.Prefix = &prefix })

	descs, err := r.Discover(context.Background())
	require.NoError(t, err)
	for _, d := range descs {
		assert.Contains(t, []string{"pay_pay_amount", "pay_pay"}, d.Name)
	}
}

func TestRegistry_Invoke(t *testing.T) {
	r := NewRegistry([]Provider{payProvider("pay")})

	out, err := r.Invoke(context.Background(), payserver.ToolPayAmount, map[string]any{"amount": 12345})
	require.NoError(t, err)
	assert.Contains(t, out, "12,345원")
	assert.Contains(t, out, "2025-01-02 03:04:05")

	// JSON decoded numbers arrive as float64.
	out, err = r.Invoke(context.Background(), payserver.ToolPayAmount, map[string]any{"amount": float64(500)})
	require.NoError(t, err)
	assert.Contains(t, out, "500원")
}

func TestRegistry_InvokePrefixedName(t *testing.T) {
	r := NewRegistry([]Provider{payProvider("a"), payProvider("b")})

	out, err := r.Invoke(context.Background(), "b_pay", map[string]any{"command": "돈 10000 지불해"})
	require.NoError(t, err)
	assert.Contains(t, out, "10,000원")
}

func TestRegistry_InvokeUnknownTool(t *testing.T) {
	r := NewRegistry([]Provider{payProvider("pay")})

	_, err := r.Invoke(context.Background(), "refund", nil)
	require.Error(t, err)

	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeUnknownTool, te.Code)
	assert.True(t, errors.Is(err, core.ErrToolInvocation))
}

func TestRegistry_InvokeValidation(t *testing.T) {
	r := NewRegistry([]Provider{payProvider("pay")})

	_, err := r.Invoke(context.Background(), payserver.ToolPayAmount, map[string]any{"amount": "lots"})
	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeValidationError, te.Code)

	_, err = r.Invoke(context.Background(), payserver.ToolPayAmount, nil)
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeValidationError, te.Code)

	_, err = r.Invoke(context.Background(), payserver.ToolPayAmount, map[string]any{"amount": nil})
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeValidationError, te.Code)
	assert.Contains(t, te.Error(), "required field is null")
}

func TestRegistry_InvokeErrorResult(t *testing.T) {
	srv := server.NewMCPServer("broken", "0.0.1", server.WithToolCapabilities(false))
	srv.AddTool(mcp.NewTool("charge"), func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("card declined"), nil
	})

	r := NewRegistry([]Provider{InProcessProvider("broken", srv)})

	_, err := r.Invoke(context.Background(), "charge", map[string]any{})
	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeInvocationFailed, te.Code)
	assert.Equal(t, "card declined", te.Message)
	assert.True(t, errors.Is(err, core.ErrToolInvocation))
}

func TestRegistry_DiscoveryFailure(t *testing.T) {
	r := NewRegistry([]Provider{payProvider("pay"), failingProvider("down", errors.New("connection refused"))})

	_, err := r.Discover(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrToolDiscovery))
	assert.False(t, errors.Is(err, core.ErrTimeout))

	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeDiscoveryFailed, te.Code)
	assert.Equal(t, "down", te.Tool)

	_, err = r.Invoke(context.Background(), "pay_pay_amount", map[string]any{"amount": 1})
	assert.True(t, errors.Is(err, core.ErrToolDiscovery))
}

func TestRegistry_Timeout(t *testing.T) {
	slow := Provider{Name: "slow", Dial: func(ctx context.Context) (*client.Client, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	r := NewRegistry([]Provider{slow}, func(o *Options) { o.Timeout = 20 * time.Millisecond })

	_, err := r.Discover(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTimeout))

	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeTimeout, te.Code)
}

func TestRegistry_ProviderTimeout(t *testing.T) {
	slow := Provider{Name: "slow", Timeout: 20 * time.Millisecond, Dial: func(ctx context.Context) (*client.Client, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	r := NewRegistry([]Provider{slow}, func(o *Options) { o.Timeout = 0 })

	_, err := r.Discover(context.Background())
	assert.True(t, errors.Is(err, core.ErrTimeout))
}

func TestRegistry_StreamableHTTP(t *testing.T) {
	ts := server.NewTestStreamableHTTPServer(payserver.New())
	defer ts.Close()

	r := NewRegistry([]Provider{HTTPProvider("pay", ts.URL+"/mcp", nil)})

	descs, err := r.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, descs, 2)

	out, err := r.Invoke(context.Background(), payserver.ToolPayAmount, map[string]any{"amount": 1000})
	require.NoError(t, err)
	assert.Contains(t, out, "1,000원")
}

func TestRegistry_RemoteTool(t *testing.T) {
	r := NewRegistry([]Provider{payProvider("pay")})

	descs, err := r.Discover(context.Background())
	require.NoError(t, err)

	tools := tool.FromDescriptors(descs, r)
	require.Len(t, tools, 2)

	for _, tl := range tools {
		if tl.Name() != payserver.ToolPayAmount {
			continue
		}
		out, err := tl.Call(context.Background(), map[string]any{"amount": 42})
		require.NoError(t, err)
		assert.Contains(t, out, "42원")
	}
}

func TestCollapseResult(t *testing.T) {
	res := &mcp.CallToolResult{Content: []mcp.Content{
		mcp.NewTextContent("first"),
		mcp.NewImageContent("aGk=", "image/png"),
		mcp.NewTextContent("second"),
	}}
	assert.Equal(t, "first\nsecond", CollapseResult(res))

	res = &mcp.CallToolResult{Content: []mcp.Content{mcp.NewImageContent("aGk=", "image/png")}}
	assert.Contains(t, CollapseResult(res), `"mimeType":"image/png"`)

	assert.Equal(t, "", CollapseResult(nil))
}
