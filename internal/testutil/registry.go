package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/payroute/tool"
)

// InvokeFunc implements a stubbed tool call.
type InvokeFunc func(ctx context.Context, name string, args map[string]any) (string, error)

// StubRegistry is an in-memory tool.Registry.
type StubRegistry struct {
	mu           sync.Mutex
	descs        []tool.Descriptor
	invoke       InvokeFunc
	discoverErr  error
	discoverHits int
	invocations  []Invocation
}

// Invocation records one Invoke call.
type Invocation struct {
	Name string
	Args map[string]any
}

var _ tool.Registry = (*StubRegistry)(nil)

// NewStubRegistry creates a registry listing descs.
func NewStubRegistry(descs ...tool.Descriptor) *StubRegistry {
	return &StubRegistry{descs: descs}
}

// OnInvoke sets the call implementation (chainable).
func (r *StubRegistry) OnInvoke(fn InvokeFunc) *StubRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoke = fn
	return r
}

// FailDiscovery makes Discover and Invoke fail with err (chainable).
func (r *StubRegistry) FailDiscovery(err error) *StubRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discoverErr = err
	return r
}

// Discover implements tool.Registry.
func (r *StubRegistry) Discover(ctx context.Context) ([]tool.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.discoverHits++
	if r.discoverErr != nil {
		return nil, tool.DiscoveryError("stub", r.discoverErr)
	}
	return append([]tool.Descriptor(nil), r.descs...), nil
}

// Invoke implements tool.Registry.
func (r *StubRegistry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.Lock()
	r.invocations = append(r.invocations, Invocation{Name: name, Args: args})
	fn, derr := r.invoke, r.discoverErr
	known := false
	for _, d := range r.descs {
		if d.Name == name {
			known = true
			break
		}
	}
	r.mu.Unlock()

	if derr != nil {
		return "", tool.DiscoveryError("stub", derr)
	}
	if !known {
		return "", tool.NewToolError(name, "tool not found", tool.CodeUnknownTool)
	}
	if fn == nil {
		return "", nil
	}

	out, err := fn(ctx, name, args)
	if err != nil {
		return "", tool.InvocationError(name, err)
	}
	return out, nil
}

// DiscoverCalls returns how often Discover was called.
func (r *StubRegistry) DiscoverCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discoverHits
}

// Invocations returns the recorded Invoke calls.
func (r *StubRegistry) Invocations() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Invocation(nil), r.invocations...)
}

// PayAmountDescriptor describes a pay_amount(amount: integer) tool.
func PayAmountDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        "pay_amount",
		Description: "정수 금액(원)을 입력받아 지불 처리 후 확인 메시지를 반환합니다.",
		InputSchema: tool.ParseSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"amount": map[string]any{"type": "integer"},
			},
			"required": []any{"amount"},
		}),
		Provider: "pay",
	}
}
