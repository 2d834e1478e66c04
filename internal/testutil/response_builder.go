package testutil

import (
	"github.com/hupe1980/payroute/core"
	"github.com/hupe1980/payroute/model"
)

// ResponseBuilder provides a fluent helper for constructing model responses in tests.
// Example:
//
//	resp := NewResponseBuilder().Text("paying").Call("pay_amount", `{"amount":12345}`).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type ResponseBuilder struct {
	id        string
	textParts []string
	calls     []core.FunctionCall
	finish    string
}

// NewResponseBuilder creates a builder for an assistant reply.
func NewResponseBuilder() *ResponseBuilder { return &ResponseBuilder{} }

// ID sets the response ID (chainable).
func (b *ResponseBuilder) ID(id string) *ResponseBuilder { b.id = id; return b }

// Text appends an assistant text part (chainable).
func (b *ResponseBuilder) Text(t string) *ResponseBuilder {
	b.textParts = append(b.textParts, t)
	return b
}

// Call adds a function call part with the provided name and JSON argument string (chainable).
func (b *ResponseBuilder) Call(name, args string) *ResponseBuilder {
	b.calls = append(b.calls, core.FunctionCall{Name: name, Arguments: args})
	return b
}

// CallWithID adds a function call part with an explicit call ID (chainable).
func (b *ResponseBuilder) CallWithID(id, name, args string) *ResponseBuilder {
	b.calls = append(b.calls, core.FunctionCall{ID: id, Name: name, Arguments: args})
	return b
}

// FinishReason overrides the finish reason (chainable).
func (b *ResponseBuilder) FinishReason(r string) *ResponseBuilder { b.finish = r; return b }

// Build constructs the *model.Response value.
func (b *ResponseBuilder) Build() *model.Response {
	parts := make([]core.Part, 0, len(b.textParts)+len(b.calls))
	for _, t := range b.textParts {
		parts = append(parts, core.TextPart{Text: t})
	}
	for _, fc := range b.calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}

	finish := b.finish
	if finish == "" {
		finish = "stop"
		if len(b.calls) > 0 {
			finish = "tool_calls"
		}
	}

	return &model.Response{
		ID:           b.id,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finish,
	}
}
