package tool

import (
	"context"
	"fmt"
)

// RemoteTool adapts a discovered descriptor into a Tool whose calls are routed
// through a Registry.
type RemoteTool struct {
	desc     Descriptor
	registry Registry
}

// NewRemoteTool binds desc to registry.
func NewRemoteTool(desc Descriptor, registry Registry) *RemoteTool {
	return &RemoteTool{desc: desc, registry: registry}
}

// FromDescriptors binds every descriptor to registry.
func FromDescriptors(descs []Descriptor, registry Registry) []Tool {
	tools := make([]Tool, 0, len(descs))
	for _, d := range descs {
		tools = append(tools, NewRemoteTool(d, registry))
	}
	return tools
}

// Name returns the (possibly provider-prefixed) tool name.
func (t *RemoteTool) Name() string { return t.desc.Name }

// Description returns the provider supplied description.
func (t *RemoteTool) Description() string { return t.desc.Description }

// Parameters returns the JSON schema of the tool input.
func (t *RemoteTool) Parameters() map[string]any { return t.desc.InputSchema.JSONSchema() }

// Descriptor returns the bound descriptor.
func (t *RemoteTool) Descriptor() Descriptor { return t.desc }

// Call validates args locally, then invokes the tool through the registry.
func (t *RemoteTool) Call(ctx context.Context, args map[string]any) (string, error) {
	if err := t.desc.InputSchema.Validate(args); err != nil {
		return "", &ToolError{
			Tool:    t.desc.Name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidationError,
			Op:      OpInvoke,
			Details: err,
			Err:     err,
		}
	}

	return t.registry.Invoke(ctx, t.desc.Name, args)
}
