// Package tool implements the tool calling subsystem: the Tool abstraction the
// sub-agent calls, typed argument validation derived from JSON schemas, the
// Registry contract for remote tool providers and consistent error codes.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/payroute/core"
)

// Tool is a callable capability exposed to a model.
//
// Implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define a JSON schema for parameters
//   - Return failures as *ToolError
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is shown to the model to decide when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input.
	Parameters() map[string]any

	// Call executes the tool with structured arguments and returns its text result.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Descriptor is the provider-neutral description of a discoverable tool.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"input_schema"`
	Provider    string `json:"provider,omitempty"`
}

// Registry lists and invokes tools offered by remote providers. Descriptors
// are not assumed stable between calls.
type Registry interface {
	Discover(ctx context.Context) ([]Descriptor, error)
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// Error codes carried by ToolError.
const (
	CodeDiscoveryFailed  = "DISCOVERY_FAILED"
	CodeInvocationFailed = "INVOCATION_FAILED"
	CodeExecutionError   = "EXECUTION_ERROR"
	CodeUnknownTool      = "UNKNOWN_TOOL"
	CodeValidationError  = "VALIDATION_ERROR"
	CodeTimeout          = "TIMEOUT"
)

// Operations a ToolError can stem from.
const (
	OpDiscover = "discover"
	OpInvoke   = "invoke"
)

// ToolError represents errors that occur while listing or executing tools.
// errors.Is matches it against core.ErrToolDiscovery, core.ErrToolInvocation
// and core.ErrTimeout according to Op and Code.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Op      string `json:"op,omitempty"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *ToolError) Error() string {
	name := e.Tool
	if name == "" {
		name = "registry"
	}
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, name, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", name, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ToolError) Unwrap() error { return e.Err }

// Is maps the error onto the core error kinds.
func (e *ToolError) Is(target error) bool {
	switch target {
	case core.ErrTimeout:
		return e.Code == CodeTimeout
	case core.ErrToolDiscovery:
		return e.Op == OpDiscover || e.Code == CodeDiscoveryFailed
	case core.ErrToolInvocation:
		return e.Op != OpDiscover && e.Code != CodeDiscoveryFailed
	}
	return false
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// DiscoveryError wraps a listing failure. Deadline errors get CodeTimeout.
func DiscoveryError(provider string, err error) *ToolError {
	return wrap(provider, OpDiscover, CodeDiscoveryFailed, err)
}

// InvocationError wraps a call failure. Deadline errors get CodeTimeout.
func InvocationError(tool string, err error) *ToolError {
	return wrap(tool, OpInvoke, CodeInvocationFailed, err)
}

func wrap(name, op, code string, err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	if core.IsTimeout(err) {
		code = CodeTimeout
	}
	return &ToolError{Tool: name, Message: err.Error(), Code: code, Op: op, Err: err}
}
