// Package ollama provides an implementation of model.Model backed by a local
// or remote Ollama server through its chat endpoint.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/hupe1980/payroute/core"
	"github.com/hupe1980/payroute/model"
	ollama "github.com/ollama/ollama/api"
)

// DefaultHost is used when neither Options.Host nor OLLAMA_HOST is set.
const DefaultHost = "http://localhost:11434"

// Options configures the Ollama model adapter.
type Options struct {
	Model       string
	Temperature float64
	// NumPredict caps generated tokens; 0 leaves the server default.
	NumPredict int
	Host       string
	HTTPClient *http.Client
}

// Model wraps the Ollama chat API behind the generic model.Model interface.
type Model struct {
	client *ollama.Client
	opts   Options
}

// NewModel creates a new Ollama model. The host falls back to OLLAMA_HOST
// and then DefaultHost.
func NewModel(optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model: "gemma3n:e4b",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	host := opts.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = DefaultHost
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	return &Model{client: ollama.NewClient(u, httpClient), opts: opts}, nil
}

// NewModelFromClient creates a new Ollama model from an existing client.
func NewModelFromClient(client *ollama.Client, optFns ...func(o *Options)) *Model {
	opts := Options{Model: "gemma3n:e4b"}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Generate sends one non-streaming chat request.
func (m *Model) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	messages, err := buildMessages(req)
	if err != nil {
		return nil, err
	}

	stream := false
	chatReq := &ollama.ChatRequest{
		Model:    m.opts.Model,
		Messages: messages,
		Stream:   &stream,
		Options:  m.requestOptions(),
	}

	if len(req.Tools) > 0 {
		tools, err := buildTools(req.Tools)
		if err != nil {
			return nil, err
		}
		chatReq.Tools = tools
	}

	var (
		final ollama.ChatResponse
		text  string
		calls []ollama.ToolCall
	)

	if err := m.client.Chat(ctx, chatReq, func(cr ollama.ChatResponse) error {
		text += cr.Message.Content
		calls = append(calls, cr.Message.ToolCalls...)
		final = cr
		return nil
	}); err != nil {
		return nil, fmt.Errorf("ollama api error: %w", err)
	}

	parts := make([]core.Part, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, core.TextPart{Text: text})
	}

	for i, tc := range calls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("encode tool call arguments: %w", err)
		}
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			// Ollama does not assign call ids.
			ID:        "call_" + strconv.Itoa(i),
			Name:      tc.Function.Name,
			Arguments: string(args),
		}})
	}

	finishReason := final.DoneReason
	if finishReason == "" {
		finishReason = "stop"
	}

	return &model.Response{
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finishReason,
	}, nil
}

func (m *Model) requestOptions() map[string]any {
	opts := map[string]any{"temperature": m.opts.Temperature}
	if m.opts.NumPredict > 0 {
		opts["num_predict"] = m.opts.NumPredict
	}
	return opts
}

func buildMessages(req model.Request) ([]ollama.Message, error) {
	var messages []ollama.Message
	if req.Instructions != "" {
		messages = append(messages, ollama.Message{Role: core.RoleSystem, Content: req.Instructions})
	}

	for _, c := range req.Contents {
		switch c.Role {
		case core.RoleTool:
			for _, fr := range c.FunctionResponses() {
				messages = append(messages, ollama.Message{Role: core.RoleTool, Content: fr.Text()})
			}
		case core.RoleAssistant:
			msg := ollama.Message{Role: core.RoleAssistant, Content: c.Text()}
			for _, fc := range c.FunctionCalls() {
				args := map[string]any{}
				if fc.Arguments != "" {
					if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
						return nil, fmt.Errorf("decode arguments of %s: %w", fc.Name, err)
					}
				}
				msg.ToolCalls = append(msg.ToolCalls, ollama.ToolCall{
					Function: ollama.ToolCallFunction{Name: fc.Name, Arguments: args},
				})
			}
			messages = append(messages, msg)
		case core.RoleSystem:
			messages = append(messages, ollama.Message{Role: core.RoleSystem, Content: c.Text()})
		default:
			messages = append(messages, ollama.Message{Role: core.RoleUser, Content: c.Text()})
		}
	}

	return messages, nil
}

// buildTools converts definitions through their JSON form, which is the wire
// shape Ollama expects for tools.
func buildTools(defs []model.ToolDefinition) (ollama.Tools, error) {
	raw, err := json.Marshal(defs)
	if err != nil {
		return nil, fmt.Errorf("encode tools: %w", err)
	}

	var tools ollama.Tools
	if err := json.Unmarshal(raw, &tools); err != nil {
		return nil, fmt.Errorf("decode tools: %w", err)
	}

	return tools, nil
}

// Info returns metadata describing this Ollama model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "ollama",
		SupportsTools: true,
	}
}
