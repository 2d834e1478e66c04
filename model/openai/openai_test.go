package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hupe1980/payroute/core"
	"github.com/hupe1980/payroute/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, reply string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if captured != nil {
			*captured = body
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
}

func TestModel_Generate_Text(t *testing.T) {
	var body map[string]any
	srv := newTestServer(t, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 0,
		"model": "gemma",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "YES"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4}
	}`, &body)
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.BaseURL = srv.URL + "/v1"
		o.APIKey = "test"
		o.Model = "gemma"
		o.Provider = "vllm"
	})

	resp, err := m.Generate(context.Background(), model.UserPrompt("be brief", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "YES", resp.Text())
	assert.Equal(t, "stop", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 4, resp.Usage.TotalTokens)

	assert.Equal(t, "gemma", body["model"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])

	assert.Equal(t, model.Info{Name: "gemma", Provider: "vllm", SupportsTools: true}, m.Info())
}

func TestModel_Generate_ToolCalls(t *testing.T) {
	var body map[string]any
	srv := newTestServer(t, `{
		"id": "chatcmpl-2",
		"object": "chat.completion",
		"created": 0,
		"model": "gpt",
		"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
			"role": "assistant",
			"content": "",
			"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "pay_amount", "arguments": "{\"amount\":12345}"}}]
		}}]
	}`, &body)
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.BaseURL = srv.URL + "/v1"
		o.APIKey = "test"
	})

	req := model.Request{
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "12345원 결제해주세요")},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name:        "pay_amount",
			Description: "pay",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{"amount": map[string]any{"type": "integer"}}},
		}}},
	}

	resp, err := m.Generate(context.Background(), req)
	require.NoError(t, err)
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "pay_amount", calls[0].Name)
	assert.JSONEq(t, `{"amount":12345}`, calls[0].Arguments)

	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
}

func TestBuildMessages_ToolRoundTrip(t *testing.T) {
	req := model.Request{Contents: []core.Content{
		core.NewTextContent(core.RoleUser, "pay"),
		{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "pay_amount", Arguments: "{}"}}}},
		{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Name: "pay_amount", Response: "ok"}}}},
	}}

	msgs := buildMessages(req)
	require.Len(t, msgs, 3)
	assert.NotNil(t, msgs[1].OfAssistant)
	assert.NotNil(t, msgs[2].OfTool)
}

func TestModel_Generate_NoChoices(t *testing.T) {
	srv := newTestServer(t, `{"id": "x", "object": "chat.completion", "created": 0, "model": "m", "choices": []}`, nil)
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.BaseURL = srv.URL + "/v1"
		o.APIKey = "test"
	})

	_, err := m.Generate(context.Background(), model.UserPrompt("", "x"))
	assert.Error(t, err)
}
