package anthropic

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

func TestModel_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [
				{"type": "text", "text": "결제하겠습니다."},
				{"type": "tool_use", "id": "toolu_1", "name": "pay_amount", "input": {"amount": 5000}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.BaseURL = srv.URL
		o.APIKey = "test"
	})

	req := model.Request{
		Instructions: "call tools",
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, "5000원 결제해주세요")},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name:       "pay_amount",
			Parameters: map[string]any{"type": "object", "properties": map[string]any{}, "required": []any{"amount"}},
		}}},
	}

	resp, err := m.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "결제하겠습니다.", resp.Text())
	assert.Equal(t, "tool_use", resp.FinishReason)
	require.Len(t, resp.Content.FunctionCalls(), 1)
	assert.JSONEq(t, `{"amount":5000}`, resp.Content.FunctionCalls()[0].Arguments)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	require.NotNil(t, body)
	assert.NotNil(t, body["system"])
	assert.Len(t, body["tools"], 1)
}

func TestBuildMessages_ToolResultsAsUser(t *testing.T) {
	msgs := buildMessages([]core.Content{
		core.NewTextContent(core.RoleSystem, "ignored"),
		core.NewTextContent(core.RoleUser, "pay"),
		{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "t1", Name: "pay_amount", Arguments: `{"amount":1}`}}}},
		{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "t1", Name: "pay_amount", Response: "ok"}}}},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
}

func TestRequiredNames(t *testing.T) {
	assert.Equal(t, []string{"a"}, requiredNames([]string{"a"}))
	assert.Equal(t, []string{"a", "b"}, requiredNames([]any{"a", 1, "b"}))
	assert.Nil(t, requiredNames(nil))
}
