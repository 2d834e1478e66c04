package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/payroute/logging"
	"github.com/hupe1980/payroute/model/provider"
	"github.com/hupe1980/payroute/tool/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "purchase", cfg.Topology)
	assert.Equal(t, provider.Config{Provider: "ollama", Model: "gemma3n:e4b"}, cfg.LLM)
	assert.Equal(t, Timeouts{LLM: 30 * time.Second, Tool: 30 * time.Second}, cfg.Timeouts)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 3, cfg.Agent.MaxParseErrors)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "payroute:history:", cfg.Redis.Prefix)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	require.NoError(t, cfg.Validate())
}

func TestParse_YAML(t *testing.T) {
	cfg, err := Parse([]byte(`
topology: purchase_flow
llm:
  provider: openai
  model: gpt-4o-mini
  temperature: 0.1
nodes:
  politeness: {provider: anthropic, model: claude-3-5-haiku-latest}
  agent: {temperature: 0.2, max_tokens: 512}
mcpServers:
  pay: {command: go, args: [run, ./cmd/pay-server]}
timeouts: {llm: 10s, tool: 5s}
agent: {max_iterations: 8}
log: {level: debug, format: json}
`))
	require.NoError(t, err)

	assert.Equal(t, "purchase_flow", cfg.Topology)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.LLM)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Tool)
	assert.Equal(t, 8, cfg.Agent.MaxIterations)
	assert.Equal(t, 3, cfg.Agent.MaxParseErrors)
	assert.Equal(t, []string{"agent", "politeness"}, cfg.NodeNames())
	assert.Equal(t, "go", cfg.MCPServers["pay"].Command)

	lc, err := cfg.LoggerConfig()
	require.NoError(t, err)
	assert.Equal(t, logging.LogLevelDebug, lc.Level)
	assert.Equal(t, "json", lc.Format)
}

func TestParse_JSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"llm": {"provider": "vllm", "model": "qwen"}, "mcpServers": {"remote": {"url": "http://localhost:8765/sse"}}}`))
	require.NoError(t, err)

	assert.Equal(t, "vllm", cfg.LLM.Provider)
	assert.Equal(t, "qwen", cfg.LLM.Model)
	assert.Equal(t, mcp.TransportSSE, cfg.MCPServers["remote"].ResolvedTransport())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"syntax", "llm: [", "parse config"},
		{"log level", "log: {level: loud}", `unknown log level "loud"`},
		{"log format", "log: {format: xml}", `unsupported log format "xml"`},
		{"temperature", "llm: {temperature: -1}", "llm.temperature"},
		{"node temperature", "nodes: {agent: {temperature: -0.5}}", "nodes.agent.temperature"},
		{"server", "mcpServers: {pay: {transport: stdio}}", `mcp server "pay"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNodeLLM(t *testing.T) {
	temp := 0.7
	maxTokens := 256

	cfg := Default()
	cfg.LLM = provider.Config{Provider: "openai", Model: "gpt-4o-mini", Temperature: 0, BaseURL: "http://proxy", APIKey: "k"}
	cfg.Nodes = map[string]NodeConfig{
		"politeness":          {Provider: "anthropic", Model: "claude-3-5-haiku-latest"},
		"agent":               {Temperature: &temp, MaxTokens: &maxTokens},
		"classify_pay_amount": {Provider: "OpenAI", Model: "gpt-4o"},
	}

	assert.Equal(t, provider.Config{Provider: "anthropic", Model: "claude-3-5-haiku-latest"}, cfg.NodeLLM("politeness"))
	assert.Equal(t, provider.Config{Provider: "openai", Model: "gpt-4o-mini", Temperature: 0.7, MaxTokens: 256, BaseURL: "http://proxy", APIKey: "k"}, cfg.NodeLLM("agent"))
	assert.Equal(t, provider.Config{Provider: "OpenAI", Model: "gpt-4o", BaseURL: "http://proxy", APIKey: "k"}, cfg.NodeLLM("classify_pay_amount"))
	assert.Equal(t, cfg.LLM, cfg.NodeLLM("check_tool"))
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()

	err := cfg.ApplyEnv(env(map[string]string{
		"PAYROUTE_LLM_PROVIDER":               "openai",
		"PAYROUTE_LLM_MODEL":                  "gpt-4o-mini",
		"PAYROUTE_LLM_TEMPERATURE":            "0.3",
		"PAYROUTE_NODE_POLITENESS_MODEL":      "gpt-4o",
		"PAYROUTE_NODE_CHECK_TOOL_PROVIDER":   "ollama",
		"PAYROUTE_NODE_CHECK_TOOL_MAX_TOKENS": "64",
		"PAYROUTE_TIMEOUT_TOOL":               "3s",
		"PAYROUTE_AGENT_MAX_ITERATIONS":       "2",
		"PAYROUTE_LOG_LEVEL":                  "warn",
		"PAYROUTE_REDIS_ADDR":                 "localhost:6379",
		"PAYROUTE_SERVER_ADDR":                " ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, "gpt-4o", cfg.NodeLLM("politeness").Model)
	assert.Equal(t, "ollama", cfg.NodeLLM("check_tool").Provider)
	assert.Equal(t, 64, cfg.NodeLLM("check_tool").MaxTokens)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Tool)
	assert.Equal(t, 2, cfg.Agent.MaxIterations)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, ":8080", cfg.Server.Addr, "blank values are ignored")
	assert.Equal(t, []string{"check_tool", "politeness"}, cfg.NodeNames())
}

func TestApplyEnv_Invalid(t *testing.T) {
	cfg := Default()

	err := cfg.ApplyEnv(env(map[string]string{
		"PAYROUTE_LLM_TEMPERATURE":        "warm",
		"PAYROUTE_TIMEOUT_LLM":            "soon",
		"PAYROUTE_NODE_AGENT_MAX_TOKENS":  "many",
		"PAYROUTE_AGENT_MAX_PARSE_ERRORS": "3",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYROUTE_LLM_TEMPERATURE")
	assert.Contains(t, err.Error(), "PAYROUTE_TIMEOUT_LLM")
	assert.Contains(t, err.Error(), "PAYROUTE_NODE_AGENT_MAX_TOKENS")
	assert.Empty(t, cfg.Nodes)
}

func TestLoad_ResolvesServersFile(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mcp_servers.json"), []byte(`{
  "mcpServers": {
    "pay": {"command": "pay-server"},
    "remote": {"url": "http://localhost:8765/mcp"}
  }
}`), 0o600))

	path := filepath.Join(dir, "payroute.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"mcp_servers_file: mcp_servers.json",
		"mcpServers:",
		"  pay: {command: go, args: [run, ./cmd/pay-server]}",
	}, "\n")), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	doc, err := cfg.Servers()
	require.NoError(t, err)
	assert.Equal(t, []string{"pay", "remote"}, doc.Names())
	assert.Equal(t, "go", doc.MCPServers["pay"].Command, "inline entries win")
	assert.Equal(t, mcp.TransportHTTP, doc.MCPServers["remote"].ResolvedTransport())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")

	cfg := Default()
	cfg.MCPServersFile = filepath.Join(t.TempDir(), "missing.json")
	_, err = cfg.Servers()
	assert.Error(t, err)
}

func TestRead(t *testing.T) {
	cfg, err := Read(strings.NewReader("llm: {provider: mock}"))
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Empty(t, cfg.LLM.Model, "default model only applies to the default provider")
}
