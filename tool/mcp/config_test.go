package mcp

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServers(t *testing.T) {
	doc, err := ParseServers([]byte(`{
  "mcpServers": {
    "pay": {"command": "go", "args": ["run", "./cmd/pay-server"], "env": {"B": "2", "A": "1"}},
    "remote": {"url": "http://localhost:8765/sse"},
    "stream": {"url": "http://localhost:9000/mcp", "headers": {"Authorization": "Bearer x"}, "timeout": "5s"}
  }
}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"pay", "remote", "stream"}, doc.Names())

	pay := doc.MCPServers["pay"]
	assert.Equal(t, TransportStdio, pay.ResolvedTransport())
	assert.Equal(t, []string{"A=1", "B=2"}, pay.EnvList())

	assert.Equal(t, TransportSSE, doc.MCPServers["remote"].ResolvedTransport())

	stream := doc.MCPServers["stream"]
	assert.Equal(t, TransportHTTP, stream.ResolvedTransport())
	assert.Equal(t, 5*time.Second, stream.Timeout)

	providers, err := doc.Providers()
	require.NoError(t, err)
	require.Len(t, providers, 3)
	assert.Equal(t, "pay", providers[0].Name)
	assert.Equal(t, 5*time.Second, providers[2].Timeout)
}

func TestParseServers_Invalid(t *testing.T) {
	_, err := ParseServers([]byte(`{"mcpServers": {"x": {}}}`))
	assert.Error(t, err)

	_, err = ParseServers([]byte(`{"mcpServers": {"x": {"url": "http://h", "transport": "carrier-pigeon"}}}`))
	assert.Error(t, err)
}

func TestServerConfig_CommandLine(t *testing.T) {
	cmd, args, err := ServerConfig{Command: `python "my server.py" --port 1`}.CommandLine()
	require.NoError(t, err)
	assert.Equal(t, "python", cmd)
	assert.Equal(t, []string{"my server.py", "--port", "1"}, args)

	cmd, args, err = ServerConfig{Command: "pay-server", Args: []string{"stdio"}}.CommandLine()
	require.NoError(t, err)
	assert.Equal(t, "pay-server", cmd)
	assert.Equal(t, []string{"stdio"}, args)

	_, _, err = ServerConfig{Command: `python "unterminated`}.CommandLine()
	assert.Error(t, err)
}

func TestServerConfig_ExplicitTransport(t *testing.T) {
	assert.Equal(t, TransportHTTP, ServerConfig{URL: "http://h/sse", Transport: "streamable-http"}.ResolvedTransport())
	assert.Equal(t, TransportSSE, ServerConfig{URL: "http://h/events", Transport: "SSE"}.ResolvedTransport())
}

func TestLoadServers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp_servers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mcpServers": {"pay": {"command": "pay-server"}}}`), 0o600))

	doc, err := LoadServers(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"pay"}, doc.Names())

	_, err = LoadServers(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
