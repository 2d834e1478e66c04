package mcp

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport kinds understood by ServerConfig.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// ServerConfig declares one MCP server the way mcp_servers.json does: either
// a command to spawn over stdio or a URL to connect to.
type ServerConfig struct {
	Command   string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	URL       string            `yaml:"url,omitempty" json:"url,omitempty"`
	Transport string            `yaml:"transport,omitempty" json:"transport,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Timeout   time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// ResolvedTransport returns the explicit transport or infers it: a command
// means stdio, a URL ending in /sse means SSE, any other URL streamable HTTP.
func (c ServerConfig) ResolvedTransport() string {
	if t := strings.ToLower(strings.TrimSpace(c.Transport)); t != "" {
		if t == "streamable-http" || t == "streamable_http" {
			return TransportHTTP
		}
		return t
	}
	if c.Command != "" {
		return TransportStdio
	}
	if strings.HasSuffix(strings.TrimRight(c.URL, "/"), "/sse") {
		return TransportSSE
	}
	return TransportHTTP
}

// Validate checks that the entry can be dialed.
func (c ServerConfig) Validate() error {
	switch c.ResolvedTransport() {
	case TransportStdio:
		if strings.TrimSpace(c.Command) == "" {
			return errors.New("stdio server requires a command")
		}
	case TransportSSE, TransportHTTP:
		if strings.TrimSpace(c.URL) == "" {
			return errors.New("remote server requires a url")
		}
	default:
		return fmt.Errorf("unsupported transport %q", c.Transport)
	}
	return nil
}

// CommandLine returns the executable and its arguments. A command given as a
// single shell-like string is split when no explicit args are present.
func (c ServerConfig) CommandLine() (string, []string, error) {
	if len(c.Args) > 0 || !strings.ContainsAny(strings.TrimSpace(c.Command), " \t") {
		return c.Command, c.Args, nil
	}

	parts, err := splitCommandLine(c.Command)
	if err != nil {
		return "", nil, err
	}
	if len(parts) == 0 {
		return "", nil, errors.New("empty command")
	}
	return parts[0], parts[1:], nil
}

// EnvList renders Env as sorted KEY=VALUE pairs.
func (c ServerConfig) EnvList() []string {
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// ServersDocument is the top-level {"mcpServers": {...}} document.
type ServersDocument struct {
	MCPServers map[string]ServerConfig `yaml:"mcpServers" json:"mcpServers"`
}

// ParseServers decodes a servers document. JSON input is accepted because
// YAML is a superset of JSON.
func ParseServers(data []byte) (ServersDocument, error) {
	var doc ServersDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ServersDocument{}, fmt.Errorf("parse mcp servers: %w", err)
	}

	for name, sc := range doc.MCPServers {
		if err := sc.Validate(); err != nil {
			return ServersDocument{}, fmt.Errorf("mcp server %q: %w", name, err)
		}
	}

	return doc, nil
}

// LoadServers reads and decodes a servers document from path.
func LoadServers(path string) (ServersDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ServersDocument{}, fmt.Errorf("read mcp servers: %w", err)
	}
	return ParseServers(data)
}

// Names returns the configured server names in sorted order.
func (d ServersDocument) Names() []string {
	names := make([]string, 0, len(d.MCPServers))
	for name := range d.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Providers builds one Provider per configured server, sorted by name.
func (d ServersDocument) Providers() ([]Provider, error) {
	providers := make([]Provider, 0, len(d.MCPServers))
	for _, name := range d.Names() {
		p, err := ProviderFromConfig(name, d.MCPServers[name])
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func splitCommandLine(input string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		escape  bool
	)
	for _, r := range input {
		switch {
		case escape:
			current.WriteRune(r)
			escape = false
		case r == '\\':
			escape = true
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
		case r == ' ' || r == '\t' || r == '\n':
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if escape {
		return nil, errors.New("unterminated escape sequence in mcp command")
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote in mcp command")
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args, nil
}
