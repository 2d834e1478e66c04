// Package config loads the payroute configuration document: global and
// per-node model settings, MCP servers, timeouts, agent limits, logging and
// the optional Redis history store.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/payroute/logging"
	"github.com/hupe1980/payroute/model/provider"
	"github.com/hupe1980/payroute/tool/mcp"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Default and Load.
const (
	DefaultTopology       = "purchase"
	DefaultProvider       = provider.Ollama
	DefaultModel          = "gemma3n:e4b"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxIterations  = 5
	DefaultMaxParseErrors = 3
	DefaultServerAddr     = ":8080"
	DefaultRedisPrefix    = "payroute:history:"
	DefaultHistoryLimit   = 50
)

// Config is the root configuration document.
type Config struct {
	Topology       string                      `yaml:"topology" json:"topology"`
	LLM            provider.Config             `yaml:"llm" json:"llm"`
	Nodes          map[string]NodeConfig       `yaml:"nodes,omitempty" json:"nodes,omitempty"`
	MCPServersFile string                      `yaml:"mcp_servers_file,omitempty" json:"mcp_servers_file,omitempty"`
	MCPServers     map[string]mcp.ServerConfig `yaml:"mcpServers,omitempty" json:"mcpServers,omitempty"`
	Timeouts       Timeouts                    `yaml:"timeouts" json:"timeouts"`
	Agent          AgentConfig                 `yaml:"agent" json:"agent"`
	Log            LogConfig                   `yaml:"log" json:"log"`
	Redis          RedisConfig                 `yaml:"redis" json:"redis"`
	Server         ServerConfig                `yaml:"server" json:"server"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// NodeConfig overrides the global model settings for one node. Unset fields
// inherit the global value.
type NodeConfig struct {
	Provider    string   `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model       string   `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	BaseURL     string   `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey      string   `yaml:"api_key,omitempty" json:"-"`
}

// Timeouts bound single remote calls.
type Timeouts struct {
	LLM  time.Duration `yaml:"llm" json:"llm"`
	Tool time.Duration `yaml:"tool" json:"tool"`
}

// AgentConfig bounds the tool-calling sub-agent.
type AgentConfig struct {
	MaxIterations  int    `yaml:"max_iterations" json:"max_iterations"`
	MaxParseErrors int    `yaml:"max_parse_errors" json:"max_parse_errors"`
	MaxParallel    int    `yaml:"max_parallel,omitempty" json:"max_parallel,omitempty"`
	Instruction    string `yaml:"instruction,omitempty" json:"instruction,omitempty"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level     string `yaml:"level" json:"level"`
	Format    string `yaml:"format" json:"format"`
	AddSource bool   `yaml:"add_source,omitempty" json:"add_source,omitempty"`
}

// RedisConfig enables the Redis history store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty" json:"addr,omitempty"`
	Password string `yaml:"password,omitempty" json:"-"`
	DB       int    `yaml:"db,omitempty" json:"db,omitempty"`
	Prefix   string `yaml:"prefix" json:"prefix"`
	Limit    int    `yaml:"limit,omitempty" json:"limit,omitempty"`
}

// ServerConfig configures the HTTP shell.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Parse decodes a YAML or JSON document and applies defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read parses the document from r.
func Read(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Load reads path, applies PAYROUTE_ environment overrides and validates the
// result. An empty path yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, err
		}
		cfg.dir = filepath.Dir(path)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Topology == "" {
		c.Topology = DefaultTopology
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = DefaultProvider
	}
	if c.LLM.Model == "" && c.LLM.Provider == DefaultProvider {
		c.LLM.Model = DefaultModel
	}
	if c.Timeouts.LLM <= 0 {
		c.Timeouts.LLM = DefaultTimeout
	}
	if c.Timeouts.Tool <= 0 {
		c.Timeouts.Tool = DefaultTimeout
	}
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = DefaultMaxIterations
	}
	if c.Agent.MaxParseErrors <= 0 {
		c.Agent.MaxParseErrors = DefaultMaxParseErrors
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = DefaultRedisPrefix
	}
	if c.Redis.Limit <= 0 {
		c.Redis.Limit = DefaultHistoryLimit
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("unsupported log format %q", f))
	}
	if strings.TrimSpace(c.LLM.Provider) == "" {
		errs = append(errs, errors.New("llm.provider is required"))
	}
	for _, name := range c.NodeNames() {
		if t := c.Nodes[name].Temperature; t != nil && *t < 0 {
			errs = append(errs, fmt.Errorf("nodes.%s.temperature must not be negative", name))
		}
	}
	if c.LLM.Temperature < 0 {
		errs = append(errs, errors.New("llm.temperature must not be negative"))
	}
	for name, sc := range c.MCPServers {
		if err := sc.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("mcp server %q: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// NodeNames returns the nodes with overrides in sorted order.
func (c *Config) NodeNames() []string {
	names := make([]string, 0, len(c.Nodes))
	for name := range c.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeLLM resolves the model settings for node: the node override where
// set, the global settings otherwise.
func (c *Config) NodeLLM(node string) provider.Config {
	out := c.LLM

	n, ok := c.Nodes[node]
	if !ok {
		return out
	}

	if n.Provider != "" && !strings.EqualFold(n.Provider, out.Provider) {
		// A different vendor does not inherit the global model id or endpoint.
		out.Model, out.BaseURL, out.APIKey = "", "", ""
	}
	if n.Provider != "" {
		out.Provider = n.Provider
	}
	if n.Model != "" {
		out.Model = n.Model
	}
	if n.Temperature != nil {
		out.Temperature = *n.Temperature
	}
	if n.MaxTokens != nil {
		out.MaxTokens = *n.MaxTokens
	}
	if n.BaseURL != "" {
		out.BaseURL = n.BaseURL
	}
	if n.APIKey != "" {
		out.APIKey = n.APIKey
	}

	return out
}

// Servers merges the servers file with inline mcpServers entries. Inline
// entries win on name clashes.
func (c *Config) Servers() (mcp.ServersDocument, error) {
	doc := mcp.ServersDocument{MCPServers: map[string]mcp.ServerConfig{}}

	if c.MCPServersFile != "" {
		path := c.MCPServersFile
		if !filepath.IsAbs(path) && c.dir != "" {
			path = filepath.Join(c.dir, path)
		}

		fromFile, err := mcp.LoadServers(path)
		if err != nil {
			return mcp.ServersDocument{}, err
		}
		for name, sc := range fromFile.MCPServers {
			doc.MCPServers[name] = sc
		}
	}

	for name, sc := range c.MCPServers {
		doc.MCPServers[name] = sc
	}

	return doc, nil
}

// LoggerConfig converts the log section for logging.NewLogger.
func (c *Config) LoggerConfig() (*logging.LoggerConfig, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	lc := logging.DefaultLoggerConfig()
	lc.Level = level
	lc.Format = c.Log.Format
	lc.AddSource = c.Log.AddSource

	return lc, nil
}
