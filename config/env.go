package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/payroute/purchase"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PAYROUTE_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides scalar settings from the environment:
//
//	PAYROUTE_TOPOLOGY
//	PAYROUTE_LLM_{PROVIDER,MODEL,TEMPERATURE,MAX_TOKENS,BASE_URL,API_KEY}
//	PAYROUTE_NODE_<NODE>_{PROVIDER,MODEL,TEMPERATURE,MAX_TOKENS,BASE_URL,API_KEY}
//	PAYROUTE_TIMEOUT_{LLM,TOOL}
//	PAYROUTE_AGENT_{MAX_ITERATIONS,MAX_PARSE_ERRORS}
//	PAYROUTE_LOG_{LEVEL,FORMAT}
//	PAYROUTE_MCP_SERVERS_FILE
//	PAYROUTE_REDIS_{ADDR,PASSWORD,PREFIX}
//	PAYROUTE_SERVER_ADDR
//
// <NODE> is the upper-cased node name, e.g. PAYROUTE_NODE_CHECK_TOOL_MODEL.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("TOPOLOGY", &c.Topology)

	e.str("LLM_PROVIDER", &c.LLM.Provider)
	e.str("LLM_MODEL", &c.LLM.Model)
	e.float("LLM_TEMPERATURE", &c.LLM.Temperature)
	e.int("LLM_MAX_TOKENS", &c.LLM.MaxTokens)
	e.str("LLM_BASE_URL", &c.LLM.BaseURL)
	e.str("LLM_API_KEY", &c.LLM.APIKey)

	for _, node := range purchase.LLMNodes {
		n := c.Nodes[node]
		key := "NODE_" + strings.ToUpper(node) + "_"

		set := e.str(key+"PROVIDER", &n.Provider)
		set = e.str(key+"MODEL", &n.Model) || set
		set = e.str(key+"BASE_URL", &n.BaseURL) || set
		set = e.str(key+"API_KEY", &n.APIKey) || set

		var temp float64
		if e.float(key+"TEMPERATURE", &temp) {
			n.Temperature, set = &temp, true
		}
		var maxTokens int
		if e.int(key+"MAX_TOKENS", &maxTokens) {
			n.MaxTokens, set = &maxTokens, true
		}

		if !set {
			continue
		}
		if c.Nodes == nil {
			c.Nodes = map[string]NodeConfig{}
		}
		c.Nodes[node] = n
	}

	e.duration("TIMEOUT_LLM", &c.Timeouts.LLM)
	e.duration("TIMEOUT_TOOL", &c.Timeouts.Tool)
	e.int("AGENT_MAX_ITERATIONS", &c.Agent.MaxIterations)
	e.int("AGENT_MAX_PARSE_ERRORS", &c.Agent.MaxParseErrors)
	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("LOG_FORMAT", &c.Log.Format)
	e.str("MCP_SERVERS_FILE", &c.MCPServersFile)
	e.str("REDIS_ADDR", &c.Redis.Addr)
	e.str("REDIS_PASSWORD", &c.Redis.Password)
	e.str("REDIS_PREFIX", &c.Redis.Prefix)
	e.str("SERVER_ADDR", &c.Server.Addr)

	return e.err()
}

type envReader struct {
	lookup LookupFunc
	errs   []string
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) str(key string, dst *string) bool {
	v, ok := e.get(key)
	if ok {
		*dst = v
	}
	return ok
}

func (e *envReader) float(key string, dst *float64) bool {
	v, ok := e.get(key)
	if !ok {
		return false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
		return false
	}
	*dst = f
	return true
}

func (e *envReader) int(key string, dst *int) bool {
	v, ok := e.get(key)
	if !ok {
		return false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
		return false
	}
	*dst = i
	return true
}

func (e *envReader) duration(key string, dst *time.Duration) bool {
	v, ok := e.get(key)
	if !ok {
		return false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
		return false
	}
	*dst = d
	return true
}

func (e *envReader) err() error {
	if len(e.errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid environment: %s", strings.Join(e.errs, "; "))
}
