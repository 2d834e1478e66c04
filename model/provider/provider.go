// Package provider builds model.Model instances from a provider-neutral
// configuration so callers can switch vendors without code changes.
package provider

import (
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/payroute/model"
	"github.com/hupe1980/payroute/model/anthropic"
	"github.com/hupe1980/payroute/model/ollama"
	"github.com/hupe1980/payroute/model/openai"
)

// Supported provider names.
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Ollama    = "ollama"
	VLLM      = "vllm"
	Mock      = "mock"
)

// DefaultVLLMBaseURL is the OpenAI-compatible endpoint of a local vLLM server.
const DefaultVLLMBaseURL = "http://localhost:8000/v1"

// Config selects and tunes one model.
type Config struct {
	Provider    string  `yaml:"provider" json:"provider"`
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	BaseURL     string  `yaml:"base_url" json:"base_url"`
	APIKey      string  `yaml:"api_key" json:"-"`
}

// New constructs the model described by cfg.
func New(cfg Config) (model.Model, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case OpenAI:
		return openai.NewModel(func(o *openai.Options) {
			applyOpenAI(o, cfg)
		}), nil
	case VLLM:
		return openai.NewModel(func(o *openai.Options) {
			applyOpenAI(o, cfg)
			o.Provider = VLLM
			if o.BaseURL == "" {
				o.BaseURL = DefaultVLLMBaseURL
			}
			if o.APIKey == "" {
				// vLLM accepts any key unless started with --api-key.
				o.APIKey = "EMPTY"
			}
		}), nil
	case Anthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case Ollama:
		return ollama.NewModel(func(o *ollama.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = cfg.Temperature
			o.NumPredict = cfg.MaxTokens
			o.Host = cfg.BaseURL
		})
	case Mock:
		name := cfg.Model
		if name == "" {
			name = "mock"
		}
		m := model.NewMockModel(name, Mock)
		m.SetFallback("NO")
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}

func applyOpenAI(o *openai.Options, cfg Config) {
	if cfg.Model != "" {
		o.Model = cfg.Model
	}
	o.Temperature = cfg.Temperature
	o.MaxCompletionTokens = int64(cfg.MaxTokens)
	o.BaseURL = cfg.BaseURL
	o.APIKey = cfg.APIKey
}
