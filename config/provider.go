package config

import (
	"fmt"
	"strings"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
)

// ProviderKind names a model provider variant.
type ProviderKind string

const (
	KindAnthropic ProviderKind = "anthropic"
	KindOpenAI    ProviderKind = "openai"
	KindLocal     ProviderKind = "local"
	KindGemini    ProviderKind = "gemini"
	KindBedrock   ProviderKind = "bedrock"
)

// ParseProviderKind accepts the canonical names plus the generic aliases
// remote-a (anthropic) and remote-b (openai).
func ParseProviderKind(s string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "anthropic", "remote-a":
		return KindAnthropic, nil
	case "openai", "remote-b":
		return KindOpenAI, nil
	case "local":
		return KindLocal, nil
	case "gemini":
		return KindGemini, nil
	case "bedrock":
		return KindBedrock, nil
	default:
		return "", fmt.Errorf("unknown provider kind %q", s)
	}
}

// ProviderConfig is the active provider variant. Exactly one variant is set
// on an AgentConfig; each carries its own credential shape.
type ProviderConfig interface {
	Kind() ProviderKind
	ModelName() string
	validate() error
	clone() ProviderConfig
}

// AnthropicProvider is the remote-a variant.
type AnthropicProvider struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

func (p *AnthropicProvider) Kind() ProviderKind { return KindAnthropic }
func (p *AnthropicProvider) ModelName() string  { return p.Model }
func (p *AnthropicProvider) validate() error    { return requireAPIKey(p.APIKey) }

// OpenAIProvider is the remote-b variant.
type OpenAIProvider struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

func (p *OpenAIProvider) Kind() ProviderKind { return KindOpenAI }
func (p *OpenAIProvider) ModelName() string  { return p.Model }
func (p *OpenAIProvider) validate() error    { return requireAPIKey(p.APIKey) }

// LocalProvider talks to an OpenAI-compatible endpoint (llama.cpp, vLLM,
// Ollama). APIKey is optional.
type LocalProvider struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key,omitempty"`
}

func (p *LocalProvider) Kind() ProviderKind { return KindLocal }
func (p *LocalProvider) ModelName() string  { return p.Model }
func (p *LocalProvider) validate() error {
	if p.Endpoint == "" {
		return errors.Config("Endpoint URL is required")
	}
	return nil
}

// GeminiProvider uses the Google Gemini API.
type GeminiProvider struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

func (p *GeminiProvider) Kind() ProviderKind { return KindGemini }
func (p *GeminiProvider) ModelName() string  { return p.Model }
func (p *GeminiProvider) validate() error    { return requireAPIKey(p.APIKey) }

// BedrockProvider runs Anthropic models on AWS Bedrock. Credentials come
// from the default AWS chain; only the region is configured here.
type BedrockProvider struct {
	Region string `yaml:"region"`
	Model  string `yaml:"model"`
}

func (p *BedrockProvider) Kind() ProviderKind { return KindBedrock }
func (p *BedrockProvider) ModelName() string  { return p.Model }
func (p *BedrockProvider) validate() error {
	if p.Region == "" {
		return errors.Config("Region is required")
	}
	return nil
}

func (p *AnthropicProvider) clone() ProviderConfig {
	c := *p
	return &c
}

func (p *OpenAIProvider) clone() ProviderConfig {
	c := *p
	return &c
}

func (p *LocalProvider) clone() ProviderConfig {
	c := *p
	return &c
}

func (p *GeminiProvider) clone() ProviderConfig {
	c := *p
	return &c
}

func (p *BedrockProvider) clone() ProviderConfig {
	c := *p
	return &c
}

func requireAPIKey(key string) error {
	if key == "" {
		return errors.Config("API key is required")
	}
	return nil
}

func newProvider(kind ProviderKind) ProviderConfig {
	switch kind {
	case KindAnthropic:
		return &AnthropicProvider{}
	case KindOpenAI:
		return &OpenAIProvider{}
	case KindLocal:
		return &LocalProvider{}
	case KindGemini:
		return &GeminiProvider{}
	case KindBedrock:
		return &BedrockProvider{}
	}
	return nil
}
