// Package llm is the model provider capability the planner and executor
// delegate reasoning to, with one implementation per vendor.
package llm

import (
	"context"
	"fmt"

	"github.com/mmuhlariholdings/hlavi-agent/config"
	"github.com/mmuhlariholdings/hlavi-agent/errors"
)

// DefaultMaxTokens caps a single generation when the request leaves it unset.
const DefaultMaxTokens = 4096

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant returns an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

func (r Request) maxTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return DefaultMaxTokens
}

// splitSystem returns the last system message's content and the remaining
// conversation.
func (r Request) splitSystem() (string, []Message) {
	var system string
	rest := make([]Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// Response is the provider's answer. The caller interprets Text.
type Response struct {
	Text  string
	Model string
}

// Provider generates text for a conversation. Implementations return every
// failure as an errors.KindModelAPI error and must be safe for concurrent use.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// New builds the provider for the active config variant.
func New(ctx context.Context, pc config.ProviderConfig) (Provider, error) {
	switch c := pc.(type) {
	case *config.AnthropicProvider:
		return asProvider(NewAnthropicProvider(c.APIKey, c.Model))
	case *config.OpenAIProvider:
		return asProvider(NewOpenAIProvider(c.APIKey, c.Model, ""))
	case *config.LocalProvider:
		return asProvider(NewLocalProvider(c.Endpoint, c.Model, c.APIKey))
	case *config.GeminiProvider:
		return asProvider(NewGeminiProvider(ctx, c.APIKey, c.Model))
	case *config.BedrockProvider:
		return asProvider(NewBedrockProvider(ctx, c.Region, c.Model))
	case nil:
		return nil, errors.NotConfigured("")
	default:
		return nil, errors.Config(fmt.Sprintf("unsupported provider %T", pc))
	}
}

// asProvider keeps a failed constructor's typed nil out of the interface.
func asProvider[P Provider](p P, err error) (Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
