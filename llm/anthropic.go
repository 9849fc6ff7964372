package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mmuhlariholdings/hlavi-agent/errors"
)

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicProvider creates an AnthropicProvider. SDK-level retries are
// disabled; the agent's retry policy owns the attempt budget.
func NewAnthropicProvider(apiKey, model string, opts ...option.RequestOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.Config("API key is required")
	}
	options := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	client := anthropic.NewClient(options...)
	return &AnthropicProvider{
		client: &client,
		model:  model,
	}, nil
}

// Generate sends the conversation to the Anthropic API.
func (a *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	messages, systemPrompt := convertMessagesToAnthropicMessages(req.Messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   int64(req.maxTokens()),
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapProviderError(err, "anthropic")
	}
	return processAnthropicResponse(resp), nil
}

// convertMessagesToAnthropicMessages converts our message format to Anthropic's.
// System messages are lifted out; the last one wins.
func convertMessagesToAnthropicMessages(messages []Message) ([]anthropic.MessageParam, string) {
	var out []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			systemPrompt = msg.Content
		case RoleAssistant:
			if msg.Content != "" {
				out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			}
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return out, systemPrompt
}

func processAnthropicResponse(resp *anthropic.Message) *Response {
	var sb strings.Builder
	for _, content := range resp.Content {
		if c, ok := content.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(c.Text)
		}
	}
	return &Response{Text: sb.String(), Model: string(resp.Model)}
}
