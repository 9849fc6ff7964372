package llm

import (
	"context"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// localPlaceholderKey is sent to local endpoints that ignore authentication.
const localPlaceholderKey = "local"

// OpenAIProvider calls the Chat Completions API. It also serves local
// OpenAI-compatible endpoints through a custom base URL.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	vendor string
}

// NewOpenAIProvider creates a provider for api.openai.com, or for baseURL
// when it is set.
func NewOpenAIProvider(apiKey, model, baseURL string, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.Config("API key is required")
	}
	return newOpenAICompatible("openai", apiKey, model, baseURL, opts...), nil
}

// NewLocalProvider creates a provider for a self-hosted OpenAI-compatible
// endpoint such as llama.cpp, vLLM or Ollama.
func NewLocalProvider(endpoint, model, apiKey string, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if endpoint == "" {
		return nil, errors.Config("Endpoint URL is required")
	}
	if apiKey == "" {
		apiKey = localPlaceholderKey
	}
	return newOpenAICompatible("local", apiKey, model, endpoint, opts...), nil
}

func newOpenAICompatible(vendor, apiKey, model, baseURL string, opts ...option.RequestOption) *OpenAIProvider {
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	options = append(options, opts...)

	// The &c is required, do not replace and just use c
	c := openai.NewClient(options...)
	return &OpenAIProvider{client: &c, model: model, vendor: vendor}
}

// Generate sends the conversation to the Chat Completions endpoint.
func (o *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    convertMessagesToOpenaiContent(req.Messages),
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.maxTokens())),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapProviderError(err, o.vendor)
	}
	if len(resp.Choices) == 0 {
		return &Response{Model: resp.Model}, nil
	}
	return &Response{Text: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

// convertMessagesToOpenaiContent converts our message format to OpenAI's.
func convertMessagesToOpenaiContent(messages []Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
