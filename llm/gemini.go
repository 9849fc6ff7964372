package llm

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"google.golang.org/api/option"
)

// GeminiProvider calls the Google Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a GeminiProvider.
func NewGeminiProvider(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.Config("API key is required")
	}

	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, errors.PermanentModelAPI(err, "failed to create genai client")
	}

	return &GeminiProvider{
		client: client,
		model:  model,
	}, nil
}

// Generate sends the conversation to Gemini. A model handle is built per
// call so concurrent requests never share generation settings.
func (g *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	system, rest := req.splitSystem()
	if len(rest) == 0 {
		return nil, errors.PermanentModelAPI(nil, "gemini request has no prompt")
	}

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(float32(req.Temperature))
	model.SetMaxOutputTokens(int32(req.maxTokens()))
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	history := convertMessagesToGeminiContent(rest)

	// The last message is the new prompt.
	lastMessage := history[len(history)-1]

	chatSession := model.StartChat()
	chatSession.History = history[:len(history)-1]
	resp, err := chatSession.SendMessage(ctx, lastMessage.Parts...)
	if err != nil {
		return nil, wrapProviderError(err, "gemini")
	}

	return &Response{Text: geminiText(resp), Model: g.model}, nil
}

// Close releases the underlying client connection.
func (g *GeminiProvider) Close() error {
	return g.client.Close()
}

// convertMessagesToGeminiContent converts our message format to Gemini's.
func convertMessagesToGeminiContent(messages []Message) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return contents
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
