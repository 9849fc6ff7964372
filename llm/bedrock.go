package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mmuhlariholdings/hlavi-agent/errors"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// BedrockProvider calls Anthropic models hosted on AWS Bedrock.
type BedrockProvider struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewBedrockProvider creates a BedrockProvider. Credentials come from the
// default AWS chain.
func NewBedrockProvider(ctx context.Context, region, modelID string) (*BedrockProvider, error) {
	if region == "" {
		return nil, errors.Config("Region is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, errors.PermanentModelAPI(err, "failed to load AWS config")
	}

	return &BedrockProvider{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

// Generate invokes the model with an Anthropic messages body.
func (b *BedrockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	body, err := createBedrockRequest(req)
	if err != nil {
		return nil, errors.PermanentModelAPI(err, "failed to encode Bedrock request")
	}

	resp, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, wrapProviderError(err, "bedrock")
	}

	text, err := processBedrockResponse(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{Text: text, Model: b.modelID}, nil
}

type bedrockContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockMessage struct {
	Role    string           `json:"role"`
	Content []bedrockContent `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockResponse struct {
	Content []bedrockContent `json:"content"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// createBedrockRequest builds the request body for Anthropic models on Bedrock.
func createBedrockRequest(req Request) ([]byte, error) {
	system, rest := req.splitSystem()
	request := bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        req.maxTokens(),
		Temperature:      req.Temperature,
		System:           system,
		Messages:         convertMessagesToBedrockFormat(rest),
	}
	return json.Marshal(request)
}

func convertMessagesToBedrockFormat(messages []Message) []bedrockMessage {
	out := make([]bedrockMessage, 0, len(messages))
	for _, msg := range messages {
		role := RoleUser
		if msg.Role == RoleAssistant {
			if msg.Content == "" {
				continue
			}
			role = RoleAssistant
		}
		out = append(out, bedrockMessage{
			Role:    role,
			Content: []bedrockContent{{Type: "text", Text: msg.Content}},
		})
	}
	return out
}

// processBedrockResponse extracts the concatenated text blocks.
func processBedrockResponse(body []byte) (string, error) {
	var response bedrockResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", errors.ModelAPI(err, "failed to decode Bedrock response")
	}
	if response.Error != nil {
		return "", errors.ModelAPI(nil, "Bedrock API error: %s", response.Error.Message)
	}

	var sb strings.Builder
	for _, c := range response.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return sb.String(), nil
}
