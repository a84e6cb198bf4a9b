package planner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider on the OpenAI chat completions API
// using strict JSON-schema response formatting.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates an OpenAI-backed provider. baseURL may be
// empty for the public API.
func NewOpenAIProvider(apiKey, model, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Name identifies the backend.
func (p *OpenAIProvider) Name() string { return "openai" }

// StructuredCompletion performs one schema-constrained completion.
func (p *OpenAIProvider) StructuredCompletion(ctx context.Context, req *StructuredRequest) (json.RawMessage, error) {
	userMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.ImagePNG) > 0 {
		userMsg.MultiContent = []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: req.Prompt,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.ImagePNG),
					Detail: openai.ImageURLDetailAuto,
				},
			},
		}
	} else {
		userMsg.Content = req.Prompt
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			userMsg,
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai completion returned no choices")
	}
	return json.RawMessage(resp.Choices[0].Message.Content), nil
}
