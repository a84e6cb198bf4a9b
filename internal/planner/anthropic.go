package planner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements Provider on the Anthropic messages API.
// Structured output is obtained by forcing a single tool call whose input
// schema is the requested output schema.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates an Anthropic-backed provider. baseURL may
// be empty for the public API.
func NewAnthropicProvider(apiKey, model, baseURL string) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// Name identifies the backend.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// StructuredCompletion performs one schema-constrained completion.
func (p *AnthropicProvider) StructuredCompletion(ctx context.Context, req *StructuredRequest) (json.RawMessage, error) {
	var schema anthropic.ToolInputSchemaParam
	if err := json.Unmarshal(req.Schema, &schema); err != nil {
		return nil, fmt.Errorf("invalid output schema: %w", err)
	}

	tool := anthropic.ToolUnionParamOfTool(schema, req.SchemaName)
	if tool.OfTool == nil {
		return nil, fmt.Errorf("invalid output schema for %s", req.SchemaName)
	}
	tool.OfTool.Description = anthropic.String("Report the structured result.")

	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(req.Prompt)}
	if len(req.ImagePNG) > 0 {
		encoded := base64.StdEncoding.EncodeToString(req.ImagePNG)
		blocks = append(blocks, anthropic.NewImageBlockBase64("image/png", encoded))
	}

	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
		Tools: []anthropic.ToolUnionParam{tool},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: req.SchemaName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic completion: %w", err)
	}

	for _, block := range message.Content {
		if variant, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			return json.RawMessage(variant.JSON.Input.Raw()), nil
		}
	}
	return nil, fmt.Errorf("anthropic completion returned no tool use block")
}
