package llm

import (
	"context"
	"errors"
	"fmt"

	"resumable-chat/backend/internal/models"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// OpenAI talks to any OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	model string
	llm   llms.Model
}

func NewOpenAI(apiKey, model, baseURL string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("LLM API key is required for the openai provider")
	}
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	return &OpenAI{model: model, llm: client}, nil
}

func (o *OpenAI) Name() string { return "openai:" + o.model }

func (o *OpenAI) Stream(ctx context.Context, req Request, onDelta func(string) error) error {
	_, err := o.llm.GenerateContent(ctx, toContent(req),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onDelta(string(chunk))
		}),
	)
	if err != nil {
		return fmt.Errorf("openai completion: %w", err)
	}
	return nil
}

func toContent(req Request) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, llms.MessageContent{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: req.System}},
		})
	}
	for _, m := range req.Messages {
		role := schema.ChatMessageTypeHuman
		if m.Role == models.RoleAssistant {
			role = schema.ChatMessageTypeAI
		}
		mc := llms.MessageContent{Role: role}
		for _, p := range m.Parts {
			switch p.Type {
			case models.PartText:
				mc.Parts = append(mc.Parts, llms.TextContent{Text: p.Text})
			case models.PartImage:
				if p.URL != "" {
					mc.Parts = append(mc.Parts, llms.ImageURLContent{URL: p.URL})
				}
			}
		}
		if len(mc.Parts) > 0 {
			out = append(out, mc)
		}
	}
	return out
}
