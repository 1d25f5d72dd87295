package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIService implements Service on top of the official OpenAI SDK.
type OpenAIService struct {
	client openai.Client
}

// NewOpenAIService creates a model-calling service backed by the OpenAI
// chat completions API.
func NewOpenAIService(apiKey string) (*OpenAIService, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai service requires an API key")
	}
	return &OpenAIService{client: openai.NewClient(option.WithAPIKey(apiKey))}, nil
}

// Call issues one chat completion and parses it into the requested shape.
func (s *OpenAIService) Call(ctx context.Context, modelID string, conv Conversation, shape ResponseShape, params *SamplingParams) (*Result, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(conv))
	for _, msg := range conv {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("openai call requires at least one non-empty message")
	}

	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelID),
		Messages: messages,
	}

	if shape != ShapeRaw {
		req.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	if params != nil {
		req.Temperature = openai.Float(params.Temperature)
		req.TopP = openai.Float(params.TopP)
		req.FrequencyPenalty = openai.Float(params.FrequencyPenalty)
		req.PresencePenalty = openai.Float(params.PresencePenalty)
		if params.MaxTokens > 0 {
			req.MaxTokens = openai.Int(int64(params.MaxTokens))
		}
	}

	resp, err := s.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	usage := Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}

	return ParseResult(resp.Choices[0].Message.Content, shape, usage)
}
