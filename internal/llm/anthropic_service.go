package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/curationsuite/modelrelay/internal/logger"
)

const defaultAnthropicMaxTokens = 2048

// AnthropicService implements Service on top of the official Anthropic SDK.
type AnthropicService struct {
	client anthropic.Client
}

// NewAnthropicService creates a model-calling service backed by the
// Anthropic messages API.
func NewAnthropicService(apiKey string) (*AnthropicService, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("anthropic service requires an API key")
	}
	return &AnthropicService{client: anthropic.NewClient(option.WithAPIKey(apiKey))}, nil
}

// Call issues one messages request and parses it into the requested shape.
func (s *AnthropicService) Call(ctx context.Context, modelID string, conv Conversation, shape ResponseShape, params *SamplingParams) (*Result, error) {
	systemBlocks := make([]anthropic.TextBlockParam, 0, 1)
	chatMessages := make([]anthropic.MessageParam, 0, len(conv))

	for _, msg := range conv {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			chatMessages = append(chatMessages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
			})
		default:
			chatMessages = append(chatMessages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
			})
		}
	}
	if len(chatMessages) == 0 {
		return nil, fmt.Errorf("anthropic call requires at least one user or assistant message")
	}

	maxTokens := defaultAnthropicMaxTokens
	if params != nil && params.MaxTokens > 0 {
		maxTokens = params.MaxTokens
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages:  chatMessages,
	}
	if len(systemBlocks) > 0 {
		req.System = systemBlocks
	}
	if params != nil {
		req.Temperature = anthropic.Float(params.Temperature)
		req.TopP = anthropic.Float(params.TopP)
		if params.FrequencyPenalty != 0 || params.PresencePenalty != 0 {
			logger.Debug("anthropic API has no frequency/presence penalties, ignoring them for model %s", modelID)
		}
	}

	msg, err := s.client.Messages.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(block.Text)
	}
	if sb.Len() == 0 {
		return nil, ErrEmptyResponse
	}

	usage := Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}

	return ParseResult(sb.String(), shape, usage)
}
