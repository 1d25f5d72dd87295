package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// GoogleService implements Service on top of the official Google GenAI SDK.
type GoogleService struct {
	client *genai.Client
}

// NewGoogleService creates a model-calling service backed by the Gemini API.
func NewGoogleService(ctx context.Context, apiKey string) (*GoogleService, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("google genai service requires an API key")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google genai client: %w", err)
	}
	return &GoogleService{client: client}, nil
}

// Call issues one generate-content request and parses it into the
// requested shape.
func (s *GoogleService) Call(ctx context.Context, modelID string, conv Conversation, shape ResponseShape, params *SamplingParams) (*Result, error) {
	cfg := &genai.GenerateContentConfig{}
	contents := make([]*genai.Content, 0, len(conv))

	for _, msg := range conv {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case RoleSystem:
			// Gemini takes system text as an instruction, not a turn.
			if cfg.SystemInstruction == nil {
				cfg.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
			} else {
				contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
			}
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("google genai call requires at least one user or assistant message")
	}

	if shape != ShapeRaw {
		cfg.ResponseMIMEType = "application/json"
	}
	if params != nil {
		temp := float32(params.Temperature)
		topP := float32(params.TopP)
		cfg.Temperature = &temp
		cfg.TopP = &topP
		if params.MaxTokens > 0 {
			cfg.MaxOutputTokens = int32(params.MaxTokens)
		}
	}

	resp, err := s.client.Models.GenerateContent(ctx, modelID, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("google genai completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return nil, ErrEmptyResponse
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return ParseResult(sb.String(), shape, usage)
}
