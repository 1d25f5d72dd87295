package llm

import (
	"sync"
	"unicode/utf8"

	"github.com/curationsuite/modelrelay/internal/logger"
	"github.com/pkoukk/tiktoken-go"
)

const (
	// perMessageOverhead is the framing cost of one chat message.
	perMessageOverhead = 4
	// replyPrimingOverhead is the fixed cost of priming the assistant reply.
	replyPrimingOverhead = 3
)

// Accountant estimates token costs for texts and conversations. Counting
// never fails: when no encoder is available for a model family it degrades
// to a characters/4 heuristic and logs the reduced accuracy once per model.
type Accountant struct {
	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
	warned   map[string]bool
}

// NewAccountant creates a token accountant with an empty encoder cache.
func NewAccountant() *Accountant {
	return &Accountant{
		encoders: make(map[string]*tiktoken.Tiktoken),
		warned:   make(map[string]bool),
	}
}

// CountTokens returns the token cost of text for modelID. Empty or
// malformed input counts as zero.
func (a *Accountant) CountTokens(text, modelID string) int {
	if text == "" {
		return 0
	}
	if encoder := a.encoderFor(modelID); encoder != nil {
		return len(encoder.Encode(text, nil, nil))
	}
	return heuristicTokens(text)
}

// CountConversationTokens returns the token cost of a full conversation
// for modelID, including per-message framing overhead and the reply
// priming constant.
func (a *Accountant) CountConversationTokens(conv Conversation, modelID string) int {
	if len(conv) == 0 {
		return 0
	}

	total := replyPrimingOverhead
	for _, msg := range conv {
		if msg == nil {
			continue
		}
		total += perMessageOverhead
		total += a.CountTokens(msg.Content, modelID)
		total += a.CountTokens(msg.Role, modelID)
	}
	return total
}

func (a *Accountant) encoderFor(modelID string) *tiktoken.Tiktoken {
	a.mu.Lock()
	defer a.mu.Unlock()

	if encoder, ok := a.encoders[modelID]; ok {
		return encoder
	}

	encoder, err := tiktoken.EncodingForModel(modelID)
	if err != nil {
		encoder, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		encoder = nil
		if !a.warned[modelID] {
			a.warned[modelID] = true
			logger.Warn("no tokenizer available for model %s, token counts are approximate", modelID)
		}
	}

	a.encoders[modelID] = encoder
	return encoder
}

// heuristicTokens estimates tokens at roughly four characters each.
func heuristicTokens(text string) int {
	runes := utf8.RuneCountInString(text)
	if runes == 0 {
		return 0
	}
	return (runes + 3) / 4
}
