package llm

import (
	"context"

	"github.com/shopspring/decimal"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered message list sent to a model.
type Conversation []*Message

// Clone returns a deep copy of the conversation. Partitioning mutates the
// last user message, so chunks must never share Message values.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	for i, m := range c {
		cp := *m
		out[i] = &cp
	}
	return out
}

// LastUserIndex returns the index of the last user message, or -1.
func (c Conversation) LastUserIndex() int {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i] != nil && c[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// ResponseShape selects how a model response is parsed and how partial
// responses merge. Resolved once at request construction time.
type ResponseShape int

const (
	// ShapeRaw leaves the response text untouched.
	ShapeRaw ResponseShape = iota
	// ShapeList expects a JSON array.
	ShapeList
	// ShapeMap expects a JSON object.
	ShapeMap
	// ShapeAssignedFiles expects the assigned/unassigned files object used
	// by the panel source assignment stage.
	ShapeAssignedFiles
)

// String returns the shape name used in logs and errors.
func (s ResponseShape) String() string {
	switch s {
	case ShapeRaw:
		return "raw"
	case ShapeList:
		return "list"
	case ShapeMap:
		return "map"
	case ShapeAssignedFiles:
		return "assigned_files"
	default:
		return "unknown"
	}
}

// SamplingParams are the model sampling knobs. Parameterless models ignore
// all of them.
type SamplingParams struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty"`
	MaxTokens        int     `json:"max_tokens"`
}

// AssignedPanel pairs a panel label with the source-data files assigned
// to it.
type AssignedPanel struct {
	PanelLabel       string   `json:"panel_label"`
	PanelSourceFiles []string `json:"panel_sd_files"`
}

// AssignedFiles is the domain response shape of the panel source
// assignment stage: files matched to panels plus the leftovers.
type AssignedFiles struct {
	AssignedFiles    []AssignedPanel `json:"assigned_files"`
	NotAssignedFiles []string        `json:"not_assigned_files"`
}

// Usage accumulates token counts and cost across calls.
type Usage struct {
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	TotalTokens      int             `json:"total_tokens"`
	Cost             decimal.Decimal `json:"cost"`
}

// Add returns the elementwise sum of two usages.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
		Cost:             u.Cost.Add(other.Cost),
	}
}

// Result is a parsed model response. Exactly one content field is
// populated, selected by Shape.
type Result struct {
	Shape    ResponseShape
	Text     string
	List     []interface{}
	Map      map[string]interface{}
	Assigned *AssignedFiles
	Usage    Usage
}

// Service is the model-calling capability consumed by the executor. A
// Service typically wraps one vendor SDK and serves every model id of
// that vendor. Implementations must return provider errors with the
// provider's diagnostic text preserved, so context-length rejections stay
// classifiable.
type Service interface {
	Call(ctx context.Context, modelID string, conv Conversation, shape ResponseShape, params *SamplingParams) (*Result, error)
}
