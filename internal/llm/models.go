package llm

import (
	"strings"

	"github.com/curationsuite/modelrelay/internal/logger"
	"github.com/shopspring/decimal"
)

// DefaultTokenLimit is the conservative input-token limit assumed for
// models missing from the table.
const DefaultTokenLimit = 120000

// ParameterlessModel is the reserved model class that rejects sampling
// parameters (temperature, top-p, penalties, max-tokens).
const ParameterlessModel = "gpt-5"

// defaultTokenLimits maps model ids to their input-token limits.
var defaultTokenLimits = map[string]int{
	"gpt-4o":      120000,
	"gpt-4o-mini": 120000,
	"gpt-5":       250000,
}

// ModelProfile describes a model's static capabilities. Immutable once
// handed to a request.
type ModelProfile struct {
	ID                     string
	InputTokenLimit        int
	SupportsSamplingParams bool
}

// Registry answers token-limit and capability questions about model ids.
// It is a static table plus optional config overrides; no network access,
// no runtime mutation, safe for unsynchronized concurrent reads.
type Registry struct {
	overrides map[string]int
}

// NewRegistry creates a registry with optional per-model limit overrides.
func NewRegistry(overrides map[string]int) *Registry {
	r := &Registry{}
	if len(overrides) > 0 {
		r.overrides = make(map[string]int, len(overrides))
		for id, limit := range overrides {
			r.overrides[normalizeModelID(id)] = limit
		}
	}
	return r
}

// LimitFor returns the input-token limit for modelID, falling back to
// DefaultTokenLimit for unknown ids.
func (r *Registry) LimitFor(modelID string) int {
	id := normalizeModelID(modelID)
	if r != nil && r.overrides != nil {
		if limit, ok := r.overrides[id]; ok {
			return limit
		}
	}
	if limit, ok := defaultTokenLimits[id]; ok {
		return limit
	}
	return DefaultTokenLimit
}

// SupportsParams reports whether modelID accepts sampling parameters.
func (r *Registry) SupportsParams(modelID string) bool {
	return normalizeModelID(modelID) != ParameterlessModel
}

// ProfileFor builds an immutable profile for modelID.
func (r *Registry) ProfileFor(modelID string) ModelProfile {
	return ModelProfile{
		ID:                     normalizeModelID(modelID),
		InputTokenLimit:        r.LimitFor(modelID),
		SupportsSamplingParams: r.SupportsParams(modelID),
	}
}

func normalizeModelID(modelID string) string {
	return strings.ToLower(strings.TrimSpace(modelID))
}

// Price holds a model's USD rates per million tokens.
type Price struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

// PriceTable maps model ids to prices. Read-only after construction.
type PriceTable map[string]Price

// DefaultPriceTable returns the built-in pricing table.
func DefaultPriceTable() PriceTable {
	return PriceTable{
		"gpt-4o":      {Input: decimal.NewFromFloat(5.00), Output: decimal.NewFromFloat(10.00)},
		"gpt-4o-mini": {Input: decimal.NewFromFloat(0.15), Output: decimal.NewFromFloat(0.60)},
	}
}

var tokensPerMillion = decimal.NewFromInt(1_000_000)

// Cost computes the USD cost of a call from its token counts. Unknown
// models cost zero; the miss is logged so unpriced spend is visible.
func (t PriceTable) Cost(modelID string, promptTokens, completionTokens int) decimal.Decimal {
	price, ok := t[normalizeModelID(modelID)]
	if !ok {
		logger.Warn("no pricing entry for model %s, reporting zero cost", modelID)
		return decimal.Zero
	}

	input := decimal.NewFromInt(int64(promptTokens)).Div(tokensPerMillion).Mul(price.Input)
	output := decimal.NewFromInt(int64(completionTokens)).Div(tokensPerMillion).Mul(price.Output)
	return input.Add(output)
}
