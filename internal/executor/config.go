package executor

import (
	"github.com/curationsuite/modelrelay/internal/config"
	"github.com/curationsuite/modelrelay/internal/llm"
	"github.com/curationsuite/modelrelay/internal/logger"
)

// NewFromConfig builds an Executor from a validated config: token-limit
// overrides feed the registry and the chunking toggle maps onto
// DisableChunking. A nil log uses the global logger.
func NewFromConfig(cfg *config.Config, service llm.Service, log *logger.Logger) (*Executor, error) {
	return New(Options{
		Service:         service,
		Registry:        llm.NewRegistry(cfg.TokenLimitOverrides),
		DisableChunking: !cfg.ChunkingOn(),
		Log:             log,
	})
}

// NewRequest builds a request carrying the config's model selection and
// materialized sampling parameters.
func NewRequest(cfg *config.Config, conv llm.Conversation, shape llm.ResponseShape) *Request {
	return &Request{
		PrimaryModel:  cfg.PrimaryModel,
		FallbackModel: cfg.FallbackModel,
		Conversation:  conv,
		Shape:         shape,
		Params:        cfg.SamplingParams(),
	}
}
