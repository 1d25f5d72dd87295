package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/curationsuite/modelrelay/internal/llm"
	"github.com/curationsuite/modelrelay/internal/logger"
)

// defaultMaxParallel bounds the worker pool used for chunked calls.
const defaultMaxParallel = 4

// Request describes one logical model call. The model profiles implied by
// the ids are resolved once at execution start and stay fixed for the
// lifetime of the request.
type Request struct {
	PrimaryModel  string
	FallbackModel string
	Conversation  llm.Conversation
	Shape         llm.ResponseShape
	Params        *llm.SamplingParams
}

// Executor keeps outbound model calls within provider token limits. The
// escalation ladder is model-swap before payload-swap: a context-length
// rejection first escalates to the fallback model, and only when no model
// can take the payload whole is the request split into chunks. Each rung
// is bounded; there is no retry loop.
type Executor struct {
	service     llm.Service
	acct        *llm.Accountant
	registry    *llm.Registry
	prices      llm.PriceTable
	partitioner *Partitioner
	chunking    bool
	maxParallel int
	log         *logger.Logger
}

// Options configures an Executor.
type Options struct {
	// Service performs the actual model calls. Required.
	Service llm.Service
	// Registry answers model token limits; nil uses the built-in table.
	Registry *llm.Registry
	// Prices is the per-model cost table; nil uses the built-in table.
	Prices llm.PriceTable
	// DisableChunking turns off request partitioning entirely.
	DisableChunking bool
	// MaxParallel bounds concurrent chunk calls; <= 0 uses the default.
	MaxParallel int
	// Log receives executor diagnostics; nil uses the global logger.
	Log *logger.Logger
}

// New creates an Executor.
func New(opts Options) (*Executor, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("executor requires a model-calling service")
	}
	if opts.Registry == nil {
		opts.Registry = llm.NewRegistry(nil)
	}
	if opts.Prices == nil {
		opts.Prices = llm.DefaultPriceTable()
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = defaultMaxParallel
	}
	if opts.Log == nil {
		opts.Log = logger.Global()
	}

	acct := llm.NewAccountant()
	return &Executor{
		service:     opts.Service,
		acct:        acct,
		registry:    opts.Registry,
		prices:      opts.Prices,
		partitioner: NewPartitioner(acct, opts.Log),
		chunking:    !opts.DisableChunking,
		maxParallel: opts.MaxParallel,
		log:         opts.Log,
	}, nil
}

// Execute runs the request through the escalation ladder and returns the
// merged result. Context-length rejections are handled internally; every
// other error propagates unchanged with the provider's diagnostic text.
func (e *Executor) Execute(ctx context.Context, req *Request) (*llm.Result, error) {
	if req == nil || len(req.Conversation) == 0 {
		return nil, fmt.Errorf("execution request requires a non-empty conversation")
	}
	if req.PrimaryModel == "" {
		return nil, fmt.Errorf("execution request requires a primary model")
	}

	log := e.log.WithPrefix(shortID())
	primary := req.PrimaryModel
	fallback := req.FallbackModel

	// Pre-emptive chunking consults only the primary model's limit;
	// fallback limits matter only after a provider rejection.
	tokens := e.acct.CountConversationTokens(req.Conversation, primary)
	limit := e.registry.LimitFor(primary)
	if tokens > limit && e.chunking {
		log.Info("conversation of ~%d tokens exceeds the %d token limit of %s, chunking up front", tokens, limit, primary)
		return e.executeChunked(ctx, req, primary, log)
	}

	log.Info("attempting call with model %s (~%d tokens)", primary, tokens)
	result, err := e.call(ctx, primary, req.Conversation, req)
	if err == nil {
		return result, nil
	}
	if !llm.IsContextLengthError(err) {
		return nil, err
	}

	if fallback != "" && fallback != primary {
		log.Warn("context length error with model %s, falling back to %s: %v", primary, fallback, err)
		result, fallbackErr := e.call(ctx, fallback, req.Conversation, req)
		if fallbackErr == nil {
			return result, nil
		}
		if !llm.IsContextLengthError(fallbackErr) {
			return nil, fallbackErr
		}
		if e.chunking && e.acct.CountConversationTokens(req.Conversation, fallback) > e.registry.LimitFor(fallback) {
			log.Warn("fallback model %s also rejected the request for length, chunking", fallback)
			return e.executeChunked(ctx, req, fallback, log)
		}
		return nil, fallbackErr
	}

	// Already on the highest-capacity model; chunking is the last rung.
	if e.chunking {
		log.Warn("context length error with model %s and no distinct fallback, chunking: %v", primary, err)
		return e.executeChunked(ctx, req, primary, log)
	}
	return nil, err
}

// executeChunked partitions the conversation for modelID and issues one
// call per chunk on a bounded worker pool. Any chunk failure cancels the
// remaining calls and fails the whole batch; partial success is never
// returned. Results are merged in original chunk order.
func (e *Executor) executeChunked(ctx context.Context, req *Request, modelID string, log *logger.Logger) (*llm.Result, error) {
	chunks, err := e.partitioner.Partition(req.Conversation, modelID, e.registry.LimitFor(modelID))
	if errors.Is(err, ErrPartitionInfeasible) {
		log.Warn("cannot partition request for %s, attempting a direct call", modelID)
	} else if err != nil {
		return nil, err
	}

	if len(chunks) == 1 {
		return e.call(ctx, modelID, chunks[0], req)
	}

	results := make([]*llm.Result, len(chunks))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.maxParallel)

	for i, chunk := range chunks {
		group.Go(func() error {
			log.Debug("executing chunk %d of %d with model %s", i+1, len(chunks), modelID)
			result, callErr := e.call(groupCtx, modelID, chunk, req)
			if callErr != nil {
				return callErr
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return Merge(results, log)
}

// call issues exactly one provider call, dropping sampling parameters for
// parameterless models and pricing the returned usage.
func (e *Executor) call(ctx context.Context, modelID string, conv llm.Conversation, req *Request) (*llm.Result, error) {
	params := req.Params
	if params != nil && !e.registry.SupportsParams(modelID) {
		e.log.Info("model %s does not support sampling parameters, using basic configuration", modelID)
		params = nil
	}

	result, err := e.service.Call(ctx, modelID, conv, req.Shape, params)
	if err != nil {
		return nil, err
	}

	if result.Usage.TotalTokens == 0 {
		result.Usage.TotalTokens = result.Usage.PromptTokens + result.Usage.CompletionTokens
	}
	result.Usage.Cost = e.prices.Cost(modelID, result.Usage.PromptTokens, result.Usage.CompletionTokens)
	return result, nil
}

func shortID() string {
	return uuid.NewString()[:8]
}
