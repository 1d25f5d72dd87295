package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curationsuite/modelrelay/internal/llm"
)

var errContextLength = errors.New("this model's maximum context length is exceeded")

type fakeCall struct {
	model  string
	conv   llm.Conversation
	params *llm.SamplingParams
}

// fakeService records calls and answers them via a scripted handler.
type fakeService struct {
	mu      sync.Mutex
	calls   []fakeCall
	handler func(modelID string, conv llm.Conversation) (*llm.Result, error)
}

func (f *fakeService) Call(ctx context.Context, modelID string, conv llm.Conversation, shape llm.ResponseShape, params *llm.SamplingParams) (*llm.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{model: modelID, conv: conv, params: params})
	f.mu.Unlock()
	return f.handler(modelID, conv)
}

func (f *fakeService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeService) modelsCalled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	models := make([]string, len(f.calls))
	for i, c := range f.calls {
		models[i] = c.model
	}
	return models
}

func rawResult(text string) *llm.Result {
	return &llm.Result{
		Shape: llm.ShapeRaw,
		Text:  text,
		Usage: llm.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}
}

func listResult(items ...interface{}) *llm.Result {
	return &llm.Result{
		Shape: llm.ShapeList,
		List:  items,
		Usage: llm.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}
}

func newExecutor(t *testing.T, service llm.Service, overrides map[string]int) *Executor {
	t.Helper()
	exec, err := New(Options{
		Service:  service,
		Registry: llm.NewRegistry(overrides),
	})
	require.NoError(t, err)
	return exec
}

func smallRequest() *Request {
	return &Request{
		PrimaryModel:  "gpt-4o",
		FallbackModel: "gpt-5",
		Conversation: llm.Conversation{
			{Role: llm.RoleSystem, Content: "You are a helpful assistant."},
			{Role: llm.RoleUser, Content: "Hello, how are you?"},
		},
		Shape: llm.ShapeRaw,
	}
}

func TestExecute_DirectSuccessIssuesExactlyOneCall(t *testing.T) {
	service := &fakeService{handler: func(string, llm.Conversation) (*llm.Result, error) {
		return rawResult("ok"), nil
	}}
	exec := newExecutor(t, service, nil)

	result, err := exec.Execute(context.Background(), smallRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
	assert.Equal(t, 1, service.callCount())
}

func TestExecute_NonContextErrorPropagatesWithoutRetry(t *testing.T) {
	providerErr := errors.New("invalid api key")
	service := &fakeService{handler: func(string, llm.Conversation) (*llm.Result, error) {
		return nil, providerErr
	}}
	exec := newExecutor(t, service, nil)

	_, err := exec.Execute(context.Background(), smallRequest())
	assert.ErrorIs(t, err, providerErr)
	assert.Equal(t, 1, service.callCount())
}

func TestExecute_ContextErrorFallsBackOnce(t *testing.T) {
	service := &fakeService{handler: func(modelID string, _ llm.Conversation) (*llm.Result, error) {
		if modelID == "gpt-4o" {
			return nil, errContextLength
		}
		return rawResult("from fallback"), nil
	}}
	exec := newExecutor(t, service, nil)

	result, err := exec.Execute(context.Background(), smallRequest())
	require.NoError(t, err)
	assert.Equal(t, "from fallback", result.Text)
	assert.Equal(t, []string{"gpt-4o", "gpt-5"}, service.modelsCalled())
}

func TestExecute_FallbackContextErrorWithinLimitPropagates(t *testing.T) {
	// Both models reject for length while the conversation is under both
	// limits: nothing left to escalate to, the fallback error surfaces.
	service := &fakeService{handler: func(string, llm.Conversation) (*llm.Result, error) {
		return nil, errContextLength
	}}
	exec := newExecutor(t, service, nil)

	_, err := exec.Execute(context.Background(), smallRequest())
	assert.ErrorIs(t, err, errContextLength)
	assert.Equal(t, 2, service.callCount())
}

func TestExecute_PreemptiveChunkingOnPrimaryLimit(t *testing.T) {
	service := &fakeService{handler: func(_ string, conv llm.Conversation) (*llm.Result, error) {
		return listResult(conv[1].Content[:20]), nil
	}}
	exec := newExecutor(t, service, map[string]int{"gpt-4o": 600})

	req := smallRequest()
	req.Conversation = fileListConversation(200)
	req.Shape = llm.ShapeList

	result, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Greater(t, service.callCount(), 1)

	for _, model := range service.modelsCalled() {
		assert.Equal(t, "gpt-4o", model)
	}
	for _, call := range service.calls {
		assert.Contains(t, call.conv[1].Content, "of the file list")
	}

	// Merged usage is the elementwise sum over all chunk calls.
	assert.Equal(t, 150*service.callCount(), result.Usage.TotalTokens)
	assert.Len(t, result.List, service.callCount())
}

func TestExecute_ChunkFailureAbortsTheWholeBatch(t *testing.T) {
	boom := errors.New("upstream exploded")
	service := &fakeService{handler: func(_ string, conv llm.Conversation) (*llm.Result, error) {
		if strings.Contains(conv[1].Content, "file_150") {
			return nil, boom
		}
		return listResult("ok"), nil
	}}
	exec := newExecutor(t, service, map[string]int{"gpt-4o": 600})

	req := smallRequest()
	req.Conversation = fileListConversation(200)
	req.Shape = llm.ShapeList

	_, err := exec.Execute(context.Background(), req)
	assert.ErrorIs(t, err, boom)
}

func TestExecute_ChunkedFallbackAfterDoubleRejection(t *testing.T) {
	service := &fakeService{handler: func(modelID string, conv llm.Conversation) (*llm.Result, error) {
		if modelID == "gpt-4o" {
			return nil, errContextLength
		}
		// The fallback also rejects the whole payload but accepts chunks.
		if !strings.Contains(conv[1].Content, "of the file list") {
			return nil, errContextLength
		}
		return listResult("chunk ok"), nil
	}}
	exec := newExecutor(t, service, map[string]int{"gpt-5": 600})

	req := smallRequest()
	req.Conversation = fileListConversation(200)
	req.Shape = llm.ShapeList

	result, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Greater(t, len(result.List), 1)

	models := service.modelsCalled()
	assert.Equal(t, "gpt-4o", models[0])
	assert.Equal(t, "gpt-5", models[1])
	for _, model := range models[1:] {
		assert.Equal(t, "gpt-5", model)
	}
}

func TestExecute_NoFallbackRejectionChunksOnPrimary(t *testing.T) {
	service := &fakeService{handler: func(_ string, conv llm.Conversation) (*llm.Result, error) {
		if !strings.Contains(conv[1].Content, "of the file list") {
			return nil, errContextLength
		}
		return listResult("chunk ok"), nil
	}}
	// Primary and fallback are the same model: no model swap available, so
	// a provider rejection goes straight to chunking on the primary. The
	// limit sits just above the conversation size so the direct call is
	// attempted first and the chunk budget still forces a split.
	conv := fileListConversation(200)
	limit := llm.NewAccountant().CountConversationTokens(conv, "gpt-4o") + 60
	exec := newExecutor(t, service, map[string]int{"gpt-4o": limit})

	req := smallRequest()
	req.FallbackModel = "gpt-4o"
	req.Conversation = conv
	req.Shape = llm.ShapeList

	result, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Greater(t, len(result.List), 1)
	assert.NotContains(t, service.calls[0].conv[1].Content, "of the file list")
}

func TestExecute_InfeasiblePartitionSurfacesProviderError(t *testing.T) {
	providerErr := errors.New("maximum context length is 100 tokens for this model")
	service := &fakeService{handler: func(string, llm.Conversation) (*llm.Result, error) {
		return nil, providerErr
	}}
	// A limit this small leaves no budget once the fixed content and the
	// safety margin are subtracted, so partitioning is infeasible and the
	// executor attempts the call whole; the provider's own rejection must
	// reach the caller.
	exec := newExecutor(t, service, map[string]int{"gpt-4o": 100})

	req := smallRequest()
	req.Conversation = fileListConversation(50)
	req.Shape = llm.ShapeList

	_, err := exec.Execute(context.Background(), req)
	assert.ErrorIs(t, err, providerErr)
	assert.Equal(t, 1, service.callCount())
	assert.NotContains(t, service.calls[0].conv[1].Content, "of the file list")
}

func TestExecute_ChunkingDisabledAttemptsDirectCall(t *testing.T) {
	service := &fakeService{handler: func(string, llm.Conversation) (*llm.Result, error) {
		return rawResult("provider took it anyway"), nil
	}}
	exec, err := New(Options{
		Service:         service,
		Registry:        llm.NewRegistry(map[string]int{"gpt-4o": 600}),
		DisableChunking: true,
	})
	require.NoError(t, err)

	req := smallRequest()
	req.Conversation = fileListConversation(200)

	result, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "provider took it anyway", result.Text)
	assert.Equal(t, 1, service.callCount())
}

func TestExecute_ParameterlessModelDropsSamplingParams(t *testing.T) {
	service := &fakeService{handler: func(string, llm.Conversation) (*llm.Result, error) {
		return rawResult("ok"), nil
	}}
	exec := newExecutor(t, service, nil)

	req := smallRequest()
	req.PrimaryModel = "gpt-5"
	req.Params = &llm.SamplingParams{Temperature: 0.7, TopP: 0.9, MaxTokens: 2048}

	_, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, service.callCount())
	assert.Nil(t, service.calls[0].params)
}

func TestExecute_SupportedModelKeepsSamplingParams(t *testing.T) {
	service := &fakeService{handler: func(string, llm.Conversation) (*llm.Result, error) {
		return rawResult("ok"), nil
	}}
	exec := newExecutor(t, service, nil)

	req := smallRequest()
	req.Params = &llm.SamplingParams{Temperature: 0.7}

	_, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, service.calls[0].params)
	assert.Equal(t, 0.7, service.calls[0].params.Temperature)
}

func TestExecute_CancelledContextShortCircuits(t *testing.T) {
	service := &fakeService{handler: func(string, llm.Conversation) (*llm.Result, error) {
		return rawResult("ok"), nil
	}}
	exec := newExecutor(t, service, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Execute(ctx, smallRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, service.callCount())
}

func TestExecute_EmptyRequestRejected(t *testing.T) {
	service := &fakeService{handler: func(string, llm.Conversation) (*llm.Result, error) {
		return rawResult("ok"), nil
	}}
	exec := newExecutor(t, service, nil)

	_, err := exec.Execute(context.Background(), nil)
	assert.Error(t, err)

	_, err = exec.Execute(context.Background(), &Request{PrimaryModel: "gpt-4o"})
	assert.Error(t, err)

	_, err = exec.Execute(context.Background(), &Request{Conversation: smallRequest().Conversation})
	assert.Error(t, err)
}

func TestExecute_PricesMergedUsage(t *testing.T) {
	service := &fakeService{handler: func(string, llm.Conversation) (*llm.Result, error) {
		return rawResult("ok"), nil
	}}
	exec := newExecutor(t, service, nil)

	result, err := exec.Execute(context.Background(), smallRequest())
	require.NoError(t, err)

	// 100 prompt tokens at $5/M plus 50 completion tokens at $10/M.
	expected := fmt.Sprintf("%.4f", 100*5.0/1e6+50*10.0/1e6)
	assert.Equal(t, expected, result.Usage.Cost.StringFixed(4))
}
