package planner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
	"github.com/rpw1134/web-automation-agent/internal/infrastructure/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []output.ChatRequest
}

func (s *scriptedLLM) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req.Messages = append([]entity.Message(nil), req.Messages...)
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}

	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return &output.ChatResponse{Message: entity.AssistantMessage(reply)}, nil
}

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type recordingDispatcher struct {
	batches  [][]string
	contexts []uuid.UUID
	results  []entity.ToolResult
}

func (d *recordingDispatcher) ExecuteRequest(ctx context.Context, calls []string, contextID uuid.UUID) []entity.ToolResult {
	d.batches = append(d.batches, calls)
	d.contexts = append(d.contexts, contextID)
	if d.results != nil {
		return d.results
	}
	out := make([]entity.ToolResult, len(calls))
	for i := range calls {
		out[i] = entity.Succeeded("ok")
	}
	return out
}

type fakeSessions struct {
	created []uuid.UUID
	deleted []uuid.UUID
	err     error
	// deletedWithLiveCtx records whether the delete context was still usable.
	deletedWithLiveCtx bool
}

func (f *fakeSessions) CreateContext(ctx context.Context) (uuid.UUID, output.BrowserContext, error) {
	if f.err != nil {
		return uuid.Nil, nil, f.err
	}
	id := uuid.New()
	f.created = append(f.created, id)
	return id, nil, nil
}

func (f *fakeSessions) DeleteContext(ctx context.Context, id uuid.UUID) {
	f.deleted = append(f.deleted, id)
	f.deletedWithLiveCtx = ctx.Err() == nil
}

const doneReply = "#/OBSERVATION/#\nThe title is Example Domain.\n#/PLAN/#\nReport it.\n#/FUNCTION_CALLS/#\n#/DONE/#\ntrue"

const actReply = `#/OBSERVATION/#
Nothing open yet.
#/PLAN/#
Open the page.
#/FUNCTION_CALLS/#
go_to_url(url=https://example.com)
get_open_pages()
#/DONE/#
false`

func newUseCase(llm output.LLMPort, d Dispatcher, s Sessions, cfg Config) *UseCase {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = "system prompt"
	}
	return New(llm, d, s, nil, logger.NewNop(), cfg)
}

func TestExecute_DoneOnFirstStep(t *testing.T) {
	llm := &scriptedLLM{replies: []string{doneReply}}
	disp := &recordingDispatcher{}
	sessions := &fakeSessions{}
	uc := newUseCase(llm, disp, sessions, Config{Model: "m", MaxTokens: 100, Temperature: 0.2})

	res, err := uc.Execute(context.Background(), "find the title")
	require.NoError(t, err)

	assert.Equal(t, entity.TaskStatusDone, res.Status)
	assert.Equal(t, 1, res.Steps)
	require.NotNil(t, res.Plan)
	assert.Equal(t, "The title is Example Domain.", res.Plan.Observation)
	assert.Equal(t, 1, llm.calls())
	assert.Empty(t, disp.batches)

	req := llm.requests[0]
	assert.Equal(t, "m", req.Model)
	assert.Equal(t, 100, req.MaxTokens)
	assert.InDelta(t, 0.2, req.Temperature, 1e-6)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, entity.SystemMessage("system prompt"), req.Messages[0])
	assert.Equal(t, entity.UserMessage("find the title"), req.Messages[1])

	require.Len(t, sessions.created, 1)
	assert.Equal(t, sessions.created, sessions.deleted)
}

func TestExecute_UnparsableRepliesExhaustBudget(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"   "}}
	disp := &recordingDispatcher{}
	sessions := &fakeSessions{}
	uc := newUseCase(llm, disp, sessions, Config{MaxSteps: 4})

	res, err := uc.Execute(context.Background(), "task")
	require.NoError(t, err)

	assert.Equal(t, entity.TaskStatusBudgetExceeded, res.Status)
	assert.Equal(t, 4, res.Steps)
	assert.Equal(t, 4, llm.calls())
	assert.Nil(t, res.Plan)
	assert.Contains(t, res.Message, entity.ErrBudgetExceeded.Error())
	assert.Empty(t, disp.batches)

	// every retry adds exactly one system message asking for the format again
	last := llm.requests[3].Messages
	require.Len(t, last, 2+3)
	for _, m := range last[2:] {
		assert.Equal(t, entity.RoleSystem, m.Role)
		assert.Contains(t, m.Content, "could not be parsed")
		assert.Contains(t, m.Content, DelimActions)
	}

	assert.Len(t, sessions.deleted, 1)
}

func TestExecute_DefaultBudget(t *testing.T) {
	llm := &scriptedLLM{replies: []string{""}}
	uc := newUseCase(llm, &recordingDispatcher{}, &fakeSessions{}, Config{})

	res, err := uc.Execute(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusBudgetExceeded, res.Status)
	assert.Equal(t, DefaultMaxSteps, llm.calls())
}

func TestExecute_RunsActionsAndFeedsResultsBack(t *testing.T) {
	llm := &scriptedLLM{replies: []string{actReply, doneReply}}
	disp := &recordingDispatcher{results: []entity.ToolResult{
		entity.Succeeded("Navigated"),
		entity.Failed("No element found"),
	}}
	sessions := &fakeSessions{}
	uc := newUseCase(llm, disp, sessions, Config{})

	res, err := uc.Execute(context.Background(), "open example")
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusDone, res.Status)
	assert.Equal(t, 2, res.Steps)

	require.Len(t, disp.batches, 1)
	assert.Equal(t, []string{"go_to_url(url=https://example.com)", "get_open_pages()"}, disp.batches[0])
	assert.Equal(t, sessions.created[0], disp.contexts[0])

	second := llm.requests[1].Messages
	require.Len(t, second, 6)
	assert.Equal(t, entity.AssistantMessage("Observation: Nothing open yet."), second[2])
	assert.Equal(t, entity.AssistantMessage("Thought: Open the page."), second[3])
	assert.Equal(t, entity.AssistantMessage(`Actions: ["go_to_url(url=https://example.com)","get_open_pages()"]`), second[4])
	assert.Equal(t, entity.RoleSystem, second[5].Role)
	assert.True(t, strings.HasPrefix(second[5].Content, "Function call results: "))
	assert.Contains(t, second[5].Content, `{"success":false,"content":"No element found"}`)
}

func TestExecute_LLMErrorAbortsAndCleansUp(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("503 service unavailable")}
	sessions := &fakeSessions{}
	uc := newUseCase(llm, &recordingDispatcher{}, sessions, Config{})

	_, err := uc.Execute(context.Background(), "task")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503 service unavailable")
	assert.Len(t, sessions.deleted, 1)
}

func TestExecute_ContextCreationFails(t *testing.T) {
	llm := &scriptedLLM{replies: []string{doneReply}}
	uc := newUseCase(llm, &recordingDispatcher{}, &fakeSessions{err: entity.ErrNotInitialized}, Config{})

	_, err := uc.Execute(context.Background(), "task")
	assert.ErrorIs(t, err, entity.ErrNotInitialized)
	assert.Zero(t, llm.calls())
}

func TestExecute_CancelledRunStillTearsDown(t *testing.T) {
	llm := &scriptedLLM{replies: []string{actReply}}
	sessions := &fakeSessions{}
	uc := newUseCase(llm, &recordingDispatcher{}, sessions, Config{TaskTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := uc.Execute(ctx, "task")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, llm.calls())

	require.Len(t, sessions.deleted, 1)
	assert.True(t, sessions.deletedWithLiveCtx)
}
