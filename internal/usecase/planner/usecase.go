package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rpw1134/web-automation-agent/internal/application/port/input"
	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

var _ input.TaskExecutor = (*UseCase)(nil)

const DefaultMaxSteps = 15

// Dispatcher runs a batch of raw function calls inside a browser context.
type Dispatcher interface {
	ExecuteRequest(ctx context.Context, calls []string, contextID uuid.UUID) []entity.ToolResult
}

// Sessions allocates the isolated browser context a task runs in.
type Sessions interface {
	CreateContext(ctx context.Context) (uuid.UUID, output.BrowserContext, error)
	DeleteContext(ctx context.Context, id uuid.UUID)
}

type Config struct {
	SystemPrompt string
	Model        string
	MaxTokens    int
	Temperature  float32
	MaxSteps     int
	// TaskTimeout bounds a whole run; zero means no limit.
	TaskTimeout time.Duration
}

// UseCase is the observe-think-act loop: it asks the model for the next
// plan, runs the requested calls and feeds the results back until the model
// reports done or the step budget runs out.
type UseCase struct {
	llm        output.LLMPort
	dispatcher Dispatcher
	sessions   Sessions
	progress   output.ProgressPort
	logger     output.LoggerPort
	cfg        Config
}

func New(
	llm output.LLMPort,
	dispatcher Dispatcher,
	sessions Sessions,
	progress output.ProgressPort,
	logger output.LoggerPort,
	cfg Config,
) *UseCase {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if progress == nil {
		progress = output.NopProgress{}
	}
	return &UseCase{
		llm:        llm,
		dispatcher: dispatcher,
		sessions:   sessions,
		progress:   progress,
		logger:     logger,
		cfg:        cfg,
	}
}

func (uc *UseCase) SystemPrompt() string {
	return uc.cfg.SystemPrompt
}

func (uc *UseCase) Execute(ctx context.Context, task string) (*input.ExecuteResult, error) {
	if uc.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.TaskTimeout)
		defer cancel()
	}

	contextID, _, err := uc.sessions.CreateContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	defer uc.sessions.DeleteContext(context.WithoutCancel(ctx), contextID)

	log := uc.logger.WithField("context_id", contextID.String())
	log.Info("Planner executing task", "task", task, "max_steps", uc.cfg.MaxSteps)

	messages := []entity.Message{
		entity.SystemMessage(uc.cfg.SystemPrompt),
		entity.UserMessage(task),
	}

	var last *entity.PlanRecord
	for step := 1; step <= uc.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("task aborted at step %d: %w", step, err)
		}
		uc.progress.ShowStep(ctx, step, uc.cfg.MaxSteps)
		log.Debug("Planner step", "step", step)

		resp, err := uc.llm.Chat(ctx, output.ChatRequest{
			Messages:    messages,
			Model:       uc.cfg.Model,
			MaxTokens:   uc.cfg.MaxTokens,
			Temperature: uc.cfg.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("llm request failed at step %d: %w", step, err)
		}

		record, err := ParseResponse(resp.Message.Content)
		if err != nil {
			log.Warn("Model reply could not be parsed", "step", step, "error", err)
			messages = append(messages, entity.SystemMessage(retryMessage(err)))
			continue
		}
		last = record
		uc.progress.ShowThinking(ctx, record)

		if record.Done {
			log.Info("Task completed", "steps", step)
			uc.progress.ShowOutcome(ctx, entity.TaskStatusDone, record.Observation)
			return &input.ExecuteResult{
				Status:  entity.TaskStatusDone,
				Plan:    record,
				Steps:   step,
				Message: "Task completed",
			}, nil
		}

		actions, err := json.Marshal(record.Actions)
		if err != nil {
			return nil, fmt.Errorf("failed to encode actions: %w", err)
		}
		messages = append(messages,
			entity.AssistantMessage("Observation: "+record.Observation),
			entity.AssistantMessage("Thought: "+record.Plan),
			entity.AssistantMessage("Actions: "+string(actions)),
		)

		results := uc.dispatcher.ExecuteRequest(ctx, record.Actions, contextID)
		uc.progress.ShowToolResults(ctx, record.Actions, results)

		payload, err := json.Marshal(results)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tool results: %w", err)
		}
		messages = append(messages, entity.SystemMessage("Function call results: "+string(payload)))
	}

	msg := fmt.Sprintf("%v: no completion after %d steps", entity.ErrBudgetExceeded, uc.cfg.MaxSteps)
	log.Warn("Call budget exhausted", "max_steps", uc.cfg.MaxSteps)
	uc.progress.ShowOutcome(ctx, entity.TaskStatusBudgetExceeded, msg)
	return &input.ExecuteResult{
		Status:  entity.TaskStatusBudgetExceeded,
		Plan:    last,
		Steps:   uc.cfg.MaxSteps,
		Message: msg,
	}, nil
}

func retryMessage(err error) string {
	reason := err.Error()
	var perr *entity.PlanError
	if errors.As(err, &perr) {
		reason = perr.Message
	}
	return fmt.Sprintf(
		"Your previous response could not be parsed (%s). Respond again using the %s, %s, %s and %s sections.",
		reason, DelimObservation, DelimPlan, DelimActions, DelimDone,
	)
}
