package output

import (
	"context"

	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

// ProgressPort receives a live view of an agent run.
type ProgressPort interface {
	ShowStep(ctx context.Context, step, maxSteps int)
	ShowThinking(ctx context.Context, plan *entity.PlanRecord)
	ShowToolResults(ctx context.Context, calls []string, results []entity.ToolResult)
	ShowOutcome(ctx context.Context, status entity.TaskStatus, message string)
}

// NopProgress discards progress updates.
type NopProgress struct{}

func (NopProgress) ShowStep(context.Context, int, int)                             {}
func (NopProgress) ShowThinking(context.Context, *entity.PlanRecord)               {}
func (NopProgress) ShowToolResults(context.Context, []string, []entity.ToolResult) {}
func (NopProgress) ShowOutcome(context.Context, entity.TaskStatus, string)         {}
