package input

import (
	"context"

	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

type ExecuteResult struct {
	Status  entity.TaskStatus
	Plan    *entity.PlanRecord
	Steps   int
	Message string
}

type TaskExecutor interface {
	Execute(ctx context.Context, task string) (*ExecuteResult, error)
}
