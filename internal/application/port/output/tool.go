package output

import (
	"context"

	"github.com/google/uuid"

	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

// ToolPort is a capability callable by name. Expected negative outcomes are
// reported through ToolResult; a returned error means the call itself broke.
type ToolPort interface {
	Name() entity.ToolName
	Description() string
	Parameters() []entity.Parameter
	Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error)
}

type ToolRegistry interface {
	Register(tool ToolPort)
	Get(name entity.ToolName) (ToolPort, bool)
	All() []ToolPort
	Definitions() []entity.ToolDefinition
}
