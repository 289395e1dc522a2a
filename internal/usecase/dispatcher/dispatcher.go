package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

const maxResultLen = 20000

// Dispatcher parses raw call strings against the tool catalog and runs them.
type Dispatcher struct {
	tools  output.ToolRegistry
	logger output.LoggerPort
}

func New(tools output.ToolRegistry, logger output.LoggerPort) *Dispatcher {
	return &Dispatcher{
		tools:  tools,
		logger: logger,
	}
}

// Execute runs one parsed call. It never fails: returned errors and panics
// become unsuccessful results.
func (d *Dispatcher) Execute(ctx context.Context, call ParsedCall, contextID uuid.UUID) (result entity.ToolResult) {
	name := call.Name()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Tool panicked", "name", name, "panic", r)
			result = entity.Failed("Error executing %s: %v", name, r)
		}
		d.logger.Info("Tool executed",
			"name", name,
			"success", result.Success,
			"duration", time.Since(start),
		)
	}()

	d.logger.Debug("Executing tool", "name", name, "args", call.Args)

	res, err := call.Tool.Execute(ctx, call.Args, contextID)
	if err != nil {
		d.logger.Warn("Tool execution failed", "name", name, "error", err)
		return entity.Failed("Error executing %s: %v", name, err)
	}

	if len(res.Content) > maxResultLen {
		res.Content = entity.CutString(res.Content, maxResultLen) + "\n... (truncated)"
	}
	return res
}

// ExecuteRequest parses and runs a batch of raw calls in order. Execution
// stops at the first unsuccessful result; parse failures are appended as
// unsuccessful results after whatever was executed.
func (d *Dispatcher) ExecuteRequest(ctx context.Context, raws []string, contextID uuid.UUID) []entity.ToolResult {
	calls, failures := d.ParseBatch(raws)

	results := make([]entity.ToolResult, 0, len(raws))
	for _, call := range calls {
		res := d.Execute(ctx, call, contextID)
		results = append(results, res)
		if !res.Success {
			d.logger.Debug("Stopping batch after failed call", "name", call.Name(), "remaining", len(calls)-len(results))
			break
		}
	}

	for _, f := range failures {
		results = append(results, entity.ToolResult{Success: false, Content: fmt.Sprintf("Error: %v", f)})
	}
	return results
}
