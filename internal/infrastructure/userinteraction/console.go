package userinteraction

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

var _ output.ProgressPort = (*ConsoleProgress)(nil)

// ConsoleProgress prints a run step by step for the `run` command.
type ConsoleProgress struct {
	mu  sync.Mutex
	out io.Writer

	step    lipgloss.Style
	label   lipgloss.Style
	dim     lipgloss.Style
	call    lipgloss.Style
	ok      lipgloss.Style
	failed  lipgloss.Style
	outcome lipgloss.Style
}

// NewConsoleProgress styles output for out; colours are dropped when out is
// not a terminal.
func NewConsoleProgress(out io.Writer) *ConsoleProgress {
	r := lipgloss.NewRenderer(out)
	return &ConsoleProgress{
		out:     out,
		step:    r.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		label:   r.NewStyle().Foreground(lipgloss.Color("4")),
		dim:     r.NewStyle().Faint(true),
		call:    r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		ok:      r.NewStyle().Foreground(lipgloss.Color("2")),
		failed:  r.NewStyle().Foreground(lipgloss.Color("203")),
		outcome: r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

func (c *ConsoleProgress) ShowStep(ctx context.Context, step, maxSteps int) {
	c.printf("\n%s\n", c.step.Render(fmt.Sprintf("━━━ Step %d/%d ━━━", step, maxSteps)))
}

func (c *ConsoleProgress) ShowThinking(ctx context.Context, plan *entity.PlanRecord) {
	if plan == nil {
		return
	}
	if plan.Observation != "" {
		c.printf("%s %s\n", c.label.Render("Observation:"), c.dim.Render(truncate(plan.Observation, 500)))
	}
	if plan.Plan != "" {
		c.printf("%s %s\n", c.label.Render("Plan:"), c.dim.Render(truncate(plan.Plan, 500)))
	}
}

func (c *ConsoleProgress) ShowToolResults(ctx context.Context, calls []string, results []entity.ToolResult) {
	for i, call := range calls {
		c.printf("%s\n", c.call.Render("→ "+truncate(call, 120)))
		if i >= len(results) {
			c.printf("   %s\n", c.dim.Render("skipped"))
			continue
		}
		res := results[i]
		if res.Success {
			c.printf("   %s\n", c.ok.Render("✓ "+truncate(firstLine(res.Content), 200)))
		} else {
			c.printf("   %s\n", c.failed.Render("✗ "+truncate(res.Content, 300)))
		}
	}
	// parse failures are appended after the executed calls
	for _, res := range results[min(len(calls), len(results)):] {
		c.printf("   %s\n", c.failed.Render("✗ "+truncate(res.Content, 300)))
	}
}

func (c *ConsoleProgress) ShowOutcome(ctx context.Context, status entity.TaskStatus, message string) {
	style := c.outcome.BorderForeground(lipgloss.Color("2"))
	title := "Task completed"
	if status != entity.TaskStatusDone {
		style = c.outcome.BorderForeground(lipgloss.Color("203"))
		title = "Task stopped: " + string(status)
	}
	c.printf("\n%s\n", style.Render(title+"\n\n"+message))
}

func (c *ConsoleProgress) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
