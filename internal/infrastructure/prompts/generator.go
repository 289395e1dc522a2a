package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
	"github.com/rpw1134/web-automation-agent/internal/usecase/planner"
)

type ToolInfo struct {
	Name        string
	Description string
	// Signature reads like a call, e.g. click(page_id: uuid, selector: string).
	Signature string
}

type SystemPromptData struct {
	Observation string
	Plan        string
	Actions     string
	Done        string
	Tools       []ToolInfo
}

// GenerateSystemPrompt renders baseTemplate with the delimiters the planner
// parses and every tool in the registry, sorted by name.
func GenerateSystemPrompt(baseTemplate string, tools output.ToolRegistry) (string, error) {
	defs := tools.Definitions()
	infos := make([]ToolInfo, 0, len(defs))
	for _, def := range defs {
		infos = append(infos, ToolInfo{
			Name:        def.Name.String(),
			Description: def.Description,
			Signature:   signature(def),
		})
	}

	data := SystemPromptData{
		Observation: planner.DelimObservation,
		Plan:        planner.DelimPlan,
		Actions:     planner.DelimActions,
		Done:        planner.DelimDone,
		Tools:       infos,
	}

	tmpl, err := template.New("system").Option("missingkey=error").Parse(baseTemplate)
	if err != nil {
		return "", fmt.Errorf("parse prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt template: %w", err)
	}
	return buf.String(), nil
}

func signature(def entity.ToolDefinition) string {
	params := make([]string, 0, len(def.Parameters))
	for _, p := range def.Parameters {
		param := p.Name + ": " + string(p.Kind)
		if !p.Required {
			param += "?"
		}
		params = append(params, param)
	}
	return fmt.Sprintf("%s(%s)", def.Name, strings.Join(params, ", "))
}
