package planner

import (
	"fmt"
	"strings"

	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

// Section delimiters of a model reply, in their conceptual order.
const (
	DelimObservation = "#/OBSERVATION/#"
	DelimPlan        = "#/PLAN/#"
	DelimActions     = "#/FUNCTION_CALLS/#"
	DelimDone        = "#/DONE/#"
)

var delimiters = [...]string{DelimObservation, DelimPlan, DelimActions, DelimDone}

// ParseResponse turns a delimited model reply into a PlanRecord. Every
// failure is reported as a *entity.PlanError.
func ParseResponse(text string) (record *entity.PlanRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			record = nil
			err = &entity.PlanError{Message: fmt.Sprintf("failed to parse delimited response: %v", r)}
		}
	}()

	// A blank reply is an error. Text without any delimiter is not: it parses
	// to an empty record.
	if strings.TrimSpace(text) == "" {
		return nil, &entity.PlanError{Message: "response is empty"}
	}

	var positions [len(delimiters)]int
	for i, d := range delimiters {
		positions[i] = strings.Index(text, d)
	}

	sections := make([]string, len(delimiters))
	for i, d := range delimiters {
		start := positions[i]
		if start < 0 {
			continue
		}
		end := len(text)
		for _, next := range positions[i+1:] {
			if next > start && next < end {
				end = next
			}
		}
		sections[i] = strings.TrimSpace(text[start+len(d) : end])
	}

	record = &entity.PlanRecord{
		Observation: sections[0],
		Plan:        sections[1],
		Actions:     splitActions(sections[2]),
		Done:        strings.Contains(strings.ToLower(sections[3]), "true"),
	}
	return record, nil
}

func splitActions(body string) []string {
	var actions []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			actions = append(actions, line)
		}
	}
	return actions
}
