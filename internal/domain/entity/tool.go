package entity

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

type ToolName string

const (
	ToolGoToURL         ToolName = "go_to_url"
	ToolGetOpenPages    ToolName = "get_open_pages"
	ToolClick           ToolName = "click"
	ToolTypeText        ToolName = "type_text"
	ToolExtractText     ToolName = "extract_text"
	ToolWaitForSelector ToolName = "wait_for_selector"
	ToolScreenshotPage  ToolName = "screenshot_page"
	ToolScroll          ToolName = "scroll"
	ToolReloadPage      ToolName = "reload_page"
	ToolGetElementBy    ToolName = "get_element_by"
	ToolClickElement    ToolName = "click_element"
	ToolElementText     ToolName = "element_text"
	ToolReleaseElement  ToolName = "release_element"
	ToolGetPageHTML     ToolName = "get_page_html"
	ToolClosePage       ToolName = "close_page"
)

func (t ToolName) String() string {
	return string(t)
}

// ParamKind is the closed set of argument types a tool may declare.
type ParamKind string

const (
	KindString  ParamKind = "string"
	KindInteger ParamKind = "integer"
	KindBoolean ParamKind = "boolean"
	KindFloat   ParamKind = "float"
	KindUUID    ParamKind = "uuid"
)

type Parameter struct {
	Name        string
	Kind        ParamKind
	Description string
	Required    bool
}

type ToolDefinition struct {
	Name        ToolName
	Description string
	Parameters  []Parameter
}

// Schema renders the definition as a JSON-schema object.
func (d ToolDefinition) Schema() map[string]interface{} {
	properties := make(map[string]interface{}, len(d.Parameters))
	required := make([]string, 0, len(d.Parameters))

	for _, p := range d.Parameters {
		prop := map[string]interface{}{
			"description": p.Description,
		}
		switch p.Kind {
		case KindFloat:
			prop["type"] = "number"
		case KindUUID:
			prop["type"] = "string"
			prop["format"] = "uuid"
		default:
			prop["type"] = string(p.Kind)
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// ToolResult is the uniform outcome of a capability invocation.
type ToolResult struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
}

func Succeeded(format string, args ...any) ToolResult {
	return ToolResult{Success: true, Content: fmt.Sprintf(format, args...)}
}

func Failed(format string, args ...any) ToolResult {
	return ToolResult{Success: false, Content: fmt.Sprintf(format, args...)}
}

// CutString returns the longest prefix of s that is at most n bytes and
// does not split a UTF-8 sequence.
func CutString(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Arguments holds call arguments already coerced to their declared kinds.
type Arguments map[string]any

func (a Arguments) String(key string) string {
	v, _ := a[key].(string)
	return v
}

func (a Arguments) Int(key string) int {
	v, _ := a[key].(int)
	return v
}

func (a Arguments) Bool(key string) bool {
	v, _ := a[key].(bool)
	return v
}

func (a Arguments) Float(key string) float64 {
	v, _ := a[key].(float64)
	return v
}

func (a Arguments) UUID(key string) uuid.UUID {
	v, _ := a[key].(uuid.UUID)
	return v
}

func (a Arguments) Has(key string) bool {
	_, ok := a[key]
	return ok
}
