package dispatcher

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

// ErrSkipped marks calls that were not parsed because an earlier call in the
// same batch failed.
var ErrSkipped = errors.New("skipped due to previous error")

// ParsedCall is a raw call resolved to its tool with arguments coerced to the
// declared kinds.
type ParsedCall struct {
	Raw  string
	Tool output.ToolPort
	Args entity.Arguments
}

func (c ParsedCall) Name() entity.ToolName {
	return c.Tool.Name()
}

// Parse turns `name(k1=v1, k2=v2)` into a ParsedCall. Commas inside values
// are not supported.
func (d *Dispatcher) Parse(raw string) (*ParsedCall, error) {
	call := strings.TrimSpace(raw)

	open := strings.Index(call, "(")
	if open <= 0 {
		return nil, &entity.ParseError{Call: raw, Err: errors.New("expected name(arguments)")}
	}
	name := entity.ToolName(strings.TrimSpace(call[:open]))

	tool, ok := d.tools.Get(name)
	if !ok {
		return nil, &entity.ParseError{Call: raw, Err: fmt.Errorf("function %s not found", name)}
	}

	closing := strings.LastIndex(call, ")")
	if closing < open {
		return nil, &entity.ParseError{Call: raw, Err: errors.New("missing closing parenthesis")}
	}

	params := make(map[string]entity.Parameter, len(tool.Parameters()))
	for _, p := range tool.Parameters() {
		params[p.Name] = p
	}

	args := make(entity.Arguments)
	body := strings.TrimSpace(call[open+1 : closing])
	if body != "" {
		for _, pair := range strings.Split(body, ",") {
			key, value, found := strings.Cut(pair, "=")
			key = strings.TrimSpace(key)
			if !found || key == "" {
				return nil, &entity.ParseError{Call: raw, Err: fmt.Errorf("malformed argument %q", strings.TrimSpace(pair))}
			}

			param, ok := params[key]
			if !ok {
				return nil, &entity.ParseError{Call: raw, Err: fmt.Errorf("unknown argument %q for %s", key, name)}
			}
			if args.Has(key) {
				return nil, &entity.ParseError{Call: raw, Err: fmt.Errorf("duplicate argument %q", key)}
			}

			v, err := coerce(param.Kind, strings.Trim(strings.TrimSpace(value), `"'`))
			if err != nil {
				return nil, &entity.ParseError{Call: raw, Err: fmt.Errorf("argument %q: %w", key, err)}
			}
			args[key] = v
		}
	}

	if err := validate(tool, args); err != nil {
		return nil, &entity.ParseError{Call: raw, Err: err}
	}

	return &ParsedCall{Raw: raw, Tool: tool, Args: args}, nil
}

// ParseBatch parses calls in order and stops at the first failure. The
// failing call gets its own error and every later call an ErrSkipped record,
// so len(parsed)+len(failures) == len(raws).
func (d *Dispatcher) ParseBatch(raws []string) ([]ParsedCall, []*entity.ParseError) {
	parsed := make([]ParsedCall, 0, len(raws))

	for i, raw := range raws {
		call, err := d.Parse(raw)
		if err == nil {
			parsed = append(parsed, *call)
			continue
		}

		var perr *entity.ParseError
		if !errors.As(err, &perr) {
			perr = &entity.ParseError{Call: raw, Err: err}
		}
		failures := make([]*entity.ParseError, 0, len(raws)-i)
		failures = append(failures, perr)
		for _, rest := range raws[i+1:] {
			failures = append(failures, &entity.ParseError{Call: rest, Err: ErrSkipped})
		}
		return parsed, failures
	}

	return parsed, nil
}

func coerce(kind entity.ParamKind, raw string) (any, error) {
	switch kind {
	case entity.KindString:
		return raw, nil
	case entity.KindInteger:
		return strconv.Atoi(raw)
	case entity.KindBoolean:
		return strconv.ParseBool(raw)
	case entity.KindFloat:
		return strconv.ParseFloat(raw, 64)
	case entity.KindUUID:
		return uuid.Parse(raw)
	default:
		return nil, fmt.Errorf("unsupported parameter kind %q", kind)
	}
}

func validate(tool output.ToolPort, args entity.Arguments) error {
	def := entity.ToolDefinition{
		Name:        tool.Name(),
		Description: tool.Description(),
		Parameters:  tool.Parameters(),
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(def.Schema()),
		gojsonschema.NewGoLoader(map[string]any(args)),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}
