package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

var locatorIDParam = entity.Parameter{
	Name:        "locator_id",
	Kind:        entity.KindUUID,
	Description: "Id returned by get_element_by",
	Required:    true,
}

var indexParam = entity.Parameter{
	Name:        "index",
	Kind:        entity.KindInteger,
	Description: "Zero-based position among the matched elements (default 0)",
}

// locator resolves a stored locator of a page that belongs to the task context.
func (b browserTool) locator(ctx context.Context, contextID uuid.UUID, args entity.Arguments) (output.Locator, *entity.ToolResult) {
	_, pageID, res := b.page(ctx, contextID, args)
	if res != nil {
		return nil, res
	}

	locatorID := args.UUID("locator_id")
	loc, err := b.resources.GetLocator(ctx, pageID, locatorID)
	if err == nil {
		return loc, nil
	}

	var out entity.ToolResult
	if errors.Is(err, entity.ErrStaleHandle) {
		// the page navigated away; the handle can never become valid again
		b.resources.DeleteLocator(pageID, locatorID)
		out = entity.Failed("Element %s is no longer attached to the page, query it again with get_element_by", locatorID)
	} else {
		out = entity.Failed("Element %s not found on page %s", locatorID, pageID)
	}
	return nil, &out
}

type GetElementByTool struct{ browserTool }

func NewGetElementByTool(resources output.ResourceRegistry, logger output.LoggerPort) *GetElementByTool {
	return &GetElementByTool{browserTool{resources: resources, logger: logger}}
}

func (t *GetElementByTool) Name() entity.ToolName { return entity.ToolGetElementBy }
func (t *GetElementByTool) Description() string {
	return "Finds elements by CSS selector, label text or visible text and stores them under a locator id"
}
func (t *GetElementByTool) Parameters() []entity.Parameter {
	return []entity.Parameter{
		pageIDParam,
		{Name: "query", Kind: entity.KindString, Description: "Selector, label or text to look for", Required: true},
		{Name: "query_by", Kind: entity.KindString, Description: "One of css, label, text", Required: true},
	}
}

func (t *GetElementByTool) Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	by := entity.QueryBy(args.String("query_by"))
	if !by.Valid() {
		return entity.Failed("Invalid query_by value %q: expected css, label or text", by), nil
	}

	page, pageID, res := t.page(ctx, contextID, args)
	if res != nil {
		return *res, nil
	}

	query := args.String("query")
	loc, err := page.Query(ctx, by, query)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return entity.Failed("Request timed out while looking for %s='%s'", by, query), nil
	case err != nil:
		return entity.Failed("Unexpected error while looking for %s='%s': %v", by, query, err), nil
	}

	count := loc.Count()
	if count == 0 {
		return entity.Failed("No element found for %s='%s'", by, query), nil
	}

	locatorID, err := t.resources.StoreLocator(pageID, loc)
	if err != nil {
		return entity.ToolResult{}, fmt.Errorf("store locator: %w", err)
	}
	return entity.Succeeded("Found %d element(s) for %s='%s'. locator_id=%s", count, by, query, locatorID), nil
}

type ClickElementTool struct{ browserTool }

func NewClickElementTool(resources output.ResourceRegistry, logger output.LoggerPort) *ClickElementTool {
	return &ClickElementTool{browserTool{resources: resources, logger: logger}}
}

func (t *ClickElementTool) Name() entity.ToolName { return entity.ToolClickElement }
func (t *ClickElementTool) Description() string   { return "Clicks one of the elements stored under a locator id" }
func (t *ClickElementTool) Parameters() []entity.Parameter {
	return []entity.Parameter{pageIDParam, locatorIDParam, indexParam}
}

func (t *ClickElementTool) Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	loc, res := t.locator(ctx, contextID, args)
	if res != nil {
		return *res, nil
	}
	index := args.Int("index")
	if err := loc.Click(ctx, index); err != nil {
		return failure(fmt.Sprintf("click element %d", index), err), nil
	}
	return entity.Succeeded("Clicked element %d of %s", index, args.UUID("locator_id")), nil
}

type ElementTextTool struct{ browserTool }

func NewElementTextTool(resources output.ResourceRegistry, logger output.LoggerPort) *ElementTextTool {
	return &ElementTextTool{browserTool{resources: resources, logger: logger}}
}

func (t *ElementTextTool) Name() entity.ToolName { return entity.ToolElementText }
func (t *ElementTextTool) Description() string {
	return "Returns the text of one of the elements stored under a locator id"
}
func (t *ElementTextTool) Parameters() []entity.Parameter {
	return []entity.Parameter{pageIDParam, locatorIDParam, indexParam}
}

func (t *ElementTextTool) Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	loc, res := t.locator(ctx, contextID, args)
	if res != nil {
		return *res, nil
	}
	index := args.Int("index")
	text, err := loc.Text(ctx, index)
	if err != nil {
		return failure(fmt.Sprintf("read text of element %d", index), err), nil
	}
	return entity.Succeeded("%s", text), nil
}

type ReleaseElementTool struct{ browserTool }

func NewReleaseElementTool(resources output.ResourceRegistry, logger output.LoggerPort) *ReleaseElementTool {
	return &ReleaseElementTool{browserTool{resources: resources, logger: logger}}
}

func (t *ReleaseElementTool) Name() entity.ToolName { return entity.ToolReleaseElement }
func (t *ReleaseElementTool) Description() string   { return "Forgets a locator id that is no longer needed" }
func (t *ReleaseElementTool) Parameters() []entity.Parameter {
	return []entity.Parameter{pageIDParam, locatorIDParam}
}

func (t *ReleaseElementTool) Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	pageID := args.UUID("page_id")
	if _, err := t.resources.GetPage(ctx, contextID, pageID); errors.Is(err, entity.ErrNotFound) {
		return entity.Failed("Page %s not found in this session", pageID), nil
	}
	locatorID := args.UUID("locator_id")
	t.resources.DeleteLocator(pageID, locatorID)
	return entity.Succeeded("Released %s", locatorID), nil
}
