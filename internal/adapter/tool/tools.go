package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

const (
	defaultWaitTimeout = 5 * time.Second
	defaultHTMLLength  = 20000
)

// HTMLCleaner strips a raw document down to what the model needs and caps it
// at maxLen bytes.
type HTMLCleaner func(rawHTML string, maxLen int) (string, error)

var pageIDParam = entity.Parameter{
	Name:        "page_id",
	Kind:        entity.KindUUID,
	Description: "Id of the page, as returned by go_to_url or get_open_pages",
	Required:    true,
}

var selectorParam = entity.Parameter{
	Name:        "selector",
	Kind:        entity.KindString,
	Description: "CSS selector of the target element",
	Required:    true,
}

// browserTool carries what every capability needs to resolve its handles.
type browserTool struct {
	resources output.ResourceRegistry
	logger    output.LoggerPort
}

// page resolves a page of the task context. The returned result is set when
// the page cannot be used.
func (b browserTool) page(ctx context.Context, contextID uuid.UUID, args entity.Arguments) (output.Page, uuid.UUID, *entity.ToolResult) {
	pageID := args.UUID("page_id")
	page, err := b.resources.GetPage(ctx, contextID, pageID)
	if err != nil {
		b.logger.Debug("Page lookup failed", "page_id", pageID, "error", err)
		var res entity.ToolResult
		switch {
		case errors.Is(err, entity.ErrStaleHandle):
			res = entity.Failed("Page %s is closed or crashed", pageID)
		case errors.Is(err, entity.ErrNotFound):
			res = entity.Failed("Page %s not found in this session", pageID)
		default:
			res = entity.Failed("Page %s is not available: %v", pageID, err)
		}
		return nil, pageID, &res
	}
	return page, pageID, nil
}

// failure turns an engine error into a result; deadline errors read as timeouts.
func failure(action string, err error) entity.ToolResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return entity.Failed("Request timed out while trying to %s", action)
	}
	return entity.Failed("Failed to %s: %v", action, err)
}

type GoToURLTool struct{ browserTool }

func NewGoToURLTool(resources output.ResourceRegistry, logger output.LoggerPort) *GoToURLTool {
	return &GoToURLTool{browserTool{resources: resources, logger: logger}}
}

func (t *GoToURLTool) Name() entity.ToolName { return entity.ToolGoToURL }
func (t *GoToURLTool) Description() string {
	return "Navigates to a URL. Opens a new page unless page_id is given, and returns the page id"
}
func (t *GoToURLTool) Parameters() []entity.Parameter {
	return []entity.Parameter{
		{Name: "url", Kind: entity.KindString, Description: "Absolute URL to open", Required: true},
		{Name: "page_id", Kind: entity.KindUUID, Description: "Existing page to navigate instead of opening a new one"},
	}
}

func (t *GoToURLTool) Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	url := args.String("url")

	if args.Has("page_id") {
		page, pageID, res := t.page(ctx, contextID, args)
		if res != nil {
			return *res, nil
		}
		t.resources.DropLocators(pageID)
		if err := page.Navigate(ctx, url); err != nil {
			return failure("open "+url, err), nil
		}
		return t.describe(ctx, page, pageID), nil
	}

	pageID, page, err := t.resources.CreatePage(ctx, contextID)
	if err != nil {
		return entity.ToolResult{}, fmt.Errorf("open page: %w", err)
	}
	if err := page.Navigate(ctx, url); err != nil {
		t.resources.DeletePage(ctx, contextID, pageID)
		return failure("open "+url, err), nil
	}
	return t.describe(ctx, page, pageID), nil
}

func (t *GoToURLTool) describe(ctx context.Context, page output.Page, pageID uuid.UUID) entity.ToolResult {
	url, title, err := page.Info(ctx)
	if err != nil {
		return entity.Succeeded("Navigated page %s", pageID)
	}
	return entity.Succeeded("Navigated page %s to %s (title: %q)", pageID, url, title)
}

type GetOpenPagesTool struct{ browserTool }

func NewGetOpenPagesTool(resources output.ResourceRegistry, logger output.LoggerPort) *GetOpenPagesTool {
	return &GetOpenPagesTool{browserTool{resources: resources, logger: logger}}
}

func (t *GetOpenPagesTool) Name() entity.ToolName { return entity.ToolGetOpenPages }
func (t *GetOpenPagesTool) Description() string {
	return "Lists the open pages of this session with their ids, URLs and titles"
}
func (t *GetOpenPagesTool) Parameters() []entity.Parameter { return nil }

func (t *GetOpenPagesTool) Execute(ctx context.Context, _ entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	handles, err := t.resources.ListPages(ctx, contextID)
	if err != nil {
		return entity.ToolResult{}, err
	}
	if len(handles) == 0 {
		return entity.Succeeded("No open pages"), nil
	}

	pages := make([]entity.PageInfo, 0, len(handles))
	for _, h := range handles {
		url, title, err := h.Page.Info(ctx)
		if err != nil {
			continue
		}
		pages = append(pages, entity.PageInfo{ID: h.ID, URL: url, Title: title})
	}

	data, err := json.Marshal(pages)
	if err != nil {
		return entity.ToolResult{}, err
	}
	return entity.Succeeded("%s", data), nil
}

type ClickTool struct{ browserTool }

func NewClickTool(resources output.ResourceRegistry, logger output.LoggerPort) *ClickTool {
	return &ClickTool{browserTool{resources: resources, logger: logger}}
}

func (t *ClickTool) Name() entity.ToolName          { return entity.ToolClick }
func (t *ClickTool) Description() string            { return "Clicks the first element matching a CSS selector" }
func (t *ClickTool) Parameters() []entity.Parameter { return []entity.Parameter{pageIDParam, selectorParam} }

func (t *ClickTool) Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	page, _, res := t.page(ctx, contextID, args)
	if res != nil {
		return *res, nil
	}
	selector := args.String("selector")
	if err := page.Click(ctx, selector); err != nil {
		return failure("click "+selector, err), nil
	}
	return entity.Succeeded("Clicked %s", selector), nil
}

type TypeTextTool struct{ browserTool }

func NewTypeTextTool(resources output.ResourceRegistry, logger output.LoggerPort) *TypeTextTool {
	return &TypeTextTool{browserTool{resources: resources, logger: logger}}
}

func (t *TypeTextTool) Name() entity.ToolName { return entity.ToolTypeText }
func (t *TypeTextTool) Description() string {
	return "Replaces the value of an input field with the given text"
}
func (t *TypeTextTool) Parameters() []entity.Parameter {
	return []entity.Parameter{
		pageIDParam,
		selectorParam,
		{Name: "text", Kind: entity.KindString, Description: "Text to type", Required: true},
	}
}

func (t *TypeTextTool) Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	page, _, res := t.page(ctx, contextID, args)
	if res != nil {
		return *res, nil
	}
	selector := args.String("selector")
	if err := page.Type(ctx, selector, args.String("text")); err != nil {
		return failure("type into "+selector, err), nil
	}
	return entity.Succeeded("Typed text into %s", selector), nil
}

type ExtractTextTool struct{ browserTool }

func NewExtractTextTool(resources output.ResourceRegistry, logger output.LoggerPort) *ExtractTextTool {
	return &ExtractTextTool{browserTool{resources: resources, logger: logger}}
}

func (t *ExtractTextTool) Name() entity.ToolName { return entity.ToolExtractText }
func (t *ExtractTextTool) Description() string {
	return "Returns the visible text of the first element matching a CSS selector"
}
func (t *ExtractTextTool) Parameters() []entity.Parameter {
	return []entity.Parameter{pageIDParam, selectorParam}
}

func (t *ExtractTextTool) Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	page, _, res := t.page(ctx, contextID, args)
	if res != nil {
		return *res, nil
	}
	selector := args.String("selector")
	text, err := page.Text(ctx, selector)
	if err != nil {
		return failure("read text of "+selector, err), nil
	}
	return entity.Succeeded("%s", text), nil
}

type WaitForSelectorTool struct{ browserTool }

func NewWaitForSelectorTool(resources output.ResourceRegistry, logger output.LoggerPort) *WaitForSelectorTool {
	return &WaitForSelectorTool{browserTool{resources: resources, logger: logger}}
}

func (t *WaitForSelectorTool) Name() entity.ToolName { return entity.ToolWaitForSelector }
func (t *WaitForSelectorTool) Description() string {
	return "Waits until an element matching a CSS selector appears"
}
func (t *WaitForSelectorTool) Parameters() []entity.Parameter {
	return []entity.Parameter{
		pageIDParam,
		selectorParam,
		{Name: "timeout", Kind: entity.KindInteger, Description: "Maximum wait in milliseconds (default 5000)"},
	}
}

func (t *WaitForSelectorTool) Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	page, _, res := t.page(ctx, contextID, args)
	if res != nil {
		return *res, nil
	}

	timeout := defaultWaitTimeout
	if ms := args.Int("timeout"); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	selector := args.String("selector")
	found, err := page.WaitFor(ctx, selector, timeout)
	if err != nil {
		return failure("wait for "+selector, err), nil
	}
	if !found {
		return entity.Failed("Request timed out: no element matching %s appeared within %s", selector, timeout), nil
	}
	return entity.Succeeded("Element %s is present", selector), nil
}

type ScrollTool struct{ browserTool }

func NewScrollTool(resources output.ResourceRegistry, logger output.LoggerPort) *ScrollTool {
	return &ScrollTool{browserTool{resources: resources, logger: logger}}
}

func (t *ScrollTool) Name() entity.ToolName { return entity.ToolScroll }
func (t *ScrollTool) Description() string   { return "Scrolls the page by the given offsets in pixels" }
func (t *ScrollTool) Parameters() []entity.Parameter {
	return []entity.Parameter{
		pageIDParam,
		{Name: "x", Kind: entity.KindInteger, Description: "Horizontal offset", Required: true},
		{Name: "y", Kind: entity.KindInteger, Description: "Vertical offset, positive scrolls down", Required: true},
	}
}

func (t *ScrollTool) Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	page, _, res := t.page(ctx, contextID, args)
	if res != nil {
		return *res, nil
	}
	x, y := args.Int("x"), args.Int("y")
	if err := page.Scroll(ctx, x, y); err != nil {
		return failure("scroll", err), nil
	}
	return entity.Succeeded("Scrolled by (%d, %d)", x, y), nil
}

type ReloadPageTool struct{ browserTool }

func NewReloadPageTool(resources output.ResourceRegistry, logger output.LoggerPort) *ReloadPageTool {
	return &ReloadPageTool{browserTool{resources: resources, logger: logger}}
}

func (t *ReloadPageTool) Name() entity.ToolName          { return entity.ToolReloadPage }
func (t *ReloadPageTool) Description() string            { return "Reloads the page" }
func (t *ReloadPageTool) Parameters() []entity.Parameter { return []entity.Parameter{pageIDParam} }

func (t *ReloadPageTool) Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	page, pageID, res := t.page(ctx, contextID, args)
	if res != nil {
		return *res, nil
	}
	t.resources.DropLocators(pageID)
	if err := page.Reload(ctx); err != nil {
		return failure("reload", err), nil
	}
	return entity.Succeeded("Reloaded page %s", pageID), nil
}

type GetPageHTMLTool struct {
	browserTool
	clean HTMLCleaner
}

func NewGetPageHTMLTool(resources output.ResourceRegistry, clean HTMLCleaner, logger output.LoggerPort) *GetPageHTMLTool {
	return &GetPageHTMLTool{browserTool: browserTool{resources: resources, logger: logger}, clean: clean}
}

func (t *GetPageHTMLTool) Name() entity.ToolName { return entity.ToolGetPageHTML }
func (t *GetPageHTMLTool) Description() string {
	return "Returns the page body as HTML with scripts, styles and noisy attributes removed"
}
func (t *GetPageHTMLTool) Parameters() []entity.Parameter {
	return []entity.Parameter{
		pageIDParam,
		{Name: "max_length", Kind: entity.KindInteger, Description: "Maximum length of the returned HTML (default 20000)"},
	}
}

func (t *GetPageHTMLTool) Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	page, _, res := t.page(ctx, contextID, args)
	if res != nil {
		return *res, nil
	}

	raw, err := page.HTML(ctx)
	if err != nil {
		return failure("read the page HTML", err), nil
	}

	maxLen := args.Int("max_length")
	if maxLen <= 0 {
		maxLen = defaultHTMLLength
	}
	cleaned, err := t.clean(raw, maxLen)
	if err != nil {
		t.logger.Warn("HTML cleaning failed, returning raw document", "error", err)
		return entity.Succeeded("%s", entity.CutString(raw, maxLen)), nil
	}
	return entity.Succeeded("%s", cleaned), nil
}

type ClosePageTool struct{ browserTool }

func NewClosePageTool(resources output.ResourceRegistry, logger output.LoggerPort) *ClosePageTool {
	return &ClosePageTool{browserTool{resources: resources, logger: logger}}
}

func (t *ClosePageTool) Name() entity.ToolName          { return entity.ToolClosePage }
func (t *ClosePageTool) Description() string            { return "Closes a page" }
func (t *ClosePageTool) Parameters() []entity.Parameter { return []entity.Parameter{pageIDParam} }

func (t *ClosePageTool) Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	pageID := args.UUID("page_id")
	if _, err := t.resources.GetPage(ctx, contextID, pageID); errors.Is(err, entity.ErrNotFound) {
		return entity.Failed("Page %s not found in this session", pageID), nil
	}
	t.resources.DeletePage(ctx, contextID, pageID)
	return entity.Succeeded("Closed page %s", pageID), nil
}

// NewBrowserTools builds every browser capability.
func NewBrowserTools(resources output.ResourceRegistry, clean HTMLCleaner, screenshotDir string, logger output.LoggerPort) []output.ToolPort {
	return []output.ToolPort{
		NewGoToURLTool(resources, logger),
		NewGetOpenPagesTool(resources, logger),
		NewClickTool(resources, logger),
		NewTypeTextTool(resources, logger),
		NewExtractTextTool(resources, logger),
		NewWaitForSelectorTool(resources, logger),
		NewScreenshotPageTool(resources, screenshotDir, logger),
		NewScrollTool(resources, logger),
		NewReloadPageTool(resources, logger),
		NewGetElementByTool(resources, logger),
		NewClickElementTool(resources, logger),
		NewElementTextTool(resources, logger),
		NewReleaseElementTool(resources, logger),
		NewGetPageHTMLTool(resources, clean, logger),
		NewClosePageTool(resources, logger),
	}
}
