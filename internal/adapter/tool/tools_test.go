package tool

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/application/service"
	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
	"github.com/rpw1134/web-automation-agent/internal/infrastructure/logger"
	"github.com/rpw1134/web-automation-agent/internal/testutil/fakebrowser"
)

const exampleURL = "https://example.com"

type env struct {
	t         *testing.T
	ctx       context.Context
	engine    *fakebrowser.Engine
	resources *service.ResourceRegistry
	contextID uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()

	engine := fakebrowser.NewEngine()
	engine.Sites[exampleURL] = fakebrowser.Document{
		Title: "Example Domain",
		HTML:  "<html><body><h1>Example Domain</h1><script>x()</script></body></html>",
		Elements: map[string][]string{
			"h1":       {"Example Domain"},
			"a":        {" More information... ", "Privacy"},
			"#q":       {""},
			"Search":   {"Search"},
			"Username": {""},
		},
	}

	resources := service.NewResourceRegistry(func(context.Context) (output.BrowserEngine, error) {
		return engine, nil
	}, logger.NewNop())
	ctx := context.Background()
	require.NoError(t, resources.Start(ctx))
	t.Cleanup(func() { _ = resources.Shutdown(context.Background()) })

	contextID, _, err := resources.CreateContext(ctx)
	require.NoError(t, err)

	return &env{t: t, ctx: ctx, engine: engine, resources: resources, contextID: contextID}
}

func (e *env) run(tool output.ToolPort, args entity.Arguments) entity.ToolResult {
	e.t.Helper()
	res, err := tool.Execute(e.ctx, args, e.contextID)
	require.NoError(e.t, err)
	return res
}

// open navigates a fresh page to the example site and returns its id.
func (e *env) open() uuid.UUID {
	e.t.Helper()
	pageID, page, err := e.resources.CreatePage(e.ctx, e.contextID)
	require.NoError(e.t, err)
	require.NoError(e.t, page.Navigate(e.ctx, exampleURL))
	return pageID
}

func (e *env) fakePage(i int) *fakebrowser.Page {
	return e.engine.Contexts[0].Pages[i]
}

func (e *env) locate(pageID uuid.UUID, query string) uuid.UUID {
	e.t.Helper()
	res := e.run(NewGetElementByTool(e.resources, logger.NewNop()), entity.Arguments{
		"page_id": pageID, "query": query, "query_by": "css",
	})
	require.True(e.t, res.Success, res.Content)
	_, idText, ok := strings.Cut(res.Content, "locator_id=")
	require.True(e.t, ok)
	id, err := uuid.Parse(idText)
	require.NoError(e.t, err)
	return id
}

func TestNewBrowserTools_CoversEveryCapability(t *testing.T) {
	tools := NewBrowserTools(nil, nil, "", logger.NewNop())

	names := make(map[entity.ToolName]bool)
	for _, tool := range tools {
		assert.NotEmpty(t, tool.Description())
		assert.False(t, names[tool.Name()], "duplicate tool %s", tool.Name())
		names[tool.Name()] = true
	}

	for _, want := range []entity.ToolName{
		entity.ToolGoToURL, entity.ToolGetOpenPages, entity.ToolClick, entity.ToolTypeText,
		entity.ToolExtractText, entity.ToolWaitForSelector, entity.ToolScreenshotPage,
		entity.ToolScroll, entity.ToolReloadPage, entity.ToolGetElementBy, entity.ToolClickElement,
		entity.ToolElementText, entity.ToolReleaseElement, entity.ToolGetPageHTML, entity.ToolClosePage,
	} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestGoToURL_OpensNewPage(t *testing.T) {
	e := newEnv(t)

	res := e.run(NewGoToURLTool(e.resources, logger.NewNop()), entity.Arguments{"url": exampleURL})
	require.True(t, res.Success, res.Content)
	assert.Contains(t, res.Content, exampleURL)
	assert.Contains(t, res.Content, `"Example Domain"`)

	handles, err := e.resources.ListPages(e.ctx, e.contextID)
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Contains(t, res.Content, handles[0].ID.String())
}

func TestGoToURL_FailedNavigationClosesPage(t *testing.T) {
	e := newEnv(t)

	res := e.run(NewGoToURLTool(e.resources, logger.NewNop()), entity.Arguments{"url": "https://nowhere.invalid"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "Failed to open https://nowhere.invalid")

	handles, err := e.resources.ListPages(e.ctx, e.contextID)
	require.NoError(t, err)
	assert.Empty(t, handles)
	assert.True(t, e.fakePage(0).Closed())
}

func TestGoToURL_ExistingPageDropsLocators(t *testing.T) {
	e := newEnv(t)
	pageID := e.open()
	e.locate(pageID, "a")

	res := e.run(NewGoToURLTool(e.resources, logger.NewNop()), entity.Arguments{"url": exampleURL, "page_id": pageID})
	require.True(t, res.Success, res.Content)

	_, _, locators := e.resources.Stats()
	assert.Zero(t, locators)
	_, pages, _ := e.resources.Stats()
	assert.Equal(t, 1, pages)
}

func TestGetOpenPages(t *testing.T) {
	e := newEnv(t)
	tool := NewGetOpenPagesTool(e.resources, logger.NewNop())

	res := e.run(tool, nil)
	assert.True(t, res.Success)
	assert.Equal(t, "No open pages", res.Content)

	pageID := e.open()
	res = e.run(tool, nil)
	require.True(t, res.Success)

	var pages []entity.PageInfo
	require.NoError(t, json.Unmarshal([]byte(res.Content), &pages))
	require.Len(t, pages, 1)
	assert.Equal(t, entity.PageInfo{ID: pageID, URL: exampleURL, Title: "Example Domain"}, pages[0])
}

func TestPageLookupFailures(t *testing.T) {
	e := newEnv(t)
	tool := NewClickTool(e.resources, logger.NewNop())

	missing := uuid.New()
	res := e.run(tool, entity.Arguments{"page_id": missing, "selector": "h1"})
	assert.False(t, res.Success)
	assert.Equal(t, "Page "+missing.String()+" not found in this session", res.Content)

	pageID := e.open()
	e.fakePage(0).Kill()
	res = e.run(tool, entity.Arguments{"page_id": pageID, "selector": "h1"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "closed or crashed")
}

func TestPagesAreScopedToTheirContext(t *testing.T) {
	e := newEnv(t)
	pageID := e.open()

	otherContext, _, err := e.resources.CreateContext(e.ctx)
	require.NoError(t, err)

	res, err := NewClickTool(e.resources, logger.NewNop()).
		Execute(e.ctx, entity.Arguments{"page_id": pageID, "selector": "h1"}, otherContext)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "not found")
}

func TestClickTypeExtractScroll(t *testing.T) {
	e := newEnv(t)
	pageID := e.open()
	log := logger.NewNop()

	res := e.run(NewClickTool(e.resources, log), entity.Arguments{"page_id": pageID, "selector": "h1"})
	assert.True(t, res.Success, res.Content)
	assert.Equal(t, []string{"h1"}, e.fakePage(0).Clicks)

	res = e.run(NewClickTool(e.resources, log), entity.Arguments{"page_id": pageID, "selector": "#missing"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "Failed to click #missing")

	res = e.run(NewTypeTextTool(e.resources, log), entity.Arguments{"page_id": pageID, "selector": "#q", "text": "golang"})
	assert.True(t, res.Success, res.Content)
	assert.Equal(t, "golang", e.fakePage(0).Typed["#q"])

	res = e.run(NewExtractTextTool(e.resources, log), entity.Arguments{"page_id": pageID, "selector": "h1"})
	assert.True(t, res.Success)
	assert.Equal(t, "Example Domain", res.Content)

	res = e.run(NewScrollTool(e.resources, log), entity.Arguments{"page_id": pageID, "x": 0, "y": 500})
	assert.True(t, res.Success)
	assert.Equal(t, [][2]int{{0, 500}}, e.fakePage(0).Scrolls)
}

func TestWaitForSelector(t *testing.T) {
	e := newEnv(t)
	pageID := e.open()
	tool := NewWaitForSelectorTool(e.resources, logger.NewNop())

	res := e.run(tool, entity.Arguments{"page_id": pageID, "selector": "h1"})
	assert.True(t, res.Success)

	res = e.run(tool, entity.Arguments{"page_id": pageID, "selector": ".late", "timeout": 250})
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "Request timed out")
	assert.Contains(t, res.Content, "250ms")
}

func TestReloadDropsLocators(t *testing.T) {
	e := newEnv(t)
	pageID := e.open()
	e.locate(pageID, "a")

	res := e.run(NewReloadPageTool(e.resources, logger.NewNop()), entity.Arguments{"page_id": pageID})
	assert.True(t, res.Success)
	assert.Equal(t, 1, e.fakePage(0).Reloads)

	_, _, locators := e.resources.Stats()
	assert.Zero(t, locators)
}

func TestGetElementBy(t *testing.T) {
	e := newEnv(t)
	pageID := e.open()
	tool := NewGetElementByTool(e.resources, logger.NewNop())

	res := e.run(tool, entity.Arguments{"page_id": pageID, "query": "a", "query_by": "invalid"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "Invalid query_by value")
	assert.Contains(t, res.Content, "invalid")

	res = e.run(tool, entity.Arguments{"page_id": pageID, "query": "a", "query_by": "css"})
	assert.True(t, res.Success)
	assert.Contains(t, res.Content, "Found 2 element(s)")
	assert.Contains(t, res.Content, "css='a'")

	res = e.run(tool, entity.Arguments{"page_id": pageID, "query": "Username", "query_by": "label"})
	assert.True(t, res.Success)
	assert.Contains(t, res.Content, "Found 1 element(s)")

	res = e.run(tool, entity.Arguments{"page_id": pageID, "query": "Nothing here", "query_by": "text"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "No element found")

	e.fakePage(0).QueryErr = context.DeadlineExceeded
	res = e.run(tool, entity.Arguments{"page_id": pageID, "query": "a", "query_by": "css"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "Request timed out")

	e.fakePage(0).QueryErr = errors.New("protocol error")
	res = e.run(tool, entity.Arguments{"page_id": pageID, "query": "a", "query_by": "css"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "Unexpected error")

	_, _, locators := e.resources.Stats()
	assert.Equal(t, 2, locators)
}

func TestLocatorTools(t *testing.T) {
	e := newEnv(t)
	pageID := e.open()
	locatorID := e.locate(pageID, "a")
	log := logger.NewNop()

	res := e.run(NewElementTextTool(e.resources, log), entity.Arguments{"page_id": pageID, "locator_id": locatorID, "index": 0})
	assert.True(t, res.Success)
	assert.Equal(t, "More information...", res.Content)

	res = e.run(NewClickElementTool(e.resources, log), entity.Arguments{"page_id": pageID, "locator_id": locatorID, "index": 1})
	assert.True(t, res.Success, res.Content)

	res = e.run(NewClickElementTool(e.resources, log), entity.Arguments{"page_id": pageID, "locator_id": locatorID, "index": 5})
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "out of range")

	res = e.run(NewReleaseElementTool(e.resources, log), entity.Arguments{"page_id": pageID, "locator_id": locatorID})
	assert.True(t, res.Success)

	res = e.run(NewElementTextTool(e.resources, log), entity.Arguments{"page_id": pageID, "locator_id": locatorID})
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "not found on page")
}

func TestLocatorGoesStaleAfterNavigation(t *testing.T) {
	e := newEnv(t)
	pageID := e.open()
	locatorID := e.locate(pageID, "a")

	// navigation behind the tools' back leaves the handle registered but dead
	require.NoError(t, e.fakePage(0).Navigate(e.ctx, exampleURL))

	res := e.run(NewClickElementTool(e.resources, logger.NewNop()), entity.Arguments{"page_id": pageID, "locator_id": locatorID})
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "no longer attached")

	_, _, locators := e.resources.Stats()
	assert.Zero(t, locators)
}

func TestGetPageHTML(t *testing.T) {
	e := newEnv(t)
	pageID := e.open()

	var gotMax int
	clean := func(raw string, maxLen int) (string, error) {
		gotMax = maxLen
		return strings.ReplaceAll(raw, "<script>x()</script>", ""), nil
	}
	tool := NewGetPageHTMLTool(e.resources, clean, logger.NewNop())

	res := e.run(tool, entity.Arguments{"page_id": pageID})
	assert.True(t, res.Success)
	assert.NotContains(t, res.Content, "<script>")
	assert.Equal(t, defaultHTMLLength, gotMax)

	e.run(tool, entity.Arguments{"page_id": pageID, "max_length": 100})
	assert.Equal(t, 100, gotMax)

	failing := NewGetPageHTMLTool(e.resources, func(string, int) (string, error) {
		return "", errors.New("bad markup")
	}, logger.NewNop())
	res = e.run(failing, entity.Arguments{"page_id": pageID, "max_length": 10})
	assert.True(t, res.Success)
	assert.Equal(t, "<html><bo", res.Content[:9])
	assert.Len(t, res.Content, 10)
}

func TestClosePage(t *testing.T) {
	e := newEnv(t)
	pageID := e.open()
	tool := NewClosePageTool(e.resources, logger.NewNop())

	res := e.run(tool, entity.Arguments{"page_id": pageID})
	assert.True(t, res.Success)
	assert.True(t, e.fakePage(0).Closed())

	res = e.run(tool, entity.Arguments{"page_id": pageID})
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "not found")
}

func TestScreenshotPage(t *testing.T) {
	e := newEnv(t)
	pageID := e.open()
	dir := t.TempDir()
	tool := NewScreenshotPageTool(e.resources, dir, logger.NewNop())

	res := e.run(tool, entity.Arguments{"page_id": pageID, "path": "shots/home", "full_page": true})
	require.True(t, res.Success, res.Content)

	path := filepath.Join(dir, "shots", "home.png")
	assert.Contains(t, res.Content, path)
	assert.Contains(t, res.Content, "4x3")

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
}

func TestScreenshotPage_StaysInsideDirectory(t *testing.T) {
	e := newEnv(t)
	pageID := e.open()
	root := t.TempDir()
	dir := filepath.Join(root, "shots")
	tool := NewScreenshotPageTool(e.resources, dir, logger.NewNop())

	for _, path := range []string{
		"../escaped.png",
		"nested/../../escaped.png",
		filepath.Join(root, "absolute.png"),
	} {
		res := e.run(tool, entity.Arguments{"page_id": pageID, "path": path})
		assert.False(t, res.Success, path)
		assert.Contains(t, res.Content, "outside the screenshot directory", path)
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)

	res := e.run(tool, entity.Arguments{"page_id": pageID, "path": "nested/../inside.jpg"})
	require.True(t, res.Success, res.Content)
	assert.FileExists(t, filepath.Join(dir, "inside.jpg"))
}
