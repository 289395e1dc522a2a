package tool

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

type ScreenshotPageTool struct {
	browserTool
	dir string
}

// NewScreenshotPageTool saves relative paths under dir.
func NewScreenshotPageTool(resources output.ResourceRegistry, dir string, logger output.LoggerPort) *ScreenshotPageTool {
	return &ScreenshotPageTool{browserTool: browserTool{resources: resources, logger: logger}, dir: dir}
}

func (t *ScreenshotPageTool) Name() entity.ToolName { return entity.ToolScreenshotPage }
func (t *ScreenshotPageTool) Description() string {
	return "Saves a screenshot of the page to a file inside the screenshot directory. The format follows the extension (.png, .jpg)"
}
func (t *ScreenshotPageTool) Parameters() []entity.Parameter {
	return []entity.Parameter{
		pageIDParam,
		{Name: "path", Kind: entity.KindString, Description: "Relative file name, e.g. results.png", Required: true},
		{Name: "full_page", Kind: entity.KindBoolean, Description: "Capture the whole scrollable page instead of the viewport"},
	}
}

func (t *ScreenshotPageTool) Execute(ctx context.Context, args entity.Arguments, contextID uuid.UUID) (entity.ToolResult, error) {
	page, pageID, res := t.page(ctx, contextID, args)
	if res != nil {
		return *res, nil
	}

	shot, err := page.Screenshot(ctx, args.Bool("full_page"))
	if err != nil {
		return failure("take a screenshot", err), nil
	}

	img, err := imaging.Decode(bytes.NewReader(shot.Data))
	if err != nil {
		return entity.ToolResult{}, fmt.Errorf("decode screenshot: %w", err)
	}

	path, ok := t.resolve(args.String("path"))
	if !ok {
		return entity.Failed("path %s is outside the screenshot directory", args.String("path")), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return entity.Failed("Failed to create directory for %s: %v", path, err), nil
	}
	if err := imaging.Save(img, path); err != nil {
		return entity.Failed("Failed to save screenshot to %s: %v", path, err), nil
	}

	b := img.Bounds()
	t.logger.Debug("Screenshot saved", "page_id", pageID, "path", path)
	return entity.Succeeded("Saved %dx%d screenshot of page %s to %s", b.Dx(), b.Dy(), pageID, path), nil
}

// resolve maps a relative path into the screenshot directory. Absolute paths
// and paths that climb out of the directory are refused.
func (t *ScreenshotPageTool) resolve(name string) (string, bool) {
	if filepath.IsAbs(name) {
		return "", false
	}
	if filepath.Ext(name) == "" {
		name += ".png"
	}

	dir := t.dir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}
