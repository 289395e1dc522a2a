package rod

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
	"github.com/rpw1134/web-automation-agent/internal/infrastructure/config"
)

var (
	_ output.BrowserEngine  = (*Engine)(nil)
	_ output.BrowserContext = (*Context)(nil)
	_ output.Page           = (*Page)(nil)
	_ output.Locator        = (*Locator)(nil)
)

const (
	defaultTimeout    = 10 * time.Second
	screenshotQuality = 80
)

// Engine is one Chromium process. Every task gets its own incognito
// browser context on top of it.
type Engine struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
	logger   output.LoggerPort
}

// Launch starts Chromium. ctx only gates the start; the process lives until
// Close.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger output.LoggerPort) (*Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox).
		Delete("use-mock-keychain")
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url).SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger.Debug("Chromium launched", "control_url", url, "headless", cfg.Headless)
	return &Engine{
		browser:  browser,
		launcher: l,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

func (e *Engine) NewContext(ctx context.Context) (output.BrowserContext, error) {
	incognito, err := e.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("create incognito context: %w", err)
	}
	// detach from the caller's context; the handle outlives the request
	return &Context{browser: incognito.Context(context.Background()), timeout: e.timeout}, nil
}

// Close disconnects and kills the Chromium process.
func (e *Engine) Close() error {
	err := e.browser.Close()
	e.launcher.Kill()
	e.launcher.Cleanup()
	return err
}

type Context struct {
	browser *rod.Browser
	timeout time.Duration
}

func (c *Context) NewPage(ctx context.Context) (output.Page, error) {
	page, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &Page{page: page.Context(context.Background()), timeout: c.timeout}, nil
}

// Alive asks the browser for the context's cookies; a disposed context
// makes the call fail.
func (c *Context) Alive(ctx context.Context) error {
	if _, err := c.browser.Context(ctx).GetCookies(); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrStaleHandle, err)
	}
	return nil
}

// Close disposes the incognito context together with its pages.
func (c *Context) Close() error {
	return c.browser.Close()
}

type Page struct {
	page    *rod.Page
	timeout time.Duration
}

// op bounds one page operation by the configured timeout.
func (p *Page) op(ctx context.Context) (*rod.Page, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	return p.page.Context(ctx), cancel
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	page, cancel := p.op(ctx)
	defer cancel()

	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *Page) Reload(ctx context.Context) error {
	page, cancel := p.op(ctx)
	defer cancel()

	if err := page.Reload(); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *Page) Info(ctx context.Context) (string, string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", "", err
	}
	return info.URL, info.Title, nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	page, cancel := p.op(ctx)
	defer cancel()

	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %s: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *Page) Type(ctx context.Context, selector, text string) error {
	page, cancel := p.op(ctx)
	defer cancel()

	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("field not found: %s: %w", selector, err)
	}
	// replace whatever the field held before
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	return el.Input(text)
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	page, cancel := p.op(ctx)
	defer cancel()

	el, err := page.Element(selector)
	if err != nil {
		return "", fmt.Errorf("element not found: %s: %w", selector, err)
	}
	text, err := el.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := p.page.Context(waitCtx).Element(selector)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return false, nil
	default:
		return false, err
	}
}

func (p *Page) Scroll(ctx context.Context, x, y int) error {
	page, cancel := p.op(ctx)
	defer cancel()

	_, err := page.Eval(`(x, y) => window.scrollBy(x, y)`, x, y)
	return err
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	page, cancel := p.op(ctx)
	defer cancel()

	return page.HTML()
}

func (p *Page) Screenshot(ctx context.Context, fullPage bool) (*entity.Screenshot, error) {
	page, cancel := p.op(ctx)
	defer cancel()

	data, err := page.Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(screenshotQuality),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}

	return &entity.Screenshot{
		Data:   data,
		Format: "jpeg",
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

func (p *Page) Query(ctx context.Context, by entity.QueryBy, query string) (output.Locator, error) {
	page, cancel := p.op(ctx)
	defer cancel()

	var (
		els rod.Elements
		err error
	)
	switch by {
	case entity.QueryByCSS:
		els, err = page.Elements(query)
	case entity.QueryByLabel:
		els, err = page.ElementsX(labelXPath(query))
	case entity.QueryByText:
		els, err = page.ElementsX(textXPath(query))
	default:
		return nil, fmt.Errorf("unsupported query_by %q", by)
	}
	if err != nil {
		return nil, err
	}
	return &Locator{elements: els, timeout: p.timeout}, nil
}

func (p *Page) Alive(ctx context.Context) error {
	if _, err := p.page.Context(ctx).Info(); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrStaleHandle, err)
	}
	return nil
}

func (p *Page) Close() error {
	return p.page.Close()
}

type Locator struct {
	elements rod.Elements
	timeout  time.Duration
}

func (l *Locator) Count() int { return len(l.elements) }

func (l *Locator) element(ctx context.Context, index int) (*rod.Element, context.CancelFunc, error) {
	if index < 0 || index >= len(l.elements) {
		return nil, nil, fmt.Errorf("index %d out of range (%d elements)", index, len(l.elements))
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	return l.elements[index].Context(ctx), cancel, nil
}

func (l *Locator) Click(ctx context.Context, index int) error {
	el, cancel, err := l.element(ctx, index)
	if err != nil {
		return err
	}
	defer cancel()
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (l *Locator) Text(ctx context.Context, index int) (string, error) {
	el, cancel, err := l.element(ctx, index)
	if err != nil {
		return "", err
	}
	defer cancel()

	text, err := el.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Alive describes the first matched node. Remote object ids die with the
// document, so this fails once the page has navigated.
func (l *Locator) Alive(ctx context.Context) error {
	if len(l.elements) == 0 {
		return nil
	}
	if _, err := l.elements[0].Context(ctx).Describe(0, false); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrStaleHandle, err)
	}
	return nil
}

// labelXPath matches form controls by their <label>, aria-label or placeholder.
func labelXPath(label string) string {
	lit := xpathLiteral(label)
	return fmt.Sprintf(
		"//*[@id=//label[normalize-space(.)=%[1]s]/@for] | //label[normalize-space(.)=%[1]s]//*[self::input or self::textarea or self::select] | //*[@aria-label=%[1]s] | //*[@placeholder=%[1]s]",
		lit,
	)
}

// textXPath matches the innermost elements whose visible text contains text.
func textXPath(text string) string {
	lit := xpathLiteral(text)
	return fmt.Sprintf(
		"//body//*[not(self::script or self::style)][contains(normalize-space(.), %[1]s) and not(*[contains(normalize-space(.), %[1]s)])]",
		lit,
	)
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
