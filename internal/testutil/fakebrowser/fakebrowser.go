// Package fakebrowser is an in-memory implementation of the browser ports
// for tests.
package fakebrowser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

var ErrClosed = errors.New("target closed")

var (
	_ output.BrowserEngine  = (*Engine)(nil)
	_ output.BrowserContext = (*Context)(nil)
	_ output.Page           = (*Page)(nil)
	_ output.Locator        = (*Locator)(nil)
)

// Document is what a fake page serves for a URL.
type Document struct {
	Title string
	HTML  string
	// Elements maps a selector (css, label or text query) to element texts.
	Elements map[string][]string
}

type Engine struct {
	mu        sync.Mutex
	Sites     map[string]Document
	Contexts  []*Context
	closed    bool
	NewCtxErr error
}

func NewEngine() *Engine {
	return &Engine{Sites: make(map[string]Document)}
}

func (e *Engine) NewContext(ctx context.Context) (output.BrowserContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if e.NewCtxErr != nil {
		return nil, e.NewCtxErr
	}
	c := &Context{engine: e}
	e.Contexts = append(e.Contexts, c)
	return c, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) site(url string) (Document, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc, ok := e.Sites[url]
	return doc, ok
}

type Context struct {
	mu       sync.Mutex
	engine   *Engine
	Pages    []*Page
	closed   bool
	CloseErr error
}

func (c *Context) NewPage(ctx context.Context) (output.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	p := &Page{engine: c.engine, url: "about:blank"}
	c.Pages = append(c.Pages, p)
	return p, nil
}

func (c *Context) Alive(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.CloseErr
}

// Kill closes the context behind the registry's back.
func (c *Context) Kill() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type Page struct {
	mu         sync.Mutex
	engine     *Engine
	url        string
	doc        Document
	generation int
	closed     bool
	CloseErr   error
	// QueryErr, when set, is returned by Query.
	QueryErr   error

	Clicks  []string
	Typed   map[string]string
	Scrolls [][2]int
	Reloads int
}

func (p *Page) check() error {
	if p.closed {
		return ErrClosed
	}
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}
	doc, ok := p.engine.site(url)
	if !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", url)
	}
	p.url = url
	p.doc = doc
	p.generation++
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}
	p.Reloads++
	p.generation++
	return nil
}

func (p *Page) Info(ctx context.Context) (string, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return "", "", err
	}
	return p.url, p.doc.Title, nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}
	if len(p.doc.Elements[selector]) == 0 {
		return fmt.Errorf("element not found: %s", selector)
	}
	p.Clicks = append(p.Clicks, selector)
	return nil
}

func (p *Page) Type(ctx context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}
	if len(p.doc.Elements[selector]) == 0 {
		return fmt.Errorf("field not found: %s", selector)
	}
	if p.Typed == nil {
		p.Typed = make(map[string]string)
	}
	p.Typed[selector] = text
	return nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return "", err
	}
	texts := p.doc.Elements[selector]
	if len(texts) == 0 {
		return "", fmt.Errorf("element not found: %s", selector)
	}
	return texts[0], nil
}

func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return false, err
	}
	return len(p.doc.Elements[selector]) > 0, nil
}

func (p *Page) Scroll(ctx context.Context, x, y int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}
	p.Scrolls = append(p.Scrolls, [2]int{x, y})
	return nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return "", err
	}
	return p.doc.HTML, nil
}

func (p *Page) Screenshot(ctx context.Context, fullPage bool) (*entity.Screenshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return nil, err
	}
	return &entity.Screenshot{Data: PNG(), Format: "png", Width: 4, Height: 3}, nil
}

func (p *Page) Query(ctx context.Context, by entity.QueryBy, query string) (output.Locator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return nil, err
	}
	if p.QueryErr != nil {
		return nil, p.QueryErr
	}
	texts := p.doc.Elements[query]
	return &Locator{page: p, generation: p.generation, texts: append([]string(nil), texts...), query: query}, nil
}

func (p *Page) Alive(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.check()
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.CloseErr
}

// Kill closes the page behind the registry's back.
func (p *Page) Kill() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Locator is invalidated by any navigation or reload of its page.
type Locator struct {
	page       *Page
	generation int
	texts      []string
	query      string
	Clicked    []int
}

func (l *Locator) Count() int {
	return len(l.texts)
}

func (l *Locator) Click(ctx context.Context, index int) error {
	if err := l.Alive(ctx); err != nil {
		return err
	}
	if index < 0 || index >= len(l.texts) {
		return fmt.Errorf("index %d out of range (%d elements)", index, len(l.texts))
	}
	l.Clicked = append(l.Clicked, index)
	return nil
}

func (l *Locator) Text(ctx context.Context, index int) (string, error) {
	if err := l.Alive(ctx); err != nil {
		return "", err
	}
	if index < 0 || index >= len(l.texts) {
		return "", fmt.Errorf("index %d out of range (%d elements)", index, len(l.texts))
	}
	return strings.TrimSpace(l.texts[index]), nil
}

func (l *Locator) Alive(ctx context.Context) error {
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	if err := l.page.check(); err != nil {
		return err
	}
	if l.page.generation != l.generation {
		return errors.New("execution context was destroyed")
	}
	return nil
}

// PNG returns a small encoded PNG image.
func PNG() []byte {
	img := imaging.New(4, 3, color.NRGBA{R: 30, G: 144, B: 255, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
