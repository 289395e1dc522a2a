package output

import (
	"context"
	"time"

	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

// BrowserEngine is the single automation engine shared by every task.
type BrowserEngine interface {
	NewContext(ctx context.Context) (BrowserContext, error)
	Close() error
}

// BrowserContext is an isolated environment with its own cookies and storage.
type BrowserContext interface {
	NewPage(ctx context.Context) (Page, error)
	Alive(ctx context.Context) error
	Close() error
}

type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Info(ctx context.Context) (url, title string, err error)

	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Text(ctx context.Context, selector string) (string, error)
	// WaitFor reports false without error when nothing matched before the timeout.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	Scroll(ctx context.Context, x, y int) error
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, fullPage bool) (*entity.Screenshot, error)
	Query(ctx context.Context, by entity.QueryBy, query string) (Locator, error)

	Alive(ctx context.Context) error
	Close() error
}

// Locator is a set of elements matched by an earlier query.
type Locator interface {
	Count() int
	Click(ctx context.Context, index int) error
	Text(ctx context.Context, index int) (string, error)
	Alive(ctx context.Context) error
}
