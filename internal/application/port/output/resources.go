package output

import (
	"context"

	"github.com/google/uuid"
)

type PageHandle struct {
	ID   uuid.UUID
	Page Page
}

// ResourceRegistry tracks contexts, pages and locators by id.
type ResourceRegistry interface {
	CreateContext(ctx context.Context) (uuid.UUID, BrowserContext, error)
	GetContext(ctx context.Context, id uuid.UUID) (BrowserContext, error)
	DeleteContext(ctx context.Context, id uuid.UUID)

	CreatePage(ctx context.Context, contextID uuid.UUID) (uuid.UUID, Page, error)
	GetPage(ctx context.Context, contextID, pageID uuid.UUID) (Page, error)
	ListPages(ctx context.Context, contextID uuid.UUID) ([]PageHandle, error)
	DeletePage(ctx context.Context, contextID, pageID uuid.UUID)

	StoreLocator(pageID uuid.UUID, locator Locator) (uuid.UUID, error)
	GetLocator(ctx context.Context, pageID, id uuid.UUID) (Locator, error)
	DeleteLocator(pageID, id uuid.UUID)
	DropLocators(pageID uuid.UUID)
}
