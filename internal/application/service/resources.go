package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

var _ output.ResourceRegistry = (*ResourceRegistry)(nil)

// EngineLauncher starts the automation engine backing the registry.
type EngineLauncher func(ctx context.Context) (output.BrowserEngine, error)

type contextEntry struct {
	ref   output.BrowserContext
	pages map[uuid.UUID]output.Page
}

// ResourceRegistry owns the engine and the context → page → locator tree.
// Teardown calls run outside the lock; bookkeeping is removed first so a
// failing close never leaves a dangling entry.
type ResourceRegistry struct {
	launch EngineLauncher
	logger output.LoggerPort

	startMu sync.Mutex
	mu      sync.RWMutex
	engine  output.BrowserEngine

	contexts map[uuid.UUID]*contextEntry
	// pageOwners maps a page id to its context id.
	pageOwners map[uuid.UUID]uuid.UUID
	// locators are keyed by page id only.
	locators map[uuid.UUID]map[uuid.UUID]output.Locator
}

func NewResourceRegistry(launch EngineLauncher, logger output.LoggerPort) *ResourceRegistry {
	return &ResourceRegistry{
		launch:     launch,
		logger:     logger,
		contexts:   make(map[uuid.UUID]*contextEntry),
		pageOwners: make(map[uuid.UUID]uuid.UUID),
		locators:   make(map[uuid.UUID]map[uuid.UUID]output.Locator),
	}
}

// Start launches the engine. Calling it again after success is a no-op.
func (r *ResourceRegistry) Start(ctx context.Context) error {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	r.mu.RLock()
	started := r.engine != nil
	r.mu.RUnlock()
	if started {
		return nil
	}

	engine, err := r.launch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start browser engine: %w", err)
	}

	r.mu.Lock()
	r.engine = engine
	r.mu.Unlock()

	r.logger.Info("Browser engine started")
	return nil
}

// Shutdown deletes every context and closes the engine.
func (r *ResourceRegistry) Shutdown(ctx context.Context) error {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	// clear the engine first so creates racing with shutdown fail
	r.mu.Lock()
	engine := r.engine
	r.engine = nil
	ids := make([]uuid.UUID, 0, len(r.contexts))
	for id := range r.contexts {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.DeleteContext(ctx, id)
	}

	if engine == nil {
		return nil
	}
	if err := engine.Close(); err != nil {
		r.logger.Warn("Failed to close browser engine", "error", err)
		return fmt.Errorf("failed to close browser engine: %w", err)
	}
	r.logger.Info("Browser engine closed")
	return nil
}

func (r *ResourceRegistry) CreateContext(ctx context.Context) (uuid.UUID, output.BrowserContext, error) {
	r.mu.RLock()
	engine := r.engine
	r.mu.RUnlock()
	if engine == nil {
		return uuid.Nil, nil, entity.ErrNotInitialized
	}

	bc, err := engine.NewContext(ctx)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	r.mu.Lock()
	if r.engine != engine {
		r.mu.Unlock()
		if err := bc.Close(); err != nil {
			r.logger.Warn("Failed to close browser context", "error", err)
		}
		return uuid.Nil, nil, entity.ErrNotInitialized
	}
	id := newID(func(id uuid.UUID) bool { _, taken := r.contexts[id]; return taken })
	r.contexts[id] = &contextEntry{ref: bc, pages: make(map[uuid.UUID]output.Page)}
	r.mu.Unlock()

	r.logger.Debug("Browser context created", "context_id", id)
	return id, bc, nil
}

func (r *ResourceRegistry) GetContext(ctx context.Context, id uuid.UUID) (output.BrowserContext, error) {
	r.mu.RLock()
	entry, ok := r.contexts[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: context %s", entity.ErrNotFound, id)
	}

	if err := entry.ref.Alive(ctx); err != nil {
		return nil, fmt.Errorf("%w: context %s: %v", entity.ErrStaleHandle, id, err)
	}
	return entry.ref, nil
}

func (r *ResourceRegistry) DeleteContext(ctx context.Context, id uuid.UUID) {
	r.mu.Lock()
	entry, ok := r.contexts[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.contexts, id)
	for pageID := range entry.pages {
		delete(r.pageOwners, pageID)
		delete(r.locators, pageID)
	}
	r.mu.Unlock()

	for pageID, page := range entry.pages {
		if err := page.Close(); err != nil {
			r.logger.Debug("Page close failed during context teardown", "context_id", id, "page_id", pageID, "error", err)
		}
	}
	if err := entry.ref.Close(); err != nil {
		r.logger.Warn("Failed to close browser context", "context_id", id, "error", err)
	}

	r.logger.Debug("Browser context deleted", "context_id", id, "pages", len(entry.pages))
}

func (r *ResourceRegistry) CreatePage(ctx context.Context, contextID uuid.UUID) (uuid.UUID, output.Page, error) {
	bc, err := r.GetContext(ctx, contextID)
	if err != nil {
		return uuid.Nil, nil, err
	}

	page, err := bc.NewPage(ctx)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to create page: %w", err)
	}

	r.mu.Lock()
	entry, ok := r.contexts[contextID]
	if !ok {
		// The context was deleted while the page was being created.
		r.mu.Unlock()
		_ = page.Close()
		return uuid.Nil, nil, fmt.Errorf("%w: context %s", entity.ErrNotFound, contextID)
	}
	id := newID(func(id uuid.UUID) bool { _, taken := entry.pages[id]; return taken })
	entry.pages[id] = page
	r.pageOwners[id] = contextID
	r.mu.Unlock()

	r.logger.Debug("Page created", "context_id", contextID, "page_id", id)
	return id, page, nil
}

func (r *ResourceRegistry) GetPage(ctx context.Context, contextID, pageID uuid.UUID) (output.Page, error) {
	r.mu.RLock()
	entry, ok := r.contexts[contextID]
	var page output.Page
	if ok {
		page, ok = entry.pages[pageID]
	}
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: page %s in context %s", entity.ErrNotFound, pageID, contextID)
	}

	if err := page.Alive(ctx); err != nil {
		return nil, fmt.Errorf("%w: page %s: %v", entity.ErrStaleHandle, pageID, err)
	}
	return page, nil
}

// ListPages returns the live pages of a context. Pages failing their probe
// are skipped.
func (r *ResourceRegistry) ListPages(ctx context.Context, contextID uuid.UUID) ([]output.PageHandle, error) {
	if _, err := r.GetContext(ctx, contextID); err != nil {
		return nil, err
	}

	r.mu.RLock()
	entry, ok := r.contexts[contextID]
	var handles []output.PageHandle
	if ok {
		handles = make([]output.PageHandle, 0, len(entry.pages))
		for id, page := range entry.pages {
			handles = append(handles, output.PageHandle{ID: id, Page: page})
		}
	}
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: context %s", entity.ErrNotFound, contextID)
	}

	live := handles[:0]
	for _, h := range handles {
		if err := h.Page.Alive(ctx); err != nil {
			continue
		}
		live = append(live, h)
	}
	return live, nil
}

func (r *ResourceRegistry) DeletePage(ctx context.Context, contextID, pageID uuid.UUID) {
	r.mu.Lock()
	entry, ok := r.contexts[contextID]
	var page output.Page
	if ok {
		page, ok = entry.pages[pageID]
	}
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(entry.pages, pageID)
	delete(r.pageOwners, pageID)
	delete(r.locators, pageID)
	r.mu.Unlock()

	if err := page.Close(); err != nil {
		r.logger.Warn("Failed to close page", "context_id", contextID, "page_id", pageID, "error", err)
	}
	r.logger.Debug("Page deleted", "context_id", contextID, "page_id", pageID)
}

func (r *ResourceRegistry) StoreLocator(pageID uuid.UUID, locator output.Locator) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pageOwners[pageID]; !ok {
		return uuid.Nil, fmt.Errorf("%w: page %s", entity.ErrNotFound, pageID)
	}

	byID, ok := r.locators[pageID]
	if !ok {
		byID = make(map[uuid.UUID]output.Locator)
		r.locators[pageID] = byID
	}
	id := newID(func(id uuid.UUID) bool { _, taken := byID[id]; return taken })
	byID[id] = locator
	return id, nil
}

func (r *ResourceRegistry) GetLocator(ctx context.Context, pageID, id uuid.UUID) (output.Locator, error) {
	r.mu.RLock()
	locator, ok := r.locators[pageID][id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: locator %s on page %s", entity.ErrNotFound, id, pageID)
	}

	if err := locator.Alive(ctx); err != nil {
		return nil, fmt.Errorf("%w: locator %s: %v", entity.ErrStaleHandle, id, err)
	}
	return locator, nil
}

// DeleteLocator forgets a locator. Locators hold no engine resources of
// their own, so there is nothing to close.
func (r *ResourceRegistry) DeleteLocator(pageID, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.locators[pageID]
	if !ok {
		return
	}
	delete(byID, id)
	if len(byID) == 0 {
		delete(r.locators, pageID)
	}
}

// DropLocators forgets every locator of a page, e.g. after it navigated.
func (r *ResourceRegistry) DropLocators(pageID uuid.UUID) {
	r.mu.Lock()
	delete(r.locators, pageID)
	r.mu.Unlock()
}

// Stats reports how many handles are registered.
func (r *ResourceRegistry) Stats() (contexts, pages, locators int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contexts = len(r.contexts)
	pages = len(r.pageOwners)
	for _, byID := range r.locators {
		locators += len(byID)
	}
	return contexts, pages, locators
}

func newID(taken func(uuid.UUID) bool) uuid.UUID {
	for {
		id := uuid.New()
		if !taken(id) {
			return id
		}
	}
}
