package browser

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/hellooo-cards/iconbridge/internal/common/config"
)

// Driver implements Tabs and Querier over the Chrome DevTools Protocol.
type Driver struct {
	logger     *zap.Logger
	browserCtx context.Context
	cancels    []context.CancelFunc

	mu   sync.Mutex
	tabs map[string]tabHandle
}

type tabHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

var (
	_ Tabs    = (*Driver)(nil)
	_ Querier = (*Driver)(nil)
)

// NewDriver starts a browser (or attaches to one) per configuration.
func NewDriver(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (*Driver, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts, chromedp.Flag("headless", cfg.Headless))
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Materialize the browser process up front so later failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Driver{
		logger:     logger.Named("browser.chromedp"),
		browserCtx: browserCtx,
		cancels:    []context.CancelFunc{browserCancel, allocCancel},
		tabs:       make(map[string]tabHandle),
	}, nil
}

// Open implements Tabs.Open
func (d *Driver) Open(ctx context.Context, rawURL string) (*Tab, error) {
	tabCtx, cancel := chromedp.NewContext(d.browserCtx)
	if err := chromedp.Run(tabCtx, chromedp.Navigate(rawURL)); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab for %s: %w", rawURL, err)
	}

	id := string(chromedp.FromContext(tabCtx).Target.TargetID)
	d.mu.Lock()
	d.tabs[id] = tabHandle{ctx: tabCtx, cancel: cancel}
	d.mu.Unlock()

	d.logger.Debug("opened tab", zap.String("id", id), zap.String("url", rawURL))
	return &Tab{ID: id, URL: rawURL}, nil
}

// Close implements Tabs.Close
func (d *Driver) Close(_ context.Context, tab *Tab) error {
	d.mu.Lock()
	h, ok := d.tabs[tab.ID]
	delete(d.tabs, tab.ID)
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown tab: %s", tab.ID)
	}

	err := chromedp.Run(h.ctx, page.Close())
	h.cancel()
	if err != nil {
		return fmt.Errorf("failed to close tab %s: %w", tab.ID, err)
	}
	return nil
}

// Active implements Tabs.Active. It returns the foreground page target that
// is not one of the tabs this driver opened, i.e. the requesting page.
func (d *Driver) Active(_ context.Context) (*Tab, error) {
	infos, err := chromedp.Targets(d.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		if _, mine := d.tabs[string(info.TargetID)]; mine {
			continue
		}
		return &Tab{ID: string(info.TargetID), URL: info.URL}, nil
	}
	return nil, fmt.Errorf("no active page target")
}

// Activate implements Tabs.Activate
func (d *Driver) Activate(_ context.Context, tab *Tab) error {
	return chromedp.Run(d.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.ActivateTarget(target.ID(tab.ID)).Do(ctx)
	}))
}

// ClearLocalState implements Tabs.ClearLocalState
func (d *Driver) ClearLocalState(_ context.Context, origin string) error {
	return chromedp.Run(d.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.ClearDataForOrigin(origin, "local_storage").Do(ctx)
	}))
}

// FindImage implements Querier.FindImage
func (d *Driver) FindImage(_ context.Context, tab *Tab, selector string) (string, bool, error) {
	d.mu.Lock()
	h, ok := d.tabs[tab.ID]
	d.mu.Unlock()
	if !ok {
		return "", false, fmt.Errorf("unknown tab: %s", tab.ID)
	}

	var src string
	var found bool
	err := chromedp.Run(h.ctx,
		chromedp.AttributeValue(selector, "src", &src, &found, chromedp.ByQuery, chromedp.AtLeast(0)))
	if err != nil {
		return "", false, err
	}
	return src, found && src != "", nil
}

// Location implements Querier.Location
func (d *Driver) Location(_ context.Context, tab *Tab) (string, error) {
	d.mu.Lock()
	h, ok := d.tabs[tab.ID]
	d.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown tab: %s", tab.ID)
	}

	var loc string
	if err := chromedp.Run(h.ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", err
	}
	return u.Path, nil
}

// Shutdown tears the browser down.
func (d *Driver) Shutdown() {
	d.mu.Lock()
	for id, h := range d.tabs {
		h.cancel()
		delete(d.tabs, id)
	}
	d.mu.Unlock()
	for _, cancel := range d.cancels {
		cancel()
	}
}
