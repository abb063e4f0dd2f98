// Package browser is the boundary to the real browser: tab lifecycle and
// DOM queries. The rest of the module depends only on these interfaces so
// the protocol is testable without Chrome.
package browser

import "context"

// Tab is a handle to one open browser tab.
type Tab struct {
	ID  string
	URL string
}

// Tabs drives the tab lifecycle.
type Tabs interface {
	// Open creates a new tab navigated to url.
	Open(ctx context.Context, url string) (*Tab, error)

	// Close closes a tab previously opened with Open.
	Close(ctx context.Context, tab *Tab) error

	// Active returns the tab currently in the foreground. The user may have
	// switched focus since the batch started, so this is captured up front.
	Active(ctx context.Context) (*Tab, error)

	// Activate brings a tab to the foreground.
	Activate(ctx context.Context, tab *Tab) error

	// ClearLocalState wipes browser-local storage for the platform origin.
	ClearLocalState(ctx context.Context, origin string) error
}

// Querier runs read-only DOM queries inside a tab.
type Querier interface {
	// FindImage looks up an image by CSS selector and returns its resolved
	// src. ok is false when no such element exists yet.
	FindImage(ctx context.Context, tab *Tab, selector string) (src string, ok bool, err error)

	// Location returns the tab's current URL path.
	Location(ctx context.Context, tab *Tab) (path string, err error)
}
