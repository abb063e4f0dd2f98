// Package locator implements the per-tab profile image hunt. One Locator
// runs per opened tab, polls the document with the platform's selector
// strategies, and publishes exactly one report: a resolved image URL or,
// after the deadline, a confirmed miss.
package locator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hellooo-cards/iconbridge/internal/browser"
	"github.com/hellooo-cards/iconbridge/internal/bus"
	"github.com/hellooo-cards/iconbridge/internal/common/cnst"
	"github.com/hellooo-cards/iconbridge/internal/common/dto"
	"github.com/hellooo-cards/iconbridge/internal/platform"
)

// Locator polls one tab for a profile image.
type Locator struct {
	logger   *zap.Logger
	bus      bus.Bus
	querier  browser.Querier
	def      *platform.Definition
	deadline time.Duration
	interval time.Duration
	now      func() time.Time
}

// Option customizes a Locator.
type Option func(*Locator)

// WithClock injects a time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Locator) { l.now = now }
}

// New creates a Locator for one platform.
func New(logger *zap.Logger, b bus.Bus, querier browser.Querier, def *platform.Definition, deadline, interval time.Duration, opts ...Option) *Locator {
	l := &Locator{
		logger:   logger.Named("locator"),
		bus:      b,
		querier:  querier,
		def:      def,
		deadline: deadline,
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run polls the tab until a profile image is found or the deadline elapses,
// then publishes a single report and returns. The reported account comes
// from the tab's URL path, not from the handle that was requested; the
// consumer validates the two against each other.
func (l *Locator) Run(ctx context.Context, tab *browser.Tab) error {
	start := l.now()

	if l.account(ctx, tab) == "" {
		// No path segment to name the account: confirmed miss right away.
		return l.report(ctx, "", "")
	}

	for {
		for _, sel := range l.def.Selectors {
			src, ok, err := l.querier.FindImage(ctx, tab, sel)
			if err != nil {
				// DOM errors collapse into the miss path.
				l.logger.Debug("selector query failed",
					zap.String("tab", tab.ID),
					zap.String("selector", sel),
					zap.Error(err))
				continue
			}
			if ok {
				return l.report(ctx, l.account(ctx, tab), src)
			}
		}

		if l.now().Sub(start) >= l.deadline {
			l.logger.Debug("profile image not found before deadline",
				zap.String("tab", tab.ID))
			return l.report(ctx, l.account(ctx, tab), "")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.interval):
		}
	}
}

// account derives the handle from the tab's current URL path. The path is
// read again when a report is built, so a redirect that completes mid-poll
// names the account the tab actually landed on.
func (l *Locator) account(ctx context.Context, tab *browser.Tab) string {
	path, err := l.querier.Location(ctx, tab)
	if err != nil {
		l.logger.Debug("failed to read tab location", zap.String("tab", tab.ID), zap.Error(err))
		return ""
	}
	return platform.HandleFromPath(path)
}

// report publishes the one and only report for this locator instance.
// An empty iconURL means "confirmed not found"; the field is always present.
func (l *Locator) report(ctx context.Context, account, iconURL string) error {
	msg, err := bus.NewMessage(cnst.TopicLocatorReport, dto.LocatorReport{
		Account: account,
		IconURL: &iconURL,
	})
	if err != nil {
		return err
	}
	return l.bus.Publish(ctx, msg)
}
