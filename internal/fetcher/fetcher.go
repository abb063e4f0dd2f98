// Package fetcher runs the per-account icon collection loop. The loop is
// deliberately sequential: one tab and one locator in flight at a time, with
// a cooldown between accounts, so the target site never sees a tab storm and
// reports can never race a listener that is not yet registered.
package fetcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hellooo-cards/iconbridge/internal/browser"
	"github.com/hellooo-cards/iconbridge/internal/bus"
	"github.com/hellooo-cards/iconbridge/internal/common/cnst"
	"github.com/hellooo-cards/iconbridge/internal/common/config"
	"github.com/hellooo-cards/iconbridge/internal/common/dto"
	"github.com/hellooo-cards/iconbridge/internal/handle"
	"github.com/hellooo-cards/iconbridge/internal/imaging"
	"github.com/hellooo-cards/iconbridge/internal/locator"
	"github.com/hellooo-cards/iconbridge/internal/platform"
	"github.com/hellooo-cards/iconbridge/pkg/metrics"
)

// Fetcher collects profile icons for ordered account lists.
type Fetcher struct {
	logger  *zap.Logger
	bus     bus.Bus
	tabs    browser.Tabs
	querier browser.Querier
	encoder *imaging.Encoder
	metrics *metrics.Metrics
	cfg     config.FetcherConfig
}

// New creates a Fetcher. metrics may be nil.
func New(logger *zap.Logger, b bus.Bus, tabs browser.Tabs, querier browser.Querier, encoder *imaging.Encoder, m *metrics.Metrics, cfg config.FetcherConfig) *Fetcher {
	return &Fetcher{
		logger:  logger.Named("fetcher"),
		bus:     b,
		tabs:    tabs,
		querier: querier,
		encoder: encoder,
		metrics: m,
		cfg:     cfg,
	}
}

// Fetch resolves one IconResult per input handle, in input order. Blank
// sentinel slots produce fully empty results without opening a tab. Failed
// accounts produce empty results; only context cancellation aborts the loop.
func (f *Fetcher) Fetch(ctx context.Context, accounts []string, p cnst.Platform) ([]dto.IconResult, error) {
	def, err := platform.Get(p)
	if err != nil {
		return nil, err
	}

	icons := make([]dto.IconResult, 0, len(accounts))
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return icons, err
		}

		if handle.IsBlank(account) {
			icons = append(icons, dto.IconResult{Platform: def.Name})
			f.metrics.IconDone(def.Name.String(), metrics.OutcomeBlank, time.Now())
			continue
		}

		icons = append(icons, f.fetchOne(ctx, def, account))

		// Cooldown before touching the site again.
		select {
		case <-ctx.Done():
			return icons, ctx.Err()
		case <-time.After(f.cfg.Cooldown):
		}
	}
	return icons, nil
}

// fetchOne collects the icon for a single account. The report subscription
// is registered before the tab opens so a fast locator cannot report into
// the void.
func (f *Fetcher) fetchOne(ctx context.Context, def *platform.Definition, account string) dto.IconResult {
	start := time.Now()
	res := dto.IconResult{Account: account, Platform: def.Name}

	sub, err := f.bus.Subscribe(ctx)
	if err != nil {
		f.logger.Error("failed to subscribe for locator reports",
			zap.String("account", account),
			zap.Error(err))
		f.metrics.IconDone(def.Name.String(), metrics.OutcomeMissed, start)
		return res
	}
	defer sub.Close()

	tab, err := f.tabs.Open(ctx, def.ProfileURL(account))
	if err != nil {
		// Tab creation failed: record the account as unresolved and keep
		// going; per-account failures never abort the batch.
		f.logger.Warn("failed to open tab, recording account as unresolved",
			zap.String("account", account),
			zap.Error(err))
		f.metrics.IconDone(def.Name.String(), metrics.OutcomeMissed, start)
		return res
	}
	f.metrics.TabOpened(def.Name.String())

	locCtx, cancelLocator := context.WithCancel(ctx)
	defer cancelLocator()
	loc := locator.New(f.logger, f.bus, f.querier, def, f.cfg.LocatorDeadline, f.cfg.PollInterval)
	go func() {
		if err := loc.Run(locCtx, tab); err != nil && locCtx.Err() == nil {
			f.logger.Warn("locator failed",
				zap.String("account", account),
				zap.Error(err))
		}
	}()

	res.URL = f.awaitReport(ctx, sub, account)
	if res.URL != "" {
		res.Data = f.encoder.FetchDataURI(ctx, res.URL)
	}

	if err := f.tabs.Close(ctx, tab); err != nil {
		f.logger.Warn("failed to close tab",
			zap.String("account", account),
			zap.Error(err))
	}

	outcome := metrics.OutcomeMissed
	if res.Data != "" {
		outcome = metrics.OutcomeResolved
	}
	f.metrics.IconDone(def.Name.String(), outcome, start)
	return res
}

// awaitReport races the locator's report against the fetch-side timeout,
// which is longer than the locator's own deadline to leave a delivery
// margin. Whichever loses is dropped; the subscription is closed exactly
// once by fetchOne.
func (f *Fetcher) awaitReport(ctx context.Context, sub bus.Subscription, account string) string {
	msg, err := bus.WaitFor(ctx, sub, f.cfg.FetchTimeout, func(m *bus.Message) bool {
		if m.Topic != cnst.TopicLocatorReport {
			return false
		}
		var r dto.LocatorReport
		if m.Decode(&r) != nil {
			return false
		}
		// nil IconURL means "not yet known" and is never a report.
		if r.IconURL == nil {
			return false
		}
		if r.Account != account {
			// A redirect can rename the tab's path segment. The report then
			// never matches and this account times out to empty.
			f.logger.Debug("locator report for unexpected account",
				zap.String("requested", account),
				zap.String("reported", r.Account))
			return false
		}
		return true
	})
	if err != nil {
		f.logger.Debug("no locator report before timeout",
			zap.String("account", account),
			zap.Error(err))
		return ""
	}

	var r dto.LocatorReport
	if err := msg.Decode(&r); err != nil || r.IconURL == nil {
		return ""
	}
	return *r.IconURL
}
