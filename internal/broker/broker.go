// Package broker accepts batch requests, answers synchronously with a
// correlation token, runs the fetch loop in the background and relays the
// finished result to the tab that was active when the request arrived.
package broker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hellooo-cards/iconbridge/internal/browser"
	"github.com/hellooo-cards/iconbridge/internal/bus"
	"github.com/hellooo-cards/iconbridge/internal/common/cnst"
	"github.com/hellooo-cards/iconbridge/internal/common/dto"
	"github.com/hellooo-cards/iconbridge/internal/fetcher"
	"github.com/hellooo-cards/iconbridge/internal/platform"
	"github.com/hellooo-cards/iconbridge/internal/session"
	"github.com/hellooo-cards/iconbridge/pkg/metrics"
)

// Broker coordinates batch icon sessions.
type Broker struct {
	logger   *zap.Logger
	bus      bus.Bus
	registry session.Registry
	fetcher  *fetcher.Fetcher
	tabs     browser.Tabs
	metrics  *metrics.Metrics

	// runCtx outlives individual requests; a batch keeps running after the
	// request that started it has been answered.
	runCtx context.Context
}

// New creates a Broker. metrics may be nil.
func New(runCtx context.Context, logger *zap.Logger, b bus.Bus, registry session.Registry, f *fetcher.Fetcher, tabs browser.Tabs, m *metrics.Metrics) *Broker {
	return &Broker{
		logger:   logger.Named("broker"),
		bus:      b,
		registry: registry,
		fetcher:  f,
		tabs:     tabs,
		metrics:  m,
		runCtx:   runCtx,
	}
}

// HandleBatchRequest validates a batch request and returns its ack
// synchronously. An accepted request starts the fetch loop in the
// background; the result arrives later on the bus, tagged with the session
// identifier from the ack.
func (b *Broker) HandleBatchRequest(ctx context.Context, req *dto.BatchRequest) *dto.Ack {
	if req == nil || len(req.Accounts) == 0 {
		b.logger.Warn("rejecting batch request without accounts")
		b.metrics.SessionDone(cnst.PlatformX.String(), "rejected")
		return dto.AckFailed(cnst.ReasonMissingAccounts)
	}

	p := req.Platform.OrDefault()
	def, err := platform.Get(p)
	if err != nil {
		b.logger.Warn("rejecting batch request for unknown platform",
			zap.String("platform", p.String()))
		b.metrics.SessionDone(p.String(), "rejected")
		return dto.AckFailed(err.Error())
	}

	meta := &session.Meta{
		ID:        session.NewID(),
		Accounts:  req.Accounts,
		Platform:  p,
		CreatedAt: time.Now(),
	}
	if err := b.registry.Register(ctx, meta); err != nil {
		b.logger.Error("failed to register session", zap.Error(err))
		b.metrics.SessionDone(p.String(), "rejected")
		return dto.AckFailed(err.Error())
	}

	// Capture the foreground tab now: the user may switch focus during the
	// multi-second fetch, and the result belongs to the page that asked.
	mainTab, err := b.tabs.Active(ctx)
	if err != nil {
		b.logger.Warn("could not capture active tab", zap.Error(err))
		mainTab = nil
	}

	go b.run(meta, def, mainTab)

	b.logger.Info("batch session started",
		zap.String("session", meta.ID),
		zap.String("platform", p.String()),
		zap.Int("accounts", len(meta.Accounts)))
	return dto.AckOK(meta.ID)
}

// run executes one batch session to completion and relays the result.
func (b *Broker) run(meta *session.Meta, def *platform.Definition, mainTab *browser.Tab) {
	defer func() {
		if err := b.registry.Unregister(b.runCtx, meta.ID); err != nil {
			b.logger.Warn("failed to unregister session",
				zap.String("session", meta.ID),
				zap.Error(err))
		}
	}()

	if def.ClearStateBeforeFetch {
		// Defensive reset between runs, observed for this platform only.
		if err := b.tabs.ClearLocalState(b.runCtx, def.BaseURL); err != nil {
			b.logger.Warn("failed to clear local state",
				zap.String("session", meta.ID),
				zap.Error(err))
		}
	}

	icons, err := b.fetcher.Fetch(b.runCtx, meta.Accounts, meta.Platform)
	if err != nil {
		b.logger.Error("fetch loop aborted",
			zap.String("session", meta.ID),
			zap.Error(err))
		b.metrics.SessionDone(meta.Platform.String(), "aborted")
		return
	}

	msg, err := bus.NewMessage(cnst.TopicIconsResult, dto.BatchResult{
		SessionID: meta.ID,
		Icons:     icons,
	})
	if err != nil {
		b.logger.Error("failed to encode batch result",
			zap.String("session", meta.ID),
			zap.Error(err))
		return
	}
	if err := b.bus.Publish(b.runCtx, msg); err != nil {
		b.logger.Error("failed to relay batch result",
			zap.String("session", meta.ID),
			zap.Error(err))
		return
	}

	if mainTab != nil {
		if err := b.tabs.Activate(b.runCtx, mainTab); err != nil {
			b.logger.Warn("failed to re-activate requesting tab",
				zap.String("session", meta.ID),
				zap.Error(err))
		}
	}

	b.metrics.SessionDone(meta.Platform.String(), "ok")
	b.logger.Info("batch session completed",
		zap.String("session", meta.ID),
		zap.Int("icons", len(icons)))
}
