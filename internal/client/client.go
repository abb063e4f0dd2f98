// Package client is the requesting side of the protocol: it normalizes the
// label list, asks the user for confirmation, sends the batch request and
// correlates the asynchronously relayed result back to the call that
// originated it.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hellooo-cards/iconbridge/internal/bus"
	"github.com/hellooo-cards/iconbridge/internal/common/cnst"
	"github.com/hellooo-cards/iconbridge/internal/common/dto"
	"github.com/hellooo-cards/iconbridge/internal/handle"
	"github.com/hellooo-cards/iconbridge/internal/platform"
)

// BatchHandler answers batch requests synchronously. The broker implements
// it in-process; an HTTP client can stand in for an out-of-process broker.
type BatchHandler interface {
	HandleBatchRequest(ctx context.Context, req *dto.BatchRequest) *dto.Ack
}

// Confirmer blocks for user consent before any tab is opened.
type Confirmer interface {
	Confirm(prompt string) bool
}

// Notifier surfaces the aggregate unresolved-accounts warning.
type Notifier interface {
	Notify(message string)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(prompt string) bool

func (f ConfirmerFunc) Confirm(prompt string) bool { return f(prompt) }

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// resultSlack pads the worst-case batch duration when waiting for a result.
const resultSlack = 30 * time.Second

// perAccountBudget is the worst-case time one account can take: the fetch
// timeout, the image download and the cooldown.
const perAccountBudget = 12 * time.Second

// Client requests icon batches and correlates their results.
type Client struct {
	logger    *zap.Logger
	bus       bus.Bus
	broker    BatchHandler
	confirmer Confirmer
	notifier  Notifier
}

// New creates a Client.
func New(logger *zap.Logger, b bus.Bus, broker BatchHandler, confirmer Confirmer, notifier Notifier) *Client {
	return &Client{
		logger:    logger.Named("client"),
		bus:       b,
		broker:    broker,
		confirmer: confirmer,
		notifier:  notifier,
	}
}

// RequestIcons collects icons for the raw account list. It returns
// (nil, false, nil) when the user declines the confirmation prompt, before
// any request is sent. Unresolved accounts are reported to the user in one
// aggregate warning and filtered out; blank slots stay in the result so
// empty label cards keep their position.
func (c *Client) RequestIcons(ctx context.Context, rawAccounts []string, p cnst.Platform) ([]dto.IconResult, bool, error) {
	def, err := platform.Get(p.OrDefault())
	if err != nil {
		return nil, false, err
	}

	accounts := handle.NormalizeList(rawAccounts)
	if len(accounts) == 0 {
		return nil, false, cnst.ErrMissingAccounts
	}

	prompt := fmt.Sprintf("To collect %s icons, a tab will be opened for every account on the list.", def.DisplayName)
	if !c.confirmer.Confirm(prompt) {
		c.logger.Info("user declined icon collection")
		return nil, false, nil
	}

	// Subscribe before sending: the broker may relay a small batch faster
	// than a listener registered after the ack could catch.
	sub, err := c.bus.Subscribe(ctx)
	if err != nil {
		return nil, false, err
	}
	defer sub.Close()

	ack := c.broker.HandleBatchRequest(ctx, &dto.BatchRequest{Accounts: accounts, Platform: def.Name})
	if !ack.OK() {
		return nil, false, fmt.Errorf("batch request rejected: %s", ack.Reason)
	}

	c.publishProgress(ctx, ack.SessionID, cnst.ProgressStartGetIcons)
	defer c.publishProgress(ctx, ack.SessionID, cnst.ProgressEndGetIcons)

	timeout := time.Duration(len(accounts))*perAccountBudget + resultSlack
	msg, err := bus.WaitFor(ctx, sub, timeout, func(m *bus.Message) bool {
		if m.Topic != cnst.TopicIconsResult {
			return false
		}
		var r dto.BatchResult
		// Results for other sessions are left on the bus for their owners.
		return m.Decode(&r) == nil && r.SessionID == ack.SessionID
	})
	if err != nil {
		return nil, false, fmt.Errorf("waiting for batch result: %w", err)
	}

	var result dto.BatchResult
	if err := msg.Decode(&result); err != nil {
		return nil, false, err
	}

	icons, failed := partition(result.Icons)
	if len(failed) > 0 {
		c.notifier.Notify("Icons could not be collected for the following accounts:\n" +
			strings.Join(failed, "\n") +
			"\nCheck the account names and your network connection.")
	}
	return icons, true, nil
}

// partition splits results into usable entries (resolved icons and blank
// slots) and the handles that failed to resolve.
func partition(icons []dto.IconResult) ([]dto.IconResult, []string) {
	kept := make([]dto.IconResult, 0, len(icons))
	var failed []string
	for _, icon := range icons {
		if icon.Account != "" && icon.Data == "" {
			failed = append(failed, icon.Account)
			continue
		}
		kept = append(kept, icon)
	}
	return kept, failed
}

func (c *Client) publishProgress(ctx context.Context, sessionID, event string) {
	msg, err := bus.NewMessage(cnst.TopicIconsProgress, dto.Progress{SessionID: sessionID, Event: event})
	if err != nil {
		return
	}
	if err := c.bus.Publish(ctx, msg); err != nil {
		c.logger.Debug("failed to publish progress marker",
			zap.String("event", event),
			zap.Error(err))
	}
}
