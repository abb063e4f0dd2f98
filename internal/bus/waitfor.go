package bus

import (
	"context"
	"errors"
	"time"
)

// ErrWaitTimeout is returned when no matching message arrives in time.
var ErrWaitTimeout = errors.New("bus: wait timeout")

// WaitFor resolves with the first message on sub that match accepts, racing
// the subscription against the timeout. Non-matching messages are skipped
// but, because delivery is broadcast, they remain visible to every other
// subscriber. The caller owns sub and must close it; WaitFor never consumes
// past the first match, so a late loser message is simply never read.
func WaitFor(ctx context.Context, sub Subscription, timeout time.Duration, match func(*Message) bool) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-sub.C():
			if !ok {
				return nil, ErrBusClosed
			}
			if match(msg) {
				return msg, nil
			}
		case <-timer.C:
			return nil, ErrWaitTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
