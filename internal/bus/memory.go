package bus

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const subscriberQueueSize = 100

// MemoryBus implements Bus with in-process channel fanout.
type MemoryBus struct {
	logger *zap.Logger
	mu     sync.RWMutex
	subs   map[string]*memorySubscription
	closed bool
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus creates a new in-memory broadcast bus
func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	return &MemoryBus{
		logger: logger.Named("bus.memory"),
		subs:   make(map[string]*memorySubscription),
	}
}

// Publish implements Bus.Publish
func (b *MemoryBus) Publish(_ context.Context, msg *Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for id, sub := range b.subs {
		select {
		case sub.queue <- msg:
		default:
			// A stuck subscriber must not block the rest of the fanout.
			b.logger.Warn("subscriber queue is full, dropping message",
				zap.String("subscriber", id),
				zap.String("topic", msg.Topic))
		}
	}
	return nil
}

// Subscribe implements Bus.Subscribe
func (b *MemoryBus) Subscribe(_ context.Context) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	sub := &memorySubscription{
		id:    uuid.NewString(),
		bus:   b,
		queue: make(chan *Message, subscriberQueueSize),
	}
	b.subs[sub.id] = sub
	return sub, nil
}

// Close shuts the bus down and closes all subscriptions.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.queue)
		delete(b.subs, id)
	}
	return nil
}

type memorySubscription struct {
	id        string
	bus       *MemoryBus
	queue     chan *Message
	closeOnce sync.Once
}

var _ Subscription = (*memorySubscription)(nil)

// C implements Subscription.C
func (s *memorySubscription) C() <-chan *Message {
	return s.queue
}

// Close implements Subscription.Close
func (s *memorySubscription) Close() {
	s.closeOnce.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if _, ok := s.bus.subs[s.id]; ok {
			delete(s.bus.subs, s.id)
			close(s.queue)
		}
	})
}
