package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hellooo-cards/iconbridge/internal/common/config"
)

// RedisBus implements Bus over a single Redis pub/sub channel, letting the
// broker and the requesting side live in separate processes.
type RedisBus struct {
	logger *zap.Logger
	client *redis.Client
	topic  string
	pubsub *redis.PubSub

	mu     sync.RWMutex
	subs   map[*redisSubscription]struct{}
	closed bool
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus creates a new Redis-backed broadcast bus
func NewRedisBus(ctx context.Context, logger *zap.Logger, cfg config.BusRedisConfig) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	b := &RedisBus{
		logger: logger.Named("bus.redis"),
		client: client,
		topic:  cfg.Topic,
		subs:   make(map[*redisSubscription]struct{}),
	}

	b.pubsub = client.Subscribe(ctx, cfg.Topic)
	// go-redis establishes the server-side subscription lazily; wait for the
	// confirmation so a publish issued right after construction is not lost.
	if _, err := b.pubsub.Receive(ctx); err != nil {
		_ = b.pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", cfg.Topic, err)
	}
	go b.fanout()

	return b, nil
}

// fanout pumps messages from the Redis channel to local subscribers.
func (b *RedisBus) fanout() {
	for raw := range b.pubsub.Channel() {
		var msg Message
		if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
			b.logger.Error("failed to unmarshal bus message",
				zap.Error(err),
				zap.String("payload", raw.Payload))
			continue
		}

		b.mu.RLock()
		for sub := range b.subs {
			select {
			case sub.queue <- &msg:
			default:
				b.logger.Warn("subscriber queue is full, dropping message",
					zap.String("topic", msg.Topic))
			}
		}
		b.mu.RUnlock()
	}
}

// Publish implements Bus.Publish
func (b *RedisBus) Publish(ctx context.Context, msg *Message) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrBusClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal bus message: %w", err)
	}
	return b.client.Publish(ctx, b.topic, data).Err()
}

// Subscribe implements Bus.Subscribe
func (b *RedisBus) Subscribe(_ context.Context) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	sub := &redisSubscription{
		bus:   b,
		queue: make(chan *Message, subscriberQueueSize),
	}
	b.subs[sub] = struct{}{}
	return sub, nil
}

// Close closes the Redis bus and all subscriptions.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.queue)
		delete(b.subs, sub)
	}
	b.mu.Unlock()

	if err := b.pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close pubsub: %w", err)
	}
	return b.client.Close()
}

type redisSubscription struct {
	bus       *RedisBus
	queue     chan *Message
	closeOnce sync.Once
}

var _ Subscription = (*redisSubscription)(nil)

// C implements Subscription.C
func (s *redisSubscription) C() <-chan *Message {
	return s.queue
}

// Close implements Subscription.Close
func (s *redisSubscription) Close() {
	s.closeOnce.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if _, ok := s.bus.subs[s]; ok {
			delete(s.bus.subs, s)
			close(s.queue)
		}
	})
}
