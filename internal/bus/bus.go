// Package bus is the broadcast channel connecting the requesting page, the
// session broker and the per-tab locators. It mirrors the extension runtime
// messaging model: every subscriber sees every message, and a subscriber
// that does not recognize a message must leave it for the others. All
// correlation is done by topic and token filtering on the subscriber side.
package bus

import (
	"context"
	"encoding/json"
	"errors"
)

// Message is one envelope on the bus.
type Message struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// NewMessage marshals v into a Message for the given topic.
func NewMessage(topic string, v any) (*Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Message{Topic: topic, Data: data}, nil
}

// Decode unmarshals the message payload into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// Subscription is one listener on the bus. Closing it deregisters the
// listener; Close is safe to call more than once.
type Subscription interface {
	// C returns the channel on which broadcast messages are delivered.
	C() <-chan *Message

	// Close deregisters the subscription and closes its channel.
	Close()
}

// Bus fans every published message out to all current subscribers.
type Bus interface {
	// Publish broadcasts a message to every subscriber.
	Publish(ctx context.Context, msg *Message) error

	// Subscribe registers a new listener.
	Subscribe(ctx context.Context) (Subscription, error)

	// Close shuts the bus down and closes all subscriptions.
	Close() error
}

// ErrBusClosed is returned when publishing on a closed bus.
var ErrBusClosed = errors.New("bus is closed")
