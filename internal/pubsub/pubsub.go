package pubsub

import (
	"context"

	"github.com/lingopeer/realtime/internal/domain"
)

// Message is the structure passed between components on the bus.
// Payloads are wire-encoded frames so that bus consumers and websocket
// clients see the same bytes.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "room.events.outbound").
	Topic string
	// RoomKey scopes room-bound messages to one broadcast channel.
	RoomKey domain.RoomKey
	// UserID identifies the user the message concerns, when there is one.
	UserID domain.UserID
	// Payload contains the raw frame data.
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for context.
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the Pub/Sub system.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the Pub/Sub system.
type Subscriber interface {
	// Subscribe starts listening to the given topic, processing messages
	// with the handler. The subscription runs until ctx is canceled.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
