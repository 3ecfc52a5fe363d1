package hub

import (
	"context"
	"fmt"

	"github.com/lingopeer/realtime/internal/pubsub"
	"github.com/lingopeer/realtime/internal/wire"
)

// AttachOutbound wires the hub to the room.events.outbound bus topic so that
// code with no connection of its own (REST handlers, background jobs) can
// reach a room's live subscribers. Runs until ctx is canceled.
func (h *Hub) AttachOutbound(ctx context.Context, subscriber pubsub.Subscriber) error {
	return subscriber.Subscribe(ctx, pubsub.TopicRoomOutbound, func(ctx context.Context, msg pubsub.Message) error {
		event, err := wire.DecodeEvent(msg.Payload)
		if err != nil {
			return fmt.Errorf("outbound message is not a valid event: %w", err)
		}
		return h.Publish(event.Room(), event)
	})
}
