package pubsub

// Bus topics used by the realtime core.
const (
	// TopicRoomOutbound carries events destined for the subscribers of a
	// room. The hub consumes this topic, which lets non-connection code
	// paths (REST handlers, background jobs) reach live clients.
	TopicRoomOutbound = "room.events.outbound"

	// TopicPresenceUpdates carries online/offline transitions observed by
	// the presence tracker.
	TopicPresenceUpdates = "presence.updates"
)
