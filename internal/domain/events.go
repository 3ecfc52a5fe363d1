package domain

import "time"

// Event is the union of everything the broadcast hub can fan out to the
// subscribers of a room. Events are transient: constructed, published,
// discarded.
type Event interface {
	Room() RoomKey
}

// ChatMessageEvent announces a newly persisted message to a room.
type ChatMessageEvent struct {
	RoomKey RoomKey `json:"room_key"`
	Message Message `json:"message"`
}

func (e ChatMessageEvent) Room() RoomKey { return e.RoomKey }

// PresenceChangedEvent announces that a user's online status flipped.
type PresenceChangedEvent struct {
	RoomKey  RoomKey   `json:"room_key,omitempty"`
	UserID   UserID    `json:"user_id"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

func (e PresenceChangedEvent) Room() RoomKey { return e.RoomKey }

// BlockStatusChangedEvent tells live subscribers of a room that a member was
// blocked or unblocked, typically triggered by a REST call outside the
// gateway.
type BlockStatusChangedEvent struct {
	RoomKey  RoomKey `json:"room_key"`
	UserSlug string  `json:"user_slug"`
	Blocked  bool    `json:"blocked"`
}

func (e BlockStatusChangedEvent) Room() RoomKey { return e.RoomKey }
