package domain

import "fmt"

// RoomKey identifies a chat's broadcast channel. It is derived from the
// chat's persistent id and treated as opaque everywhere else.
type RoomKey string

// RoomKeyForChat derives the broadcast room key for a chat id.
func RoomKeyForChat(chatID string) RoomKey {
	return RoomKey(fmt.Sprintf("chat:%s", chatID))
}
