package wire

import (
	"testing"
	"time"

	"github.com/lingopeer/realtime/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	t.Run("valid chat message", func(t *testing.T) {
		msg, err := DecodeInbound([]byte(`{"type":"chat_message","message":"hi"}`))
		require.NoError(t, err)
		assert.Equal(t, "hi", msg.Text)
		assert.Nil(t, msg.Attachment)
	})

	t.Run("with attachment metadata", func(t *testing.T) {
		raw := `{"type":"chat_message","message":"see file","attachment":{"name":"a.pdf","format":"pdf","size":1024}}`
		msg, err := DecodeInbound([]byte(raw))
		require.NoError(t, err)
		require.NotNil(t, msg.Attachment)
		assert.Equal(t, "a.pdf", msg.Attachment.Name)
		assert.Equal(t, int64(1024), msg.Attachment.Size)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := DecodeInbound([]byte("not json at all"))
		assert.ErrorIs(t, err, ErrInvalidFrame)
	})

	t.Run("unknown type tag", func(t *testing.T) {
		_, err := DecodeInbound([]byte(`{"type":"presence_update"}`))
		assert.ErrorIs(t, err, ErrUnknownType)
	})

	t.Run("empty message text", func(t *testing.T) {
		_, err := DecodeInbound([]byte(`{"type":"chat_message","message":""}`))
		assert.ErrorIs(t, err, ErrInvalidFrame)
	})
}

func TestEventRoundTrip(t *testing.T) {
	createdAt := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)

	events := []domain.Event{
		domain.ChatMessageEvent{
			RoomKey: domain.RoomKeyForChat("42"),
			Message: domain.Message{
				ID:         "message:1",
				ChatID:     "42",
				SenderID:   "user:alice",
				SenderSlug: "alice",
				Text:       "hi",
				CreatedAt:  createdAt,
			},
		},
		domain.ChatMessageEvent{
			RoomKey: domain.RoomKeyForChat("42"),
			Message: domain.Message{
				ID:         "message:2",
				ChatID:     "42",
				SenderID:   "user:bob",
				SenderSlug: "bob",
				Text:       "photo",
				Attachment: &domain.Attachment{Name: "p.png", Format: "png", Size: 2048},
				CreatedAt:  createdAt,
			},
		},
		domain.PresenceChangedEvent{
			UserID:   "user:alice",
			Online:   true,
			LastSeen: createdAt,
		},
		domain.BlockStatusChangedEvent{
			RoomKey:  domain.RoomKeyForChat("7"),
			UserSlug: "bob",
			Blocked:  true,
		},
	}

	for _, original := range events {
		data, err := EncodeEvent(original)
		require.NoError(t, err)

		decoded, err := DecodeEvent(data)
		require.NoError(t, err)
		assert.Equal(t, original, decoded)
	}
}

func TestDecodeEventUnknownType(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type":"nope"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestEncodeError(t *testing.T) {
	data := EncodeError("sender_blocked", "you are blocked in this chat")
	decoded, err := DecodeEvent(data)
	assert.Nil(t, decoded)
	assert.ErrorIs(t, err, ErrUnknownType) // error frames are not events

	assert.JSONEq(t,
		`{"type":"error","code":"sender_blocked","reason":"you are blocked in this chat"}`,
		string(data))
}
