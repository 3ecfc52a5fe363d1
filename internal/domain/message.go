package domain

import "time"

const (
	// MaxMessageTextLength bounds the text of a single chat message.
	MaxMessageTextLength = 10000

	// MaxAttachmentBytes bounds the declared size of a message attachment.
	MaxAttachmentBytes = 20 * 1024 * 1024
)

// Attachment describes a file attached to a message. The realtime core only
// carries attachment metadata; the bytes live with the storage collaborator.
type Attachment struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Size   int64  `json:"size"`
}

// Message is a persisted chat message as returned by the message store.
type Message struct {
	ID         string      `json:"id"`
	ChatID     string      `json:"chat_id"`
	SenderID   UserID      `json:"sender_id"`
	SenderSlug string      `json:"sender_slug"`
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
