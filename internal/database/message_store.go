package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lingopeer/realtime/internal/domain"
	"github.com/surrealdb/surrealdb.go"
)

// SurrealMessageStore persists chat messages and enforces the write-side
// rules: payload caps, the sender's block status, and the no-attachment-
// before-first-message rule.
type SurrealMessageStore struct {
	db  *surrealdb.DB
	now func() time.Time
}

// NewSurrealMessageStore creates a new SurrealMessageStore.
func NewSurrealMessageStore(db *surrealdb.DB) *SurrealMessageStore {
	return &SurrealMessageStore{db: db, now: time.Now}
}

// Create validates and stores a message. Policy failures come back as a
// *domain.Rejection so the caller can report them to the sender without
// tearing the connection down.
func (s *SurrealMessageStore) Create(ctx context.Context, chatID string, sender *domain.User, text string, attachment *domain.Attachment) (*domain.Message, error) {
	if len(text) > domain.MaxMessageTextLength {
		return nil, &domain.Rejection{
			Reason: domain.RejectionPayloadTooLarge,
			Detail: fmt.Sprintf("message exceeds %d characters", domain.MaxMessageTextLength),
		}
	}
	if attachment != nil && attachment.Size > domain.MaxAttachmentBytes {
		return nil, &domain.Rejection{
			Reason: domain.RejectionPayloadTooLarge,
			Detail: fmt.Sprintf("attachment exceeds %d bytes", domain.MaxAttachmentBytes),
		}
	}

	blocked, err := s.senderBlocked(ctx, chatID, sender.ID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, &domain.Rejection{Reason: domain.RejectionSenderBlocked}
	}

	if attachment != nil {
		empty, err := s.chatIsEmpty(ctx, chatID)
		if err != nil {
			return nil, err
		}
		if empty {
			return nil, &domain.Rejection{
				Reason: domain.RejectionAttachmentFirst,
				Detail: "send a text message before sharing files",
			}
		}
	}

	msg := &domain.Message{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		SenderID:   sender.ID,
		SenderSlug: sender.Slug,
		Text:       text,
		Attachment: attachment,
		CreatedAt:  s.now().UTC(),
	}

	query := `
		CREATE type::thing("message", $id) CONTENT {
			chat: type::thing("chat", $chat_id),
			sender: type::record($sender),
			sender_slug: $sender_slug,
			text: $text,
			attachment: $attachment,
			created_at: <datetime> $created_at
		}
	`
	params := map[string]any{
		"id":          msg.ID,
		"chat_id":     chatID,
		"sender":      string(sender.ID),
		"sender_slug": sender.Slug,
		"text":        text,
		"attachment":  attachment,
		"created_at":  msg.CreatedAt.Format(time.RFC3339Nano),
	}
	if err := Execute(ctx, s.db, query, params); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	return msg, nil
}

// senderBlocked folds the chat-exists check into the block check: a missing
// chat surfaces as RejectionChatNotFound.
func (s *SurrealMessageStore) senderBlocked(ctx context.Context, chatID string, senderID domain.UserID) (bool, error) {
	query := `
		SELECT type::record($user) IN blocked_users AS blocked
		FROM type::thing("chat", $chat_id)
	`
	params := map[string]any{"chat_id": chatID, "user": string(senderID)}
	row, err := QueryOne[struct {
		Blocked bool `json:"blocked"`
	}](ctx, s.db, query, params)
	if err != nil {
		return false, fmt.Errorf("block check failed: %w", err)
	}
	if row == nil {
		return false, &domain.Rejection{Reason: domain.RejectionChatNotFound}
	}
	return row.Blocked, nil
}

func (s *SurrealMessageStore) chatIsEmpty(ctx context.Context, chatID string) (bool, error) {
	query := `
		SELECT count() AS total FROM message
		WHERE chat = type::thing("chat", $chat_id)
		GROUP ALL
	`
	row, err := QueryOne[struct {
		Total int `json:"total"`
	}](ctx, s.db, query, map[string]any{"chat_id": chatID})
	if err != nil {
		return false, fmt.Errorf("message count failed: %w", err)
	}
	// GROUP ALL over zero rows yields no result at all.
	return row == nil || row.Total == 0, nil
}
