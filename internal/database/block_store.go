package database

import (
	"context"
	"fmt"

	"github.com/lingopeer/realtime/internal/domain"
	"github.com/surrealdb/surrealdb.go"
)

// SurrealBlockStore mutates a chat's blocked_users set.
type SurrealBlockStore struct {
	db *surrealdb.DB
}

// NewSurrealBlockStore creates a new SurrealBlockStore.
func NewSurrealBlockStore(db *surrealdb.DB) *SurrealBlockStore {
	return &SurrealBlockStore{db: db}
}

// Block adds the user to the chat's blocked set. Adding twice is a no-op.
func (s *SurrealBlockStore) Block(ctx context.Context, chatID string, userID domain.UserID) error {
	query := `
		UPDATE type::thing("chat", $chat_id)
		SET blocked_users = array::union(blocked_users, [type::record($user)])
	`
	return s.apply(ctx, query, chatID, userID)
}

// Unblock removes the user from the chat's blocked set. Removing an absent
// user is a no-op.
func (s *SurrealBlockStore) Unblock(ctx context.Context, chatID string, userID domain.UserID) error {
	query := `
		UPDATE type::thing("chat", $chat_id)
		SET blocked_users -= type::record($user)
	`
	return s.apply(ctx, query, chatID, userID)
}

func (s *SurrealBlockStore) apply(ctx context.Context, query, chatID string, userID domain.UserID) error {
	params := map[string]any{"chat_id": chatID, "user": string(userID)}
	rows, err := Query[struct {
		ID any `json:"id"`
	}](ctx, s.db, query, params)
	if err != nil {
		return fmt.Errorf("block update failed: %w", err)
	}
	// UPDATE on a missing record updates nothing.
	if len(rows) == 0 {
		return domain.ErrNotFound
	}
	return nil
}
