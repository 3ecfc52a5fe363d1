package database

import (
	"context"
	"fmt"

	"github.com/lingopeer/realtime/internal/domain"
	"github.com/surrealdb/surrealdb.go"
)

// SurrealUserStore encapsulates user and chat-membership lookups.
type SurrealUserStore struct {
	db *surrealdb.DB
}

// NewSurrealUserStore creates a new SurrealUserStore.
func NewSurrealUserStore(db *surrealdb.DB) *SurrealUserStore {
	return &SurrealUserStore{db: db}
}

// userRow is the projection used by every user query. IDs are cast to
// strings in SurrealQL so the row stays free of driver record types.
type userRow struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (r *userRow) toDomain() *domain.User {
	return &domain.User{ID: domain.UserID(r.ID), Slug: r.Slug, Name: r.Name}
}

// AuthenticateToken resolves an opaque token to its owner. Returns nil, nil
// when the token is unknown; the caller decides what that means.
func (s *SurrealUserStore) AuthenticateToken(ctx context.Context, token string) (*domain.User, error) {
	query := `
		SELECT
			type::string(user.id) AS id,
			user.slug AS slug,
			user.name AS name
		FROM auth_token WHERE key = $key
	`
	row, err := QueryOne[userRow](ctx, s.db, query, map[string]any{"key": token})
	if err != nil {
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return row.toDomain(), nil
}

// FindByID fetches a user by its record id. Returns nil, nil when absent.
func (s *SurrealUserStore) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	query := `SELECT type::string(id) AS id, slug, name FROM type::record($id)`
	row, err := QueryOne[userRow](ctx, s.db, query, map[string]any{"id": string(id)})
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return row.toDomain(), nil
}

// FindBySlug fetches a user by its public slug. Returns nil, nil when absent.
func (s *SurrealUserStore) FindBySlug(ctx context.Context, slug string) (*domain.User, error) {
	query := `SELECT type::string(id) AS id, slug, name FROM user WHERE slug = $slug`
	row, err := QueryOne[userRow](ctx, s.db, query, map[string]any{"slug": slug})
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return row.toDomain(), nil
}

// CanJoin reports whether the user is a member of the chat and not in its
// blocked set. A missing chat yields false without error.
func (s *SurrealUserStore) CanJoin(ctx context.Context, userID domain.UserID, chatID string) (bool, error) {
	query := `
		SELECT type::string(id) AS id FROM type::thing("chat", $chat_id)
		WHERE type::record($user) IN members
		AND type::record($user) NOT IN blocked_users
	`
	params := map[string]any{"chat_id": chatID, "user": string(userID)}
	row, err := QueryOne[struct {
		ID string `json:"id"`
	}](ctx, s.db, query, params)
	if err != nil {
		return false, fmt.Errorf("membership check failed: %w", err)
	}
	return row != nil, nil
}

// IsBlocked reports whether the user sits in the chat's blocked set.
func (s *SurrealUserStore) IsBlocked(ctx context.Context, chatID string, userID domain.UserID) (bool, error) {
	query := `
		SELECT type::record($user) IN blocked_users AS blocked
		FROM type::thing("chat", $chat_id)
	`
	params := map[string]any{"chat_id": chatID, "user": string(userID)}
	row, err := QueryOne[struct {
		Blocked bool `json:"blocked"`
	}](ctx, s.db, query, params)
	if err != nil {
		return false, fmt.Errorf("block check failed: %w", err)
	}
	if row == nil {
		return false, domain.ErrNotFound
	}
	return row.Blocked, nil
}
