package auth

import (
	"context"
	"fmt"

	"github.com/lingopeer/realtime/internal/domain"
)

// TokenAuthenticator validates long-lived opaque tokens against the user
// store.
type TokenAuthenticator struct {
	users UserSource
}

// NewTokenAuthenticator creates the opaque-token authenticator.
func NewTokenAuthenticator(users UserSource) *TokenAuthenticator {
	return &TokenAuthenticator{users: users}
}

// Authenticate looks the token up in the store. An unknown token is an
// expired/invalid credential, not an infrastructure error.
func (a *TokenAuthenticator) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	user, err := a.users.AuthenticateToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}
	if user == nil {
		return nil, domain.ErrExpiredCredential
	}
	return user, nil
}
