package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lingopeer/realtime/internal/domain"
)

// JWTAuthenticator validates short-lived HMAC-signed access tokens carrying
// a user_id claim.
type JWTAuthenticator struct {
	secret []byte
	users  UserSource
}

// NewJWTAuthenticator creates the signed-token authenticator.
func NewJWTAuthenticator(secret []byte, users UserSource) *JWTAuthenticator {
	return &JWTAuthenticator{secret: secret, users: users}
}

type accessClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Authenticate parses and verifies the token, then resolves the user_id
// claim against the store. The token must be signed with the configured
// secret and not expired.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domain.ErrExpiredCredential
	case err != nil:
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCredential, err)
	case !parsed.Valid:
		return nil, domain.ErrExpiredCredential
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token has no user_id claim", domain.ErrMalformedCredential)
	}

	user, err := a.users.FindByID(ctx, domain.UserID(claims.UserID))
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	if user == nil {
		return nil, domain.ErrExpiredCredential
	}
	return user, nil
}
