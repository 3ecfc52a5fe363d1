// Package auth validates the credentials presented on a realtime handshake.
// Two schemes are accepted: a long-lived opaque token looked up in the user
// store ("Token <key>") and a short-lived signed access token
// ("Bearer <jwt>"). Either resolves to a known user or the connection is
// refused; there is no anonymous fallback.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/lingopeer/realtime/internal/domain"
)

// Authenticator resolves raw credential material to a user identity.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*domain.User, error)
}

// UserSource is the slice of the user store the authenticators need.
type UserSource interface {
	AuthenticateToken(ctx context.Context, token string) (*domain.User, error)
	FindByID(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// SchemeRouter dispatches on the credential scheme prefix. "Token" goes to
// the opaque-token path, "Bearer" to the signed-token path.
type SchemeRouter struct {
	opaque Authenticator
	signed Authenticator
}

// NewSchemeRouter builds the router over the two scheme authenticators.
func NewSchemeRouter(opaque, signed Authenticator) *SchemeRouter {
	return &SchemeRouter{opaque: opaque, signed: signed}
}

// Authenticate expects the full header value, e.g. "Bearer eyJ..." or
// "Token 9c41...".
func (r *SchemeRouter) Authenticate(ctx context.Context, raw string) (*domain.User, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, domain.ErrMissingCredential
	}

	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: expected '<scheme> <credential>'", domain.ErrMalformedCredential)
	}

	scheme, credential := parts[0], parts[1]
	switch scheme {
	case "Token":
		return r.opaque.Authenticate(ctx, credential)
	case "Bearer":
		return r.signed.Authenticate(ctx, credential)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", domain.ErrMalformedCredential, scheme)
	}
}
