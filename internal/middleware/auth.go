package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lingopeer/realtime/internal/auth"
	"github.com/lingopeer/realtime/internal/presence"
)

const UserContextKey = "user"

// Auth protects HTTP routes that require an authenticated user. The
// credential travels in the Authorization header using the same schemes as
// the websocket handshake. Every authenticated request counts as activity
// for presence.
func Auth(authenticator auth.Authenticator, tracker *presence.Tracker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := authenticator.Authenticate(c.Request().Context(), c.Request().Header.Get("Authorization"))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "authentication required",
				})
			}

			tracker.Touch(user.ID, time.Now())

			// Store user information in the context for downstream handlers.
			c.Set(UserContextKey, user)
			return next(c)
		}
	}
}
