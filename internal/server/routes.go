package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lingopeer/realtime/internal/domain"
	"github.com/lingopeer/realtime/internal/middleware"
	"github.com/lingopeer/realtime/internal/pubsub"
	"github.com/lingopeer/realtime/internal/wire"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	authRequired := middleware.Auth(s.authenticator, s.Tracker)
	rateLimiter := middleware.RateLimiter()

	s.E.GET("/ws/chats/:chatID", s.gateway.Handler())

	s.E.POST("/chats/:chatID/block/:userSlug", s.blockUser(true), authRequired, rateLimiter)
	s.E.POST("/chats/:chatID/unblock/:userSlug", s.blockUser(false), authRequired, rateLimiter)

	s.E.GET("/users/:userID/presence", s.userPresence, authRequired)

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}

// blockUser updates a chat's blocked set and announces the change to the
// chat's live subscribers through the bus.
func (s *Server) blockUser(block bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		chatID := c.Param("chatID")
		slug := c.Param("userSlug")
		ctx := c.Request().Context()

		target, err := s.users.FindBySlug(ctx, slug)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "user lookup failed")
		}
		if target == nil {
			return echo.NewHTTPError(http.StatusNotFound, "no such user")
		}

		apply := s.blocks.Block
		if !block {
			apply = s.blocks.Unblock
		}
		if err := apply(ctx, chatID, target.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "no such chat")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "block update failed")
		}

		s.announceBlockChange(ctx, chatID, target.Slug, block)

		return c.JSON(http.StatusOK, map[string]any{
			"chat_id": chatID,
			"user":    target.Slug,
			"blocked": block,
		})
	}
}

func (s *Server) announceBlockChange(ctx context.Context, chatID, slug string, blocked bool) {
	room := domain.RoomKeyForChat(chatID)
	payload, err := wire.EncodeEvent(domain.BlockStatusChangedEvent{
		RoomKey:  room,
		UserSlug: slug,
		Blocked:  blocked,
	})
	if err != nil {
		slog.Error("failed to encode block event", "chat_id", chatID, "error", err)
		return
	}

	msg := pubsub.Message{
		Topic:   pubsub.TopicRoomOutbound,
		RoomKey: room,
		Payload: payload,
	}
	if err := s.bridge.Publish(ctx, msg); err != nil {
		slog.Error("failed to publish block event", "chat_id", chatID, "error", err)
	}
}

// userPresence reports the online status derived from the last-seen record.
// Never seen is a valid answer, not an error.
func (s *Server) userPresence(c echo.Context) error {
	userID := domain.UserID(c.Param("userID"))

	response := map[string]any{
		"user_id":   userID,
		"is_online": s.Tracker.IsOnline(userID),
	}
	if seen, ok := s.Tracker.LastSeen(userID); ok {
		response["last_seen"] = seen.UTC().Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, response)
}
