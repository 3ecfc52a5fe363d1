package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/lingopeer/realtime/internal/auth"
	"github.com/lingopeer/realtime/internal/domain"
	"github.com/lingopeer/realtime/internal/hub"
	"github.com/lingopeer/realtime/internal/presence"
	"github.com/lingopeer/realtime/internal/wire"
)

// maxDecodeErrors is how many consecutive malformed frames a client may send
// before the connection is closed for abuse.
const maxDecodeErrors = 5

// Authorizer decides whether a user may join a chat.
type Authorizer interface {
	CanJoin(ctx context.Context, userID domain.UserID, chatID string) (bool, error)
}

// MessageCreator persists an inbound message, or rejects it.
type MessageCreator interface {
	Create(ctx context.Context, chatID string, sender *domain.User, text string, attachment *domain.Attachment) (*domain.Message, error)
}

// Gateway upgrades and runs realtime connections.
type Gateway struct {
	hub      *hub.Hub
	presence *presence.Tracker
	auth     auth.Authenticator
	authz    Authorizer
	messages MessageCreator
	logger   *slog.Logger
}

// New assembles a Gateway from its collaborators.
func New(h *hub.Hub, tracker *presence.Tracker, authenticator auth.Authenticator, authorizer Authorizer, messages MessageCreator) *Gateway {
	return &Gateway{
		hub:      h,
		presence: tracker,
		auth:     authenticator,
		authz:    authorizer,
		messages: messages,
		logger:   slog.Default(),
	}
}

// Handler serves GET /ws/chats/:chatID. The credential travels in the
// Authorization header, or in the token query parameter for browser clients
// that cannot set websocket headers.
func (g *Gateway) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		chatID := c.Param("chatID")
		if chatID == "" {
			return c.String(http.StatusBadRequest, "missing chat id")
		}

		credential := c.Request().Header.Get("Authorization")
		if credential == "" {
			if token := c.QueryParam("token"); token != "" {
				credential = "Bearer " + token
			}
		}

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // In production, check origin.
		})
		if err != nil {
			g.logger.Error("websocket upgrade failed", "error", err)
			return err
		}

		g.serve(c.Request().Context(), newCoderTransport(conn), chatID, credential)
		return nil
	}
}

// serve runs the full connection lifecycle. Authentication and authorization
// happen after the upgrade, so failures close the socket with a policy
// violation status; a connection that never reaches Joined never touches the
// hub.
func (g *Gateway) serve(ctx context.Context, transport Transport, chatID, credential string) {
	session := newSession(transport, g.logger)

	if err := session.transition(StateAuthenticating); err != nil {
		g.logger.Error("session state error", "error", err)
		return
	}

	user, err := g.auth.Authenticate(ctx, credential)
	if err != nil {
		g.logger.Warn("websocket authentication failed", "chat_id", chatID, "error", err)
		_ = transport.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	allowed, err := g.authz.CanJoin(ctx, user.ID, chatID)
	if err != nil {
		g.logger.Error("membership check failed", "chat_id", chatID, "user_id", user.ID, "error", err)
		_ = transport.Close(websocket.StatusInternalError, "membership check failed")
		return
	}
	if !allowed {
		g.logger.Warn("websocket join refused", "chat_id", chatID, "user_id", user.ID)
		_ = transport.Close(websocket.StatusPolicyViolation, domain.ErrUnauthorizedRoom.Error())
		return
	}

	session.user = user
	session.room = domain.RoomKeyForChat(chatID)

	token, err := g.hub.Subscribe(session.room, session)
	if err != nil {
		g.logger.Error("hub subscribe failed", "room", session.room, "error", err)
		_ = transport.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}
	if err := session.transition(StateJoined); err != nil {
		g.hub.Unsubscribe(token)
		g.logger.Error("session state error", "error", err)
		return
	}
	g.presence.Touch(user.ID, time.Now())
	g.logger.Info("websocket joined", "session_id", session.id, "room", session.room, "user_id", user.ID)

	go session.writePump()
	g.readLoop(ctx, session, chatID)

	// Unsubscribe before closing the transport so concurrent publishes stop
	// targeting this session first.
	g.hub.Unsubscribe(token)
	session.Close("connection closed")
	_ = session.transition(StateClosed)
	g.logger.Info("websocket left", "session_id", session.id, "room", session.room, "user_id", user.ID)
}

// readLoop decodes frames in arrival order until the transport fails.
func (g *Gateway) readLoop(ctx context.Context, s *Session, chatID string) {
	decodeErrors := 0
	for {
		payload, err := s.transport.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				g.logger.Info("websocket closed by client", "session_id", s.id)
			} else if !errors.Is(err, io.EOF) {
				g.logger.Debug("websocket read ended", "session_id", s.id, "error", err)
			}
			return
		}

		// Any admitted frame is activity, valid or not.
		g.presence.Touch(s.user.ID, time.Now())

		frame, err := wire.DecodeInbound(payload)
		if err != nil {
			decodeErrors++
			if decodeErrors >= maxDecodeErrors {
				g.logger.Warn("closing connection after repeated malformed frames", "session_id", s.id)
				_ = s.transport.Close(websocket.StatusPolicyViolation, "too many malformed frames")
				return
			}
			_ = s.Send(wire.EncodeError("invalid_frame", err.Error()))
			continue
		}
		decodeErrors = 0

		g.handleMessage(ctx, s, chatID, frame)
	}
}

// handleMessage persists then broadcasts. The broadcast happens only after
// the durable write; rejections go back to the sender alone.
func (g *Gateway) handleMessage(ctx context.Context, s *Session, chatID string, frame *wire.SendMessage) {
	msg, err := g.messages.Create(ctx, chatID, s.user, frame.Text, frame.Attachment)
	if rejection, ok := domain.AsRejection(err); ok {
		g.logger.Info("message rejected", "session_id", s.id, "reason", rejection.Reason)
		_ = s.Send(wire.EncodeError(string(rejection.Reason), rejection.Detail))
		return
	}
	if err != nil {
		g.logger.Error("failed to store message", "session_id", s.id, "error", err)
		_ = s.Send(wire.EncodeError("internal_error", "could not store the message"))
		return
	}

	event := domain.ChatMessageEvent{RoomKey: s.room, Message: *msg}
	if err := g.hub.Publish(s.room, event); err != nil {
		g.logger.Error("broadcast failed", "session_id", s.id, "room", s.room, "error", err)
	}
}
