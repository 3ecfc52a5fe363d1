// Package server wires the realtime service together and exposes it over
// HTTP: the websocket endpoint, the block management endpoints, and the
// presence read endpoint.
package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lingopeer/realtime/internal/auth"
	"github.com/lingopeer/realtime/internal/config"
	"github.com/lingopeer/realtime/internal/database"
	"github.com/lingopeer/realtime/internal/gateway"
	"github.com/lingopeer/realtime/internal/hub"
	"github.com/lingopeer/realtime/internal/logging"
	"github.com/lingopeer/realtime/internal/presence"
	"github.com/lingopeer/realtime/internal/pubsub"
	"github.com/surrealdb/surrealdb.go"
)

// Server holds the dependencies for the realtime service.
type Server struct {
	E       *echo.Echo
	DB      *surrealdb.DB
	Cfg     *config.Config
	Hub     *hub.Hub
	Tracker *presence.Tracker

	bridge        *pubsub.WatermillBridge
	users         *database.SurrealUserStore
	blocks        *database.SurrealBlockStore
	messages      *database.SurrealMessageStore
	gateway       *gateway.Gateway
	authenticator auth.Authenticator

	// cancel stops the bus consumers on shutdown.
	cancel context.CancelFunc
}

// New creates a new Server instance.
func New() *Server {
	logging.New() // Initialize the structured logger
	cfg := config.New()

	db, err := database.NewDB(context.Background(), cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	bridge := pubsub.NewWatermillBridge()
	tracker := presence.NewTracker(
		presence.WithTTL(cfg.OnlineTTL),
		presence.WithPublisher(bridge),
	)
	h := hub.New()

	ctx, cancel := context.WithCancel(context.Background())
	if err := h.AttachOutbound(ctx, bridge); err != nil {
		slog.Error("Failed to attach hub to message bus", "error", err)
		cancel()
		os.Exit(1)
	}

	users := database.NewSurrealUserStore(db)
	messages := database.NewSurrealMessageStore(db)
	blocks := database.NewSurrealBlockStore(db)

	authenticator := auth.NewSchemeRouter(
		auth.NewTokenAuthenticator(users),
		auth.NewJWTAuthenticator([]byte(cfg.JWTSecret), users),
	)

	gw := gateway.New(h, tracker, authenticator, users, messages)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	return &Server{
		E:             e,
		DB:            db,
		Cfg:           cfg,
		Hub:           h,
		Tracker:       tracker,
		bridge:        bridge,
		users:         users,
		blocks:        blocks,
		messages:      messages,
		gateway:       gw,
		authenticator: authenticator,
		cancel:        cancel,
	}
}
