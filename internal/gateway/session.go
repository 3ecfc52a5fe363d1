// Package gateway owns the websocket edge: it upgrades connections,
// authenticates and authorizes them, and runs the per-connection session
// loop that moves frames between the socket, the stores, and the hub.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/lingopeer/realtime/internal/domain"
)

// State is the lifecycle phase of a connection.
type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateJoined
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateJoined:
		return "joined"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var validTransitions = map[State][]State{
	StateConnecting:     {StateAuthenticating, StateClosing},
	StateAuthenticating: {StateJoined, StateClosing},
	StateJoined:         {StateClosing},
	StateClosing:        {StateClosed},
}

// ErrInvalidTransition reports a lifecycle move the state machine forbids.
var ErrInvalidTransition = errors.New("invalid session state transition")

// Transport abstracts the websocket so the session loop is testable without
// a live socket.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, payload []byte) error
	Close(code websocket.StatusCode, reason string) error
}

const (
	sendBufferSize = 256
	writeTimeout   = 10 * time.Second
)

// Session is one live connection. It satisfies the hub's connection handle
// contract: Send queues a payload for the write pump, Close tears the
// session down.
type Session struct {
	id        string
	user      *domain.User
	room      domain.RoomKey
	transport Transport

	mu    sync.Mutex
	state State

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	logger *slog.Logger
}

func newSession(transport Transport, logger *slog.Logger) *Session {
	return &Session{
		id:        uuid.NewString(),
		transport: transport,
		state:     StateConnecting,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		logger:    logger,
	}
}

func (s *Session) ID() string { return s.id }

// User returns the authenticated identity, nil before authentication.
func (s *Session) User() *domain.User { return s.user }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, allowed := range validTransitions[s.state] {
		if allowed == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
}

// Send queues a payload for delivery. It never blocks: a full buffer is an
// error, which makes the hub evict this session.
func (s *Session) Send(payload []byte) error {
	select {
	case <-s.done:
		return errors.New("session closed")
	default:
	}

	select {
	case s.send <- payload:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Close shuts the session down. Safe to call from any goroutine and more
// than once; closing the transport unblocks the read loop, which finishes
// the teardown.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.state != StateClosed {
			s.state = StateClosing
		}
		s.mu.Unlock()
		close(s.done)
		if err := s.transport.Close(websocket.StatusNormalClosure, reason); err != nil {
			s.logger.Debug("transport close", "session_id", s.id, "error", err)
		}
	})
}

// writePump drains the send buffer onto the transport with a bounded write
// timeout. A failed write ends the pump; the hub notices on its next
// delivery attempt.
func (s *Session) writePump() {
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := s.transport.Write(ctx, payload)
			cancel()
			if err != nil {
				s.logger.Error("websocket write failed", "session_id", s.id, "error", err)
				return
			}
		}
	}
}
