package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/lingopeer/realtime/internal/domain"
	"github.com/lingopeer/realtime/internal/hub"
	"github.com/lingopeer/realtime/internal/presence"
	"github.com/lingopeer/realtime/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthenticator struct {
	users map[string]*domain.User
}

func (a *fakeAuthenticator) Authenticate(ctx context.Context, raw string) (*domain.User, error) {
	if user, ok := a.users[raw]; ok {
		return user, nil
	}
	return nil, domain.ErrExpiredCredential
}

type fakeAuthorizer struct {
	allowed map[string]bool // "<userID>/<chatID>"
}

func (a *fakeAuthorizer) CanJoin(ctx context.Context, userID domain.UserID, chatID string) (bool, error) {
	return a.allowed[string(userID)+"/"+chatID], nil
}

type fakeMessageStore struct {
	mu        sync.Mutex
	created   []*domain.Message
	rejection *domain.Rejection
	err       error
}

func (m *fakeMessageStore) Create(ctx context.Context, chatID string, sender *domain.User, text string, attachment *domain.Attachment) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejection != nil {
		return nil, m.rejection
	}
	if m.err != nil {
		return nil, m.err
	}
	msg := &domain.Message{
		ID:         fmt.Sprintf("message:%d", len(m.created)+1),
		ChatID:     chatID,
		SenderID:   sender.ID,
		SenderSlug: sender.Slug,
		Text:       text,
		Attachment: attachment,
		CreatedAt:  time.Now().UTC(),
	}
	m.created = append(m.created, msg)
	return msg, nil
}

func (m *fakeMessageStore) createdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

type testEnv struct {
	hub      *hub.Hub
	tracker  *presence.Tracker
	messages *fakeMessageStore
	gateway  *Gateway
}

var (
	testAlice = &domain.User{ID: "user:alice", Slug: "alice", Name: "Alice"}
	testBob   = &domain.User{ID: "user:bob", Slug: "bob", Name: "Bob"}
	testCarol = &domain.User{ID: "user:carol", Slug: "carol", Name: "Carol"}
)

func newTestEnv() *testEnv {
	h := hub.New()
	env := &testEnv{
		hub:      h,
		tracker:  presence.NewTracker(),
		messages: &fakeMessageStore{},
	}
	env.gateway = New(h, env.tracker,
		&fakeAuthenticator{users: map[string]*domain.User{
			"Token alice-token": testAlice,
			"Token bob-token":   testBob,
			"Token carol-token": testCarol,
		}},
		&fakeAuthorizer{allowed: map[string]bool{
			"user:alice/42": true,
			"user:bob/42":   true,
			"user:carol/7":  true,
		}},
		env.messages,
	)
	return env
}

// connect runs serve in the background and returns the client side of the
// transport plus a channel that closes when serve returns.
func (env *testEnv) connect(t *testing.T, chatID, credential string) (*fakeTransport, chan struct{}) {
	t.Helper()
	transport := newFakeTransport()
	done := make(chan struct{})
	go func() {
		defer close(done)
		env.gateway.serve(context.Background(), transport, chatID, credential)
	}()
	return transport, done
}

func sendFrame(t *testing.T, transport *fakeTransport, text string) {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"type": wire.TypeChatMessage, "message": text})
	require.NoError(t, err)
	transport.in <- payload
}

func waitClosed(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not shut down")
	}
}

func TestServe_UnauthenticatedConnectionNeverRegisters(t *testing.T) {
	env := newTestEnv()
	transport, done := env.connect(t, "42", "Token wrong")
	waitClosed(t, done)

	closed, code, _ := transport.closeStatus()
	assert.True(t, closed)
	assert.Equal(t, websocket.StatusPolicyViolation, code)
	assert.Equal(t, 0, env.hub.Rooms(), "a refused connection must leave no trace in the hub")
	assert.Empty(t, transport.written())
}

func TestServe_NonMemberIsRefused(t *testing.T) {
	env := newTestEnv()
	// Carol authenticates fine but is not a member of chat 42.
	transport, done := env.connect(t, "42", "Token carol-token")
	waitClosed(t, done)

	closed, code, _ := transport.closeStatus()
	assert.True(t, closed)
	assert.Equal(t, websocket.StatusPolicyViolation, code)
	assert.Equal(t, 0, env.hub.Rooms())
}

func TestServe_PersistThenBroadcast(t *testing.T) {
	env := newTestEnv()
	alice, aliceDone := env.connect(t, "42", "Token alice-token")
	bob, bobDone := env.connect(t, "42", "Token bob-token")

	require.Eventually(t, func() bool {
		return env.hub.Subscribers(domain.RoomKeyForChat("42")) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, env.tracker.IsOnline(testAlice.ID), "handshake counts as activity")

	sendFrame(t, alice, "hallo bob")

	// Both room members get the broadcast, the sender included.
	for _, transport := range []*fakeTransport{alice, bob} {
		require.Eventually(t, func() bool {
			return len(transport.written()) == 1
		}, 2*time.Second, 10*time.Millisecond)
	}
	assert.Equal(t, 1, env.messages.createdCount(), "the message is written before any broadcast")

	event, err := wire.DecodeEvent(bob.written()[0])
	require.NoError(t, err)
	chat, ok := event.(domain.ChatMessageEvent)
	require.True(t, ok)
	assert.Equal(t, "hallo bob", chat.Message.Text)
	assert.Equal(t, testAlice.ID, chat.Message.SenderID)

	close(alice.in)
	close(bob.in)
	waitClosed(t, aliceDone)
	waitClosed(t, bobDone)
	assert.Equal(t, 0, env.hub.Rooms(), "teardown unsubscribes everyone")
}

func TestServe_RoomsAreIsolated(t *testing.T) {
	env := newTestEnv()
	alice, aliceDone := env.connect(t, "42", "Token alice-token")
	carol, carolDone := env.connect(t, "7", "Token carol-token")

	require.Eventually(t, func() bool {
		return env.hub.Subscribers(domain.RoomKeyForChat("42")) == 1 &&
			env.hub.Subscribers(domain.RoomKeyForChat("7")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sendFrame(t, alice, "nur fuer raum 42")

	require.Eventually(t, func() bool {
		return len(alice.written()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, carol.written(), "other rooms see nothing")

	close(alice.in)
	close(carol.in)
	waitClosed(t, aliceDone)
	waitClosed(t, carolDone)
}

func TestServe_BlockedSenderGetsErrorFrameOnly(t *testing.T) {
	env := newTestEnv()
	env.messages.rejection = &domain.Rejection{Reason: domain.RejectionSenderBlocked}

	alice, aliceDone := env.connect(t, "42", "Token alice-token")
	bob, bobDone := env.connect(t, "42", "Token bob-token")

	require.Eventually(t, func() bool {
		return env.hub.Subscribers(domain.RoomKeyForChat("42")) == 2
	}, 2*time.Second, 10*time.Millisecond)

	sendFrame(t, alice, "du siehst das nie")

	require.Eventually(t, func() bool {
		return len(alice.written()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	var frame wire.ErrorFrame
	require.NoError(t, json.Unmarshal(alice.written()[0], &frame))
	assert.Equal(t, wire.TypeError, frame.Type)
	assert.Equal(t, string(domain.RejectionSenderBlocked), frame.Code)

	assert.Empty(t, bob.written(), "a rejected message reaches nobody else")
	assert.Equal(t, 2, env.hub.Subscribers(domain.RoomKeyForChat("42")), "a rejection does not cost the sender the connection")

	close(alice.in)
	close(bob.in)
	waitClosed(t, aliceDone)
	waitClosed(t, bobDone)
}

func TestServe_StoreErrorProducesErrorFrame(t *testing.T) {
	env := newTestEnv()
	env.messages.err = errors.New("db unavailable")

	alice, done := env.connect(t, "42", "Token alice-token")
	require.Eventually(t, func() bool {
		return env.hub.Subscribers(domain.RoomKeyForChat("42")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sendFrame(t, alice, "hallo")

	require.Eventually(t, func() bool {
		return len(alice.written()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	var frame wire.ErrorFrame
	require.NoError(t, json.Unmarshal(alice.written()[0], &frame))
	assert.Equal(t, "internal_error", frame.Code)

	close(alice.in)
	waitClosed(t, done)
}

func TestServe_MalformedFramesThenAbuseClose(t *testing.T) {
	env := newTestEnv()
	alice, done := env.connect(t, "42", "Token alice-token")
	require.Eventually(t, func() bool {
		return env.hub.Subscribers(domain.RoomKeyForChat("42")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The frames before the threshold each earn an error frame back.
	for i := 0; i < maxDecodeErrors-1; i++ {
		alice.in <- []byte("{not json")
	}
	require.Eventually(t, func() bool {
		return len(alice.written()) == maxDecodeErrors-1
	}, 2*time.Second, 10*time.Millisecond)

	var frame wire.ErrorFrame
	require.NoError(t, json.Unmarshal(alice.written()[0], &frame))
	assert.Equal(t, wire.TypeError, frame.Type)
	assert.Equal(t, "invalid_frame", frame.Code)

	// The one that crosses the threshold closes the connection instead.
	alice.in <- []byte("{not json")
	waitClosed(t, done)

	closed, code, _ := alice.closeStatus()
	assert.True(t, closed)
	assert.Equal(t, websocket.StatusPolicyViolation, code)
	assert.Equal(t, 0, env.hub.Rooms())
}

func TestServe_ValidFrameResetsDecodeErrorCount(t *testing.T) {
	env := newTestEnv()
	alice, done := env.connect(t, "42", "Token alice-token")
	require.Eventually(t, func() bool {
		return env.hub.Subscribers(domain.RoomKeyForChat("42")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	for round := 0; round < 3; round++ {
		for i := 0; i < maxDecodeErrors-1; i++ {
			alice.in <- []byte("garbage")
		}
		sendFrame(t, alice, "noch da")
	}

	require.Eventually(t, func() bool {
		return env.messages.createdCount() == 3
	}, 2*time.Second, 10*time.Millisecond)
	closed, _, _ := alice.closeStatus()
	assert.False(t, closed, "interleaved valid frames keep the connection open")

	close(alice.in)
	waitClosed(t, done)
}
