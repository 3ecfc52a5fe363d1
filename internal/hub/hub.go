// Package hub maintains per-room subscriber sets and fans published events
// out to every live connection of a room. Publishers never learn who is
// subscribed; subscribers never learn who published.
package hub

import (
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/lingopeer/realtime/internal/domain"
	"github.com/lingopeer/realtime/internal/wire"
)

// ErrAlreadySubscribedElsewhere is returned when a connection that is
// registered to one room tries to subscribe to another. One socket joins
// exactly one room; the caller must unsubscribe first.
var ErrAlreadySubscribedElsewhere = errors.New("connection is already subscribed to a different room")

// Conn is the hub's view of one live realtime connection: enough to push a
// frame to it or shut it down.
type Conn interface {
	ID() string
	Send(payload []byte) error
	Close(reason string)
}

// Token proves a subscription and is the only way to undo it. Tokens are
// opaque; a stale token makes Unsubscribe a no-op.
type Token struct {
	value string
}

type registration struct {
	token string
	room  domain.RoomKey
	conn  Conn
}

// numBuckets shards rooms so a busy room never serializes publishes to
// unrelated rooms.
const numBuckets = 16

type bucket struct {
	mu    sync.RWMutex
	rooms map[domain.RoomKey]map[string]*registration // connID -> registration
}

// Hub is the per-room broadcast registry.
type Hub struct {
	buckets [numBuckets]*bucket

	// mu guards the cross-room indexes used by subscribe/unsubscribe.
	// Publish never takes it, so fan-out only contends on its room's bucket.
	mu      sync.Mutex
	byConn  map[string]*registration
	byToken map[string]*registration

	logger *slog.Logger
}

// New creates an empty hub.
func New() *Hub {
	h := &Hub{
		byConn:  make(map[string]*registration),
		byToken: make(map[string]*registration),
		logger:  slog.Default().With("service", "hub"),
	}
	for i := range h.buckets {
		h.buckets[i] = &bucket{rooms: make(map[domain.RoomKey]map[string]*registration)}
	}
	return h
}

func (h *Hub) bucketFor(room domain.RoomKey) *bucket {
	hash := fnv.New32a()
	hash.Write([]byte(room))
	return h.buckets[hash.Sum32()%numBuckets]
}

// Subscribe registers the connection under the room. Re-subscribing the same
// connection to the same room is a no-op that returns the existing token.
// A connection registered to a different room gets ErrAlreadySubscribedElsewhere.
func (h *Hub) Subscribe(room domain.RoomKey, conn Conn) (Token, error) {
	h.mu.Lock()
	if existing, ok := h.byConn[conn.ID()]; ok {
		defer h.mu.Unlock()
		if existing.room == room {
			return Token{value: existing.token}, nil
		}
		return Token{}, ErrAlreadySubscribedElsewhere
	}

	reg := &registration{token: uuid.NewString(), room: room, conn: conn}
	h.byConn[conn.ID()] = reg
	h.byToken[reg.token] = reg
	h.mu.Unlock()

	b := h.bucketFor(room)
	b.mu.Lock()
	subs, ok := b.rooms[room]
	if !ok {
		subs = make(map[string]*registration)
		b.rooms[room] = subs
	}
	subs[conn.ID()] = reg
	b.mu.Unlock()

	h.logger.Debug("subscriber registered", "room", room, "conn_id", conn.ID())
	return Token{value: reg.token}, nil
}

// Unsubscribe removes the registration the token proves. Safe to call any
// number of times; stale tokens are ignored.
func (h *Hub) Unsubscribe(token Token) {
	h.mu.Lock()
	reg, ok := h.byToken[token.value]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.byToken, token.value)
	delete(h.byConn, reg.conn.ID())
	h.mu.Unlock()

	h.removeFromBucket(reg)
	h.logger.Debug("subscriber unregistered", "room", reg.room, "conn_id", reg.conn.ID())
}

// removeFromBucket drops the registration from its room set, erasing the
// room entry entirely once the last subscriber leaves. An absent entry means
// "empty room"; empty collections are never kept around.
func (h *Hub) removeFromBucket(reg *registration) {
	b := h.bucketFor(reg.room)
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.rooms[reg.room]
	if !ok {
		return
	}
	if current, ok := subs[reg.conn.ID()]; ok && current == reg {
		delete(subs, reg.conn.ID())
		if len(subs) == 0 {
			delete(b.rooms, reg.room)
		}
	}
}

// Publish delivers the event to every connection currently subscribed to the
// room. Delivery order across subscribers is unspecified. A failing
// subscriber is logged, evicted, and skipped; the rest of the fan-out
// continues.
func (h *Hub) Publish(room domain.RoomKey, event domain.Event) error {
	payload, err := wire.EncodeEvent(event)
	if err != nil {
		return err
	}

	b := h.bucketFor(room)
	b.mu.RLock()
	subs := b.rooms[room]
	snapshot := make([]*registration, 0, len(subs))
	for _, reg := range subs {
		snapshot = append(snapshot, reg)
	}
	b.mu.RUnlock()

	for _, reg := range snapshot {
		if err := reg.conn.Send(payload); err != nil {
			// The subscriber's write path is broken; drop it so it
			// cannot stall the room again.
			h.logger.Warn("delivery failed, evicting subscriber",
				"room", room, "conn_id", reg.conn.ID(), "error", err)
			h.evict(reg)
		}
	}
	return nil
}

// evict removes a registration on behalf of a failed delivery and closes the
// connection. Racing a concurrent Unsubscribe is fine: whoever gets the
// indexes first wins and the loser no-ops.
func (h *Hub) evict(reg *registration) {
	h.mu.Lock()
	if current, ok := h.byToken[reg.token]; !ok || current != reg {
		h.mu.Unlock()
		return
	}
	delete(h.byToken, reg.token)
	delete(h.byConn, reg.conn.ID())
	h.mu.Unlock()

	h.removeFromBucket(reg)
	reg.conn.Close("delivery failure")
}

// Subscribers reports how many connections are registered to the room.
func (h *Hub) Subscribers(room domain.RoomKey) int {
	b := h.bucketFor(room)
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[room])
}

// Rooms reports how many rooms currently hold at least one subscriber.
func (h *Hub) Rooms() int {
	total := 0
	for _, b := range h.buckets {
		b.mu.RLock()
		total += len(b.rooms)
		b.mu.RUnlock()
	}
	return total
}
