// Package presence tracks when users were last active and derives their
// online status. Status is computed at read time from a TTL; records are
// overwritten, never evicted.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lingopeer/realtime/internal/domain"
	"github.com/lingopeer/realtime/internal/pubsub"
	"github.com/lingopeer/realtime/internal/wire"
)

// DefaultOnlineTTL is how long after the last recorded activity a user is
// still reported online.
const DefaultOnlineTTL = 300 * time.Second

// Clock returns the current time. Injected so tests control it.
type Clock func() time.Time

// Tracker records last-seen timestamps per user. Writes are last-write-wins:
// an out-of-order timestamp simply overwrites the stored one.
type Tracker struct {
	mu       sync.RWMutex
	lastSeen map[domain.UserID]time.Time

	ttl       time.Duration
	now       Clock
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTTL overrides the online TTL.
func WithTTL(d time.Duration) Option {
	return func(t *Tracker) { t.ttl = d }
}

// WithClock injects a clock, used by tests to control time.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.now = c }
}

// WithPublisher makes the tracker announce online transitions on the
// presence.updates topic.
func WithPublisher(p pubsub.Publisher) Option {
	return func(t *Tracker) { t.publisher = p }
}

// NewTracker creates a presence tracker with the default TTL and wall clock.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		lastSeen: make(map[domain.UserID]time.Time),
		ttl:      DefaultOnlineTTL,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default().With("service", "presence"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Touch records that the user was active at the given time. A user with no
// prior record, or whose record had gone stale, transitions to online and
// the transition is published.
func (t *Tracker) Touch(userID domain.UserID, at time.Time) {
	t.mu.Lock()
	prev, existed := t.lastSeen[userID]
	t.lastSeen[userID] = at
	t.mu.Unlock()

	wasOnline := existed && at.Sub(prev) < t.ttl
	if !wasOnline {
		t.logger.Debug("user came online", "user_id", userID, "at", at)
		t.publishTransition(userID, true, at)
	}
}

// IsOnline reports whether the user is online right now.
func (t *Tracker) IsOnline(userID domain.UserID) bool {
	return t.IsOnlineAt(userID, t.now())
}

// IsOnlineAt reports whether the user counts as online at the given instant:
// a last-seen record exists and is younger than the TTL. No record means
// "never seen", which is offline, not an error.
func (t *Tracker) IsOnlineAt(userID domain.UserID, now time.Time) bool {
	t.mu.RLock()
	seen, ok := t.lastSeen[userID]
	t.mu.RUnlock()

	return ok && now.Sub(seen) < t.ttl
}

// LastSeen returns the stored last-seen timestamp for display purposes.
func (t *Tracker) LastSeen(userID domain.UserID) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen, ok := t.lastSeen[userID]
	return seen, ok
}

func (t *Tracker) publishTransition(userID domain.UserID, online bool, at time.Time) {
	if t.publisher == nil {
		return
	}

	payload, err := wire.EncodeEvent(domain.PresenceChangedEvent{
		UserID:   userID,
		Online:   online,
		LastSeen: at,
	})
	if err != nil {
		t.logger.Error("failed to encode presence event", "user_id", userID, "error", err)
		return
	}

	msg := pubsub.Message{
		Topic:   pubsub.TopicPresenceUpdates,
		UserID:  userID,
		Payload: payload,
	}
	if err := t.publisher.Publish(context.Background(), msg); err != nil {
		t.logger.Error("failed to publish presence update", "user_id", userID, "error", err)
	}
}
