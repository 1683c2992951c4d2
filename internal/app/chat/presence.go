// internal/app/chat/presence.go
package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/studychat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultTypingTTL is how long a typing indicator survives without a fresh
// signal. Soft state: a missed "stopped typing" simply expires.
const DefaultTypingTTL = 3 * time.Second

// PresenceTracker holds the ephemeral per-group set of currently-typing
// users. Nothing here is persisted; every entry carries a deadline and the
// tracker self-heals by expiry. Expiry is made visible through Sweep so the
// janitor can broadcast the transition, and the clock is injected so tests
// can drive it.
type PresenceTracker struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	deadlines map[primitive.ObjectID]map[string]time.Time // group -> user hex -> expiry
}

// NewPresenceTracker creates a tracker with the given TTL. ttl <= 0 selects
// DefaultTypingTTL; now may be nil for the wall clock.
func NewPresenceTracker(ttl time.Duration, now func() time.Time) *PresenceTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	if now == nil {
		now = time.Now
	}
	return &PresenceTracker{
		ttl:       ttl,
		now:       now,
		deadlines: make(map[primitive.ObjectID]map[string]time.Time),
	}
}

// Touch marks the user as typing in the group and resets their deadline.
// Returns true when this changed the visible typing set (idle -> typing).
func (p *PresenceTracker) Touch(groupID primitive.ObjectID, userID primitive.ObjectID) bool {
	uid := userID.Hex()
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.deadlines[groupID]
	if !ok {
		g = make(map[string]time.Time)
		p.deadlines[groupID] = g
	}
	deadline, had := g[uid]
	g[uid] = now.Add(p.ttl)
	return !had || !deadline.After(now)
}

// Clear drops the user's typing state immediately (message send, disconnect).
// Returns true when an entry existed, including one already past its
// deadline: an expired entry removed here is invisible to the next Sweep,
// so the caller's broadcast is the only corrective snapshot subscribers
// will ever get.
func (p *PresenceTracker) Clear(groupID primitive.ObjectID, userID primitive.ObjectID) bool {
	uid := userID.Hex()

	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.deadlines[groupID]
	if !ok {
		return false
	}
	_, had := g[uid]
	delete(g, uid)
	if len(g) == 0 {
		delete(p.deadlines, groupID)
	}
	return had
}

// TypingUsers returns a point-in-time snapshot of users typing in the group.
// Entries past their deadline are excluded even before the janitor removes
// them. Sorted for stable output.
func (p *PresenceTracker) TypingUsers(groupID primitive.ObjectID) []string {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	users := make([]string, 0)
	for uid, deadline := range p.deadlines[groupID] {
		if deadline.After(now) {
			users = append(users, uid)
		}
	}
	sort.Strings(users)
	return users
}

// Snapshot builds the presence event for a group under the current state.
func (p *PresenceTracker) Snapshot(groupID primitive.ObjectID) models.PresenceEvent {
	return models.PresenceEvent{
		Type:        models.EventPresence,
		GroupID:     groupID,
		TypingUsers: p.TypingUsers(groupID),
	}
}

// Sweep removes expired entries and returns one presence event per group
// whose visible typing set changed. The caller broadcasts them.
func (p *PresenceTracker) Sweep() []models.PresenceEvent {
	now := p.now()

	p.mu.Lock()
	changed := make([]primitive.ObjectID, 0)
	for groupID, g := range p.deadlines {
		dirty := false
		for uid, deadline := range g {
			if !deadline.After(now) {
				delete(g, uid)
				dirty = true
			}
		}
		if len(g) == 0 {
			delete(p.deadlines, groupID)
		}
		if dirty {
			changed = append(changed, groupID)
		}
	}
	p.mu.Unlock()

	events := make([]models.PresenceEvent, 0, len(changed))
	for _, groupID := range changed {
		events = append(events, p.Snapshot(groupID))
	}
	return events
}
