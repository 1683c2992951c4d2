// internal/app/chat/broadcaster.go
package chat

import (
	"sync"

	"github.com/dalemusser/studychat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultSubscriberBuffer is the per-subscription event buffer used when the
// configured value is zero.
const DefaultSubscriberBuffer = 64

// Subscription is one listener on a group's event stream. Events arrive on C
// in the order they were published for that group. The channel is closed by
// Unsubscribe (or Broadcaster.Close); it is never closed mid-delivery.
type Subscription struct {
	GroupID primitive.ObjectID
	C       <-chan models.ChatEvent

	ch      chan models.ChatEvent
	b       *Broadcaster
	closeMu sync.Mutex
	closed  bool
}

// Broadcaster fans events out to every subscription on a group. Delivery is
// best-effort: a subscriber whose buffer is full has the event dropped and
// recovers it from message history. Each group serializes its publishes so
// delivery order matches commit order; groups never block each other.
type Broadcaster struct {
	mu     sync.RWMutex
	topics map[primitive.ObjectID]*topic
	buffer int
	log    *zap.Logger
	closed bool
}

type topic struct {
	mu   sync.Mutex // held for the whole fan-out: enqueue order == publish order
	subs map[*Subscription]struct{}
}

// NewBroadcaster creates a broadcaster whose subscriptions buffer up to
// buffer events. buffer <= 0 selects DefaultSubscriberBuffer.
func NewBroadcaster(buffer int, log *zap.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		topics: make(map[primitive.ObjectID]*topic),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a listener on the group. Authorization is the caller's
// responsibility; the broadcaster is internal plumbing and trusts its callers.
func (b *Broadcaster) Subscribe(groupID primitive.ObjectID) *Subscription {
	sub := &Subscription{
		GroupID: groupID,
		ch:      make(chan models.ChatEvent, b.buffer),
		b:       b,
	}
	sub.C = sub.ch

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		sub.closed = true
		return sub
	}
	t, ok := b.topics[groupID]
	if !ok {
		t = &topic{subs: make(map[*Subscription]struct{})}
		b.topics[groupID] = t
	}
	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Safe to call
// more than once; every disconnect path must reach it.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.RLock()
	t, ok := b.topics[sub.GroupID]
	b.mu.RUnlock()
	if ok {
		t.mu.Lock()
		delete(t.subs, sub)
		empty := len(t.subs) == 0
		t.mu.Unlock()

		if empty {
			b.mu.Lock()
			if t2, still := b.topics[sub.GroupID]; still && t2 == t {
				t.mu.Lock()
				if len(t.subs) == 0 {
					delete(b.topics, sub.GroupID)
				}
				t.mu.Unlock()
			}
			b.mu.Unlock()
		}
	}

	sub.closeMu.Lock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	sub.closeMu.Unlock()
}

// Publish fans the event out to every current subscriber of the group.
// Called by the stores/presence layer after their own state change commits;
// never by clients. Fire-and-forget from the caller's perspective.
func (b *Broadcaster) Publish(groupID primitive.ObjectID, ev models.ChatEvent) {
	b.mu.RLock()
	t, ok := b.topics[groupID]
	closed := b.closed
	b.mu.RUnlock()
	if !ok || closed {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for sub := range t.subs {
		sub.closeMu.Lock()
		if sub.closed {
			sub.closeMu.Unlock()
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Slow consumer: drop. Durable state is recovered via history.
			b.log.Debug("dropping event for slow subscriber",
				zap.String("group_id", groupID.Hex()),
				zap.String("kind", ev.Kind()))
		}
		sub.closeMu.Unlock()
	}
}

// SubscriberCount returns the number of active subscriptions for a group.
func (b *Broadcaster) SubscriberCount(groupID primitive.ObjectID) int {
	b.mu.RLock()
	t, ok := b.topics[groupID]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Close shuts the broadcaster down and closes every subscription channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	topics := b.topics
	b.topics = make(map[primitive.ObjectID]*topic)
	b.mu.Unlock()

	for _, t := range topics {
		t.mu.Lock()
		for sub := range t.subs {
			sub.closeMu.Lock()
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
			sub.closeMu.Unlock()
		}
		t.subs = make(map[*Subscription]struct{})
		t.mu.Unlock()
	}
}
