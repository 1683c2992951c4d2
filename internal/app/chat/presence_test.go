package chat

import (
	"testing"
	"time"

	"github.com/dalemusser/studychat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeClock drives the presence tracker's view of time.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestPresenceTracker_TouchAndExpiry(t *testing.T) {
	clock := newFakeClock()
	p := NewPresenceTracker(3*time.Second, clock.Now)

	groupID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	if !p.Touch(groupID, userID) {
		t.Error("first Touch should report a visible change")
	}
	if p.Touch(groupID, userID) {
		t.Error("repeat Touch while visible should not report a change")
	}

	users := p.TypingUsers(groupID)
	if len(users) != 1 || users[0] != userID.Hex() {
		t.Errorf("expected [%s], got %v", userID.Hex(), users)
	}

	// One tick short of the TTL: still typing.
	clock.Advance(2900 * time.Millisecond)
	if len(p.TypingUsers(groupID)) != 1 {
		t.Error("expected user still typing just before the TTL")
	}

	// Past the TTL: gone, even without a sweep.
	clock.Advance(200 * time.Millisecond)
	if len(p.TypingUsers(groupID)) != 0 {
		t.Error("expected user expired after the TTL")
	}

	// Touching an expired entry is a visible change again.
	if !p.Touch(groupID, userID) {
		t.Error("Touch after expiry should report a visible change")
	}
}

func TestPresenceTracker_Clear(t *testing.T) {
	clock := newFakeClock()
	p := NewPresenceTracker(3*time.Second, clock.Now)

	groupID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	if p.Clear(groupID, userID) {
		t.Error("Clear of an idle user should report no change")
	}

	p.Touch(groupID, userID)
	if !p.Clear(groupID, userID) {
		t.Error("Clear of a typing user should report a change")
	}
	if len(p.TypingUsers(groupID)) != 0 {
		t.Error("expected no typing users after Clear")
	}
}

func TestPresenceTracker_ClearAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	p := NewPresenceTracker(3*time.Second, clock.Now)

	groupID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	p.Touch(groupID, userID)
	clock.Advance(3100 * time.Millisecond)

	// The entry expired but was never swept. Clear removes it, so the
	// caller must broadcast; otherwise subscribers who saw the typing
	// snapshot never see it corrected.
	if !p.Clear(groupID, userID) {
		t.Error("Clear of an expired, unswept entry should still report it")
	}
	if events := p.Sweep(); len(events) != 0 {
		t.Errorf("expected nothing left for the sweep, got %d events", len(events))
	}
}

func TestPresenceTracker_PerGroupIsolation(t *testing.T) {
	clock := newFakeClock()
	p := NewPresenceTracker(3*time.Second, clock.Now)

	groupA := primitive.NewObjectID()
	groupB := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	p.Touch(groupA, userID)

	if len(p.TypingUsers(groupB)) != 0 {
		t.Error("typing in group A must not leak into group B")
	}
}

func TestPresenceTracker_TypingUsersSorted(t *testing.T) {
	clock := newFakeClock()
	p := NewPresenceTracker(3*time.Second, clock.Now)

	groupID := primitive.NewObjectID()
	for i := 0; i < 5; i++ {
		p.Touch(groupID, primitive.NewObjectID())
	}

	users := p.TypingUsers(groupID)
	for i := 1; i < len(users); i++ {
		if users[i] < users[i-1] {
			t.Fatalf("expected sorted output, got %v", users)
		}
	}
}

func TestPresenceTracker_Sweep(t *testing.T) {
	clock := newFakeClock()
	p := NewPresenceTracker(3*time.Second, clock.Now)

	groupID := primitive.NewObjectID()
	expiring := primitive.NewObjectID()
	fresh := primitive.NewObjectID()

	p.Touch(groupID, expiring)
	clock.Advance(2 * time.Second)
	p.Touch(groupID, fresh)

	// Nothing expired yet.
	if events := p.Sweep(); len(events) != 0 {
		t.Errorf("expected no sweep events, got %d", len(events))
	}

	// First user's deadline passes; the second is still fresh.
	clock.Advance(1500 * time.Millisecond)
	events := p.Sweep()
	if len(events) != 1 {
		t.Fatalf("expected 1 sweep event, got %d", len(events))
	}
	ev := events[0]
	if ev.GroupID != groupID {
		t.Errorf("event group: got %s, want %s", ev.GroupID.Hex(), groupID.Hex())
	}
	if len(ev.TypingUsers) != 1 || ev.TypingUsers[0] != fresh.Hex() {
		t.Errorf("expected only the fresh user in the event, got %v", ev.TypingUsers)
	}

	// A second sweep with no expiries emits nothing.
	if events := p.Sweep(); len(events) != 0 {
		t.Errorf("expected no events from a quiet sweep, got %d", len(events))
	}
}

func TestPresenceJanitor_BroadcastsExpiry(t *testing.T) {
	clock := newFakeClock()
	p := NewPresenceTracker(3*time.Second, clock.Now)
	b := NewBroadcaster(4, nil)
	defer b.Close()

	groupID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	sub := b.Subscribe(groupID)

	p.Touch(groupID, userID)
	clock.Advance(4 * time.Second)

	j := NewPresenceJanitor(p, b, nil, 0)
	j.SweepOnce()

	select {
	case ev := <-sub.C:
		pe, ok := ev.(models.PresenceEvent)
		if !ok {
			t.Fatalf("expected PresenceEvent, got %T", ev)
		}
		if len(pe.TypingUsers) != 0 {
			t.Errorf("expected empty typing set after expiry, got %v", pe.TypingUsers)
		}
	default:
		t.Error("expected the janitor to broadcast the expiry transition")
	}
}
