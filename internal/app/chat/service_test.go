package chat_test

import (
	"errors"
	"sync"
	"testing"

	chatcore "github.com/dalemusser/studychat/internal/app/chat"
	groupstore "github.com/dalemusser/studychat/internal/app/store/groups"
	membershipstore "github.com/dalemusser/studychat/internal/app/store/memberships"
	messagestore "github.com/dalemusser/studychat/internal/app/store/messages"
	"github.com/dalemusser/studychat/internal/domain/models"
	"github.com/dalemusser/studychat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func newTestService(t *testing.T, db *mongo.Database) (*chatcore.Service, *chatcore.Broadcaster) {
	t.Helper()
	broadcaster := chatcore.NewBroadcaster(16, nil)
	t.Cleanup(broadcaster.Close)
	presence := chatcore.NewPresenceTracker(chatcore.DefaultTypingTTL, nil)
	svc := chatcore.NewService(
		groupstore.New(db),
		membershipstore.New(db),
		messagestore.New(db),
		broadcaster,
		presence,
		0,
		nil,
	)
	return svc, broadcaster
}

func TestService_Send_RequiresMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newTestService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateUser(ctx, "Alice")
	group := fixtures.CreateGroup(ctx, "Study Group", alice.ID)
	outsider := fixtures.CreateUser(ctx, "Mallory")

	_, err := svc.Send(ctx, group.ID, outsider.ID, outsider.DisplayName, "let me in", nil)
	if !errors.Is(err, chatcore.ErrNotAuthorized) {
		t.Errorf("got %v, want ErrNotAuthorized", err)
	}

	// No message was persisted.
	msgs, err := svc.History(ctx, group.ID, alice.ID, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages, got %d", len(msgs))
	}
}

func TestService_Send_PublishesToSubscribers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newTestService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateUser(ctx, "Alice")
	group := fixtures.CreateGroup(ctx, "Study Group", alice.ID)

	session, err := svc.OpenSession(ctx, group.ID, alice.ID, alice.DisplayName)
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	defer session.Close()

	sent, err := svc.Send(ctx, group.ID, alice.ID, alice.DisplayName, "hello room", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case ev := <-session.Events():
		me, ok := ev.(models.MessageEvent)
		if !ok {
			t.Fatalf("expected MessageEvent, got %T", ev)
		}
		if me.Message.ID != sent.ID {
			t.Errorf("event message id: got %s, want %s", me.Message.ID.Hex(), sent.ID.Hex())
		}
		if me.Type != models.EventMessage {
			t.Errorf("event type: got %q, want %q", me.Type, models.EventMessage)
		}
	default:
		t.Error("expected the send to be published to the open session")
	}
}

func TestService_Send_ConcurrentDeliveryOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newTestService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateUser(ctx, "Alice")
	group := fixtures.CreateGroup(ctx, "Study Group", alice.ID)

	session, err := svc.OpenSession(ctx, group.ID, alice.ID, alice.DisplayName)
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	defer session.Close()

	// Concurrent senders race the append-then-publish window; every
	// subscriber must still see seq numbers strictly ascending.
	const sends = 10
	var wg sync.WaitGroup
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Send(ctx, group.ID, alice.ID, alice.DisplayName, "go", nil); err != nil {
				t.Errorf("Send failed: %v", err)
			}
		}()
	}
	wg.Wait()

	var lastSeq int64
	for received := 0; received < sends; received++ {
		select {
		case ev := <-session.Events():
			me, ok := ev.(models.MessageEvent)
			if !ok {
				t.Fatalf("expected MessageEvent, got %T", ev)
			}
			if me.Message.Seq <= lastSeq {
				t.Fatalf("delivery order inverted: seq %d arrived after %d", me.Message.Seq, lastSeq)
			}
			lastSeq = me.Message.Seq
		default:
			t.Fatalf("expected %d message events, got %d", sends, received)
		}
	}
}

func TestService_Send_SanitizesContent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newTestService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateUser(ctx, "Alice")
	group := fixtures.CreateGroup(ctx, "Study Group", alice.ID)

	msg, err := svc.Send(ctx, group.ID, alice.ID, alice.DisplayName, `hi <script>alert("x")</script>there`, nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if msg.Content != "hi there" {
		t.Errorf("expected markup stripped, got %q", msg.Content)
	}
}

func TestService_ToggleReaction_GatesOnMessageGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newTestService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateUser(ctx, "Alice")
	group := fixtures.CreateGroup(ctx, "Study Group", alice.ID)
	outsider := fixtures.CreateUser(ctx, "Mallory")

	msg, err := svc.Send(ctx, group.ID, alice.ID, alice.DisplayName, "react to me", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	_, err = svc.ToggleReaction(ctx, msg.ID, outsider.ID, "👍")
	if !errors.Is(err, chatcore.ErrNotAuthorized) {
		t.Errorf("got %v, want ErrNotAuthorized", err)
	}
}

func TestService_Typing_RateLimited(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newTestService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateUser(ctx, "Alice")
	group := fixtures.CreateGroup(ctx, "Study Group", alice.ID)

	var limited bool
	for i := 0; i < 50; i++ {
		if err := svc.Typing(ctx, group.ID, alice.ID); err != nil {
			if !errors.Is(err, chatcore.ErrRateLimited) {
				t.Fatalf("Typing failed with unexpected error: %v", err)
			}
			limited = true
			break
		}
	}
	if !limited {
		t.Error("expected the typing limiter to push back under a burst")
	}
}

func TestService_Typing_LimitConfigurable(t *testing.T) {
	db := testutil.SetupTestDB(t)
	broadcaster := chatcore.NewBroadcaster(16, nil)
	t.Cleanup(broadcaster.Close)
	svc := chatcore.NewService(
		groupstore.New(db),
		membershipstore.New(db),
		messagestore.New(db),
		broadcaster,
		chatcore.NewPresenceTracker(chatcore.DefaultTypingTTL, nil),
		1,
		nil,
	)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateUser(ctx, "Alice")
	group := fixtures.CreateGroup(ctx, "Study Group", alice.ID)

	if err := svc.Typing(ctx, group.ID, alice.ID); err != nil {
		t.Fatalf("first Typing failed: %v", err)
	}
	if err := svc.Typing(ctx, group.ID, alice.ID); !errors.Is(err, chatcore.ErrRateLimited) {
		t.Errorf("got %v, want ErrRateLimited with a limit of 1", err)
	}
}

func TestService_SessionClose_ClearsTyping(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, broadcaster := newTestService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateUser(ctx, "Alice")
	bob := fixtures.CreateUser(ctx, "Bob")
	group := fixtures.CreateGroup(ctx, "Study Group", alice.ID)
	fixtures.CreateMembership(ctx, group.ID, bob.ID, false)

	session, err := svc.OpenSession(ctx, group.ID, alice.ID, alice.DisplayName)
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}

	if err := svc.Typing(ctx, group.ID, alice.ID); err != nil {
		t.Fatalf("Typing failed: %v", err)
	}

	// Watch from a second subscription so we see the close-time broadcast.
	watcher := broadcaster.Subscribe(group.ID)
	defer broadcaster.Unsubscribe(watcher)

	session.Close()

	if users := svc.TypingUsers(group.ID); len(users) != 0 {
		t.Errorf("expected typing state cleared on session close, got %v", users)
	}

	select {
	case ev := <-watcher.C:
		pe, ok := ev.(models.PresenceEvent)
		if !ok {
			t.Fatalf("expected PresenceEvent, got %T", ev)
		}
		if len(pe.TypingUsers) != 0 {
			t.Errorf("expected empty typing set, got %v", pe.TypingUsers)
		}
	default:
		t.Error("expected a presence broadcast when the session closed")
	}

	// Close is idempotent.
	session.Close()
}

func TestService_OpenSession_RequiresMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newTestService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateUser(ctx, "Alice")
	group := fixtures.CreateGroup(ctx, "Study Group", alice.ID)

	_, err := svc.OpenSession(ctx, group.ID, primitive.NewObjectID(), "Outsider")
	if !errors.Is(err, chatcore.ErrNotAuthorized) {
		t.Errorf("got %v, want ErrNotAuthorized", err)
	}
}

func TestService_Leave_ThenSendFails(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newTestService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateUser(ctx, "Alice")
	bob := fixtures.CreateUser(ctx, "Bob")
	group := fixtures.CreateGroup(ctx, "Study Group", alice.ID)
	fixtures.CreateMembership(ctx, group.ID, bob.ID, false)

	if err := svc.Leave(ctx, group.ID, bob.ID); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	_, err := svc.Send(ctx, group.ID, bob.ID, bob.DisplayName, "still here?", nil)
	if !errors.Is(err, chatcore.ErrNotAuthorized) {
		t.Errorf("got %v, want ErrNotAuthorized", err)
	}
}
