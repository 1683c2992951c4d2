package membershipstore_test

import (
	"errors"
	"testing"
	"time"

	membershipstore "github.com/dalemusser/studychat/internal/app/store/memberships"
	"github.com/dalemusser/studychat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Join(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fixtures.CreateUser(ctx, "Alice")
	group := fixtures.CreateGroup(ctx, "Study Group", owner.ID)
	bob := fixtures.CreateUser(ctx, "Bob")

	m, err := store.Join(ctx, group.ID, bob.ID)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if m.Admin {
		t.Error("second joiner should not be admin")
	}
	if m.JoinedAt.IsZero() {
		t.Error("expected JoinedAt to be set")
	}

	ok, err := store.IsMember(ctx, group.ID, bob.ID)
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if !ok {
		t.Error("expected Bob to be a member after Join")
	}
}

func TestStore_Join_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fixtures.CreateUser(ctx, "Alice")
	group := fixtures.CreateGroup(ctx, "Study Group", owner.ID)
	bob := fixtures.CreateUser(ctx, "Bob")

	first, err := store.Join(ctx, group.ID, bob.ID)
	if err != nil {
		t.Fatalf("first Join failed: %v", err)
	}
	second, err := store.Join(ctx, group.ID, bob.ID)
	if err != nil {
		t.Fatalf("repeat Join failed: %v", err)
	}

	if first.ID != second.ID {
		t.Error("repeat Join should return the existing membership, not create a new one")
	}

	count, err := store.CountByGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("CountByGroup failed: %v", err)
	}
	if count != 2 { // owner + bob
		t.Errorf("expected 2 memberships, got %d", count)
	}
}

func TestStore_Join_GroupNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Join(ctx, primitive.NewObjectID(), primitive.NewObjectID())
	if !errors.Is(err, membershipstore.ErrGroupNotFound) {
		t.Errorf("got %v, want ErrGroupNotFound", err)
	}
}

func TestStore_Join_FirstMemberIsAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fixtures.CreateUser(ctx, "Alice")
	group := fixtures.CreateGroup(ctx, "Study Group", owner.ID)

	// Empty the group, then join fresh; the first member in becomes admin.
	if err := store.Leave(ctx, group.ID, owner.ID); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	bob := fixtures.CreateUser(ctx, "Bob")
	m, err := store.Join(ctx, group.ID, bob.ID)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if !m.Admin {
		t.Error("first member of an empty group should be admin")
	}
}

func TestStore_Leave_NotAMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fixtures.CreateUser(ctx, "Alice")
	group := fixtures.CreateGroup(ctx, "Study Group", owner.ID)

	err := store.Leave(ctx, group.ID, primitive.NewObjectID())
	if !errors.Is(err, membershipstore.ErrNotAMember) {
		t.Errorf("got %v, want ErrNotAMember", err)
	}
}

func TestStore_Leave_PromotesLongestTenured(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fixtures.CreateUser(ctx, "Alice")
	group := fixtures.CreateGroup(ctx, "Study Group", owner.ID)

	bob := fixtures.CreateUser(ctx, "Bob")
	carol := fixtures.CreateUser(ctx, "Carol")

	// Control join order with explicit timestamps.
	fixtures.CreateMembership(ctx, group.ID, bob.ID, false)
	time.Sleep(5 * time.Millisecond)
	fixtures.CreateMembership(ctx, group.ID, carol.ID, false)

	// The sole admin leaves; the longest-tenured remaining member is promoted.
	if err := store.Leave(ctx, group.ID, owner.ID); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	bobAdmin, err := store.IsAdmin(ctx, group.ID, bob.ID)
	if err != nil {
		t.Fatalf("IsAdmin failed: %v", err)
	}
	if !bobAdmin {
		t.Error("expected Bob (earliest joiner) to be promoted to admin")
	}

	carolAdmin, err := store.IsAdmin(ctx, group.ID, carol.ID)
	if err != nil {
		t.Fatalf("IsAdmin failed: %v", err)
	}
	if carolAdmin {
		t.Error("Carol should not have been promoted")
	}
}

func TestStore_ListMembers_OrderedByJoinTime(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fixtures.CreateUser(ctx, "Alice")
	group := fixtures.CreateGroup(ctx, "Study Group", owner.ID)

	bob := fixtures.CreateUser(ctx, "Bob")
	time.Sleep(5 * time.Millisecond)
	fixtures.CreateMembership(ctx, group.ID, bob.ID, false)

	members, err := store.ListMembers(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].UserID != owner.ID {
		t.Error("expected the owner (earliest joiner) first")
	}
	if members[1].UserID != bob.ID {
		t.Error("expected Bob second")
	}
}
