// internal/app/chat/service.go
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	groupstore "github.com/dalemusser/studychat/internal/app/store/groups"
	membershipstore "github.com/dalemusser/studychat/internal/app/store/memberships"
	messagestore "github.com/dalemusser/studychat/internal/app/store/messages"
	"github.com/dalemusser/studychat/internal/app/system/ratelimit"
	"github.com/dalemusser/studychat/internal/domain/models"
	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ErrNotAuthorized is returned for any read, write, or subscribe attempted
// by a caller without a Membership in the target group. Auto-join on first
// message was considered and rejected: membership stays the single
// authoritative gate, and joining is a separate, idempotent operation.
var ErrNotAuthorized = errors.New("caller is not a member of this group")

// ErrRateLimited is returned when a client emits typing signals faster than
// the configured window allows.
var ErrRateLimited = errors.New("too many typing signals")

// DefaultTypingRateLimit is the max typing signals accepted per user per
// group per second when no limit is configured.
const DefaultTypingRateLimit = 10

// Service composes the membership gate, the durable stores, the broadcaster,
// and the presence tracker into the chat operations. One Service per process,
// handed down explicitly; there is no ambient singleton.
type Service struct {
	groups      *groupstore.Store
	memberships *membershipstore.Store
	messages    *messagestore.Store
	broadcaster *Broadcaster
	presence    *PresenceTracker

	typingLimiter *ratelimit.Limiter
	sanitizer     *bluemonday.Policy
	log           *zap.Logger

	// orderMu guards groupOrder; the per-group mutexes span a durable
	// write and its broadcast so subscribers see events in commit order.
	orderMu    sync.Mutex
	groupOrder map[primitive.ObjectID]*sync.Mutex
}

// NewService wires the chat service. The strict bluemonday policy strips all
// markup from message content before it is persisted. typingLimit caps
// typing signals per user per group per second; <= 0 selects
// DefaultTypingRateLimit.
func NewService(
	groups *groupstore.Store,
	memberships *membershipstore.Store,
	messages *messagestore.Store,
	broadcaster *Broadcaster,
	presence *PresenceTracker,
	typingLimit int,
	log *zap.Logger,
) *Service {
	if typingLimit <= 0 {
		typingLimit = DefaultTypingRateLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		groups:        groups,
		memberships:   memberships,
		messages:      messages,
		broadcaster:   broadcaster,
		presence:      presence,
		typingLimiter: ratelimit.New(typingLimit, time.Second),
		sanitizer:     bluemonday.StrictPolicy(),
		log:           log,
		groupOrder:    make(map[primitive.ObjectID]*sync.Mutex),
	}
}

// commitLock returns the mutex serializing commit-then-publish for a group.
// Without it, a send that draws seq N could publish after a later send drew
// and published seq N+1, inverting delivery order for every subscriber.
func (s *Service) commitLock(groupID primitive.ObjectID) *sync.Mutex {
	s.orderMu.Lock()
	defer s.orderMu.Unlock()
	mu, ok := s.groupOrder[groupID]
	if !ok {
		mu = &sync.Mutex{}
		s.groupOrder[groupID] = mu
	}
	return mu
}

// requireMember is the authorization gate in front of every operation.
func (s *Service) requireMember(ctx context.Context, groupID, userID primitive.ObjectID) error {
	ok, err := s.memberships.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	return nil
}

// CreateGroup creates a group owned (and admin-joined) by ownerID.
func (s *Service) CreateGroup(ctx context.Context, name, description, visibility string, ownerID primitive.ObjectID) (models.Group, error) {
	return s.groups.Create(ctx, name, description, visibility, ownerID)
}

// Group returns a single group.
func (s *Service) Group(ctx context.Context, groupID primitive.ObjectID) (models.Group, error) {
	return s.groups.GetByID(ctx, groupID)
}

// Groups lists groups visible to the user.
func (s *Service) Groups(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	return s.groups.ListVisible(ctx, userID)
}

// Join adds the user to the group (idempotent).
func (s *Service) Join(ctx context.Context, groupID, userID primitive.ObjectID) (models.Membership, error) {
	return s.memberships.Join(ctx, groupID, userID)
}

// Leave removes the user from the group and drops any typing state they
// left behind.
func (s *Service) Leave(ctx context.Context, groupID, userID primitive.ObjectID) error {
	if err := s.memberships.Leave(ctx, groupID, userID); err != nil {
		return err
	}
	if s.presence.Clear(groupID, userID) {
		s.broadcaster.Publish(groupID, s.presence.Snapshot(groupID))
	}
	return nil
}

// Members lists the group's memberships ordered by join time. Members only.
func (s *Service) Members(ctx context.Context, groupID, callerID primitive.ObjectID) ([]models.Membership, error) {
	if err := s.requireMember(ctx, groupID, callerID); err != nil {
		return nil, err
	}
	return s.memberships.ListMembers(ctx, groupID)
}

// Send validates, persists, and fans out a new message. The append is
// blocking-until-persisted; the fan-out is fire-and-forget. Sending also
// clears the sender's typing indicator immediately.
func (s *Service) Send(ctx context.Context, groupID, senderID primitive.ObjectID, senderName, content string, attachments []models.Attachment) (models.Message, error) {
	if err := s.requireMember(ctx, groupID, senderID); err != nil {
		return models.Message{}, err
	}

	content = s.sanitizer.Sanitize(content)

	// Hold the group's commit lock across append and publish so the
	// broadcaster receives messages in seq order.
	mu := s.commitLock(groupID)
	mu.Lock()
	defer mu.Unlock()

	msg, err := s.messages.Append(ctx, groupID, senderID, senderName, content, attachments)
	if err != nil {
		return models.Message{}, err
	}

	if s.presence.Clear(groupID, senderID) {
		s.broadcaster.Publish(groupID, s.presence.Snapshot(groupID))
	}
	s.broadcaster.Publish(groupID, models.MessageEvent{
		Type:    models.EventMessage,
		Message: msg,
	})
	return msg, nil
}

// History returns the group's messages after sinceSeq, ascending. This is
// also the recovery path for events dropped by best-effort fan-out.
func (s *Service) History(ctx context.Context, groupID, callerID primitive.ObjectID, sinceSeq int64) ([]models.Message, error) {
	if err := s.requireMember(ctx, groupID, callerID); err != nil {
		return nil, err
	}
	return s.messages.List(ctx, groupID, sinceSeq)
}

// ToggleReaction flips the caller's reaction and re-broadcasts the message
// as an update so connected clients converge on the same reaction state.
func (s *Service) ToggleReaction(ctx context.Context, messageID, callerID primitive.ObjectID, emoji string) (models.Message, error) {
	existing, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if err := s.requireMember(ctx, existing.GroupID, callerID); err != nil {
		return models.Message{}, err
	}

	mu := s.commitLock(existing.GroupID)
	mu.Lock()
	defer mu.Unlock()

	msg, err := s.messages.ToggleReaction(ctx, messageID, callerID, emoji)
	if err != nil {
		return models.Message{}, err
	}
	s.broadcaster.Publish(msg.GroupID, models.MessageEvent{
		Type:    models.EventMessageUpdated,
		Message: msg,
	})
	return msg, nil
}

// Typing records a typing signal and broadcasts the new snapshot when the
// visible set changed. Rate limited per (user, group); presence failures
// have no user-visible error mode beyond the limiter's pushback.
func (s *Service) Typing(ctx context.Context, groupID, userID primitive.ObjectID) error {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return err
	}
	if !s.typingLimiter.Allow(userID.Hex() + ":" + groupID.Hex()) {
		return ErrRateLimited
	}
	if s.presence.Touch(groupID, userID) {
		s.broadcaster.Publish(groupID, s.presence.Snapshot(groupID))
	}
	return nil
}

// TypingUsers returns the current typing snapshot for the group.
func (s *Service) TypingUsers(groupID primitive.ObjectID) []string {
	return s.presence.TypingUsers(groupID)
}

// OpenSession gates membership and opens a subscription wrapped in a Session
// that tears everything down on Close.
func (s *Service) OpenSession(ctx context.Context, groupID, userID primitive.ObjectID, userName string) (*Session, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	sub := s.broadcaster.Subscribe(groupID)
	return &Session{
		svc:      s,
		GroupID:  groupID,
		UserID:   userID,
		UserName: userName,
		sub:      sub,
	}, nil
}
