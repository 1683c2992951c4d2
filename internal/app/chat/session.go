// internal/app/chat/session.go
package chat

import (
	"sync"

	"github.com/dalemusser/studychat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session is the per-connection handle tying one user's subscription and
// typing state together. Close must run on every exit path, normal or
// abnormal; the transport layer defers it as soon as the session opens.
// A missed Close only ever leaves a typing indicator that the TTL heals.
type Session struct {
	GroupID  primitive.ObjectID
	UserID   primitive.ObjectID
	UserName string

	svc  *Service
	sub  *Subscription
	once sync.Once
}

// Events is the ordered stream of group events for this session. The
// channel closes when the session closes.
func (s *Session) Events() <-chan models.ChatEvent {
	return s.sub.C
}

// Close releases the subscription and clears the user's typing state,
// broadcasting the corrected presence snapshot if any state was dropped.
// Safe to call multiple times.
func (s *Session) Close() {
	s.once.Do(func() {
		s.svc.broadcaster.Unsubscribe(s.sub)
		if s.svc.presence.Clear(s.GroupID, s.UserID) {
			s.svc.broadcaster.Publish(s.GroupID, s.svc.presence.Snapshot(s.GroupID))
		}
	})
}
