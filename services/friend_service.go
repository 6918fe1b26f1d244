package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/session"
	"habitsAPI/internal/triggers"
	"habitsAPI/internal/types/friendship"
	"habitsAPI/internal/types/habit"
	"habitsAPI/internal/types/notification"
	"habitsAPI/internal/types/profile"
)

type FriendService struct {
	store docstore.Store
	queue triggers.Queue
}

func NewFriendService(store docstore.Store, queue triggers.Queue) *FriendService {
	return &FriendService{store: store, queue: queue}
}

// Overview lists friends and pending requests from the session caches.
func (s *FriendService) Overview(sess *session.Session) *friendship.Overview {
	list, _ := sess.Friends.Value()
	reqs, _ := sess.Requests.Value()
	out := &friendship.Overview{
		Friends:  list.Friends,
		Incoming: reqs.Incoming,
		Outgoing: reqs.Outgoing,
	}
	if out.Friends == nil {
		out.Friends = map[string]friendship.Entry{}
	}
	if out.Incoming == nil {
		out.Incoming = map[string]friendship.Entry{}
	}
	if out.Outgoing == nil {
		out.Outgoing = map[string]friendship.Entry{}
	}
	return out
}

// SendRequest asks the owner of username to be friends. If they already
// asked the caller, the two become friends immediately.
func (s *FriendService) SendRequest(ctx context.Context, sess *session.Session, username string) (friendship.Outcome, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !profile.ValidUsername(username) {
		return friendship.OutcomeInvalid, nil
	}
	target, err := triggers.LookupUsername(ctx, s.store, username)
	if errors.Is(err, docstore.ErrNotFound) {
		return friendship.OutcomeNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up username: %w", err)
	}
	if target == sess.UID {
		return friendship.OutcomeSelf, nil
	}

	outcome, accepted, err := triggers.SendFriendRequest(ctx, s.store, sess.UID, target, sess.Clock.Now())
	if err != nil {
		return "", fmt.Errorf("failed to send friend request: %w", err)
	}
	if outcome != friendship.OutcomeOK {
		return outcome, nil
	}

	me, _ := sess.Profile.Value()
	if accepted {
		s.push(ctx, target, notification.NotificationFriendAccepted, "Friend request accepted",
			fmt.Sprintf("%s is now your friend", displayName(me)), sess.UID)
	} else {
		s.push(ctx, target, notification.NotificationFriendRequest, "New friend request",
			fmt.Sprintf("%s wants to be your friend", displayName(me)), sess.UID)
	}
	return outcome, nil
}

func (s *FriendService) Accept(ctx context.Context, sess *session.Session, sender string) (friendship.Outcome, error) {
	outcome, err := triggers.AcceptFriendship(ctx, s.store, sess.UID, sender, sess.Clock.Now())
	if err != nil {
		return "", fmt.Errorf("failed to accept friend request: %w", err)
	}
	if outcome == friendship.OutcomeOK {
		me, _ := sess.Profile.Value()
		s.push(ctx, sender, notification.NotificationFriendAccepted, "Friend request accepted",
			fmt.Sprintf("%s accepted your friend request", displayName(me)), sess.UID)
	}
	return outcome, nil
}

// Decline drops an incoming request.
func (s *FriendService) Decline(ctx context.Context, sess *session.Session, sender string) (friendship.Outcome, error) {
	sess.Requests.Mutate(ctx, func(r *friendship.Requests) {
		r.Incoming = withoutEntry(r.Incoming, sender)
	}, nil)
	return s.drop(ctx, sender, sess.UID)
}

// Cancel withdraws an outgoing request.
func (s *FriendService) Cancel(ctx context.Context, sess *session.Session, recipient string) (friendship.Outcome, error) {
	sess.Requests.Mutate(ctx, func(r *friendship.Requests) {
		r.Outgoing = withoutEntry(r.Outgoing, recipient)
	}, nil)
	return s.drop(ctx, sess.UID, recipient)
}

func (s *FriendService) drop(ctx context.Context, sender, recipient string) (friendship.Outcome, error) {
	found, err := triggers.DropRequest(ctx, s.store, sender, recipient)
	if err != nil {
		return "", fmt.Errorf("failed to drop friend request: %w", err)
	}
	if !found {
		return friendship.OutcomeNotFound, nil
	}
	return friendship.OutcomeOK, nil
}

// Remove drops the friend from the local caches at once and hands the
// two-sided removal to the trigger queue.
func (s *FriendService) Remove(ctx context.Context, sess *session.Session, friend string) (friendship.Outcome, error) {
	if list, _ := sess.Friends.Value(); !list.Has(friend) {
		return friendship.OutcomeNotFound, nil
	}

	sess.Shared.Mutate(ctx, func(v *habit.Shared) {
		kept := make([]habit.SharedRef, 0, len(v.Refs))
		for _, ref := range v.Refs {
			if ref.Owner != friend {
				kept = append(kept, ref)
			}
		}
		v.Refs = kept
	}, nil)

	job := triggers.NewJob(triggers.JobFriendRemove)
	job.UID = sess.UID
	job.FriendUID = friend
	err := sess.Friends.Mutate(ctx, func(l *friendship.List) {
		l.Friends = withoutEntry(l.Friends, friend)
	}, func(ctx context.Context) error {
		return s.queue.Enqueue(ctx, job)
	})
	if err != nil {
		return "", err
	}
	return friendship.OutcomeOK, nil
}

func (s *FriendService) push(ctx context.Context, uid string, kind notification.NotificationType, title, body, from string) {
	job := triggers.NewJob(triggers.JobPush)
	job.UID = uid
	job.Push = &notification.Push{
		UserID: uid,
		Type:   kind,
		Title:  title,
		Body:   body,
		Data:   map[string]any{"from": from},
	}
	if err := s.queue.Enqueue(context.WithoutCancel(ctx), job); err != nil {
		log.Printf("FriendService: failed to queue push for %s: %v", uid, err)
	}
}

// withoutEntry copies m minus uid so maps shared with readers stay intact.
func withoutEntry(m map[string]friendship.Entry, uid string) map[string]friendship.Entry {
	out := make(map[string]friendship.Entry, len(m))
	for k, v := range m {
		if k != uid {
			out[k] = v
		}
	}
	return out
}

func displayName(p profile.Profile) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Username != "" {
		return "@" + p.Username
	}
	return "Someone"
}
