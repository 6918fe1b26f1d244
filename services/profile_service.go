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
	"habitsAPI/internal/types/profile"
	"habitsAPI/utils"
)

const usernameAttempts = 5

type ProfileService struct {
	store docstore.Store
}

func NewProfileService(store docstore.Store) *ProfileService {
	return &ProfileService{store: store}
}

// Ensure creates the profile of uid on first sign-in with a random avatar
// and a free username derived from displayName. An existing profile is
// returned untouched.
func (s *ProfileService) Ensure(ctx context.Context, uid, displayName string) (*profile.Profile, error) {
	base := profile.SuggestUsername(displayName)
	candidates := []string{base}
	for i := 1; i < usernameAttempts; i++ {
		candidates = append(candidates, fmt.Sprintf("%s_%s", base, strings.ToLower(utils.GenerateID(4))))
	}

	var result profile.Profile
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(docstore.UserPath(uid))
		if err == nil {
			if err := snap.DataTo(&result); err != nil {
				return fmt.Errorf("failed to decode profile: %w", err)
			}
			result.UID = uid
			return nil
		}
		if !errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("failed to read profile: %w", err)
		}

		username := ""
		for _, c := range candidates {
			if _, err := tx.Get(docstore.UsernamePath(c)); errors.Is(err, docstore.ErrNotFound) {
				username = c
				break
			} else if err != nil {
				return fmt.Errorf("failed to read username %s: %w", c, err)
			}
		}
		if username == "" {
			return triggers.ErrUsernameTaken
		}

		result = profile.Profile{
			UID:         uid,
			DisplayName: strings.TrimSpace(displayName),
			Username:    username,
			Avatar:      utils.RandomAvatar(),
		}
		if err := triggers.SyncUsername(tx, uid, "", username); err != nil {
			return err
		}
		return tx.Create(docstore.UserPath(uid), result.Fields())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return &result, nil
}

// Update edits display name and avatar and refreshes the copies held in
// friends' lists.
func (s *ProfileService) Update(ctx context.Context, sess *session.Session, req *profile.UpdateProfileRequest) (*profile.Profile, error) {
	if req.DisplayName != nil && strings.TrimSpace(*req.DisplayName) == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}
	if req.Avatar != nil && strings.TrimSpace(*req.Avatar) == "" {
		return nil, fmt.Errorf("%w: avatar is required", ErrInvalidInput)
	}

	fields := map[string]interface{}{}
	var updated profile.Profile
	err := sess.Profile.Mutate(ctx, func(p *profile.Profile) {
		p.UID = sess.UID
		if req.DisplayName != nil {
			p.DisplayName = strings.TrimSpace(*req.DisplayName)
			fields["displayName"] = p.DisplayName
		}
		if req.Avatar != nil {
			p.Avatar = strings.TrimSpace(*req.Avatar)
			fields["avatar"] = p.Avatar
		}
		updated = *p
	}, func(ctx context.Context) error {
		if len(fields) == 0 {
			return nil
		}
		return s.store.Merge(ctx, docstore.UserPath(sess.UID), fields)
	})
	if err != nil {
		return nil, err
	}

	if len(fields) > 0 {
		if err := s.refreshFriendEntries(ctx, sess, fields); err != nil {
			log.Printf("ProfileService.Update: failed to refresh friend entries: %v", err)
		}
	}
	return &updated, nil
}

// SetUsername claims name for the session's user. The usernames mapping
// and the profile change in one transaction.
func (s *ProfileService) SetUsername(ctx context.Context, sess *session.Session, name string) (profile.UsernameOutcome, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !profile.ValidUsername(name) {
		return profile.UsernameInvalid, nil
	}

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var current profile.Profile
		snap, err := tx.Get(docstore.UserPath(sess.UID))
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("failed to read profile: %w", err)
		}
		if err == nil {
			if err := snap.DataTo(&current); err != nil {
				return fmt.Errorf("failed to decode profile: %w", err)
			}
		}
		if err := triggers.SyncUsername(tx, sess.UID, current.Username, name); err != nil {
			return err
		}
		return tx.Merge(docstore.UserPath(sess.UID), map[string]interface{}{"username": name})
	})
	if errors.Is(err, triggers.ErrUsernameTaken) {
		return profile.UsernameTaken, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to set username: %w", err)
	}

	sess.Profile.Mutate(ctx, func(p *profile.Profile) {
		p.UID = sess.UID
		p.Username = name
	}, nil)
	if err := s.refreshFriendEntries(ctx, sess, map[string]interface{}{"username": name}); err != nil {
		log.Printf("ProfileService.SetUsername: failed to refresh friend entries: %v", err)
	}
	return profile.UsernameOK, nil
}

// refreshFriendEntries merges fields into the caller's entry in each
// friend's list, skipping friends that no longer list the caller.
func (s *ProfileService) refreshFriendEntries(ctx context.Context, sess *session.Session, fields map[string]interface{}) error {
	list, _ := sess.Friends.Value()
	if len(list.Friends) == 0 {
		return nil
	}
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var targets []string
		for friend := range list.Friends {
			theirs, err := triggers.ReadFriends(tx, friend)
			if err != nil {
				return err
			}
			if theirs.Has(sess.UID) {
				targets = append(targets, friend)
			}
		}
		for _, friend := range targets {
			if err := tx.Merge(docstore.FriendsPath(friend), map[string]interface{}{
				"friends": map[string]interface{}{sess.UID: fields},
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
