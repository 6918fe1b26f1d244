package triggers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/types/friendship"
	"habitsAPI/internal/types/habit"
)

var ErrFriendCap = errors.New("friend limit reached")

// RemoveFriendship deletes both sides of a friendship, any pending requests
// between the pair and the habits each pinned from the other, in one
// transaction. Running it twice is harmless.
func RemoveFriendship(ctx context.Context, store docstore.Store, uid, friendUID string) error {
	return store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		sharedA, err := readShared(tx, uid)
		if err != nil {
			return err
		}
		sharedB, err := readShared(tx, friendUID)
		if err != nil {
			return err
		}

		if err := tx.Merge(docstore.FriendsPath(uid), map[string]interface{}{
			"friends": map[string]interface{}{friendUID: docstore.DeleteField},
		}); err != nil {
			return err
		}
		if err := tx.Merge(docstore.FriendsPath(friendUID), map[string]interface{}{
			"friends": map[string]interface{}{uid: docstore.DeleteField},
		}); err != nil {
			return err
		}
		if err := clearRequests(tx, uid, friendUID); err != nil {
			return err
		}
		if err := unpin(tx, uid, sharedA, friendUID); err != nil {
			return err
		}
		return unpin(tx, friendUID, sharedB, uid)
	})
}

// AcceptFriendship turns a pending request from sender to recipient into a
// friendship on both sides in one transaction. It returns OutcomeNotFound
// when no request is pending and OutcomeMaxFriends when either side is full.
func AcceptFriendship(ctx context.Context, store docstore.Store, recipient, sender string, now time.Time) (friendship.Outcome, error) {
	var outcome friendship.Outcome
	err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		outcome = ""
		reqs, err := readRequests(tx, recipient)
		if err != nil {
			return err
		}
		senderEntry, ok := reqs.Incoming[sender]
		if !ok {
			outcome = friendship.OutcomeNotFound
			return nil
		}
		recipientFriends, err := readFriends(tx, recipient)
		if err != nil {
			return err
		}
		senderFriends, err := readFriends(tx, sender)
		if err != nil {
			return err
		}
		if recipientFriends.Has(sender) {
			outcome = friendship.OutcomeOK
			return clearRequests(tx, recipient, sender)
		}
		if len(recipientFriends.Friends) >= friendship.MaxFriends || len(senderFriends.Friends) >= friendship.MaxFriends {
			outcome = friendship.OutcomeMaxFriends
			return nil
		}
		recipientEntry, err := readEntry(tx, recipient)
		if err != nil {
			return err
		}

		if err := linkFriends(tx, recipient, sender, recipientEntry, senderEntry, now); err != nil {
			return err
		}
		outcome = friendship.OutcomeOK
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// SendFriendRequest records a pending request from sender to recipient. A
// request the recipient already sent the other way is accepted instead, so
// OutcomeOK with accepted=true means the two are now friends.
func SendFriendRequest(ctx context.Context, store docstore.Store, sender, recipient string, now time.Time) (outcome friendship.Outcome, accepted bool, err error) {
	err = store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		outcome, accepted = "", false
		senderFriends, err := readFriends(tx, sender)
		if err != nil {
			return err
		}
		senderReqs, err := readRequests(tx, sender)
		if err != nil {
			return err
		}
		recipientFriends, err := readFriends(tx, recipient)
		if err != nil {
			return err
		}
		recipientReqs, err := readRequests(tx, recipient)
		if err != nil {
			return err
		}
		senderEntry, err := readEntry(tx, sender)
		if err != nil {
			return err
		}
		recipientEntry, err := readEntry(tx, recipient)
		if err != nil {
			return err
		}

		switch {
		case senderFriends.Has(recipient):
			outcome = friendship.OutcomeAlreadyFriends
			return nil
		case hasEntry(senderReqs.Outgoing, recipient) || hasEntry(recipientReqs.Incoming, sender):
			outcome = friendship.OutcomeAlreadyRequested
			return nil
		case len(senderFriends.Friends) >= friendship.MaxFriends:
			outcome = friendship.OutcomeMaxFriends
			return nil
		}

		if hasEntry(senderReqs.Incoming, recipient) {
			if len(recipientFriends.Friends) >= friendship.MaxFriends {
				outcome = friendship.OutcomeMaxFriends
				return nil
			}
			outcome, accepted = friendship.OutcomeOK, true
			return linkFriends(tx, sender, recipient, senderEntry, recipientEntry, now)
		}

		if len(recipientReqs.Incoming) >= friendship.MaxIncomingRequests {
			outcome = friendship.OutcomeMaxRequests
			return nil
		}
		senderEntry.Since = now
		recipientEntry.Since = now
		if err := tx.Merge(docstore.RequestsPath(recipient), map[string]interface{}{
			"incoming": map[string]interface{}{sender: senderEntry.Fields()},
		}); err != nil {
			return err
		}
		outcome = friendship.OutcomeOK
		return tx.Merge(docstore.RequestsPath(sender), map[string]interface{}{
			"outgoing": map[string]interface{}{recipient: recipientEntry.Fields()},
		})
	})
	if err != nil {
		return "", false, err
	}
	return outcome, accepted, nil
}

// DropRequest removes a pending request from sender to recipient on both
// sides and reports whether either side still had it.
func DropRequest(ctx context.Context, store docstore.Store, sender, recipient string) (bool, error) {
	var found bool
	err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		senderReqs, err := readRequests(tx, sender)
		if err != nil {
			return err
		}
		recipientReqs, err := readRequests(tx, recipient)
		if err != nil {
			return err
		}
		found = hasEntry(senderReqs.Outgoing, recipient) || hasEntry(recipientReqs.Incoming, sender)
		if !found {
			return nil
		}
		return clearRequests(tx, sender, recipient)
	})
	return found, err
}

// linkFriends writes both sides of a friendship and clears pending requests.
func linkFriends(tx docstore.Tx, a, b string, aEntry, bEntry friendship.Entry, now time.Time) error {
	aEntry.Since = now
	bEntry.Since = now
	if err := tx.Merge(docstore.FriendsPath(a), map[string]interface{}{
		"friends": map[string]interface{}{b: bEntry.Fields()},
	}); err != nil {
		return err
	}
	if err := tx.Merge(docstore.FriendsPath(b), map[string]interface{}{
		"friends": map[string]interface{}{a: aEntry.Fields()},
	}); err != nil {
		return err
	}
	return clearRequests(tx, a, b)
}

func hasEntry(m map[string]friendship.Entry, uid string) bool {
	_, ok := m[uid]
	return ok
}

// clearRequests drops pending requests in both directions between a and b.
func clearRequests(tx docstore.Tx, a, b string) error {
	if err := tx.Merge(docstore.RequestsPath(a), map[string]interface{}{
		"incoming": map[string]interface{}{b: docstore.DeleteField},
		"outgoing": map[string]interface{}{b: docstore.DeleteField},
	}); err != nil {
		return err
	}
	return tx.Merge(docstore.RequestsPath(b), map[string]interface{}{
		"incoming": map[string]interface{}{a: docstore.DeleteField},
		"outgoing": map[string]interface{}{a: docstore.DeleteField},
	})
}

func unpin(tx docstore.Tx, uid string, shared habit.Shared, owner string) error {
	kept := shared.Refs[:0:0]
	for _, ref := range shared.Refs {
		if ref.Owner != owner {
			kept = append(kept, ref)
		}
	}
	if len(kept) == len(shared.Refs) {
		return nil
	}
	return tx.Set(docstore.SharedHabitsPath(uid), habit.Shared{Refs: kept}.Fields())
}

func readShared(tx docstore.Tx, uid string) (habit.Shared, error) {
	var shared habit.Shared
	snap, err := tx.Get(docstore.SharedHabitsPath(uid))
	if errors.Is(err, docstore.ErrNotFound) {
		return shared, nil
	}
	if err != nil {
		return shared, fmt.Errorf("failed to read shared habits of %s: %w", uid, err)
	}
	return shared, snap.DataTo(&shared)
}

func readFriends(tx docstore.Tx, uid string) (friendship.List, error) {
	var list friendship.List
	snap, err := tx.Get(docstore.FriendsPath(uid))
	if errors.Is(err, docstore.ErrNotFound) {
		return list, nil
	}
	if err != nil {
		return list, fmt.Errorf("failed to read friends of %s: %w", uid, err)
	}
	return list, snap.DataTo(&list)
}

func readRequests(tx docstore.Tx, uid string) (friendship.Requests, error) {
	var reqs friendship.Requests
	snap, err := tx.Get(docstore.RequestsPath(uid))
	if errors.Is(err, docstore.ErrNotFound) {
		return reqs, nil
	}
	if err != nil {
		return reqs, fmt.Errorf("failed to read requests of %s: %w", uid, err)
	}
	return reqs, snap.DataTo(&reqs)
}

// readEntry builds the denormalized entry for uid from their profile.
func readEntry(tx docstore.Tx, uid string) (friendship.Entry, error) {
	var entry friendship.Entry
	snap, err := tx.Get(docstore.UserPath(uid))
	if errors.Is(err, docstore.ErrNotFound) {
		return entry, nil
	}
	if err != nil {
		return entry, fmt.Errorf("failed to read profile of %s: %w", uid, err)
	}
	return entry, snap.DataTo(&entry)
}

// ReadFriends exposes the transactional friend list reader to services that
// compose larger friend transactions.
func ReadFriends(tx docstore.Tx, uid string) (friendship.List, error) { return readFriends(tx, uid) }

type FriendReport struct {
	// Asymmetric lists pairs "a->b" where b's list lacks a.
	Asymmetric []string
}

// CheckFriendships finds one-sided friendships and, with fix, removes them
// so both users see the same state.
func CheckFriendships(ctx context.Context, store docstore.Store, fix bool) (FriendReport, error) {
	var report FriendReport
	users, err := store.Query(ctx, docstore.Collection(docstore.UsersCollection))
	if err != nil {
		return report, fmt.Errorf("failed to list users: %w", err)
	}

	lists := map[string]friendship.List{}
	for _, u := range users {
		snap, err := store.Get(ctx, docstore.FriendsPath(u.ID))
		if errors.Is(err, docstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("failed to read friends of %s: %w", u.ID, err)
		}
		var l friendship.List
		if err := snap.DataTo(&l); err != nil {
			log.Printf("CheckFriendships: skipping %s: %v", u.ID, err)
			continue
		}
		lists[u.ID] = l
	}

	type pair struct{ a, b string }
	var broken []pair
	for a, l := range lists {
		for b := range l.Friends {
			if !lists[b].Has(a) {
				report.Asymmetric = append(report.Asymmetric, a+"->"+b)
				broken = append(broken, pair{a, b})
			}
		}
	}
	if !fix {
		return report, nil
	}
	for _, p := range broken {
		if err := RemoveFriendship(ctx, store, p.a, p.b); err != nil {
			return report, fmt.Errorf("failed to repair %s->%s: %w", p.a, p.b, err)
		}
	}
	return report, nil
}
