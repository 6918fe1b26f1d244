// Package triggers maintains invariants that span users: the username
// mapping, symmetric friend lists and the jobs that keep them in sync.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"log"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/types/profile"
)

var ErrUsernameTaken = errors.New("username is taken")

// SyncUsername moves the usernames mapping of uid from oldName to newName
// inside tx. The caller must not have written in tx yet.
func SyncUsername(tx docstore.Tx, uid, oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	if newName != "" {
		snap, err := tx.Get(docstore.UsernamePath(newName))
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("failed to read username %s: %w", newName, err)
		}
		if snap != nil && snap.Exists {
			var entry profile.UsernameEntry
			if err := snap.DataTo(&entry); err != nil {
				return fmt.Errorf("failed to decode username %s: %w", newName, err)
			}
			if entry.UID != uid {
				return ErrUsernameTaken
			}
		}
	}
	if oldName != "" {
		snap, err := tx.Get(docstore.UsernamePath(oldName))
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("failed to read username %s: %w", oldName, err)
		}
		var entry profile.UsernameEntry
		if snap != nil && snap.Exists && snap.DataTo(&entry) == nil && entry.UID == uid {
			if err := tx.Delete(docstore.UsernamePath(oldName)); err != nil {
				return err
			}
		}
	}
	if newName == "" {
		return nil
	}
	return tx.Set(docstore.UsernamePath(newName), map[string]interface{}{"uid": uid})
}

// LookupUsername resolves a username to a uid.
func LookupUsername(ctx context.Context, store docstore.Store, username string) (string, error) {
	snap, err := store.Get(ctx, docstore.UsernamePath(username))
	if err != nil {
		return "", err
	}
	var entry profile.UsernameEntry
	if err := snap.DataTo(&entry); err != nil {
		return "", fmt.Errorf("failed to decode username %s: %w", username, err)
	}
	if entry.UID == "" {
		return "", docstore.ErrNotFound
	}
	return entry.UID, nil
}

type UsernameReport struct {
	// Missing are profiles whose username has no mapping.
	Missing map[string]string
	// Orphaned are mappings whose uid no longer claims the username.
	Orphaned []string
}

func (r UsernameReport) Clean() bool {
	return len(r.Missing) == 0 && len(r.Orphaned) == 0
}

// CheckUsernames compares every profile against the usernames collection
// and, with fix, recreates missing mappings and deletes orphans.
func CheckUsernames(ctx context.Context, store docstore.Store, fix bool) (UsernameReport, error) {
	report := UsernameReport{Missing: map[string]string{}}

	users, err := store.Query(ctx, docstore.Collection(docstore.UsersCollection))
	if err != nil {
		return report, fmt.Errorf("failed to list users: %w", err)
	}
	claimed := map[string]string{}
	for _, u := range users {
		var p profile.Profile
		if err := u.DataTo(&p); err != nil {
			log.Printf("CheckUsernames: skipping %s: %v", u.ID, err)
			continue
		}
		if p.Username != "" {
			claimed[p.Username] = u.ID
		}
	}

	mappings, err := store.Query(ctx, docstore.Collection(docstore.UsernamesCollection))
	if err != nil {
		return report, fmt.Errorf("failed to list usernames: %w", err)
	}
	mapped := map[string]bool{}
	for _, m := range mappings {
		var entry profile.UsernameEntry
		if err := m.DataTo(&entry); err != nil || claimed[m.ID] != entry.UID {
			report.Orphaned = append(report.Orphaned, m.ID)
			continue
		}
		mapped[m.ID] = true
	}
	for name, uid := range claimed {
		if !mapped[name] {
			report.Missing[name] = uid
		}
	}

	if !fix {
		return report, nil
	}
	for _, name := range report.Orphaned {
		if err := store.Delete(ctx, docstore.UsernamePath(name)); err != nil {
			return report, fmt.Errorf("failed to delete orphan %s: %w", name, err)
		}
	}
	for name, uid := range report.Missing {
		if err := store.Set(ctx, docstore.UsernamePath(name), map[string]interface{}{"uid": uid}); err != nil {
			return report, fmt.Errorf("failed to restore %s: %w", name, err)
		}
	}
	return report, nil
}
