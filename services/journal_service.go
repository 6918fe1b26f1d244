package services

import (
	"context"
	"fmt"
	"strings"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/session"
	"habitsAPI/internal/types/journal"
	"habitsAPI/internal/types/week"
	"habitsAPI/utils"
)

// JournalService manages notes. A note's id is listed in the notes of the
// week its date falls in; both documents change in one transaction.
type JournalService struct {
	store docstore.Store
}

func NewJournalService(store docstore.Store) *JournalService {
	return &JournalService{store: store}
}

func (s *JournalService) validate(sess *session.Session, req *journal.NoteRequest) (string, error) {
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Content) == "" {
		return "", fmt.Errorf("%w: a note needs a title or content", ErrInvalidInput)
	}
	day, err := utils.ParseDate(req.Date, sess.Clock.Location())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return utils.WeekKey(day), nil
}

func (s *JournalService) Create(ctx context.Context, sess *session.Session, req *journal.NoteRequest) (*journal.Note, error) {
	key, err := s.validate(sess, req)
	if err != nil {
		return nil, err
	}
	note := journal.Note{
		ID:      utils.NoteID(),
		Icon:    req.Icon,
		Title:   strings.TrimSpace(req.Title),
		Content: req.Content,
		Date:    req.Date,
		HabitID: req.HabitID,
	}

	sess.Notes.Mutate(ctx, func(items map[string]journal.Note) {
		items[note.ID] = note
	}, nil)
	err = sess.Weeks.Mutate(ctx, key, func(r *week.Record) {
		r.StartDate = key
		r.Notes = appendUnique(r.Notes, note.ID)
	}, func(ctx context.Context) error {
		return s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			notes, err := readWeekNotes(tx, sess.UID, key)
			if err != nil {
				return err
			}
			if err := tx.Set(docstore.NotePath(sess.UID, note.ID), note.Fields()); err != nil {
				return err
			}
			return writeWeekNotes(tx, sess.UID, key, appendUnique(notes, note.ID))
		})
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// Update rewrites a note, moving its id between weeks when the date changes.
func (s *JournalService) Update(ctx context.Context, sess *session.Session, id string, req *journal.NoteRequest) (*journal.Note, error) {
	current, ok := sess.Notes.Get(id)
	if !ok {
		return nil, ErrNoteNotFound
	}
	key, err := s.validate(sess, req)
	if err != nil {
		return nil, err
	}
	oldKey := key
	if day, err := utils.ParseDate(current.Date, sess.Clock.Location()); err == nil {
		oldKey = utils.WeekKey(day)
	}
	note := journal.Note{
		ID:      id,
		Icon:    req.Icon,
		Title:   strings.TrimSpace(req.Title),
		Content: req.Content,
		Date:    req.Date,
		HabitID: req.HabitID,
	}

	remote := func(ctx context.Context) error {
		return s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			newNotes, err := readWeekNotes(tx, sess.UID, key)
			if err != nil {
				return err
			}
			var oldNotes []string
			if oldKey != key {
				if oldNotes, err = readWeekNotes(tx, sess.UID, oldKey); err != nil {
					return err
				}
			}
			if err := tx.Set(docstore.NotePath(sess.UID, id), note.Fields()); err != nil {
				return err
			}
			if oldKey != key {
				if err := writeWeekNotes(tx, sess.UID, oldKey, without(oldNotes, id)); err != nil {
					return err
				}
			}
			return writeWeekNotes(tx, sess.UID, key, appendUnique(newNotes, id))
		})
	}

	sess.Notes.Mutate(ctx, func(items map[string]journal.Note) {
		items[id] = note
	}, nil)
	if oldKey != key {
		sess.Weeks.Mutate(ctx, oldKey, func(r *week.Record) {
			r.Notes = without(r.Notes, id)
		}, nil)
	}
	err = sess.Weeks.Mutate(ctx, key, func(r *week.Record) {
		r.StartDate = key
		r.Notes = appendUnique(r.Notes, id)
	}, remote)
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (s *JournalService) Delete(ctx context.Context, sess *session.Session, id string) error {
	current, ok := sess.Notes.Get(id)
	if !ok {
		return ErrNoteNotFound
	}
	day, err := utils.ParseDate(current.Date, sess.Clock.Location())
	if err != nil {
		return sess.Notes.Mutate(ctx, func(items map[string]journal.Note) {
			delete(items, id)
		}, func(ctx context.Context) error {
			return s.store.Delete(ctx, docstore.NotePath(sess.UID, id))
		})
	}
	key := utils.WeekKey(day)

	sess.Notes.Mutate(ctx, func(items map[string]journal.Note) {
		delete(items, id)
	}, nil)
	return sess.Weeks.Mutate(ctx, key, func(r *week.Record) {
		r.Notes = without(r.Notes, id)
	}, func(ctx context.Context) error {
		return s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			notes, err := readWeekNotes(tx, sess.UID, key)
			if err != nil {
				return err
			}
			if err := tx.Delete(docstore.NotePath(sess.UID, id)); err != nil {
				return err
			}
			if !contains(notes, id) {
				return nil
			}
			return writeWeekNotes(tx, sess.UID, key, without(notes, id))
		})
	})
}

func readWeekNotes(tx docstore.Tx, uid, key string) ([]string, error) {
	rec, err := readWeek(tx, uid, key)
	if err != nil {
		return nil, err
	}
	return rec.Notes, nil
}

func writeWeekNotes(tx docstore.Tx, uid, key string, notes []string) error {
	return tx.Merge(docstore.WeekPath(uid, key), map[string]interface{}{
		"startDate": key,
		"notes":     week.NotesField(notes),
	})
}

func appendUnique(ids []string, id string) []string {
	if contains(ids, id) {
		return ids
	}
	return append(append([]string(nil), ids...), id)
}
