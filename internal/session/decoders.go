package session

import (
	"habitsAPI/internal/docstore"
	"habitsAPI/internal/types/friendship"
	"habitsAPI/internal/types/journal"
	"habitsAPI/internal/types/notification"
	"habitsAPI/internal/types/profile"
	"habitsAPI/internal/types/timer"
)

func decodeProfile(owner string, s *docstore.Snapshot) (profile.Profile, error) {
	var p profile.Profile
	if err := s.DataTo(&p); err != nil {
		return p, err
	}
	p.UID = owner
	return p, nil
}

func notesQuery(owner string) docstore.Query {
	return docstore.Collection(docstore.NotesPath(owner))
}

func decodeNote(_ string, s *docstore.Snapshot) (journal.Note, error) {
	var n journal.Note
	if err := s.DataTo(&n); err != nil {
		return n, err
	}
	n.ID = s.ID
	return n, nil
}

func decodeFriends(_ string, s *docstore.Snapshot) (friendship.List, error) {
	var l friendship.List
	return l, s.DataTo(&l)
}

func decodeRequests(_ string, s *docstore.Snapshot) (friendship.Requests, error) {
	var r friendship.Requests
	return r, s.DataTo(&r)
}

func decodeTimer(_ string, s *docstore.Snapshot) (timer.State, error) {
	var t timer.State
	return t, s.DataTo(&t)
}

func decodeDevices(_ string, s *docstore.Snapshot) (notification.Devices, error) {
	var d notification.Devices
	return d, s.DataTo(&d)
}
