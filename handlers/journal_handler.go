package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"habitsAPI/internal/types/journal"
	"habitsAPI/services"
)

type JournalHandler struct {
	sessions
	journalService *services.JournalService
}

func NewJournalHandler(manager *services.SessionManager, journalService *services.JournalService) *JournalHandler {
	return &JournalHandler{sessions: sessions{manager}, journalService: journalService}
}

// POST /api/v1/notes
func (h *JournalHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	var req journal.NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	note, err := h.journalService.Create(ctx, sess, &req)
	if err != nil {
		respondWithServiceError(w, "JournalHandler.CreateNote", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, note)
}

// PUT /api/v1/notes/{id}
func (h *JournalHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	var req journal.NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	note, err := h.journalService.Update(ctx, sess, mux.Vars(r)["id"], &req)
	if err != nil {
		respondWithServiceError(w, "JournalHandler.UpdateNote", err)
		return
	}
	respondWithJSON(w, http.StatusOK, note)
}

// DELETE /api/v1/notes/{id}
func (h *JournalHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	if err := h.journalService.Delete(ctx, sess, mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, "JournalHandler.DeleteNote", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Note deleted"})
}
