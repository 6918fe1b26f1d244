package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"habitsAPI/internal/session"
	"habitsAPI/middleware"
	"habitsAPI/services"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps service errors onto HTTP statuses.
func respondWithServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrHabitNotFound), errors.Is(err, services.ErrNoteNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNotTimeable):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrTimerRunning), errors.Is(err, services.ErrTimerNotActive):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrNotFriends):
		respondWithError(w, http.StatusForbidden, err.Error())
	default:
		log.Printf("%s: %v", op, err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// sessions resolves the caller's live session.
type sessions struct {
	manager *services.SessionManager
}

func (s sessions) resolve(ctx context.Context, w http.ResponseWriter) (*session.Session, bool) {
	uid, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return nil, false
	}
	sess, err := s.manager.Get(ctx, uid)
	if err != nil {
		log.Printf("Session: failed to load session of %s: %v", uid, err)
		respondWithError(w, http.StatusServiceUnavailable, "Session is not available")
		return nil, false
	}
	return sess, true
}
