package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"habitsAPI/internal/session"
	"habitsAPI/middleware"
	"habitsAPI/services"
)

type SessionHandler struct {
	sessions
}

func NewSessionHandler(manager *services.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions{manager}}
}

// GET /api/v1/home - the current home view of the caller
func (h *SessionHandler) GetHome(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, sess.Home.Get())
}

// PUT /api/v1/home/view - switch the home view to a friend, or back to self
func (h *SessionHandler) ViewUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	var req struct {
		UID string `json:"uid"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := sess.ViewUser(req.UID); err != nil {
		if errors.Is(err, session.ErrNotStarted) {
			respondWithError(w, http.StatusServiceUnavailable, "Session is not available")
			return
		}
		respondWithServiceError(w, "SessionHandler.ViewUser", err)
		return
	}
	respondWithJSON(w, http.StatusOK, sess.Home.Get())
}

// POST /api/v1/session/end - sign-out, drops every cached listener of the caller
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	ended := h.manager.End(uid)
	respondWithJSON(w, http.StatusOK, map[string]bool{"ended": ended})
}
