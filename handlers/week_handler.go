package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"habitsAPI/internal/types/week"
	"habitsAPI/services"
)

type WeekHandler struct {
	sessions
	weekService *services.WeekService
}

func NewWeekHandler(manager *services.SessionManager, weekService *services.WeekService) *WeekHandler {
	return &WeekHandler{sessions: sessions{manager}, weekService: weekService}
}

// PUT /api/v1/weeks/{week}/trackers
func (h *WeekHandler) SetTracker(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	var req week.SetTrackerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.weekService.SetTracker(ctx, sess, mux.Vars(r)["week"], &req)
	if err != nil {
		respondWithServiceError(w, "WeekHandler.SetTracker", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// POST /api/v1/weeks/{week}/trackers/cycle
func (h *WeekHandler) CycleTracker(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	var req week.CycleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.weekService.CycleTracker(ctx, sess, mux.Vars(r)["week"], &req)
	if err != nil {
		respondWithServiceError(w, "WeekHandler.CycleTracker", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// PUT /api/v1/weeks/{week}/icon
func (h *WeekHandler) SetIcon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	var req week.SetIconRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	key := mux.Vars(r)["week"]
	if err := h.weekService.SetWeekIcon(ctx, sess, key, req.Icon); err != nil {
		respondWithServiceError(w, "WeekHandler.SetIcon", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"week": key, "icon": req.Icon})
}
