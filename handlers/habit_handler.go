package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"habitsAPI/internal/session"
	"habitsAPI/internal/types/habit"
	"habitsAPI/services"
)

type HabitHandler struct {
	sessions
	habitService *services.HabitService
}

func NewHabitHandler(manager *services.SessionManager, habitService *services.HabitService) *HabitHandler {
	return &HabitHandler{sessions: sessions{manager}, habitService: habitService}
}

// POST /api/v1/habits
func (h *HabitHandler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	var req habit.EditRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.habitService.Create(ctx, sess, &req)
	if err != nil {
		respondWithServiceError(w, "HabitHandler.CreateHabit", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// PUT /api/v1/habits/{id}
func (h *HabitHandler) EditHabit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	var req habit.EditRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	edited, err := h.habitService.Edit(ctx, sess, mux.Vars(r)["id"], &req)
	if err != nil {
		respondWithServiceError(w, "HabitHandler.EditHabit", err)
		return
	}
	respondWithJSON(w, http.StatusOK, edited)
}

// DELETE /api/v1/habits/{id}
func (h *HabitHandler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	if err := h.habitService.Delete(ctx, sess, mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, "HabitHandler.DeleteHabit", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Habit deleted"})
}

// PUT /api/v1/habits/{id}/status
func (h *HabitHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	var req habit.SetStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.habitService.SetStatus(ctx, sess, mux.Vars(r)["id"], req.Status)
	if err != nil {
		respondWithServiceError(w, "HabitHandler.SetStatus", err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// PUT /api/v1/habits/{id}/visibility
func (h *HabitHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	var req habit.SetVisibilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.habitService.SetVisibility(ctx, sess, mux.Vars(r)["id"], req.Visibility)
	if err != nil {
		respondWithServiceError(w, "HabitHandler.SetVisibility", err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// PUT /api/v1/habits/order
func (h *HabitHandler) SaveOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	var req habit.SaveOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.habitService.SaveOrder(ctx, sess, req.Order)
	if err != nil {
		respondWithServiceError(w, "HabitHandler.SaveOrder", err)
		return
	}
	respondWithJSON(w, http.StatusOK, habit.Order{Order: order})
}

// POST /api/v1/habits/shared
func (h *HabitHandler) ShareHabit(w http.ResponseWriter, r *http.Request) {
	h.editShared(w, r, "HabitHandler.ShareHabit", h.habitService.Share)
}

// DELETE /api/v1/habits/shared
func (h *HabitHandler) UnshareHabit(w http.ResponseWriter, r *http.Request) {
	h.editShared(w, r, "HabitHandler.UnshareHabit", h.habitService.Unshare)
}

type shareFunc func(context.Context, *session.Session, habit.SharedRef) ([]habit.SharedRef, error)

func (h *HabitHandler) editShared(w http.ResponseWriter, r *http.Request, op string, edit shareFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	var req habit.ShareRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	refs, err := edit(ctx, sess, habit.SharedRef{Owner: req.Owner, HabitID: req.HabitID})
	if err != nil {
		respondWithServiceError(w, op, err)
		return
	}
	respondWithJSON(w, http.StatusOK, habit.Shared{Refs: refs})
}
