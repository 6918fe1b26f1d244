package handlers

import (
	"context"
	"net/http"
	"time"

	"habitsAPI/internal/types/timer"
	"habitsAPI/services"
)

type TimerHandler struct {
	sessions
	timerService *services.TimerService
}

func NewTimerHandler(manager *services.SessionManager, timerService *services.TimerService) *TimerHandler {
	return &TimerHandler{sessions: sessions{manager}, timerService: timerService}
}

// POST /api/v1/timer/start
func (h *TimerHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	var req timer.StartRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	status, err := h.timerService.Start(ctx, sess, req.HabitID)
	if err != nil {
		respondWithServiceError(w, "TimerHandler.Start", err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// POST /api/v1/timer/stop
func (h *TimerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}

	resp, err := h.timerService.Stop(ctx, sess)
	if err != nil {
		respondWithServiceError(w, "TimerHandler.Stop", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// GET /api/v1/timer
func (h *TimerHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.timerService.Status(sess))
}
