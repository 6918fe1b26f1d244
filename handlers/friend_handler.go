package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"habitsAPI/internal/session"
	"habitsAPI/internal/types/friendship"
	"habitsAPI/services"
)

type FriendHandler struct {
	sessions
	friendService *services.FriendService
}

func NewFriendHandler(manager *services.SessionManager, friendService *services.FriendService) *FriendHandler {
	return &FriendHandler{sessions: sessions{manager}, friendService: friendService}
}

// GET /api/v1/friends
func (h *FriendHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.friendService.Overview(sess))
}

// POST /api/v1/friends/requests
func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}
	var req friendship.SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	outcome, err := h.friendService.SendRequest(ctx, sess, req.Username)
	if err != nil {
		respondWithServiceError(w, "FriendHandler.SendRequest", err)
		return
	}
	respondWithJSON(w, http.StatusOK, friendship.OutcomeResponse{Outcome: outcome})
}

// POST /api/v1/friends/requests/{uid}/accept
func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.withPeer(w, r, "FriendHandler.AcceptRequest", h.friendService.Accept)
}

// POST /api/v1/friends/requests/{uid}/decline
func (h *FriendHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	h.withPeer(w, r, "FriendHandler.DeclineRequest", h.friendService.Decline)
}

// POST /api/v1/friends/requests/{uid}/cancel
func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.withPeer(w, r, "FriendHandler.CancelRequest", h.friendService.Cancel)
}

// DELETE /api/v1/friends/{uid}
func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	h.withPeer(w, r, "FriendHandler.RemoveFriend", h.friendService.Remove)
}

type peerFunc func(context.Context, *session.Session, string) (friendship.Outcome, error)

func (h *FriendHandler) withPeer(w http.ResponseWriter, r *http.Request, op string, fn peerFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}

	outcome, err := fn(ctx, sess, mux.Vars(r)["uid"])
	if err != nil {
		respondWithServiceError(w, op, err)
		return
	}
	respondWithJSON(w, http.StatusOK, friendship.OutcomeResponse{Outcome: outcome})
}
