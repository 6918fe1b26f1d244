package handlers

import (
	"context"
	"net/http"
	"time"

	"habitsAPI/internal/types/profile"
	"habitsAPI/middleware"
	"habitsAPI/services"
)

type ProfileHandler struct {
	sessions
	profileService *services.ProfileService
}

func NewProfileHandler(manager *services.SessionManager, profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{sessions: sessions{manager}, profileService: profileService}
}

// GET /api/v1/profile - creates the profile on first sign-in
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	uid, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	p, err := h.profileService.Ensure(ctx, uid, middleware.GetDisplayName(ctx))
	if err != nil {
		respondWithServiceError(w, "ProfileHandler.GetProfile", err)
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

// PUT /api/v1/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}

	var req profile.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.profileService.Update(ctx, sess, &req)
	if err != nil {
		respondWithServiceError(w, "ProfileHandler.UpdateProfile", err)
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

// PUT /api/v1/profile/username
func (h *ProfileHandler) SetUsername(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}

	var req profile.SetUsernameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	outcome, err := h.profileService.SetUsername(ctx, sess, req.Username)
	if err != nil {
		respondWithServiceError(w, "ProfileHandler.SetUsername", err)
		return
	}

	resp := profile.UsernameResponse{Outcome: outcome}
	if outcome == profile.UsernameOK {
		p, _ := sess.Profile.Value()
		resp.Username = p.Username
	}
	respondWithJSON(w, http.StatusOK, resp)
}
