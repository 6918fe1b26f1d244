package handlers

import (
	"context"
	"net/http"
	"time"

	"habitsAPI/internal/types/notification"
	"habitsAPI/services"
)

type DeviceHandler struct {
	sessions
	deviceService *services.DeviceService
}

func NewDeviceHandler(manager *services.SessionManager, deviceService *services.DeviceService) *DeviceHandler {
	return &DeviceHandler{sessions: sessions{manager}, deviceService: deviceService}
}

// POST /api/v1/devices - register a push token for the caller
func (h *DeviceHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, ok := h.resolve(ctx, w)
	if !ok {
		return
	}

	var req notification.RegisterDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.deviceService.RegisterDevice(ctx, sess, &req); err != nil {
		respondWithServiceError(w, "DeviceHandler.RegisterDevice", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Device registered successfully"})
}
