package httpapi

import (
	"net/http"
	"strings"

	"lifesignal-data/internal/identity"
	"lifesignal-data/internal/repository"
	"lifesignal-data/internal/service"

	"go.uber.org/zap"
)

// DeviceHandler 设备推送令牌注册 Handler
type DeviceHandler struct {
	devices  repository.DevicesRepository
	verifier identity.Verifier
	logger   *zap.Logger
}

func NewDeviceHandler(devices repository.DevicesRepository, verifier identity.Verifier, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{devices: devices, verifier: verifier, logger: logger}
}

type deviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// Register POST /devices/register
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	session, err := authenticate(r, h.verifier)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	var req deviceRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeServiceError(w, h.logger, service.NewError(service.CodeValidation, "token is required"))
		return
	}

	if err := h.devices.Register(r.Context(), session.UID, req.Token, req.Platform); err != nil {
		writeServiceError(w, h.logger, service.Internal("failed to register device", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Unregister POST /devices/unregister
func (h *DeviceHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	session, err := authenticate(r, h.verifier)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	var req deviceRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeServiceError(w, h.logger, service.NewError(service.CodeValidation, "token is required"))
		return
	}

	if err := h.devices.Unregister(r.Context(), session.UID, req.Token); err != nil {
		writeServiceError(w, h.logger, service.Internal("failed to unregister device", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
