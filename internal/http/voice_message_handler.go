package httpapi

import (
	"net/http"
	"time"

	"lifesignal-data/internal/identity"
	"lifesignal-data/internal/service"

	"go.uber.org/zap"
)

// VoiceMessageHandler 语音消息 Handler
type VoiceMessageHandler struct {
	voice    *service.VoiceMessageService
	verifier identity.Verifier
	logger   *zap.Logger
}

func NewVoiceMessageHandler(voice *service.VoiceMessageService, verifier identity.Verifier, logger *zap.Logger) *VoiceMessageHandler {
	return &VoiceMessageHandler{voice: voice, verifier: verifier, logger: logger}
}

// Send POST /voice-message/send
func (h *VoiceMessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	session, err := authenticate(r, h.verifier)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	var req service.SendVoiceMessageRequest
	if err := readBodyJSON(r, 1<<22, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	result, err := h.voice.Send(r.Context(), session.UID, req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"updatedDocs": result.UpdatedDocs,
		"mirrors":     result.Mirrors,
		"pushed":      result.Pushed,
		"pushSuccess": result.PushSuccess,
		"pushFailure": result.PushFailure,
	})
}

// LatestForContact GET /voice-message/latest-for-contact?contactUid=
func (h *VoiceMessageHandler) LatestForContact(w http.ResponseWriter, r *http.Request) {
	session, err := authenticate(r, h.verifier)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	contactUid := r.URL.Query().Get("contactUid")
	msg, err := h.voice.LatestForContact(r.Context(), session.UID, contactUid)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if msg == nil {
		writeJSON(w, http.StatusOK, map[string]any{"latest": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"latest": map[string]any{
			"audioUrl":   msg.AudioURL,
			"transcript": msg.Transcript,
			"createdAt":  msg.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
}
