package httpapi

import (
	"net/http"

	"lifesignal-data/internal/identity"
	"lifesignal-data/internal/service"

	"go.uber.org/zap"
)

// SOSHandler SOS 求救 Handler
type SOSHandler struct {
	sos      *service.SOSService
	verifier identity.Verifier
	logger   *zap.Logger
}

func NewSOSHandler(sos *service.SOSService, verifier identity.Verifier, logger *zap.Logger) *SOSHandler {
	return &SOSHandler{sos: sos, verifier: verifier, logger: logger}
}

// Trigger POST /sos/trigger
func (h *SOSHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	session, err := authenticate(r, h.verifier)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	var req service.SOSRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	result, err := h.sos.Trigger(r.Context(), session.UID, req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"eventId":  result.EventID,
		"notified": result.Notified,
		"called":   result.Called,
	})
}
