package httpapi

import (
	"net/http"

	"lifesignal-data/internal/identity"
	"lifesignal-data/internal/service"

	"go.uber.org/zap"
)

// ContactHandler 联系人邀请 Handler
type ContactHandler struct {
	invites  *service.InviteService
	verifier identity.Verifier
	logger   *zap.Logger
}

func NewContactHandler(invites *service.InviteService, verifier identity.Verifier, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{invites: invites, verifier: verifier, logger: logger}
}

// Invite POST /emergency_contact/invite
func (h *ContactHandler) Invite(w http.ResponseWriter, r *http.Request) {
	session, err := authenticate(r, h.verifier)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	var req service.CreateInviteRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	result, err := h.invites.CreateOrRefreshInvite(r.Context(), session.UID, req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"inviteId": result.InviteID,
	})
}

// Accept POST /emergency_contact/accept
func (h *ContactHandler) Accept(w http.ResponseWriter, r *http.Request) {
	session, err := authenticate(r, h.verifier)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	var req service.AcceptInviteRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	if err := h.invites.AcceptInvite(r.Context(), session, req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
