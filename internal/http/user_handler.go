package httpapi

import (
	"net/http"
	"time"

	"lifesignal-data/internal/identity"
	"lifesignal-data/internal/service"

	"go.uber.org/zap"
)

// UserHandler 用户 profile / 打卡 Handler
type UserHandler struct {
	profile  *service.ProfileService
	checkin  *service.CheckinService
	verifier identity.Verifier
	logger   *zap.Logger
}

func NewUserHandler(profile *service.ProfileService, checkin *service.CheckinService, verifier identity.Verifier, logger *zap.Logger) *UserHandler {
	return &UserHandler{profile: profile, checkin: checkin, verifier: verifier, logger: logger}
}

// Signup POST /users/signup（merge-on-write，重复调用幂等）
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	session, err := authenticate(r, h.verifier)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	var req service.SignupRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	if err := h.profile.Signup(r.Context(), session, req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Checkin POST /checkin
func (h *UserHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	session, err := authenticate(r, h.verifier)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	result, err := h.checkin.Checkin(r.Context(), session.UID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"nextCheckinDue": result.NextCheckinDue.UTC().Format(time.RFC3339),
	})
}
