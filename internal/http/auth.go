package httpapi

import (
	"net/http"
	"strings"

	"lifesignal-data/internal/identity"
	"lifesignal-data/internal/service"
)

// authenticate 从 Authorization: Bearer 取会话凭证并验证
func authenticate(r *http.Request, verifier identity.Verifier) (*identity.Session, error) {
	header := r.Header.Get("Authorization")
	credential := ""
	if strings.HasPrefix(header, "Bearer ") {
		credential = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if credential == "" {
		return nil, service.NewError(service.CodeUnauthenticated, "missing session credential")
	}

	session, err := verifier.Verify(r.Context(), credential)
	if err != nil {
		return nil, service.NewError(service.CodeUnauthenticated, "invalid session credential")
	}
	return session, nil
}
