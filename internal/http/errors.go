package httpapi

import (
	"net/http"

	"lifesignal-data/internal/service"

	"go.uber.org/zap"
)

// statusForCode 错误分类 → HTTP 状态码
func statusForCode(code service.ErrorCode) int {
	switch code {
	case service.CodeUnauthenticated:
		return http.StatusUnauthorized
	case service.CodeForbidden, service.CodeTokenMismatch, service.CodeEmailMismatch:
		return http.StatusForbidden
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeAmbiguous:
		return http.StatusConflict
	case service.CodeAlreadyUsed:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError 统一错误响应：{"error": ...}
// 409 歧义附带候选身份键；INTERNAL 只返回笼统文案，细节进日志
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	svcErr := service.AsError(err)
	status := statusForCode(svcErr.Code)

	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		writeJSON(w, status, map[string]any{"error": "internal error"})
		return
	}

	body := map[string]any{"error": svcErr.Message}
	if svcErr.Code == service.CodeAmbiguous {
		body["candidates"] = svcErr.Candidates
	}
	writeJSON(w, status, body)
}
