package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// requireMethod 包装 handler，拒绝非预期 HTTP method
func requireMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterVoiceMessageRoutes 语音留言路由
func (r *Router) RegisterVoiceMessageRoutes(v *VoiceMessageHandler) {
	r.Handle("/voice-message/send", requireMethod(http.MethodPost, v.Send))
	r.Handle("/voice-message/latest-for-contact", requireMethod(http.MethodGet, v.LatestForContact))
}

// RegisterContactRoutes 紧急联系人邀请路由
func (r *Router) RegisterContactRoutes(c *ContactHandler) {
	r.Handle("/emergency_contact/invite", requireMethod(http.MethodPost, c.Invite))
	r.Handle("/emergency_contact/accept", requireMethod(http.MethodPost, c.Accept))
}

// RegisterUserRoutes 用户注册 + 打卡路由
func (r *Router) RegisterUserRoutes(u *UserHandler) {
	r.Handle("/users/signup", requireMethod(http.MethodPost, u.Signup))
	r.Handle("/checkin", requireMethod(http.MethodPost, u.Checkin))
}

// RegisterSOSRoutes SOS 路由
func (r *Router) RegisterSOSRoutes(s *SOSHandler) {
	r.Handle("/sos/trigger", requireMethod(http.MethodPost, s.Trigger))
}

// RegisterDeviceRoutes 设备令牌路由
func (r *Router) RegisterDeviceRoutes(d *DeviceHandler) {
	r.Handle("/devices/register", requireMethod(http.MethodPost, d.Register))
	r.Handle("/devices/unregister", requireMethod(http.MethodPost, d.Unregister))
}

// RegisterHealthRoutes 健康检查
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
}
