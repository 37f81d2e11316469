package service

import (
	"context"
	"errors"
	"time"

	"lifesignal-data/internal/domain"
	"lifesignal-data/internal/identity"
	"lifesignal-data/internal/store"

	"go.uber.org/zap"
)

// SignupRequest 注册/补全 profile 请求
type SignupRequest struct {
	Role                 string `json:"role"`
	FirstName            string `json:"firstName"`
	LastName             string `json:"lastName"`
	Email                string `json:"email"`
	Phone                string `json:"phone"`
	CheckinIntervalHours int    `json:"checkinIntervalHours"`
}

// ProfileService 用户 profile 维护
// 注册是 merge-on-write：重复调用幂等，不会覆盖未提及字段
type ProfileService struct {
	docs   store.DocStore
	logger *zap.Logger
	now    func() time.Time
}

func NewProfileService(docs store.DocStore, logger *zap.Logger) *ProfileService {
	return &ProfileService{docs: docs, logger: logger, now: time.Now}
}

// Signup 为已验证身份建立或补全 profile 文档
func (s *ProfileService) Signup(ctx context.Context, caller *identity.Session, req SignupRequest) error {
	data := map[string]any{}

	if req.Role != "" {
		role := identity.NormalizeRole(req.Role)
		if role == identity.RoleUnknown {
			return NewError(CodeValidation, "unrecognized role")
		}
		data["role"] = string(role)
	}
	if req.FirstName != "" {
		data["firstName"] = req.FirstName
	}
	if req.LastName != "" {
		data["lastName"] = req.LastName
	}
	if email := identity.NormalizeEmail(req.Email); email != "" {
		data["email"] = email
	} else if caller.Email != "" {
		data["email"] = caller.Email
	}
	if phone := identity.NormalizePhone(req.Phone); phone != "" {
		data["phone"] = phone
	}
	if req.CheckinIntervalHours > 0 {
		data["checkinIntervalHours"] = float64(req.CheckinIntervalHours)
	}

	// createdAt 只在首次写入
	if _, err := s.docs.Get(ctx, domain.UserPath(caller.UID)); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return Internal("failed to load profile", err)
		}
		data["createdAt"] = s.now().UTC().Format(time.RFC3339)
	}

	if err := s.docs.RunBatch(ctx, []store.Op{
		{Path: domain.UserPath(caller.UID), Data: data, Merge: true},
	}); err != nil {
		return Internal("failed to persist profile", err)
	}

	s.logger.Info("Profile upserted", zap.String("uid", caller.UID))
	return nil
}
