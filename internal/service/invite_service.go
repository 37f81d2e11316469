package service

import (
	"context"
	"errors"
	"time"

	"lifesignal-data/internal/domain"
	"lifesignal-data/internal/identity"
	"lifesignal-data/internal/repository"
	"lifesignal-data/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateInviteRequest 邀请创建/刷新请求
type CreateInviteRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	Relation string `json:"relation"`
}

// CreateInviteResult 邀请创建结果
type CreateInviteResult struct {
	InviteID string `json:"inviteId"`
	Token    string `json:"token"`
}

// AcceptInviteRequest 邀请接受请求（inviteId 和 token 至少一个）
type AcceptInviteRequest struct {
	InviteID string `json:"inviteId"`
	Token    string `json:"token"`
}

// InviteService 邀请与链接解析
//
// 接受流程在单个存储事务内完成状态守卫 + 双镜像修复 + 状态翻转，
// 并发接受同一邀请至多一次成功；接受后的重试会命中状态守卫被拒绝
type InviteService struct {
	docs    store.DocStore
	invites repository.InvitesRepository
	links   repository.LinksRepository
	users   repository.UsersRepository
	logger  *zap.Logger
	now     func() time.Time
}

func NewInviteService(
	docs store.DocStore,
	invites repository.InvitesRepository,
	links repository.LinksRepository,
	users repository.UsersRepository,
	logger *zap.Logger,
) *InviteService {
	return &InviteService{
		docs:    docs,
		invites: invites,
		links:   links,
		users:   users,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateOrRefreshInvite 幂等创建：同一（主用户, 规范化邮箱）的 pending 邀请
// 被复用并轮换 token，而不是产生重复邀请；同时补齐顶层镜像链接文档
func (s *InviteService) CreateOrRefreshInvite(ctx context.Context, mainUserUid string, req CreateInviteRequest) (*CreateInviteResult, error) {
	email := identity.NormalizeEmail(req.Email)
	if email == "" {
		return nil, NewError(CodeValidation, "email is required")
	}
	phone := identity.NormalizePhone(req.Phone)

	if err := requireMainUser(ctx, s.users, mainUserUid); err != nil {
		return nil, err
	}

	now := s.now()
	token := uuid.NewString()

	inviteID := ""
	existing, err := s.invites.FindPending(ctx, mainUserUid, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, Internal("failed to look up pending invite", err)
	}
	if existing != nil {
		inviteID = existing.ID
	} else {
		inviteID = uuid.NewString()
	}

	ops := []store.Op{{
		Path: domain.InvitePath(inviteID),
		Data: map[string]any{
			"mainUserUid": mainUserUid,
			"email":       email,
			"token":       token,
			"status":      domain.InviteStatusPending,
			"relation":    req.Relation,
			"createdAt":   now.UTC().Format(time.RFC3339),
		},
		Merge: true,
	}}

	// 顶层镜像链接：已有匹配该邮箱的文档则刷新，否则新建 pending 链接
	linkOp, err := s.upsertTopLevelLinkOp(ctx, mainUserUid, email, phone, req)
	if err != nil {
		return nil, err
	}
	ops = append(ops, linkOp)

	if err := s.docs.RunBatch(ctx, ops); err != nil {
		return nil, Internal("failed to persist invite", err)
	}

	s.logger.Info("Invite created or refreshed",
		zap.String("main_user_uid", mainUserUid),
		zap.String("invite_id", inviteID),
		zap.Bool("refreshed", existing != nil),
	)
	return &CreateInviteResult{InviteID: inviteID, Token: token}, nil
}

func (s *InviteService) upsertTopLevelLinkOp(ctx context.Context, mainUserUid, email, phone string, req CreateInviteRequest) (store.Op, error) {
	topLevel, _, err := s.links.FetchMirrors(ctx, mainUserUid)
	if err != nil {
		return store.Op{}, Internal("failed to fetch contact mirrors", err)
	}

	data := map[string]any{
		domain.FieldMainUserUid: mainUserUid,
		"email":                 email,
	}
	if phone != "" {
		data["phone"] = phone
	}
	if req.Name != "" {
		data["name"] = req.Name
	}
	if req.Relation != "" {
		data["relation"] = req.Relation
	}

	for _, doc := range topLevel {
		if docMatchesTarget(doc.Data, email, "") {
			return store.Op{Path: doc.Path, Data: data, Merge: true}, nil
		}
	}

	data[domain.FieldStatus] = domain.LinkStatusPending
	return store.Op{Path: domain.LinkPath(uuid.NewString()), Data: data, Merge: true}, nil
}

// AcceptInvite 接受邀请
// 守卫顺序：存在性 → 状态（单次使用）→ token → 接受者身份邮箱
// 全部通过后在同一事务里：子集合镜像置 ACTIVE、顶层镜像绑定 uid、邀请翻转为 accepted
func (s *InviteService) AcceptInvite(ctx context.Context, caller *identity.Session, req AcceptInviteRequest) error {
	if req.InviteID == "" && req.Token == "" {
		return NewError(CodeValidation, "inviteId or token is required")
	}

	invite, err := s.locateInvite(ctx, req)
	if err != nil {
		return err
	}

	callerEmail, err := s.callerEmail(ctx, caller)
	if err != nil {
		return err
	}

	// 事务外先定位需要修复的顶层镜像文档（读集合），修复本身在事务内提交
	topLevel, _, err := s.links.FetchMirrors(ctx, invite.MainUserUid)
	if err != nil {
		return Internal("failed to fetch contact mirrors", err)
	}
	var repairPaths []string
	for _, doc := range topLevel {
		if docMatchesTarget(doc.Data, invite.Email, "") {
			repairPaths = append(repairPaths, doc.Path)
		}
	}

	now := s.now()
	err = s.docs.RunTransaction(ctx, func(tx store.Tx) error {
		// 状态守卫必须在事务内重读：两个并发接受至多一个成功
		data, err := tx.Get(domain.InvitePath(invite.ID))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NewError(CodeNotFound, "invite not found")
			}
			return Internal("failed to load invite", err)
		}
		current := domain.ParseInvite(invite.ID, data)

		if current.Status != domain.InviteStatusPending {
			return NewError(CodeAlreadyUsed, "invite has already been used")
		}
		if req.Token != "" && req.Token != current.Token {
			return NewError(CodeTokenMismatch, "invite token does not match")
		}
		if current.Email != callerEmail {
			// 硬性终止：应当以受邀身份重新登录，而不是静默接受
			return NewError(CodeEmailMismatch, "invite was sent to a different email")
		}

		// (a) 子集合镜像：以接受者 uid 为键置 ACTIVE
		tx.Set(store.Op{
			Path: domain.ContactPath(current.MainUserUid, caller.UID),
			Data: map[string]any{
				domain.FieldEmergencyContactUid: caller.UID,
				"email":                         callerEmail,
				domain.FieldStatus:              domain.LinkStatusActive,
				"linkedAt":                      now.UTC().Format(time.RFC3339),
			},
			Merge: true,
		})

		// (b) 顶层镜像修复：绑定 emergencyContactUid，两个镜像从此对同一
		// 联系人指向同一 uid
		if len(repairPaths) == 0 {
			repairPaths = []string{domain.LinkPath(uuid.NewString())}
		}
		for _, path := range repairPaths {
			tx.Set(store.Op{
				Path: path,
				Data: map[string]any{
					domain.FieldMainUserUid:         current.MainUserUid,
					domain.FieldEmergencyContactUid: caller.UID,
					"email":                         callerEmail,
					domain.FieldStatus:              domain.LinkStatusActive,
				},
				Merge: true,
			})
		}

		// (c) 邀请翻转为 accepted，之后不可再进入
		tx.Set(store.Op{
			Path: domain.InvitePath(current.ID),
			Data: map[string]any{
				"status":        domain.InviteStatusAccepted,
				"acceptedByUid": caller.UID,
				"acceptedAt":    now.UTC().Format(time.RFC3339),
			},
			Merge: true,
		})
		return nil
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return svcErr
		}
		return Internal("failed to accept invite", err)
	}

	s.logger.Info("Invite accepted",
		zap.String("invite_id", invite.ID),
		zap.String("main_user_uid", invite.MainUserUid),
		zap.String("contact_uid", caller.UID),
	)
	return nil
}

func (s *InviteService) locateInvite(ctx context.Context, req AcceptInviteRequest) (*domain.Invite, error) {
	var invite *domain.Invite
	var err error
	if req.InviteID != "" {
		invite, err = s.invites.GetInvite(ctx, req.InviteID)
	} else {
		invite, err = s.invites.FindByToken(ctx, req.Token)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewError(CodeNotFound, "invite not found")
		}
		return nil, Internal("failed to load invite", err)
	}
	return invite, nil
}

// callerEmail 接受者的规范化邮箱：优先会话 claims，缺失时回退 profile
func (s *InviteService) callerEmail(ctx context.Context, caller *identity.Session) (string, error) {
	if caller.Email != "" {
		return caller.Email, nil
	}
	user, err := s.users.GetUser(ctx, caller.UID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", NewError(CodeEmailMismatch, "caller identity has no email")
		}
		return "", Internal("failed to load caller profile", err)
	}
	email := identity.NormalizeEmail(user.Email)
	if email == "" {
		return "", NewError(CodeEmailMismatch, "caller identity has no email")
	}
	return email, nil
}
