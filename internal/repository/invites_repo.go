package repository

import (
	"context"

	"lifesignal-data/internal/domain"
	"lifesignal-data/internal/store"
)

// InvitesRepository 邀请读取接口
// 写入不在这里：状态变更必须经过服务层的存储事务（状态守卫 + 镜像修复一起提交）
type InvitesRepository interface {
	GetInvite(ctx context.Context, inviteID string) (*domain.Invite, error)
	FindByToken(ctx context.Context, token string) (*domain.Invite, error)
	// FindPending 查找某主用户对某规范化邮箱的 pending 邀请（幂等创建用）
	FindPending(ctx context.Context, mainUserUid, email string) (*domain.Invite, error)
}

type invitesRepo struct {
	docs store.DocStore
}

func NewInvitesRepo(docs store.DocStore) InvitesRepository {
	return &invitesRepo{docs: docs}
}

func (r *invitesRepo) GetInvite(ctx context.Context, inviteID string) (*domain.Invite, error) {
	data, err := r.docs.Get(ctx, domain.InvitePath(inviteID))
	if err != nil {
		return nil, err
	}
	return domain.ParseInvite(inviteID, data), nil
}

func (r *invitesRepo) FindByToken(ctx context.Context, token string) (*domain.Invite, error) {
	docs, err := r.docs.Query(ctx, domain.CollectionInvites,
		store.Filter{Field: "token", Value: token})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}
	_, id, err := store.SplitPath(docs[0].Path)
	if err != nil {
		return nil, err
	}
	return domain.ParseInvite(id, docs[0].Data), nil
}

func (r *invitesRepo) FindPending(ctx context.Context, mainUserUid, email string) (*domain.Invite, error) {
	docs, err := r.docs.Query(ctx, domain.CollectionInvites,
		store.Filter{Field: "mainUserUid", Value: mainUserUid},
		store.Filter{Field: "email", Value: email},
		store.Filter{Field: "status", Value: domain.InviteStatusPending})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}
	_, id, err := store.SplitPath(docs[0].Path)
	if err != nil {
		return nil, err
	}
	return domain.ParseInvite(id, docs[0].Data), nil
}
