package repository

import (
	"context"

	"lifesignal-data/internal/domain"
	"lifesignal-data/internal/store"
)

// UsersRepository 用户 profile 读取接口
type UsersRepository interface {
	GetUser(ctx context.Context, uid string) (*domain.User, error)
	// GetUserData 取原始 profile 文档（调用方需要未建模字段时使用）
	GetUserData(ctx context.Context, uid string) (map[string]any, error)
}

type usersRepo struct {
	docs store.DocStore
}

func NewUsersRepo(docs store.DocStore) UsersRepository {
	return &usersRepo{docs: docs}
}

func (r *usersRepo) GetUser(ctx context.Context, uid string) (*domain.User, error) {
	data, err := r.docs.Get(ctx, domain.UserPath(uid))
	if err != nil {
		return nil, err
	}
	return domain.ParseUser(uid, data), nil
}

func (r *usersRepo) GetUserData(ctx context.Context, uid string) (map[string]any, error) {
	return r.docs.Get(ctx, domain.UserPath(uid))
}
