package service

import (
	"context"
	"errors"

	"lifesignal-data/internal/identity"
	"lifesignal-data/internal/repository"
	"lifesignal-data/internal/store"
)

// requireMainUser 加载调用方 profile 并要求规范化角色为 main_user
func requireMainUser(ctx context.Context, users repository.UsersRepository, uid string) error {
	user, err := users.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewError(CodeForbidden, "caller has no profile")
		}
		return Internal("failed to load caller profile", err)
	}
	if identity.NormalizeRole(user.Role) != identity.RoleMainUser {
		return NewError(CodeForbidden, "caller is not a main user")
	}
	return nil
}
