package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DevicesRepository 设备推送令牌注册表
// 推送永远是尽力而为：读失败返回空集合而不是错误
type DevicesRepository interface {
	Register(ctx context.Context, uid, token, platform string) error
	Unregister(ctx context.Context, uid, token string) error
	// CollectTokens 返回去重后的未禁用令牌；任何读失败返回空集合
	CollectTokens(ctx context.Context, uid string) []string
}

// deviceRecord 每个令牌的注册记录
type deviceRecord struct {
	Platform     string `json:"platform,omitempty"`
	Disabled     bool   `json:"disabled"`
	RegisteredAt string `json:"registeredAt"`
}

type redisDevicesRepo struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisDevicesRepo(client *redis.Client, logger *zap.Logger) DevicesRepository {
	return &redisDevicesRepo{client: client, logger: logger}
}

func deviceKey(uid string) string {
	return "devices:" + uid
}

func (r *redisDevicesRepo) Register(ctx context.Context, uid, token, platform string) error {
	rec := deviceRecord{
		Platform:     platform,
		RegisteredAt: time.Now().UTC().Format(time.RFC3339),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// hash field = token，重复注册自然去重
	return r.client.HSet(ctx, deviceKey(uid), token, string(raw)).Err()
}

func (r *redisDevicesRepo) Unregister(ctx context.Context, uid, token string) error {
	// 保留记录但标记禁用，便于排查推送投递
	rec := deviceRecord{
		Disabled:     true,
		RegisteredAt: time.Now().UTC().Format(time.RFC3339),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, deviceKey(uid), token, string(raw)).Err()
}

func (r *redisDevicesRepo) CollectTokens(ctx context.Context, uid string) []string {
	entries, err := r.client.HGetAll(ctx, deviceKey(uid)).Result()
	if err != nil {
		r.logger.Warn("Failed to collect device tokens, treating as empty",
			zap.String("uid", uid),
			zap.Error(err),
		)
		return nil
	}

	tokens := make([]string, 0, len(entries))
	for token, raw := range entries {
		var rec deviceRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			// 坏记录跳过，不影响其余令牌
			continue
		}
		if rec.Disabled {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}
