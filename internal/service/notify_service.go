package service

import (
	"context"

	"lifesignal-data/internal/push"
	"lifesignal-data/internal/repository"

	"go.uber.org/zap"
)

// NotifyService 通知分发
// 推送对请求结果永远是非致命的：任何失败都折算为零成功计数，绝不向上抛
type NotifyService struct {
	devices repository.DevicesRepository
	sender  push.Sender
	logger  *zap.Logger
}

func NewNotifyService(devices repository.DevicesRepository, sender push.Sender, logger *zap.Logger) *NotifyService {
	return &NotifyService{devices: devices, sender: sender, logger: logger}
}

// NotifyUser 收集目标用户的设备令牌并发送一次 multicast 推送
// 返回 (是否有令牌被尝试, 成功数, 失败数)
func (s *NotifyService) NotifyUser(ctx context.Context, uid, title, body string, data map[string]string) (bool, int, int) {
	tokens := s.devices.CollectTokens(ctx, uid)
	if len(tokens) == 0 {
		return false, 0, 0
	}

	result, err := s.sender.Send(ctx, tokens, push.Notification{Title: title, Body: body}, data)
	if err != nil {
		// 消息已持久提交，推送失败只记日志
		s.logger.Warn("Push dispatch failed",
			zap.String("uid", uid),
			zap.Int("token_count", len(tokens)),
			zap.Error(err),
		)
		return true, 0, len(tokens)
	}

	return true, result.SuccessCount, result.FailureCount
}
