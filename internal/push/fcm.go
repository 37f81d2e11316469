package push

import (
	"context"
	"fmt"
	"time"

	"lifesignal-data/internal/common/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Notification 推送通知内容
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Result 推送服务按令牌统计的投递结果
type Result struct {
	SuccessCount int
	FailureCount int
}

// Sender 推送服务的窄契约
// 投递不可靠且不重试：调用方只拿到成功/失败计数
type Sender interface {
	Send(ctx context.Context, tokens []string, notification Notification, data map[string]string) (*Result, error)
}

// fcmRequest FCM legacy multicast API 请求体
type fcmRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    Notification      `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
}

// fcmResponse FCM multicast API 响应体
type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// FCMClient FCM 推送客户端
type FCMClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewFCMClient 创建 FCM 客户端
func NewFCMClient(cfg *config.PushConfig, logger *zap.Logger) *FCMClient {
	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "key="+cfg.ServerKey)

	return &FCMClient{
		httpClient: client,
		logger:     logger,
	}
}

// Send 发送一次 multicast 推送，按推送服务报告的计数原样返回
func (c *FCMClient) Send(ctx context.Context, tokens []string, notification Notification, data map[string]string) (*Result, error) {
	if len(tokens) == 0 {
		return &Result{}, nil
	}

	var respBody fcmResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(fcmRequest{
			RegistrationIDs: tokens,
			Notification:    notification,
			Data:            data,
		}).
		SetResult(&respBody).
		Post("")
	if err != nil {
		return nil, fmt.Errorf("failed to call push service: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("push service returned status %d", resp.StatusCode())
	}

	return &Result{
		SuccessCount: respBody.Success,
		FailureCount: respBody.Failure,
	}, nil
}
