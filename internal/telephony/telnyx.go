package telephony

import (
	"context"
	"fmt"
	"time"

	"lifesignal-data/internal/common/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Dialer 外呼服务的窄契约（SOS 拨号）
type Dialer interface {
	Call(ctx context.Context, toNumber string, callContext map[string]string) error
}

// callRequest Telnyx v2 创建呼叫请求
type callRequest struct {
	To           string `json:"to"`
	From         string `json:"from"`
	ConnectionID string `json:"connection_id"`
	// ClientState 透传业务上下文（base64 不强制，Telnyx 接受任意字符串）
	ClientState string `json:"client_state,omitempty"`
}

// TelnyxClient Telnyx 外呼客户端
type TelnyxClient struct {
	httpClient   *resty.Client
	fromNumber   string
	connectionID string
	logger       *zap.Logger
}

// NewTelnyxClient 创建 Telnyx 客户端
func NewTelnyxClient(cfg *config.TelephonyConfig, logger *zap.Logger) *TelnyxClient {
	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+cfg.APIKey)

	return &TelnyxClient{
		httpClient:   client,
		fromNumber:   cfg.FromNumber,
		connectionID: cfg.ConnectionID,
		logger:       logger,
	}
}

// Call 对目标号码发起一次呼叫
func (c *TelnyxClient) Call(ctx context.Context, toNumber string, callContext map[string]string) error {
	state := ""
	if v, ok := callContext["reason"]; ok {
		state = v
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(callRequest{
			To:           toNumber,
			From:         c.fromNumber,
			ConnectionID: c.connectionID,
			ClientState:  state,
		}).
		Post("/v2/calls")
	if err != nil {
		return fmt.Errorf("failed to call telephony service: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telephony service returned status %d", resp.StatusCode())
	}

	c.logger.Info("Outbound call placed",
		zap.String("to", toNumber),
	)
	return nil
}
