package events

import (
	"context"
	"encoding/json"
	"time"

	commonmqtt "lifesignal-data/internal/common/mqtt"
	commonredis "lifesignal-data/internal/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 事件类型
const (
	TypeCheckin      = "checkin"
	TypeVoiceMessage = "voice_message"
	TypeSOS          = "sos"
)

// DefaultStream 默认事件流（下游聚合/审计服务消费）
const DefaultStream = "lifesignal:events"

// Event 发布到事件流的记录
type Event struct {
	Type      string         `json:"type"`
	UID       string         `json:"uid"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt string         `json:"createdAt"`
}

// Publisher 事件发布接口
// 所有发布都是尽力而为：权威写入已提交，事件丢失不影响请求结果
type Publisher interface {
	Publish(ctx context.Context, eventType, uid string, payload map[string]any)
	// PublishAlarm SOS 报警额外发布到 MQTT 主题，供告警分发端订阅
	PublishAlarm(ctx context.Context, uid string, payload map[string]any)
}

type publisher struct {
	redisClient *redis.Client
	mqttClient  *commonmqtt.Client // 可为 nil（MQTT 未配置时只走事件流）
	stream      string
	qos         byte
	logger      *zap.Logger
}

func NewPublisher(redisClient *redis.Client, mqttClient *commonmqtt.Client, stream string, qos byte, logger *zap.Logger) Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &publisher{
		redisClient: redisClient,
		mqttClient:  mqttClient,
		stream:      stream,
		qos:         qos,
		logger:      logger,
	}
}

func (p *publisher) Publish(ctx context.Context, eventType, uid string, payload map[string]any) {
	if p.redisClient == nil {
		return
	}
	event := Event{
		Type:      eventType,
		UID:       uid,
		Payload:   payload,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := commonredis.PublishJSONToStream(ctx, p.redisClient, p.stream, event); err != nil {
		p.logger.Warn("Failed to publish event to stream",
			zap.String("event_type", eventType),
			zap.String("uid", uid),
			zap.Error(err),
		)
	}
}

func (p *publisher) PublishAlarm(ctx context.Context, uid string, payload map[string]any) {
	p.Publish(ctx, TypeSOS, uid, payload)

	if p.mqttClient == nil || !p.mqttClient.IsConnected() {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("Failed to encode alarm payload", zap.Error(err))
		return
	}
	topic := "lifesignal/alarm/" + uid
	if err := p.mqttClient.Publish(topic, p.qos, false, raw); err != nil {
		p.logger.Warn("Failed to publish alarm to MQTT",
			zap.String("topic", topic),
			zap.Error(err),
		)
	}
}

// NopPublisher 空实现（测试/事件流未配置时）
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, map[string]any) {}

func (NopPublisher) PublishAlarm(context.Context, string, map[string]any) {}
