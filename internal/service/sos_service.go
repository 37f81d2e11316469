package service

import (
	"context"
	"time"

	"lifesignal-data/internal/domain"
	"lifesignal-data/internal/events"
	"lifesignal-data/internal/repository"
	"lifesignal-data/internal/store"
	"lifesignal-data/internal/telephony"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SOSRequest SOS 触发请求
type SOSRequest struct {
	Message  string `json:"message"`
	Location string `json:"location"`
}

// SOSResult SOS 触发结果
type SOSResult struct {
	EventID  string `json:"eventId"`
	Notified int    `json:"notified"`
	Called   int    `json:"called"`
}

// SOSService SOS 触发：事件落库后对所有 ACTIVE 联系人
// 尽力而为地推送 + 外呼 + 发布报警事件；任何通知失败不影响触发结果
type SOSService struct {
	docs      store.DocStore
	links     repository.LinksRepository
	users     repository.UsersRepository
	notify    *NotifyService
	dialer    telephony.Dialer
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewSOSService(
	docs store.DocStore,
	links repository.LinksRepository,
	users repository.UsersRepository,
	notify *NotifyService,
	dialer telephony.Dialer,
	publisher events.Publisher,
	logger *zap.Logger,
) *SOSService {
	return &SOSService{
		docs:      docs,
		links:     links,
		users:     users,
		notify:    notify,
		dialer:    dialer,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Trigger 触发一次 SOS
func (s *SOSService) Trigger(ctx context.Context, callerUid string, req SOSRequest) (*SOSResult, error) {
	if err := requireMainUser(ctx, s.users, callerUid); err != nil {
		return nil, err
	}

	activeLinks, err := s.links.FetchActiveTopLevel(ctx, callerUid)
	if err != nil {
		return nil, Internal("failed to resolve active contacts", err)
	}

	now := s.now()
	eventID := uuid.NewString()
	message := req.Message
	if message == "" {
		message = "SOS triggered"
	}

	// 权威写入：SOS 事件落库（通知全部在这之后，失败不回滚事件）
	if err := s.docs.RunBatch(ctx, []store.Op{{
		Path: domain.CollectionSOSEvents + "/" + eventID,
		Data: map[string]any{
			"mainUserUid": callerUid,
			"message":     message,
			"location":    req.Location,
			"createdAt":   now.UTC().Format(time.RFC3339),
		},
	}}); err != nil {
		return nil, Internal("failed to persist SOS event", err)
	}

	result := &SOSResult{EventID: eventID}
	callContext := map[string]string{"reason": "sos"}
	seen := map[string]bool{}
	for _, doc := range activeLinks {
		uid, _ := doc.Data[domain.FieldEmergencyContactUid].(string)
		if uid != "" && !seen[uid] {
			seen[uid] = true
			pushed, success, _ := s.notify.NotifyUser(ctx, uid, "SOS alert", message,
				map[string]string{"type": "sos", "eventId": eventID})
			if pushed && success > 0 {
				result.Notified++
			}
		}

		_, phone := firstIdentity([]store.Doc{doc})
		if phone == "" {
			continue
		}
		if err := s.dialer.Call(ctx, phone, callContext); err != nil {
			s.logger.Warn("SOS call failed",
				zap.String("main_user_uid", callerUid),
				zap.String("to", phone),
				zap.Error(err),
			)
			continue
		}
		result.Called++
	}

	s.publisher.PublishAlarm(ctx, callerUid, map[string]any{
		"eventId":   eventID,
		"message":   message,
		"location":  req.Location,
		"createdAt": now.UTC().Format(time.RFC3339),
	})

	s.logger.Info("SOS triggered",
		zap.String("uid", callerUid),
		zap.String("event_id", eventID),
		zap.Int("notified", result.Notified),
		zap.Int("called", result.Called),
	)
	return result, nil
}
