package service

import (
	"context"
	"time"

	"lifesignal-data/internal/domain"
	"lifesignal-data/internal/events"
	"lifesignal-data/internal/repository"
	"lifesignal-data/internal/store"

	"go.uber.org/zap"
)

// DefaultCheckinIntervalHours 未配置打卡计划时的默认间隔
const DefaultCheckinIntervalHours = 24

// CheckinResult 打卡结果
type CheckinResult struct {
	NextCheckinDue time.Time `json:"nextCheckinDue"`
}

// CheckinService 主用户定期打卡
type CheckinService struct {
	docs      store.DocStore
	users     repository.UsersRepository
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewCheckinService(docs store.DocStore, users repository.UsersRepository, publisher events.Publisher, logger *zap.Logger) *CheckinService {
	return &CheckinService{
		docs:      docs,
		users:     users,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Checkin 记录一次打卡并按计划推进下次截止时间
func (s *CheckinService) Checkin(ctx context.Context, callerUid string) (*CheckinResult, error) {
	if err := requireMainUser(ctx, s.users, callerUid); err != nil {
		return nil, err
	}

	user, err := s.users.GetUser(ctx, callerUid)
	if err != nil {
		return nil, Internal("failed to load profile", err)
	}
	interval := user.CheckinIntervalHours
	if interval <= 0 {
		interval = DefaultCheckinIntervalHours
	}

	now := s.now()
	next := now.Add(time.Duration(interval) * time.Hour)

	if err := s.docs.RunBatch(ctx, []store.Op{{
		Path: domain.UserPath(callerUid),
		Data: map[string]any{
			"lastCheckinAt":  now.UTC().Format(time.RFC3339),
			"nextCheckinDue": next.UTC().Format(time.RFC3339),
		},
		Merge: true,
	}}); err != nil {
		return nil, Internal("failed to persist checkin", err)
	}

	s.publisher.Publish(ctx, events.TypeCheckin, callerUid, map[string]any{
		"nextCheckinDue": next.UTC().Format(time.RFC3339),
	})
	s.logger.Info("Checkin recorded",
		zap.String("uid", callerUid),
		zap.Time("next_due", next),
	)
	return &CheckinResult{NextCheckinDue: next}, nil
}
