package service

import (
	"context"
	"strings"
	"time"

	"lifesignal-data/internal/domain"
	"lifesignal-data/internal/events"
	"lifesignal-data/internal/identity"
	"lifesignal-data/internal/repository"
	"lifesignal-data/internal/store"

	"go.uber.org/zap"
)

// Assessment AI 评估结果
type Assessment struct {
	Explanation     string `json:"explanation"`
	AnomalyDetected bool   `json:"anomalyDetected"`
}

// TargetContact 定向发送的目标标识
type TargetContact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// SendVoiceMessageRequest 语音消息发送请求
type SendVoiceMessageRequest struct {
	TranscribedSpeech string         `json:"transcribedSpeech"`
	Assessment        Assessment     `json:"assessment"`
	AudioDataURL      string         `json:"audioDataUrl"`
	TargetContact     *TargetContact `json:"targetContact"`
	SendToUid         string         `json:"sendToUid"`
}

// SendVoiceMessageResult 发送结果
type SendVoiceMessageResult struct {
	UpdatedDocs int      `json:"updatedDocs"`
	Mirrors     []string `json:"mirrors,omitempty"`
	Pushed      bool     `json:"pushed"`
	PushSuccess int      `json:"pushSuccess"`
	PushFailure int      `json:"pushFailure"`
}

// VoiceMessageService 语音消息路由
//
// 受众语义：
//   - broadcast（未指定目标）：写主用户的公共 latestVoiceMessage 槽位
//     加每个 ACTIVE 联系人的镜像 lastVoiceMessage 字段
//   - direct（指定目标）：只写匹配出的镜像文档，绝不触碰公共槽位
//     （保密不变量：定向消息不能泄漏给其他联系人）
//
// 提交永远是单个原子批次：并发读者只会看到全旧或全新，不会半更新
type VoiceMessageService struct {
	docs      store.DocStore
	links     repository.LinksRepository
	users     repository.UsersRepository
	matcher   *ContactMatcher
	notify    *NotifyService
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewVoiceMessageService(
	docs store.DocStore,
	links repository.LinksRepository,
	users repository.UsersRepository,
	matcher *ContactMatcher,
	notify *NotifyService,
	publisher events.Publisher,
	logger *zap.Logger,
) *VoiceMessageService {
	return &VoiceMessageService{
		docs:      docs,
		links:     links,
		users:     users,
		matcher:   matcher,
		notify:    notify,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Send 处理一次发送请求
// 校验和鉴权在任何写入之前完成并短路；Commit 失败整体中止；推送失败不影响结果
func (s *VoiceMessageService) Send(ctx context.Context, callerUid string, req SendVoiceMessageRequest) (*SendVoiceMessageResult, error) {
	// 1. 校验（在任何读写之前）
	if strings.TrimSpace(req.TranscribedSpeech) == "" {
		return nil, NewError(CodeValidation, "transcribedSpeech is required")
	}
	if strings.TrimSpace(req.Assessment.Explanation) == "" {
		return nil, NewError(CodeValidation, "assessment.explanation is required")
	}
	if req.AudioDataURL != "" && !isAudioReference(req.AudioDataURL) {
		return nil, NewError(CodeValidation, "audioDataUrl is not a recognizable audio reference")
	}

	var targetEmail, targetPhone string
	if req.TargetContact != nil {
		targetEmail = identity.NormalizeEmail(req.TargetContact.Email)
		targetPhone = identity.NormalizePhone(req.TargetContact.Phone)
		if targetEmail == "" && targetPhone == "" {
			return nil, NewError(CodeValidation, "targetContact requires an email or phone")
		}
	}

	// 2. 鉴权：只有主用户可以发送
	if err := requireMainUser(ctx, s.users, callerUid); err != nil {
		return nil, err
	}

	// 3. 受众解析
	if req.TargetContact != nil || req.SendToUid != "" {
		return s.sendDirect(ctx, callerUid, req, targetEmail, targetPhone)
	}
	return s.sendBroadcast(ctx, callerUid, req)
}

// sendDirect 定向发送：匹配出唯一联系人后只写其镜像文档
func (s *VoiceMessageService) sendDirect(ctx context.Context, callerUid string, req SendVoiceMessageRequest, targetEmail, targetPhone string) (*SendVoiceMessageResult, error) {
	var match *MatchResult
	var err error
	if req.TargetContact != nil {
		match, err = s.matcher.MatchTarget(ctx, callerUid, targetEmail, targetPhone)
	} else {
		match, err = s.matcher.MatchByUid(ctx, callerUid, req.SendToUid)
	}
	if err != nil {
		return nil, err
	}

	switch match.Outcome {
	case MatchNotFound:
		return nil, NewError(CodeNotFound, "target contact not found")
	case MatchAmbiguous:
		// 歧义必须拒绝并列出候选键，绝不猜测投递对象
		return nil, Ambiguous("target matches multiple contacts", match.Candidates)
	}

	now := s.now()
	msg := &domain.VoiceMessage{
		Audience:        domain.AudienceDirect,
		Transcript:      req.TranscribedSpeech,
		Explanation:     req.Assessment.Explanation,
		AnomalyDetected: req.Assessment.AnomalyDetected,
		AudioURL:        req.AudioDataURL,
		CreatedAt:       now,
		ExpiresAt:       now.Add(domain.VoiceMessageTTL),
		TargetUid:       match.ContactUid,
		TargetEmail:     match.ContactEmail,
		TargetPhone:     match.ContactPhone,
	}
	payload := msg.ToData()

	ops := make([]store.Op, 0, len(match.Docs))
	mirrors := make([]string, 0, len(match.Docs))
	for _, doc := range match.Docs {
		ops = append(ops, store.Op{
			Path:  doc.Path,
			Data:  map[string]any{domain.FieldLastVoiceMessage: payload},
			Merge: true,
		})
		mirrors = append(mirrors, doc.Path)
	}

	if err := s.docs.RunBatch(ctx, ops); err != nil {
		return nil, Internal("failed to commit direct voice message", err)
	}

	s.logger.Info("Direct voice message committed",
		zap.String("main_user_uid", callerUid),
		zap.String("target_uid", match.ContactUid),
		zap.Int("mirror_count", len(mirrors)),
		zap.Bool("anomaly", req.Assessment.AnomalyDetected),
	)
	s.publisher.Publish(ctx, events.TypeVoiceMessage, callerUid, map[string]any{
		"audience":  domain.AudienceDirect,
		"targetUid": match.ContactUid,
	})

	result := &SendVoiceMessageResult{UpdatedDocs: len(ops), Mirrors: mirrors}
	if match.ContactUid != "" {
		result.Pushed, result.PushSuccess, result.PushFailure = s.notify.NotifyUser(
			ctx, match.ContactUid, pushTitle(req.Assessment.AnomalyDetected), req.TranscribedSpeech,
			map[string]string{"type": "voice_message", "audience": domain.AudienceDirect},
		)
	}
	return result, nil
}

// sendBroadcast 广播：写公共槽位 + 每个 ACTIVE 联系人的现存镜像文档
func (s *VoiceMessageService) sendBroadcast(ctx context.Context, callerUid string, req SendVoiceMessageRequest) (*SendVoiceMessageResult, error) {
	activeLinks, err := s.links.FetchActiveTopLevel(ctx, callerUid)
	if err != nil {
		return nil, Internal("failed to resolve active contacts", err)
	}
	subDocs, err := s.links.FetchSubcollection(ctx, callerUid)
	if err != nil {
		return nil, Internal("failed to fetch contact subcollection", err)
	}

	// 子集合镜像按联系人 uid 索引（只镜像现存文档，不凭空创建）
	subByUid := map[string]store.Doc{}
	for _, doc := range subDocs {
		uid, _ := doc.Data[domain.FieldEmergencyContactUid].(string)
		if uid == "" {
			if _, docID, err := store.SplitPath(doc.Path); err == nil {
				uid = docID
			}
		}
		if uid != "" {
			subByUid[uid] = doc
		}
	}

	now := s.now()
	msg := &domain.VoiceMessage{
		Audience:        domain.AudienceBroadcast,
		Transcript:      req.TranscribedSpeech,
		Explanation:     req.Assessment.Explanation,
		AnomalyDetected: req.Assessment.AnomalyDetected,
		AudioURL:        req.AudioDataURL,
		CreatedAt:       now,
		ExpiresAt:       now.Add(domain.VoiceMessageTTL),
	}
	payload := msg.ToData()

	ops := []store.Op{{
		Path:  domain.UserPath(callerUid),
		Data:  map[string]any{domain.FieldLatestVoiceMessage: payload},
		Merge: true,
	}}
	var mirrors []string
	var contactUids []string
	seen := map[string]bool{}
	for _, doc := range activeLinks {
		ops = append(ops, store.Op{
			Path:  doc.Path,
			Data:  map[string]any{domain.FieldLastVoiceMessage: payload},
			Merge: true,
		})
		mirrors = append(mirrors, doc.Path)

		uid, _ := doc.Data[domain.FieldEmergencyContactUid].(string)
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		contactUids = append(contactUids, uid)
		if sub, ok := subByUid[uid]; ok {
			ops = append(ops, store.Op{
				Path:  sub.Path,
				Data:  map[string]any{domain.FieldLastVoiceMessage: payload},
				Merge: true,
			})
			mirrors = append(mirrors, sub.Path)
		}
	}

	if err := s.docs.RunBatch(ctx, ops); err != nil {
		return nil, Internal("failed to commit broadcast voice message", err)
	}

	s.logger.Info("Broadcast voice message committed",
		zap.String("main_user_uid", callerUid),
		zap.Int("active_contacts", len(contactUids)),
		zap.Int("mirror_count", len(mirrors)),
		zap.Bool("anomaly", req.Assessment.AnomalyDetected),
	)
	s.publisher.Publish(ctx, events.TypeVoiceMessage, callerUid, map[string]any{
		"audience":     domain.AudienceBroadcast,
		"contactCount": len(contactUids),
	})

	result := &SendVoiceMessageResult{UpdatedDocs: len(ops), Mirrors: mirrors}
	for _, uid := range contactUids {
		pushed, success, failure := s.notify.NotifyUser(
			ctx, uid, pushTitle(req.Assessment.AnomalyDetected), req.TranscribedSpeech,
			map[string]string{"type": "voice_message", "audience": domain.AudienceBroadcast},
		)
		result.Pushed = result.Pushed || pushed
		result.PushSuccess += success
		result.PushFailure += failure
	}
	return result, nil
}

// LatestForContact 主用户读取发给某联系人的最新消息
// 未链接的 contactUid 一律 403；过期消息按不存在处理
func (s *VoiceMessageService) LatestForContact(ctx context.Context, callerUid, contactUid string) (*domain.VoiceMessage, error) {
	if contactUid == "" {
		return nil, NewError(CodeValidation, "contactUid is required")
	}
	if err := requireMainUser(ctx, s.users, callerUid); err != nil {
		return nil, err
	}

	match, err := s.matcher.MatchByUid(ctx, callerUid, contactUid)
	if err != nil {
		return nil, err
	}
	if match.Outcome != MatchUnique {
		return nil, NewError(CodeForbidden, "contact is not linked to this user")
	}

	var latest *domain.VoiceMessage
	for _, doc := range match.Docs {
		raw, _ := doc.Data[domain.FieldLastVoiceMessage].(map[string]any)
		msg, ok := domain.ParseVoiceMessage(raw)
		if !ok {
			continue
		}
		if latest == nil || msg.CreatedAt.After(latest.CreatedAt) {
			latest = msg
		}
	}
	if latest != nil && latest.Expired(s.now()) {
		latest = nil
	}
	return latest, nil
}

// isAudioReference 音频引用必须是 audio data URL 或 http(s) 地址
func isAudioReference(v string) bool {
	return strings.HasPrefix(v, "data:audio/") ||
		strings.HasPrefix(v, "https://") ||
		strings.HasPrefix(v, "http://")
}

func pushTitle(anomaly bool) string {
	if anomaly {
		return "LifeSignal: anomaly detected"
	}
	return "New voice message"
}
