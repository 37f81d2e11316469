package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"lifesignal-data/internal/domain"
	"lifesignal-data/internal/events"
	"lifesignal-data/internal/push"
	"lifesignal-data/internal/repository"
	"lifesignal-data/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newVoiceService(docs store.DocStore, sender *fakeSender, devices *fakeDevices) *VoiceMessageService {
	logger := zap.NewNop()
	links := repository.NewLinksRepo(docs)
	users := repository.NewUsersRepo(docs)
	matcher := NewContactMatcher(links, logger)
	notify := NewNotifyService(devices, sender, logger)
	svc := NewVoiceMessageService(docs, links, users, matcher, notify, events.NopPublisher{}, logger)
	svc.now = func() time.Time { return testNow }
	return svc
}

func validSendRequest() SendVoiceMessageRequest {
	return SendVoiceMessageRequest{
		TranscribedSpeech: "I am feeling fine today",
		Assessment: Assessment{
			Explanation:     "no concerning content",
			AnomalyDetected: false,
		},
	}
}

func TestSend_DirectUniqueUpdatesAllMirrors(t *testing.T) {
	docs := store.NewMemoryStore()
	seedDoc(t, docs, "users/u1", map[string]any{
		"role":               "main_user",
		"email":              "main@example.com",
		"latestVoiceMessage": map[string]any{"transcript": "old broadcast"},
	})
	seedDoc(t, docs, "emergency_links/l1", map[string]any{
		"mainUserUid":         "u1",
		"emergencyContactUid": "c1",
		"email":               "anna@example.com",
		"status":              "ACTIVE",
	})
	seedDoc(t, docs, "users/u1/emergency_contacts/c1", map[string]any{
		"emergencyContactUid": "c1",
		"contactEmail":        "Anna@Example.com",
		"status":              "ACTIVE",
	})

	devices := newFakeDevices()
	devices.tokens["c1"] = []string{"tok-1"}
	sender := &fakeSender{result: push.Result{SuccessCount: 1}}
	svc := newVoiceService(docs, sender, devices)

	req := validSendRequest()
	req.TargetContact = &TargetContact{Email: "anna@example.com"}

	result, err := svc.Send(context.Background(), "u1", req)
	require.NoError(t, err)
	assert.Equal(t, 2, result.UpdatedDocs)
	assert.ElementsMatch(t, []string{"emergency_links/l1", "users/u1/emergency_contacts/c1"}, result.Mirrors)
	assert.True(t, result.Pushed)
	assert.Equal(t, 1, result.PushSuccess)

	// 两个镜像都写入了同一份负载
	for _, path := range result.Mirrors {
		data, err := docs.Get(context.Background(), path)
		require.NoError(t, err)
		msg, ok := data["lastVoiceMessage"].(map[string]any)
		require.True(t, ok, "mirror %s missing lastVoiceMessage", path)
		assert.Equal(t, "direct", msg["audience"])
		assert.Equal(t, "I am feeling fine today", msg["transcript"])
		assert.Equal(t, "c1", msg["targetUid"])
		assert.Equal(t, testNow.Format(time.RFC3339), msg["createdAt"])
		assert.Equal(t, testNow.Add(domain.VoiceMessageTTL).Format(time.RFC3339), msg["expiresAt"])
	}

	// 保密不变量：定向消息绝不触碰公共槽位
	userData, err := docs.Get(context.Background(), "users/u1")
	require.NoError(t, err)
	latest, _ := userData["latestVoiceMessage"].(map[string]any)
	assert.Equal(t, "old broadcast", latest["transcript"])
}

func TestSend_DirectAmbiguousRejectedWithoutWrites(t *testing.T) {
	docs := store.NewMemoryStore()
	seedMainUser(t, docs, "u1", "main@example.com")
	seedDoc(t, docs, "emergency_links/l1", map[string]any{
		"mainUserUid":         "u1",
		"emergencyContactUid": "c1",
		"phone":               "+15550000000",
	})
	seedDoc(t, docs, "emergency_links/l2", map[string]any{
		"mainUserUid":         "u1",
		"emergencyContactUid": "c2",
		"phone":               "+15550000000",
	})

	sender := &fakeSender{}
	svc := newVoiceService(docs, sender, newFakeDevices())

	req := validSendRequest()
	req.TargetContact = &TargetContact{Phone: "+1 555 000 0000"}

	_, err := svc.Send(context.Background(), "u1", req)
	require.Error(t, err)
	svcErr := AsError(err)
	assert.Equal(t, CodeAmbiguous, svcErr.Code)
	assert.Equal(t, []string{"c1", "c2"}, svcErr.Candidates)

	// 歧义拒绝不产生任何写入和推送
	for _, path := range []string{"emergency_links/l1", "emergency_links/l2"} {
		data, err := docs.Get(context.Background(), path)
		require.NoError(t, err)
		assert.NotContains(t, data, "lastVoiceMessage")
	}
	assert.Empty(t, sender.calls)
}

func TestSend_DirectTargetNotFound(t *testing.T) {
	docs := store.NewMemoryStore()
	seedMainUser(t, docs, "u1", "main@example.com")

	svc := newVoiceService(docs, &fakeSender{}, newFakeDevices())

	req := validSendRequest()
	req.TargetContact = &TargetContact{Email: "nobody@example.com"}

	_, err := svc.Send(context.Background(), "u1", req)
	require.Error(t, err)
	assert.Equal(t, CodeNotFound, AsError(err).Code)
}

func TestSend_DirectBySendToUid(t *testing.T) {
	docs := store.NewMemoryStore()
	seedMainUser(t, docs, "u1", "main@example.com")
	seedDoc(t, docs, "users/u1/emergency_contacts/c1", map[string]any{
		"emergencyContactUid": "c1",
		"email":               "anna@example.com",
	})

	svc := newVoiceService(docs, &fakeSender{}, newFakeDevices())

	req := validSendRequest()
	req.SendToUid = "c1"

	result, err := svc.Send(context.Background(), "u1", req)
	require.NoError(t, err)
	assert.Equal(t, []string{"users/u1/emergency_contacts/c1"}, result.Mirrors)
}

func TestSend_BroadcastFansOutToActiveContacts(t *testing.T) {
	docs := store.NewMemoryStore()
	seedMainUser(t, docs, "u1", "main@example.com")
	// 三个 ACTIVE，一个 pending
	for _, link := range []struct{ id, uid, status string }{
		{"l1", "c1", "ACTIVE"},
		{"l2", "c2", "ACTIVE"},
		{"l3", "c3", "ACTIVE"},
		{"l4", "c4", "pending"},
	} {
		seedDoc(t, docs, "emergency_links/"+link.id, map[string]any{
			"mainUserUid":         "u1",
			"emergencyContactUid": link.uid,
			"status":              link.status,
		})
	}
	// 子集合镜像只有 c1 存在：广播只镜像现存文档，不凭空创建
	seedDoc(t, docs, "users/u1/emergency_contacts/c1", map[string]any{
		"emergencyContactUid": "c1",
		"status":              "ACTIVE",
	})

	devices := newFakeDevices()
	devices.tokens["c1"] = []string{"tok-1"}
	devices.tokens["c2"] = []string{"tok-2"}
	sender := &fakeSender{result: push.Result{SuccessCount: 1}}
	svc := newVoiceService(docs, sender, devices)

	result, err := svc.Send(context.Background(), "u1", validSendRequest())
	require.NoError(t, err)
	// users/u1 槽位 + 3 个 ACTIVE 顶层 + 1 个现存子集合镜像
	assert.Equal(t, 5, result.UpdatedDocs)
	assert.ElementsMatch(t, []string{
		"emergency_links/l1", "emergency_links/l2", "emergency_links/l3",
		"users/u1/emergency_contacts/c1",
	}, result.Mirrors)
	// c1 和 c2 有令牌，各收到一次推送
	assert.Len(t, sender.calls, 2)
	assert.Equal(t, 2, result.PushSuccess)

	// 公共槽位写入
	userData, err := docs.Get(context.Background(), "users/u1")
	require.NoError(t, err)
	latest, ok := userData["latestVoiceMessage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "broadcast", latest["audience"])

	// pending 链接未被写入
	l4, err := docs.Get(context.Background(), "emergency_links/l4")
	require.NoError(t, err)
	assert.NotContains(t, l4, "lastVoiceMessage")
}

func TestSend_ValidationFailures(t *testing.T) {
	docs := store.NewMemoryStore()
	seedMainUser(t, docs, "u1", "main@example.com")
	svc := newVoiceService(docs, &fakeSender{}, newFakeDevices())

	tests := []struct {
		name   string
		mutate func(*SendVoiceMessageRequest)
	}{
		{"missing transcript", func(r *SendVoiceMessageRequest) { r.TranscribedSpeech = "   " }},
		{"missing explanation", func(r *SendVoiceMessageRequest) { r.Assessment.Explanation = "" }},
		{"bad audio reference", func(r *SendVoiceMessageRequest) { r.AudioDataURL = "not-a-url" }},
		{"empty target contact", func(r *SendVoiceMessageRequest) {
			r.TargetContact = &TargetContact{Email: "  ", Phone: ""}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSendRequest()
			tt.mutate(&req)
			_, err := svc.Send(context.Background(), "u1", req)
			require.Error(t, err)
			assert.Equal(t, CodeValidation, AsError(err).Code)
		})
	}
}

func TestSend_CallerMustBeMainUser(t *testing.T) {
	docs := store.NewMemoryStore()
	seedDoc(t, docs, "users/c1", map[string]any{"role": "emergency_contact"})
	svc := newVoiceService(docs, &fakeSender{}, newFakeDevices())

	_, err := svc.Send(context.Background(), "c1", validSendRequest())
	require.Error(t, err)
	assert.Equal(t, CodeForbidden, AsError(err).Code)

	// 无 profile 同样拒绝
	_, err = svc.Send(context.Background(), "ghost", validSendRequest())
	require.Error(t, err)
	assert.Equal(t, CodeForbidden, AsError(err).Code)
}

func TestSend_CommitFailureAbortsWholeBatch(t *testing.T) {
	mem := store.NewMemoryStore()
	seedMainUser(t, mem, "u1", "main@example.com")
	seedDoc(t, mem, "emergency_links/l1", map[string]any{
		"mainUserUid":         "u1",
		"emergencyContactUid": "c1",
		"status":              "ACTIVE",
	})

	failing := &failingStore{DocStore: mem, batchErr: errors.New("write quota exceeded")}
	sender := &fakeSender{}
	svc := newVoiceService(failing, sender, newFakeDevices())

	_, err := svc.Send(context.Background(), "u1", validSendRequest())
	require.Error(t, err)
	assert.Equal(t, CodeInternal, AsError(err).Code)

	// 提交失败后没有部分更新，也没有推送
	userData, getErr := mem.Get(context.Background(), "users/u1")
	require.NoError(t, getErr)
	assert.NotContains(t, userData, "latestVoiceMessage")
	assert.Empty(t, sender.calls)
}

func TestLatestForContact(t *testing.T) {
	docs := store.NewMemoryStore()
	seedMainUser(t, docs, "u1", "main@example.com")
	older := testNow.Add(-2 * time.Hour)
	newer := testNow.Add(-1 * time.Hour)
	seedDoc(t, docs, "emergency_links/l1", map[string]any{
		"mainUserUid":         "u1",
		"emergencyContactUid": "c1",
		"lastVoiceMessage": map[string]any{
			"transcript": "older message",
			"createdAt":  older.Format(time.RFC3339),
			"expiresAt":  older.Add(domain.VoiceMessageTTL).Format(time.RFC3339),
		},
	})
	seedDoc(t, docs, "users/u1/emergency_contacts/c1", map[string]any{
		"emergencyContactUid": "c1",
		"lastVoiceMessage": map[string]any{
			"transcript": "newer message",
			"createdAt":  newer.Format(time.RFC3339),
			"expiresAt":  newer.Add(domain.VoiceMessageTTL).Format(time.RFC3339),
		},
	})

	svc := newVoiceService(docs, &fakeSender{}, newFakeDevices())

	// 取两个镜像中最新的一条
	msg, err := svc.LatestForContact(context.Background(), "u1", "c1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "newer message", msg.Transcript)

	// 未链接的 contactUid 一律 403
	_, err = svc.LatestForContact(context.Background(), "u1", "c9")
	require.Error(t, err)
	assert.Equal(t, CodeForbidden, AsError(err).Code)

	// contactUid 缺失是校验错误
	_, err = svc.LatestForContact(context.Background(), "u1", "")
	require.Error(t, err)
	assert.Equal(t, CodeValidation, AsError(err).Code)
}

func TestLatestForContact_ExpiredTreatedAsAbsent(t *testing.T) {
	docs := store.NewMemoryStore()
	seedMainUser(t, docs, "u1", "main@example.com")
	created := testNow.Add(-25 * time.Hour)
	seedDoc(t, docs, "emergency_links/l1", map[string]any{
		"mainUserUid":         "u1",
		"emergencyContactUid": "c1",
		"lastVoiceMessage": map[string]any{
			"transcript": "stale message",
			"createdAt":  created.Format(time.RFC3339),
			"expiresAt":  created.Add(domain.VoiceMessageTTL).Format(time.RFC3339),
		},
	})

	svc := newVoiceService(docs, &fakeSender{}, newFakeDevices())

	msg, err := svc.LatestForContact(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Nil(t, msg)
}
