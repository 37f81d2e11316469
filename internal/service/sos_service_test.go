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

func newSOSService(docs store.DocStore, sender *fakeSender, devices *fakeDevices, dialer *fakeDialer) *SOSService {
	logger := zap.NewNop()
	svc := NewSOSService(docs,
		repository.NewLinksRepo(docs),
		repository.NewUsersRepo(docs),
		NewNotifyService(devices, sender, logger),
		dialer,
		events.NopPublisher{},
		logger,
	)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestTriggerSOS_NotifiesAndCallsActiveContacts(t *testing.T) {
	docs := store.NewMemoryStore()
	seedMainUser(t, docs, "u1", "main@example.com")
	seedDoc(t, docs, "emergency_links/l1", map[string]any{
		"mainUserUid":         "u1",
		"emergencyContactUid": "c1",
		"phone":               "+15550000001",
		"status":              "ACTIVE",
	})
	seedDoc(t, docs, "emergency_links/l2", map[string]any{
		"mainUserUid":         "u1",
		"emergencyContactUid": "c2",
		"status":              "ACTIVE", // 没有电话，只推送
	})
	seedDoc(t, docs, "emergency_links/l3", map[string]any{
		"mainUserUid":         "u1",
		"emergencyContactUid": "c3",
		"phone":               "+15550000003",
		"status":              "pending", // 未激活，不参与
	})

	devices := newFakeDevices()
	devices.tokens["c1"] = []string{"tok-1"}
	devices.tokens["c2"] = []string{"tok-2"}
	sender := &fakeSender{result: push.Result{SuccessCount: 1}}
	dialer := &fakeDialer{}
	svc := newSOSService(docs, sender, devices, dialer)

	result, err := svc.Trigger(context.Background(), "u1", SOSRequest{Message: "help me", Location: "home"})
	require.NoError(t, err)
	require.NotEmpty(t, result.EventID)
	assert.Equal(t, 2, result.Notified)
	assert.Equal(t, []string{"+15550000001"}, dialer.called)
	assert.Equal(t, 1, result.Called)

	// SOS 事件为权威写入
	eventData, err := docs.Get(context.Background(), domain.CollectionSOSEvents+"/"+result.EventID)
	require.NoError(t, err)
	assert.Equal(t, "u1", eventData["mainUserUid"])
	assert.Equal(t, "help me", eventData["message"])
	assert.Equal(t, "home", eventData["location"])
	assert.Equal(t, testNow.Format(time.RFC3339), eventData["createdAt"])
}

func TestTriggerSOS_DialFailureDoesNotFailTrigger(t *testing.T) {
	docs := store.NewMemoryStore()
	seedMainUser(t, docs, "u1", "main@example.com")
	seedDoc(t, docs, "emergency_links/l1", map[string]any{
		"mainUserUid":         "u1",
		"emergencyContactUid": "c1",
		"phone":               "+15550000001",
		"status":              "ACTIVE",
	})

	dialer := &fakeDialer{err: errors.New("telephony unavailable")}
	svc := newSOSService(docs, &fakeSender{}, newFakeDevices(), dialer)

	result, err := svc.Trigger(context.Background(), "u1", SOSRequest{})
	require.NoError(t, err)
	assert.Zero(t, result.Called)
	assert.Zero(t, result.Notified)

	// 事件仍然落库，默认文案兜底
	eventData, err := docs.Get(context.Background(), domain.CollectionSOSEvents+"/"+result.EventID)
	require.NoError(t, err)
	assert.Equal(t, "SOS triggered", eventData["message"])
}

func TestTriggerSOS_RequiresMainUser(t *testing.T) {
	docs := store.NewMemoryStore()
	seedDoc(t, docs, "users/c1", map[string]any{"role": "emergency_contact"})
	svc := newSOSService(docs, &fakeSender{}, newFakeDevices(), &fakeDialer{})

	_, err := svc.Trigger(context.Background(), "c1", SOSRequest{})
	require.Error(t, err)
	assert.Equal(t, CodeForbidden, AsError(err).Code)
}
