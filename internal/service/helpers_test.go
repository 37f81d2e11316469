package service

import (
	"context"
	"testing"

	"lifesignal-data/internal/push"
	"lifesignal-data/internal/store"

	"github.com/stretchr/testify/require"
)

// seedDoc 测试数据直接整文档写入
func seedDoc(t *testing.T, docs store.DocStore, path string, data map[string]any) {
	t.Helper()
	require.NoError(t, docs.RunBatch(context.Background(), []store.Op{{Path: path, Data: data}}))
}

func seedMainUser(t *testing.T, docs store.DocStore, uid, email string) {
	t.Helper()
	seedDoc(t, docs, "users/"+uid, map[string]any{
		"role":  "main_user",
		"email": email,
	})
}

// fakeDevices 内存设备令牌表
type fakeDevices struct {
	tokens map[string][]string
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{tokens: map[string][]string{}}
}

func (f *fakeDevices) Register(ctx context.Context, uid, token, platform string) error {
	f.tokens[uid] = append(f.tokens[uid], token)
	return nil
}

func (f *fakeDevices) Unregister(ctx context.Context, uid, token string) error {
	var kept []string
	for _, t := range f.tokens[uid] {
		if t != token {
			kept = append(kept, t)
		}
	}
	f.tokens[uid] = kept
	return nil
}

func (f *fakeDevices) CollectTokens(ctx context.Context, uid string) []string {
	return f.tokens[uid]
}

// sentPush 一次推送调用的记录
type sentPush struct {
	tokens       []string
	notification push.Notification
	data         map[string]string
}

// fakeSender 记录推送调用的假 Sender
type fakeSender struct {
	calls  []sentPush
	result push.Result
	err    error
}

func (f *fakeSender) Send(ctx context.Context, tokens []string, notification push.Notification, data map[string]string) (*push.Result, error) {
	f.calls = append(f.calls, sentPush{tokens: tokens, notification: notification, data: data})
	if f.err != nil {
		return nil, f.err
	}
	return &f.result, nil
}

// fakeDialer 记录外呼的假 Dialer
type fakeDialer struct {
	called []string
	err    error
}

func (f *fakeDialer) Call(ctx context.Context, toNumber string, callContext map[string]string) error {
	f.called = append(f.called, toNumber)
	return f.err
}

// failingStore 让 RunBatch 失败的存储包装（提交失败原子性测试用）
type failingStore struct {
	store.DocStore
	batchErr error
}

func (f *failingStore) RunBatch(ctx context.Context, ops []store.Op) error {
	if f.batchErr != nil {
		return f.batchErr
	}
	return f.DocStore.RunBatch(ctx, ops)
}
