package service

import (
	"context"
	"testing"
	"time"

	"lifesignal-data/internal/events"
	"lifesignal-data/internal/repository"
	"lifesignal-data/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCheckinService(docs store.DocStore) *CheckinService {
	svc := NewCheckinService(docs, repository.NewUsersRepo(docs), events.NopPublisher{}, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestCheckin_AdvancesSchedule(t *testing.T) {
	docs := store.NewMemoryStore()
	seedDoc(t, docs, "users/u1", map[string]any{
		"role":                 "main_user",
		"checkinIntervalHours": float64(12),
	})
	svc := newCheckinService(docs)

	result, err := svc.Checkin(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(12*time.Hour), result.NextCheckinDue)

	data, err := docs.Get(context.Background(), "users/u1")
	require.NoError(t, err)
	assert.Equal(t, testNow.Format(time.RFC3339), data["lastCheckinAt"])
	assert.Equal(t, testNow.Add(12*time.Hour).Format(time.RFC3339), data["nextCheckinDue"])
	// merge 写入不丢既有字段
	assert.Equal(t, "main_user", data["role"])
}

func TestCheckin_DefaultInterval(t *testing.T) {
	docs := store.NewMemoryStore()
	seedDoc(t, docs, "users/u1", map[string]any{"role": "main_user"})
	svc := newCheckinService(docs)

	result, err := svc.Checkin(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(DefaultCheckinIntervalHours*time.Hour), result.NextCheckinDue)
}

func TestCheckin_RequiresMainUser(t *testing.T) {
	docs := store.NewMemoryStore()
	seedDoc(t, docs, "users/c1", map[string]any{"role": "emergency_contact"})
	svc := newCheckinService(docs)

	_, err := svc.Checkin(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, CodeForbidden, AsError(err).Code)
}
