package service

import (
	"context"
	"testing"

	"lifesignal-data/internal/repository"
	"lifesignal-data/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMatcher(docs store.DocStore) *ContactMatcher {
	return NewContactMatcher(repository.NewLinksRepo(docs), zap.NewNop())
}

func TestMatchTarget_UniqueAcrossMirrors(t *testing.T) {
	docs := store.NewMemoryStore()
	// 同一联系人在两个镜像里各有一份文档，uid 一致
	seedDoc(t, docs, "emergency_links/l1", map[string]any{
		"mainUserUid":         "u1",
		"emergencyContactUid": "c1",
		"email":               "Anna@Example.com",
		"status":              "ACTIVE",
	})
	seedDoc(t, docs, "users/u1/emergency_contacts/c1", map[string]any{
		"emergencyContactUid": "c1",
		"contactEmail":        "anna@example.com",
		"status":              "ACTIVE",
	})

	match, err := newMatcher(docs).MatchTarget(context.Background(), "u1", "anna@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, MatchUnique, match.Outcome)
	assert.Equal(t, "c1", match.ContactUid)
	assert.Equal(t, "anna@example.com", match.ContactEmail)
	// 写扇出集合包含两个镜像的文档
	assert.Len(t, match.Docs, 2)
}

func TestMatchTarget_LegacyFieldNames(t *testing.T) {
	docs := store.NewMemoryStore()
	// 历史字段名 + 未规范化的值也要命中
	seedDoc(t, docs, "emergency_links/l1", map[string]any{
		"mainUserUid":           "u1",
		"emergencyContactUid":   "c1",
		"emergencyContactPhone": "+1 (555) 000-0000",
	})

	match, err := newMatcher(docs).MatchTarget(context.Background(), "u1", "", "+15550000000")
	require.NoError(t, err)
	assert.Equal(t, MatchUnique, match.Outcome)
	assert.Equal(t, "+15550000000", match.ContactPhone)
}

func TestMatchTarget_NotFound(t *testing.T) {
	docs := store.NewMemoryStore()
	seedDoc(t, docs, "emergency_links/l1", map[string]any{
		"mainUserUid": "u1",
		"email":       "anna@example.com",
	})

	match, err := newMatcher(docs).MatchTarget(context.Background(), "u1", "nobody@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, MatchNotFound, match.Outcome)
	assert.Empty(t, match.Docs)
}

func TestMatchTarget_OtherUsersLinksExcluded(t *testing.T) {
	docs := store.NewMemoryStore()
	// 别的主用户名下的同邮箱链接不参与匹配
	seedDoc(t, docs, "emergency_links/l1", map[string]any{
		"mainUserUid": "u2",
		"email":       "anna@example.com",
	})

	match, err := newMatcher(docs).MatchTarget(context.Background(), "u1", "anna@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, MatchNotFound, match.Outcome)
}

func TestMatchTarget_AmbiguousDistinctUids(t *testing.T) {
	docs := store.NewMemoryStore()
	// 两个不同 uid 的联系人共享同一个电话号码
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

	match, err := newMatcher(docs).MatchTarget(context.Background(), "u1", "", "+15550000000")
	require.NoError(t, err)
	assert.Equal(t, MatchAmbiguous, match.Outcome)
	assert.Equal(t, []string{"c1", "c2"}, match.Candidates)
}

func TestMatchTarget_AmbiguousSyntheticKeys(t *testing.T) {
	docs := store.NewMemoryStore()
	// 两份都缺 uid 的文档不能被并为同一联系人
	seedDoc(t, docs, "emergency_links/l1", map[string]any{
		"mainUserUid": "u1",
		"email":       "anna@example.com",
	})
	seedDoc(t, docs, "emergency_links/l2", map[string]any{
		"mainUserUid": "u1",
		"email":       "anna@example.com",
	})

	match, err := newMatcher(docs).MatchTarget(context.Background(), "u1", "anna@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, MatchAmbiguous, match.Outcome)
	assert.Equal(t, []string{"doc:emergency_links/l1", "doc:emergency_links/l2"}, match.Candidates)
}

func TestMatchTarget_SingleDocWithoutUidIsUnique(t *testing.T) {
	docs := store.NewMemoryStore()
	// 只有一份缺 uid 的文档：合成键分组后仍是唯一
	seedDoc(t, docs, "emergency_links/l1", map[string]any{
		"mainUserUid": "u1",
		"email":       "anna@example.com",
	})

	match, err := newMatcher(docs).MatchTarget(context.Background(), "u1", "anna@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, MatchUnique, match.Outcome)
	assert.Empty(t, match.ContactUid)
	assert.Len(t, match.Docs, 1)
}

func TestMatchByUid(t *testing.T) {
	docs := store.NewMemoryStore()
	seedDoc(t, docs, "emergency_links/l1", map[string]any{
		"mainUserUid":         "u1",
		"emergencyContactUid": "c1",
		"email":               "anna@example.com",
	})
	// 子集合文档以联系人 uid 为文档ID，字段里缺 uid 也要命中
	seedDoc(t, docs, "users/u1/emergency_contacts/c1", map[string]any{
		"contactEmail": "anna@example.com",
	})

	m := newMatcher(docs)

	match, err := m.MatchByUid(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, MatchUnique, match.Outcome)
	assert.Equal(t, "c1", match.ContactUid)
	assert.Len(t, match.Docs, 2)

	match, err = m.MatchByUid(context.Background(), "u1", "c9")
	require.NoError(t, err)
	assert.Equal(t, MatchNotFound, match.Outcome)
}
