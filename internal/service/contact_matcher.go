package service

import (
	"context"
	"sort"

	"lifesignal-data/internal/domain"
	"lifesignal-data/internal/identity"
	"lifesignal-data/internal/repository"
	"lifesignal-data/internal/store"

	"go.uber.org/zap"
)

// MatchOutcome 匹配结果分类（三态，总是恰好一种）
type MatchOutcome string

const (
	MatchNotFound  MatchOutcome = "not_found"
	MatchUnique    MatchOutcome = "unique"
	MatchAmbiguous MatchOutcome = "ambiguous"
)

// MatchResult 联系人匹配结果
type MatchResult struct {
	Outcome MatchOutcome

	// UNIQUE：该联系人身份在两个镜像中的全部文档（即写扇出集合）
	Docs []store.Doc
	// UNIQUE：解析出的联系人身份（uid 可能为空——镜像文档尚未绑定 uid）
	ContactUid   string
	ContactEmail string
	ContactPhone string

	// AMBIGUOUS：互不相同的候选身份键（供调用方消歧，绝不猜测）
	Candidates []string
}

// ContactMatcher 在两个关系镜像的并集上解析目标联系人
//
// 关系被冗余存储两份且写入历史独立，先按标识值匹配、
// 再按稳定 uid 重新分组，是保证同一联系人的所有镜像文档
// 一起更新、且消息不会投递到错误联系人的唯一方式
type ContactMatcher struct {
	links  repository.LinksRepository
	logger *zap.Logger
}

func NewContactMatcher(links repository.LinksRepository, logger *zap.Logger) *ContactMatcher {
	return &ContactMatcher{links: links, logger: logger}
}

// MatchTarget 解析 email/phone 目标标识
// 前置条件：targetEmail / targetPhone 已规范化且至少一个非空（调用方校验）
func (m *ContactMatcher) MatchTarget(ctx context.Context, mainUserUid, targetEmail, targetPhone string) (*MatchResult, error) {
	topLevel, sub, err := m.links.FetchMirrors(ctx, mainUserUid)
	if err != nil {
		return nil, Internal("failed to fetch contact mirrors", err)
	}

	var matched []store.Doc
	for _, doc := range append(append([]store.Doc{}, topLevel...), sub...) {
		if docMatchesTarget(doc.Data, targetEmail, targetPhone) {
			matched = append(matched, doc)
		}
	}

	return m.classify(mainUserUid, matched)
}

// MatchByUid 按已绑定的联系人 uid 解析（sendToUid 路径）
// 分组键即 uid，不存在歧义，只有命中/未命中
func (m *ContactMatcher) MatchByUid(ctx context.Context, mainUserUid, contactUid string) (*MatchResult, error) {
	topLevel, sub, err := m.links.FetchMirrors(ctx, mainUserUid)
	if err != nil {
		return nil, Internal("failed to fetch contact mirrors", err)
	}

	var matched []store.Doc
	for _, doc := range topLevel {
		if uid, _ := doc.Data[domain.FieldEmergencyContactUid].(string); uid == contactUid {
			matched = append(matched, doc)
		}
	}
	for _, doc := range sub {
		uid, _ := doc.Data[domain.FieldEmergencyContactUid].(string)
		_, docID, err := store.SplitPath(doc.Path)
		if err != nil {
			continue
		}
		// 子集合文档通常以联系人 uid 为文档ID
		if uid == contactUid || (uid == "" && docID == contactUid) {
			matched = append(matched, doc)
		}
	}

	if len(matched) == 0 {
		return &MatchResult{Outcome: MatchNotFound}, nil
	}

	result := &MatchResult{
		Outcome:    MatchUnique,
		Docs:       matched,
		ContactUid: contactUid,
	}
	result.ContactEmail, result.ContactPhone = firstIdentity(matched)
	return result, nil
}

// classify 按身份键分组并三态分类
func (m *ContactMatcher) classify(mainUserUid string, matched []store.Doc) (*MatchResult, error) {
	if len(matched) == 0 {
		return &MatchResult{Outcome: MatchNotFound}, nil
	}

	// 身份键 = emergencyContactUid（非空时），否则每文档一个合成键：
	// 两个都缺 uid 的文档绝不能被并为同一联系人
	groups := map[string][]store.Doc{}
	for _, doc := range matched {
		key, _ := doc.Data[domain.FieldEmergencyContactUid].(string)
		if key == "" {
			key = "doc:" + doc.Path
		}
		groups[key] = append(groups[key], doc)
	}

	if len(groups) > 1 {
		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m.logger.Warn("Ambiguous contact match rejected",
			zap.String("main_user_uid", mainUserUid),
			zap.Int("candidate_count", len(keys)),
		)
		return &MatchResult{Outcome: MatchAmbiguous, Candidates: keys}, nil
	}

	var docs []store.Doc
	for _, d := range groups {
		docs = d
	}

	result := &MatchResult{Outcome: MatchUnique, Docs: docs}
	if uid, _ := docs[0].Data[domain.FieldEmergencyContactUid].(string); uid != "" {
		result.ContactUid = uid
	}
	result.ContactEmail, result.ContactPhone = firstIdentity(docs)
	return result, nil
}

// docMatchesTarget 文档的任一历史身份字段（规范化后）命中目标标识即匹配
func docMatchesTarget(data map[string]any, targetEmail, targetPhone string) bool {
	if targetEmail != "" {
		for _, field := range domain.LinkEmailFields {
			if v, _ := data[field].(string); identity.NormalizeEmail(v) == targetEmail && v != "" {
				return true
			}
		}
	}
	if targetPhone != "" {
		for _, field := range domain.LinkPhoneFields {
			if v, _ := data[field].(string); identity.NormalizePhone(v) == targetPhone && v != "" {
				return true
			}
		}
	}
	return false
}

// firstIdentity 从匹配文档中取第一个非空的规范化邮箱/电话（冗余记录目标身份用）
func firstIdentity(docs []store.Doc) (email string, phone string) {
	for _, doc := range docs {
		if email == "" {
			for _, field := range domain.LinkEmailFields {
				if v, _ := doc.Data[field].(string); v != "" {
					email = identity.NormalizeEmail(v)
					break
				}
			}
		}
		if phone == "" {
			for _, field := range domain.LinkPhoneFields {
				if v, _ := doc.Data[field].(string); v != "" {
					phone = identity.NormalizePhone(v)
					break
				}
			}
		}
		if email != "" && phone != "" {
			break
		}
	}
	return email, phone
}
