package repository

import (
	"context"
	"sync"

	"lifesignal-data/internal/domain"
	"lifesignal-data/internal/store"
)

// LinksRepository 联系人链接的两个镜像的读取接口
type LinksRepository interface {
	// FetchMirrors 拉取主用户名下两个镜像的全部链接文档（不做状态过滤，匹配在并集上进行）
	FetchMirrors(ctx context.Context, mainUserUid string) (topLevel []store.Doc, subcollection []store.Doc, err error)
	// FetchActiveTopLevel 拉取顶层镜像中 status=ACTIVE 的链接（广播受众解析用）
	FetchActiveTopLevel(ctx context.Context, mainUserUid string) ([]store.Doc, error)
	// FetchSubcollection 拉取子集合镜像的全部文档
	FetchSubcollection(ctx context.Context, mainUserUid string) ([]store.Doc, error)
}

type linksRepo struct {
	docs store.DocStore
}

func NewLinksRepo(docs store.DocStore) LinksRepository {
	return &linksRepo{docs: docs}
}

// FetchMirrors 两个镜像的读取相互独立、无副作用，并行执行
func (r *linksRepo) FetchMirrors(ctx context.Context, mainUserUid string) ([]store.Doc, []store.Doc, error) {
	var (
		wg       sync.WaitGroup
		topLevel []store.Doc
		sub      []store.Doc
		topErr   error
		subErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		topLevel, topErr = r.docs.Query(ctx, domain.CollectionLinks,
			store.Filter{Field: domain.FieldMainUserUid, Value: mainUserUid})
	}()
	go func() {
		defer wg.Done()
		sub, subErr = r.docs.Query(ctx, domain.ContactsCollection(mainUserUid))
	}()
	wg.Wait()

	if topErr != nil {
		return nil, nil, topErr
	}
	if subErr != nil {
		return nil, nil, subErr
	}
	return topLevel, sub, nil
}

func (r *linksRepo) FetchActiveTopLevel(ctx context.Context, mainUserUid string) ([]store.Doc, error) {
	return r.docs.Query(ctx, domain.CollectionLinks,
		store.Filter{Field: domain.FieldMainUserUid, Value: mainUserUid},
		store.Filter{Field: domain.FieldStatus, Value: domain.LinkStatusActive})
}

func (r *linksRepo) FetchSubcollection(ctx context.Context, mainUserUid string) ([]store.Doc, error) {
	return r.docs.Query(ctx, domain.ContactsCollection(mainUserUid))
}
