package store

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// MemoryStore 内存文档存储（测试/无数据库联测用）
// 与 Postgres 实现保持同样的事务语义：事务内写入暂存，提交时一次性生效
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]any // path -> data
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string]map[string]any{}}
}

func (s *MemoryStore) Get(_ context.Context, path string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return CloneData(data), nil
}

func (s *MemoryStore) Query(_ context.Context, collection string, filters ...Filter) ([]Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Doc
	for path, data := range s.docs {
		coll, _, err := SplitPath(path)
		if err != nil || coll != collection {
			continue
		}
		if matchFilters(data, filters) {
			out = append(out, Doc{Path: path, Data: CloneData(data)})
		}
	}
	sortDocs(out)
	return out, nil
}

func (s *MemoryStore) QueryGroup(_ context.Context, collectionID string, filters ...Filter) ([]Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Doc
	for path, data := range s.docs {
		coll, _, err := SplitPath(path)
		if err != nil || CollectionID(coll) != collectionID {
			continue
		}
		if matchFilters(data, filters) {
			out = append(out, Doc{Path: path, Data: CloneData(data)})
		}
	}
	sortDocs(out)
	return out, nil
}

// memoryTx 暂存写集，fn 返回后一次性提交
type memoryTx struct {
	store  *MemoryStore
	staged map[string]map[string]any // path -> 提交后的完整数据
}

func (t *memoryTx) Get(path string) (map[string]any, error) {
	if data, ok := t.staged[path]; ok {
		return CloneData(data), nil
	}
	data, ok := t.store.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return CloneData(data), nil
}

func (t *memoryTx) Set(op Op) {
	if op.Merge {
		base, err := t.Get(op.Path)
		if err != nil {
			base = nil
		}
		t.staged[op.Path] = MergeData(base, op.Data)
		return
	}
	t.staged[op.Path] = MergeData(nil, op.Data)
}

func (s *MemoryStore) RunTransaction(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, staged: map[string]map[string]any{}}
	if err := fn(tx); err != nil {
		// 丢弃暂存写集，任何文档都不变化
		return err
	}
	for path, data := range tx.staged {
		s.docs[path] = data
	}
	return nil
}

func (s *MemoryStore) RunBatch(ctx context.Context, ops []Op) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		for _, op := range ops {
			tx.Set(op)
		}
		return nil
	})
}

func matchFilters(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := data[f.Field]
		if !ok || !reflect.DeepEqual(v, f.Value) {
			return false
		}
	}
	return true
}

// sortDocs 按路径排序，保证查询结果稳定（map 遍历无序）
func sortDocs(docs []Doc) {
	sort.Slice(docs, func(i, j int) bool {
		return strings.Compare(docs[i].Path, docs[j].Path) < 0
	})
}
