package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound 文档不存在
var ErrNotFound = errors.New("document not found")

// deleteSentinel 字段删除哨兵类型
type deleteSentinel struct{}

// Delete 合并写入时删除指定字段的哨兵值
var Delete = deleteSentinel{}

// Doc 文档（路径 + 数据）
type Doc struct {
	Path string
	Data map[string]any
}

// Filter 等值查询条件（只支持顶层字段）
type Filter struct {
	Field string
	Value any
}

// Op 单个写操作
// Merge=true 表示部分字段合并（未提及字段保持不变，Delete 哨兵删除字段）
// Merge=false 表示整文档覆盖
type Op struct {
	Path  string
	Data  map[string]any
	Merge bool
}

// Tx 事务内的读写接口，写入在事务提交前对外不可见
type Tx interface {
	Get(path string) (map[string]any, error)
	Set(op Op)
}

// DocStore 文档存储的窄契约
// 读操作无副作用可并行；所有写入通过 RunTransaction/RunBatch 原子提交
type DocStore interface {
	Get(ctx context.Context, path string) (map[string]any, error)
	// Query 按集合路径等值查询（如 "emergency_links", "users/u1/emergency_contacts"）
	Query(ctx context.Context, collection string, filters ...Filter) ([]Doc, error)
	// QueryGroup 按集合ID跨层查询（collection group，如所有用户下的 "emergency_contacts"）
	QueryGroup(ctx context.Context, collectionID string, filters ...Filter) ([]Doc, error)
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	RunBatch(ctx context.Context, ops []Op) error
}

// SplitPath 把文档路径拆为 (集合路径, 文档ID)
// 路径段数必须为偶数，如 "users/u1"、"users/u1/emergency_contacts/e1"
func SplitPath(path string) (collection string, id string, err error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < 2 || len(segs)%2 != 0 {
		return "", "", fmt.Errorf("invalid document path: %q", path)
	}
	for _, s := range segs {
		if s == "" {
			return "", "", fmt.Errorf("invalid document path: %q", path)
		}
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

// CollectionID 集合路径的最后一段（collection group 查询用）
func CollectionID(collection string) string {
	segs := strings.Split(strings.Trim(collection, "/"), "/")
	return segs[len(segs)-1]
}

// MergeData 合并写入语义
// base 为 nil 时等价于新建；src 中的 Delete 哨兵删除对应字段；
// 两侧同为 map 的字段递归合并，其余情况 src 覆盖
func MergeData(base, src map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(src))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range src {
		if _, isDelete := v.(deleteSentinel); isDelete {
			delete(out, k)
			continue
		}
		srcMap, srcOK := v.(map[string]any)
		baseMap, baseOK := out[k].(map[string]any)
		if srcOK && baseOK {
			out[k] = MergeData(baseMap, srcMap)
			continue
		}
		if srcOK {
			// 去掉嵌套的删除哨兵
			out[k] = MergeData(nil, srcMap)
			continue
		}
		out[k] = v
	}
	return out
}

// CloneData 深拷贝文档数据（防止调用方与存储共享底层 map）
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if m, ok := v.(map[string]any); ok {
			out[k] = CloneData(m)
			continue
		}
		if s, ok := v.([]any); ok {
			cp := make([]any, len(s))
			for i, e := range s {
				if m, ok := e.(map[string]any); ok {
					cp[i] = CloneData(m)
				} else {
					cp[i] = e
				}
			}
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}
