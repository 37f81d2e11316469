package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore 基于 Postgres JSONB 的文档存储实现
// 每个文档一行：path 主键，collection/collection_id 用于等值/跨层查询，data 为 JSONB
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema 创建文档表（幂等）
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			path          TEXT PRIMARY KEY,
			collection    TEXT NOT NULL,
			collection_id TEXT NOT NULL,
			data          JSONB NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents (collection);
		CREATE INDEX IF NOT EXISTS idx_documents_collection_id ON documents (collection_id);
		CREATE INDEX IF NOT EXISTS idx_documents_data ON documents USING gin (data jsonb_path_ops);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure documents schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, path string) (map[string]any, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE path = $1`, path,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", path, err)
	}
	return decodeData(raw)
}

func (s *PostgresStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Doc, error) {
	return s.query(ctx, `collection = $1`, collection, filters)
}

func (s *PostgresStore) QueryGroup(ctx context.Context, collectionID string, filters ...Filter) ([]Doc, error) {
	return s.query(ctx, `collection_id = $1`, collectionID, filters)
}

func (s *PostgresStore) query(ctx context.Context, where string, arg string, filters []Filter) ([]Doc, error) {
	q := `SELECT path, data FROM documents WHERE ` + where
	args := []any{arg}
	if len(filters) > 0 {
		// 等值条件合成一个 JSONB 包含判断，命中 gin 索引
		contains := make(map[string]any, len(filters))
		for _, f := range filters {
			contains[f.Field] = f.Value
		}
		raw, err := json.Marshal(contains)
		if err != nil {
			return nil, fmt.Errorf("failed to encode query filters: %w", err)
		}
		q += ` AND data @> $2::jsonb`
		args = append(args, string(raw))
	}
	q += ` ORDER BY path`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var out []Doc
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Doc{Path: path, Data: data})
	}
	return out, rows.Err()
}

// postgresTx SQL 事务内的文档读写
// Get 使用 FOR UPDATE 行锁，Set 立即生效（读己之写），整体随 SQL 事务提交/回滚
type postgresTx struct {
	ctx context.Context
	tx  *sql.Tx
	err error
}

func (t *postgresTx) Get(path string) (map[string]any, error) {
	var raw []byte
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT data FROM documents WHERE path = $1 FOR UPDATE`, path,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", path, err)
	}
	return decodeData(raw)
}

func (t *postgresTx) Set(op Op) {
	if t.err != nil {
		return
	}

	data := op.Data
	if op.Merge {
		base, err := t.Get(op.Path)
		if err != nil && err != ErrNotFound {
			t.err = err
			return
		}
		data = MergeData(base, op.Data)
	} else {
		data = MergeData(nil, op.Data)
	}

	collection, _, err := SplitPath(op.Path)
	if err != nil {
		t.err = err
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		t.err = fmt.Errorf("failed to encode document %s: %w", op.Path, err)
		return
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO documents (path, collection, collection_id, data, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (path)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		op.Path, collection, CollectionID(collection), string(raw),
	)
	if err != nil {
		t.err = fmt.Errorf("failed to upsert document %s: %w", op.Path, err)
	}
}

func (s *PostgresStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &postgresTx{ctx: ctx, tx: sqlTx}
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if tx.err != nil {
		_ = sqlTx.Rollback()
		return tx.err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) RunBatch(ctx context.Context, ops []Op) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		for _, op := range ops {
			tx.Set(op)
		}
		return nil
	})
}

func decodeData(raw []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode document data: %w", err)
	}
	return data, nil
}
