package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// BatchQuery is one statement of a batch. Expect is the number of rows it
// must affect; a mismatch fails the batch with OnMismatch.
type BatchQuery struct {
	Query      squirrel.Sqlizer
	Expect     int64
	OnMismatch func() error
}

// ExecBatch sends queries in a single round-trip. It requires a
// transaction so a failed statement leaves nothing behind.
func (m *TxManager) ExecBatch(ctx context.Context, queries []BatchQuery) error {
	t := m.GetTx(ctx)
	if t == nil {
		return fmt.Errorf("ExecBatch requires transaction context")
	}
	if len(queries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		sql, args, err := q.Query.ToSql()
		if err != nil {
			return fmt.Errorf("build batch query: %w", err)
		}
		batch.Queue(sql, args...)
	}

	results := t.SendBatch(ctx, batch)
	defer results.Close()

	for _, q := range queries {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("batch query failed: %w", err)
		}
		if q.OnMismatch != nil && tag.RowsAffected() != q.Expect {
			return q.OnMismatch()
		}
	}
	return nil
}
