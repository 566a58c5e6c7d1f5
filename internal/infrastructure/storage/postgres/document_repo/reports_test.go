package document_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
	"shopfloor/internal/domain/production"
	"shopfloor/internal/infrastructure/storage/postgres"
)

func TestAggregateQuery(t *testing.T) {
	stageID := id.New()

	sql, args, err := aggregateQuery(stageID).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT batch_code, SUM(quantity)::BIGINT AS produced, SUM(used_quantity)::BIGINT AS used, `+
			`SUM(quantity - used_quantity)::BIGINT AS balance FROM production_reports `+
			`WHERE stage_id = $1 AND status = $2 GROUP BY batch_code ORDER BY batch_code COLLATE "C"`,
		sql)
	assert.Equal(t, []any{stageID, production.StatusApproved}, args)
}

func TestUsageUpdate_ChecksVersion(t *testing.T) {
	rep := production.NewReport(id.New(), id.New(), production.KindProduction, types.NewQuantity(100))
	rep.UsedQuantity = types.NewQuantity(80)
	rep.SetVersion(4)

	sql, args, err := usageUpdate(rep).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE production_reports SET used_quantity = $1, version = version + 1, updated_at = NOW() WHERE id = $2 AND version = $3",
		sql)
	assert.Equal(t, []any{types.NewQuantity(80), rep.ID, 4}, args)
}

func TestLockManyQuery(t *testing.T) {
	a, b := id.New(), id.New()

	sql, args, err := lockManyQuery(postgres.Builder().Select("id").From("production_reports"), []id.ID{a, b}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM production_reports WHERE id IN ($1,$2) ORDER BY id ASC FOR UPDATE", sql)
	assert.Len(t, args, 2)
}

func TestApplyFilter(t *testing.T) {
	stageID := id.New()
	status := production.StatusPending
	batch := "  "

	sql, args, err := applyFilter(postgres.Builder().Select("id").From("production_reports"), production.ListFilter{
		StageID:   &stageID,
		Status:    &status,
		BatchCode: &batch,
	}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM production_reports WHERE stage_id = $1 AND status = $2 AND batch_code = $3", sql)
	assert.Equal(t, []any{stageID, production.StatusPending, production.NoBatch}, args)
}
