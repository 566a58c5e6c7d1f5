package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
	"shopfloor/internal/domain/production"
	"shopfloor/internal/domain/stages"
)

func TestExtractDBColumns_FlattensEmbedded(t *testing.T) {
	cols := ExtractDBColumns[production.Report]()

	for _, expected := range []string{
		"id", "version", "created_at", "updated_at", "number", "date", "created_by",
		"stage_id", "quantity", "used_quantity", "source_consumption",
		"order_number", "stage_title", "product_name", "approved_at",
	} {
		assert.Contains(t, cols, expected)
	}
}

func TestStructToMap_Report(t *testing.T) {
	stageID, orderID, batchID := id.New(), id.New(), id.New()
	r := production.NewReport(stageID, orderID, production.KindProduction, types.NewQuantity(10))
	r.SourceConsumption = production.Consumption{batchID: types.NewQuantity(4)}
	r.StageTitle = "Assembly"
	r.Number = "RPT-2026-00001"

	m := StructToMap(r)

	assert.Equal(t, r.ID, m["id"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, "RPT-2026-00001", m["number"])
	assert.Equal(t, stageID, m["stage_id"])
	assert.Equal(t, types.NewQuantity(10), m["quantity"])
	assert.Equal(t, "Assembly", m["stage_title"])
	assert.Equal(t, production.Consumption{batchID: types.NewQuantity(4)}, m["source_consumption"])
	assert.Equal(t, production.StatusPending, m["status"])
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}

func TestBaseRepo_ParseOrderBy(t *testing.T) {
	repo := NewBaseRepo[*stages.Stage](nil, "stages", "stage", "created_at ASC", ExtractDBColumns[stages.Stage]())

	got, err := repo.ParseOrderBy("")
	require.NoError(t, err)
	assert.Equal(t, "created_at ASC", got)

	got, err = repo.ParseOrderBy("-title")
	require.NoError(t, err)
	assert.Equal(t, "title DESC", got)

	got, err = repo.ParseOrderBy("+planned")
	require.NoError(t, err)
	assert.Equal(t, "planned ASC", got)

	_, err = repo.ParseOrderBy("title; DROP TABLE stages")
	assert.Error(t, err)
}

func TestBaseRepo_UpdateQueryChecksVersion(t *testing.T) {
	repo := NewBaseRepo[*stages.Stage](nil, "stages", "stage", "created_at ASC", ExtractDBColumns[stages.Stage]())
	st := stages.NewStage(id.New(), "Cutting", stages.KindProduction, types.NewQuantity(100))
	st.SetVersion(3)

	q, err := repo.updateQuery(st)
	require.NoError(t, err)
	sql, args, err := q.ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "UPDATE stages SET ")
	assert.Contains(t, sql, "version = version + 1")
	assert.Contains(t, sql, "WHERE id = $")
	assert.Contains(t, sql, "AND version = $")
	assert.Contains(t, sql, "RETURNING version, updated_at")
	assert.NotContains(t, sql, "created_at =")
	assert.Contains(t, args, 3)
}
