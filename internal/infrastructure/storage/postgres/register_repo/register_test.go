package register_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor/internal/core/entity"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
	"shopfloor/internal/domain/registers/finishedgoods"
	"shopfloor/internal/domain/registers/scrap"
)

func TestUpsertBalance(t *testing.T) {
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m := &finishedgoods.Movement{
		MovementBase: entity.NewMovementBase(id.New(), finishedgoods.RecorderApproval, period, entity.RecordTypeReceipt),
		ProductID:    id.New(),
		ProductName:  "Chair",
		Quantity:     types.NewQuantity(20),
	}

	sql, args, err := upsertBalance(m).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "INSERT INTO fg_balances (product_id,product_name,quantity,min_quantity,last_movement_at,updated_at) VALUES ($1,$2,$3,$4,$5,NOW())")
	assert.Contains(t, sql, "ON CONFLICT (product_id) DO UPDATE SET")
	assert.Contains(t, sql, "quantity = fg_balances.quantity + EXCLUDED.quantity")
	assert.Equal(t, []any{m.ProductID, "Chair", types.NewQuantity(20), 0, period}, args)
}

func TestUpsertBalance_ExpenseIsNegative(t *testing.T) {
	m := &finishedgoods.Movement{
		MovementBase: entity.NewMovementBase(id.New(), "shipment", time.Now(), entity.RecordTypeExpense),
		ProductID:    id.New(),
		Quantity:     types.NewQuantity(3),
	}

	_, args, err := upsertBalance(m).ToSql()
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(-3), args[2])
}

func TestBalanceQuery_Filters(t *testing.T) {
	f := finishedgoods.BalanceFilter{ExcludeZero: true, BelowMin: true}

	sql, args, err := balanceQuery(f).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM fg_balances WHERE quantity <> $1 AND quantity < min_quantity")
	assert.Equal(t, []any{0}, args)
}

func TestScrapQuery_Filters(t *testing.T) {
	stageID := id.New()
	src := scrap.SourceManualDefect

	sql, args, err := scrapQuery(scrap.ListFilter{StageID: &stageID, Source: &src}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM scrap_records WHERE stage_id = $1 AND source = $2")
	assert.Equal(t, []any{stageID, scrap.SourceManualDefect}, args)
}
