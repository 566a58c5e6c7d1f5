package adjustment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor/internal/app"
	"shopfloor/internal/core/apperror"
	appctx "shopfloor/internal/core/context"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/adjustment"
	"shopfloor/internal/domain/allocation"
	"shopfloor/internal/domain/orders"
	"shopfloor/internal/domain/production"
	"shopfloor/internal/domain/registers/scrap"
	"shopfloor/internal/domain/stages"
	"shopfloor/internal/domain/submission"
	"shopfloor/internal/infrastructure/storage/memory"
)

func adminCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:  "admin-1",
		Roles:   []string{appctx.RoleAdmin},
		IsAdmin: true,
	})
}

func setup(t *testing.T) (*app.Services, *stages.Stage) {
	t.Helper()
	ctx := adminCtx()
	svc := app.NewServices(app.MemoryBackend(memory.New()), app.Options{})

	order := orders.NewOrder(id.New(), "Table", types.NewQuantity(20))
	require.NoError(t, svc.Orders.Create(ctx, order))

	st := stages.NewStage(order.ID, "Sanding", stages.KindProduction, types.NewQuantity(20))
	require.NoError(t, svc.Stages.Create(ctx, st))

	res, err := svc.Submission.Submit(ctx, submission.Request{
		StageID:   st.ID,
		Quantity:  types.NewQuantity(10),
		BatchCode: "P-1",
	})
	require.NoError(t, err)
	_, err = svc.Approval.Approve(ctx, res.Report.ID)
	require.NoError(t, err)
	return svc, st
}

func balance(t *testing.T, svc *app.Services, stageID id.ID, code string) types.Quantity {
	t.Helper()
	wip, err := svc.Store.Aggregate(adminCtx(), stageID, production.AggregateOptions{})
	require.NoError(t, err)
	return production.BalanceOf(wip, code)
}

func TestPost_RequiresAdmin(t *testing.T) {
	svc, st := setup(t)
	worker := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "w-1",
		Roles:  []string{appctx.RoleWorker, appctx.RoleApprover},
	})

	_, err := svc.Adjustment.Post(worker, adjustment.Request{
		StageID:  st.ID,
		Kind:     production.KindManualStock,
		Quantity: types.NewQuantity(1),
	})
	assert.Equal(t, 403, apperror.GetHTTPStatus(err))
}

func TestPost_ManualStockIsApprovedImmediately(t *testing.T) {
	svc, st := setup(t)

	res, err := svc.Adjustment.Post(adminCtx(), adjustment.Request{
		StageID:   st.ID,
		Kind:      production.KindManualStock,
		Quantity:  types.NewQuantity(5),
		BatchCode: "M-1",
		Note:      " found on shelf ",
	})
	require.NoError(t, err)
	assert.Equal(t, production.StatusApproved, res.Report.Status)
	assert.Equal(t, "admin-1", res.Report.ApprovedBy)
	assert.Equal(t, "found on shelf", res.Report.Note)
	assert.NotEmpty(t, res.Report.Number)
	assert.Equal(t, types.NewQuantity(15), res.Stage.Completed)
	assert.True(t, res.Stage.Pending.IsZero())
	assert.Nil(t, res.Scrap)

	assert.Equal(t, types.NewQuantity(5), balance(t, svc, st.ID, "M-1"))
}

func TestPost_DeductionReducesBatch(t *testing.T) {
	svc, st := setup(t)

	// The sign of a deduction is implied by its kind.
	res, err := svc.Adjustment.Post(adminCtx(), adjustment.Request{
		StageID:   st.ID,
		Kind:      production.KindManualAdjustment,
		Quantity:  types.NewQuantity(5),
		BatchCode: "P-1",
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(-5), res.Report.Quantity)
	assert.Equal(t, types.NewQuantity(5), res.Stage.Completed)
	assert.Equal(t, stages.StatusInProgress, res.Stage.Status)

	assert.Equal(t, types.NewQuantity(5), balance(t, svc, st.ID, "P-1"))
	assert.False(t, res.Report.IsConsumableSource())
}

func TestPost_DeductionCannotGoBelowZero(t *testing.T) {
	svc, st := setup(t)

	_, err := svc.Adjustment.Post(adminCtx(), adjustment.Request{
		StageID:   st.ID,
		Kind:      production.KindManualAdjustment,
		Quantity:  types.NewQuantity(-11),
		BatchCode: "P-1",
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientSupply))

	_, err = svc.Adjustment.Post(adminCtx(), adjustment.Request{
		StageID:   st.ID,
		Kind:      production.KindManualAdjustment,
		Quantity:  types.NewQuantity(-1),
		BatchCode: "UNKNOWN",
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientSupply))

	reloaded, err := svc.Stages.GetByID(adminCtx(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(10), reloaded.Completed, "rolled back")
	assert.Equal(t, types.NewQuantity(10), balance(t, svc, st.ID, "P-1"))
}

func TestPost_DeductionRespectsPendingReservations(t *testing.T) {
	svc, st := setup(t)
	ctx := adminCtx()

	approved, err := svc.Store.List(ctx, production.ListFilter{ListFilter: domain.ListFilter{Limit: 10}, StageID: &st.ID})
	require.NoError(t, err)
	require.Len(t, approved.Items, 1)
	p1 := approved.Items[0]

	assembly := stages.NewStage(st.OrderID, "Assembly", stages.KindProduction, types.NewQuantity(8))
	assembly.Inputs = []stages.InputRequirement{{SourceStage: "Sanding", Ratio: types.MustRatio("1")}}
	require.NoError(t, svc.Stages.Create(ctx, assembly))

	downstream, err := svc.Submission.Submit(ctx, submission.Request{
		StageID:    assembly.ID,
		Quantity:   types.NewQuantity(8),
		Selections: []allocation.Selection{{ReportID: p1.ID, Quantity: types.NewQuantity(8)}},
	})
	require.NoError(t, err)

	// 10 produced, 8 reserved: only 2 can be written off.
	_, err = svc.Adjustment.Post(ctx, adjustment.Request{
		StageID:   st.ID,
		Kind:      production.KindManualAdjustment,
		Quantity:  types.NewQuantity(5),
		BatchCode: "P-1",
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientSupply), err.Error())
	assert.Equal(t, types.NewQuantity(10), balance(t, svc, st.ID, "P-1"))

	_, err = svc.Adjustment.Post(ctx, adjustment.Request{
		StageID:   st.ID,
		Kind:      production.KindManualAdjustment,
		Quantity:  types.NewQuantity(2),
		BatchCode: "P-1",
	})
	require.NoError(t, err)

	_, err = svc.Approval.Approve(ctx, downstream.Report.ID)
	require.NoError(t, err)
	assert.True(t, balance(t, svc, st.ID, "P-1").IsZero())
}

func TestPost_DefectRecordsScrap(t *testing.T) {
	svc, st := setup(t)

	res, err := svc.Adjustment.Post(adminCtx(), adjustment.Request{
		StageID:   st.ID,
		Kind:      production.KindManualDefect,
		Quantity:  types.NewQuantity(2),
		BatchCode: "P-1",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Scrap)
	assert.Equal(t, scrap.SourceManualDefect, res.Scrap.Source)
	assert.Equal(t, types.NewQuantity(2), res.Scrap.Quantity)
	assert.Equal(t, types.NewQuantity(2), res.Stage.Scrap)
	assert.Equal(t, types.NewQuantity(8), res.Stage.Completed)

	list, err := svc.Scrap.List(adminCtx(), scrap.ListFilter{ListFilter: domain.ListFilter{Limit: 10}, StageID: &st.ID})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}

func TestPost_RejectsBadInput(t *testing.T) {
	svc, st := setup(t)

	tests := []struct {
		name string
		req  adjustment.Request
		code string
	}{
		{"zero deduction", adjustment.Request{StageID: st.ID, Kind: production.KindManualAdjustment}, apperror.CodeValidation},
		{"negative stock", adjustment.Request{StageID: st.ID, Kind: production.KindManualStock, Quantity: types.NewQuantity(-1)}, apperror.CodeValidation},
		{"not manual", adjustment.Request{StageID: st.ID, Kind: production.KindProduction, Quantity: types.NewQuantity(1)}, apperror.CodeValidation},
		{"unknown stage", adjustment.Request{StageID: id.New(), Kind: production.KindManualStock, Quantity: types.NewQuantity(1)}, apperror.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Adjustment.Post(adminCtx(), tt.req)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.code), err.Error())
		})
	}
}
