package submission_test

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
	"shopfloor/internal/domain/allocation"
	"shopfloor/internal/domain/orders"
	"shopfloor/internal/domain/production"
	"shopfloor/internal/domain/stages"
	"shopfloor/internal/domain/submission"
	"shopfloor/internal/infrastructure/storage/memory"
)

type fixture struct {
	ctx   context.Context
	svc   *app.Services
	order *orders.Order
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "worker-7",
		Roles:  []string{appctx.RoleWorker},
	})
	svc := app.NewServices(app.MemoryBackend(memory.New()), app.Options{})
	order := orders.NewOrder(id.New(), "Bench", types.NewQuantity(4))
	order.Number = "ORD-1"
	require.NoError(t, svc.Orders.Create(ctx, order))
	return &fixture{ctx: ctx, svc: svc, order: order}
}

func (f *fixture) stage(t *testing.T, title string, kind stages.Kind, inputs ...stages.InputRequirement) *stages.Stage {
	t.Helper()
	st := stages.NewStage(f.order.ID, title, kind, types.NewQuantity(4))
	st.Inputs = inputs
	require.NoError(t, f.svc.Stages.Create(f.ctx, st))
	return st
}

func TestSubmit_StoresPendingReportWithSnapshot(t *testing.T) {
	f := newFixture(t)
	st := f.stage(t, "Cutting", stages.KindProduction)

	res, err := f.svc.Submission.Submit(f.ctx, submission.Request{
		StageID:   st.ID,
		Quantity:  types.MustQuantity("2.5"),
		BatchCode: "  L-9 ",
		Note:      " night shift ",
	})
	require.NoError(t, err)

	r := res.Report
	assert.Equal(t, production.StatusPending, r.Status)
	assert.Equal(t, production.KindProduction, r.Kind)
	assert.Equal(t, "worker-7", r.WorkerID)
	assert.Equal(t, "L-9", r.BatchCode)
	assert.Equal(t, "night shift", r.Note)
	assert.NotEmpty(t, r.Number)
	assert.Equal(t, "ORD-1", r.OrderNumber)
	assert.Equal(t, "Cutting", r.StageTitle)
	assert.Equal(t, "Bench", r.ProductName)

	reloaded, err := f.svc.Stages.GetByID(f.ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("2.5"), reloaded.Pending)
	assert.Equal(t, stages.StatusTodo, reloaded.Status)
}

func TestSubmit_SimpleStageAcceptsZero(t *testing.T) {
	f := newFixture(t)
	st := f.stage(t, "Inspection", stages.KindSimple)

	res, err := f.svc.Submission.Submit(f.ctx, submission.Request{StageID: st.ID})
	require.NoError(t, err)
	assert.Equal(t, production.KindSimpleReport, res.Report.Kind)
	assert.Equal(t, production.NoBatch, res.Report.BatchCode)
}

func TestSubmit_Refusals(t *testing.T) {
	f := newFixture(t)
	plain := f.stage(t, "Cutting", stages.KindProduction)
	archived := f.stage(t, "Old", stages.KindProduction)
	_, err := f.svc.Stages.Archive(f.ctx, archived.ID)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  submission.Request
		code string
	}{
		{"no stage", submission.Request{Quantity: types.NewQuantity(1)}, apperror.CodeValidation},
		{"unknown stage", submission.Request{StageID: id.New(), Quantity: types.NewQuantity(1)}, apperror.CodeNotFound},
		{"archived", submission.Request{StageID: archived.ID, Quantity: types.NewQuantity(1)}, apperror.CodeStageArchived},
		{"zero quantity", submission.Request{StageID: plain.ID}, apperror.CodeValidation},
		{"negative scrap", submission.Request{StageID: plain.ID, Quantity: types.NewQuantity(1), ScrapQuantity: types.NewQuantity(-1)}, apperror.CodeValidation},
		{"picks without inputs", submission.Request{
			StageID:    plain.ID,
			Quantity:   types.NewQuantity(1),
			Selections: []allocation.Selection{{ReportID: id.New(), Quantity: types.NewQuantity(1)}},
		}, apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submission.Submit(f.ctx, tt.req)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}

	reloaded, err := f.svc.Stages.GetByID(f.ctx, plain.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Pending.IsZero())
}

func TestEditPending_ShiftsStagePending(t *testing.T) {
	f := newFixture(t)
	st := f.stage(t, "Cutting", stages.KindProduction)

	res, err := f.svc.Submission.Submit(f.ctx, submission.Request{StageID: st.ID, Quantity: types.NewQuantity(4)})
	require.NoError(t, err)

	note := "two were bent"
	edited, err := f.svc.Store.EditPending(f.ctx, production.EditRequest{
		ReportID:      res.Report.ID,
		Quantity:      types.NewQuantity(2),
		ScrapQuantity: types.NewQuantity(2),
		Note:          &note,
		Version:       res.Report.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(2), edited.Quantity)
	assert.Equal(t, note, edited.Note)

	reloaded, err := f.svc.Stages.GetByID(f.ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(2), reloaded.Pending)

	_, err = f.svc.Store.EditPending(f.ctx, production.EditRequest{
		ReportID: res.Report.ID,
		Quantity: types.NewQuantity(3),
		Version:  res.Report.Version,
	})
	assert.True(t, apperror.IsConcurrentModification(err), "stale version")

	_, err = f.svc.Store.EditPending(f.ctx, production.EditRequest{
		ReportID: res.Report.ID,
		Quantity: 0,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	reloaded, err = f.svc.Stages.GetByID(f.ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(2), reloaded.Pending, "failed edits change nothing")
}

func TestSubmit_HookVetoRollsBack(t *testing.T) {
	f := newFixture(t)
	st := f.stage(t, "Cutting", stages.KindProduction)

	f.svc.Store.Hooks().On(domain.BeforeCreate, func(_ context.Context, r *production.Report) error {
		if r.BatchCode == "BLOCKED" {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "lot is quarantined")
		}
		return nil
	})

	_, err := f.svc.Submission.Submit(f.ctx, submission.Request{StageID: st.ID, Quantity: types.NewQuantity(1), BatchCode: "BLOCKED"})
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	_, err = f.svc.Submission.Submit(f.ctx, submission.Request{StageID: st.ID, Quantity: types.NewQuantity(1), BatchCode: "OK"})
	require.NoError(t, err)

	reloaded, err := f.svc.Stages.GetByID(f.ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(1), reloaded.Pending)
}
