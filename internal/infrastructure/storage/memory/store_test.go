package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
	"shopfloor/internal/domain/audit"
	"shopfloor/internal/domain/orders"
	"shopfloor/internal/domain/stages"
)

func seedStage(t *testing.T, s *Store) *stages.Stage {
	t.Helper()
	ctx := context.Background()
	o := orders.NewOrder(id.New(), "Shelf", types.NewQuantity(3))
	require.NoError(t, s.Orders().Create(ctx, o))
	st := stages.NewStage(o.ID, "Cutting", stages.KindProduction, types.NewQuantity(3))
	require.NoError(t, s.Stages().Create(ctx, st))
	return st
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	s := New()
	st := seedStage(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		cur, err := s.Stages().GetForUpdate(ctx, st.ID)
		require.NoError(t, err)
		cur.Completed = types.NewQuantity(2)
		require.NoError(t, s.Stages().Update(ctx, cur))
		require.NoError(t, s.Audit().Record(ctx, audit.EntityStage, st.ID, audit.ActionApprove, nil))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Stages().GetByID(ctx, st.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed.IsZero())
	assert.Equal(t, st.Version, got.Version)
	assert.Empty(t, s.Audit().History(ctx, st.ID))
}

func TestRunInTransaction_NestedCallsJoin(t *testing.T) {
	s := New()
	st := seedStage(t, s)
	ctx := context.Background()

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		inner := s.RunInTransaction(ctx, func(ctx context.Context) error {
			return s.Audit().Record(ctx, audit.EntityStage, st.ID, audit.ActionArchive, nil)
		})
		require.NoError(t, inner)
		return errors.New("outer fails")
	})
	require.Error(t, err)
	assert.Empty(t, s.Audit().History(ctx, st.ID), "inner work rolls back with the outer transaction")
}

func TestStageUpdate_ChecksVersion(t *testing.T) {
	s := New()
	st := seedStage(t, s)
	ctx := context.Background()

	first, err := s.Stages().GetByID(ctx, st.ID)
	require.NoError(t, err)
	second, err := s.Stages().GetByID(ctx, st.ID)
	require.NoError(t, err)

	require.NoError(t, s.Stages().Update(ctx, first))
	err = s.Stages().Update(ctx, second)
	assert.True(t, apperror.IsConcurrentModification(err))
}

func TestReads_ReturnCopies(t *testing.T) {
	s := New()
	st := seedStage(t, s)
	ctx := context.Background()

	got, err := s.Stages().GetByID(ctx, st.ID)
	require.NoError(t, err)
	got.Title = "changed"

	again, err := s.Stages().GetByID(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cutting", again.Title)

	_, err = s.Orders().GetByID(ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestOrderDelete_CascadesStages(t *testing.T) {
	s := New()
	st := seedStage(t, s)
	ctx := context.Background()

	require.NoError(t, s.Orders().Delete(ctx, st.OrderID))

	_, err := s.Stages().GetByID(ctx, st.ID)
	assert.True(t, apperror.IsNotFound(err))
	left, err := s.Stages().ListByOrder(ctx, st.OrderID)
	require.NoError(t, err)
	assert.Empty(t, left)
}
