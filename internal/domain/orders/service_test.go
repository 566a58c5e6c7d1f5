package orders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/numerator"
	"shopfloor/internal/core/types"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/orders"
	memnumerator "shopfloor/internal/infrastructure/numerator"
	"shopfloor/internal/infrastructure/storage/memory"
)

func newService(gen numerator.Generator) (*orders.Service, *memory.Store) {
	store := memory.New()
	return orders.NewService(store.Orders(), gen, store, store.Audit(), nil), store
}

type pendingSet map[id.ID]bool

func (p pendingSet) HasPending(_ context.Context, orderID id.ID) (bool, error) {
	return p[orderID], nil
}

func TestCreate_AssignsNumber(t *testing.T) {
	var gotCfg numerator.Config
	var gotOpts *numerator.Options
	gen := &numerator.MockGenerator{
		GetNextNumberFunc: func(_ context.Context, cfg numerator.Config, opts *numerator.Options, _ time.Time) (string, error) {
			gotCfg, gotOpts = cfg, opts
			return "ORD-0042", nil
		},
	}
	svc, store := newService(gen)
	ctx := context.Background()

	o := orders.NewOrder(id.New(), " Chair ", types.NewQuantity(12))
	require.NoError(t, svc.Create(ctx, o))

	assert.Equal(t, "ORD-0042", o.Number)
	assert.Equal(t, "Chair", o.ProductName)
	assert.Equal(t, numerator.PrefixOrder, gotCfg.Prefix)
	assert.Equal(t, orders.NumeratorStrategy, gotOpts.Strategy)

	stored, err := svc.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPlanned, stored.Status)
	assert.Len(t, store.Audit().History(ctx, o.ID), 1)
}

func TestCreate_KeepsGivenNumber(t *testing.T) {
	gen := &numerator.MockGenerator{
		GetNextNumberFunc: func(context.Context, numerator.Config, *numerator.Options, time.Time) (string, error) {
			t.Fatal("numerator must not be called")
			return "", nil
		},
	}
	svc, _ := newService(gen)

	o := orders.NewOrder(id.New(), "Chair", types.NewQuantity(1))
	o.Number = "EXT-7"
	require.NoError(t, svc.Create(context.Background(), o))
	assert.Equal(t, "EXT-7", o.Number)
}

func TestCreate_NumeratorFailureStoresNothing(t *testing.T) {
	gen := &numerator.MockGenerator{
		GetNextNumberFunc: func(context.Context, numerator.Config, *numerator.Options, time.Time) (string, error) {
			return "", errors.New("sequence exhausted")
		},
	}
	svc, _ := newService(gen)
	ctx := context.Background()

	o := orders.NewOrder(id.New(), "Chair", types.NewQuantity(1))
	require.Error(t, svc.Create(ctx, o))

	_, err := svc.GetByID(ctx, o.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newService(&numerator.MockGenerator{})
	ctx := context.Background()

	tests := []struct {
		name  string
		order *orders.Order
	}{
		{"no product", orders.NewOrder(id.Nil(), "Chair", types.NewQuantity(1))},
		{"no name", orders.NewOrder(id.New(), "  ", types.NewQuantity(1))},
		{"zero quantity", orders.NewOrder(id.New(), "Chair", 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(ctx, tt.order)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
		})
	}
}

func TestListAndDelete(t *testing.T) {
	svc, _ := newService(memnumerator.NewMemory())
	ctx := context.Background()

	chair := orders.NewOrder(id.New(), "Chair", types.NewQuantity(1))
	table := orders.NewOrder(id.New(), "Table", types.NewQuantity(2))
	require.NoError(t, svc.Create(ctx, chair))
	require.NoError(t, svc.Create(ctx, table))

	res, err := svc.List(ctx, orders.ListFilter{ListFilter: domain.DefaultListFilter(), ProductID: &table.ProductID})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, table.ID, res.Items[0].ID)

	require.NoError(t, svc.Delete(ctx, chair.ID))
	err = svc.Delete(ctx, chair.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestDelete_RefusedWhileReportsPending(t *testing.T) {
	store := memory.New()
	busy := pendingSet{}
	svc := orders.NewService(store.Orders(), memnumerator.NewMemory(), store, store.Audit(), busy)
	ctx := context.Background()

	o := orders.NewOrder(id.New(), "Chair", types.NewQuantity(1))
	require.NoError(t, svc.Create(ctx, o))
	busy[o.ID] = true

	err := svc.Delete(ctx, o.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule), "got %v", err)
	_, err = svc.GetByID(ctx, o.ID)
	require.NoError(t, err)

	busy[o.ID] = false
	require.NoError(t, svc.Delete(ctx, o.ID))
}
