package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"shopfloor/internal/core/apperror"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	res := Paginate(items, ListFilter{Limit: 2, Offset: 1})
	assert.Equal(t, []int{2, 3}, res.Items)
	assert.Equal(t, int64(5), res.TotalCount)

	res = Paginate(items, ListFilter{Limit: 10, Offset: 4})
	assert.Equal(t, []int{5}, res.Items)

	res = Paginate(items, ListFilter{Offset: 10})
	assert.Empty(t, res.Items)
	assert.Equal(t, 50, res.Limit)
}

func TestNormalizeNotFound(t *testing.T) {
	assert.NoError(t, NormalizeNotFound(nil, "stage", "x"))

	err := NormalizeNotFound(apperror.NewNotFound("row", "x"), "stage", "x")
	appErr, ok := apperror.AsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, "stage not found", appErr.Message)

	plain := errors.New("boom")
	assert.Same(t, plain, NormalizeNotFound(plain, "stage", "x"))
}

func TestHookRegistry_StopsOnError(t *testing.T) {
	reg := NewHookRegistry[*int]()
	calls := 0
	reg.On(BeforeCreate, func(ctx context.Context, v *int) error { calls++; return errors.New("stop") })
	reg.On(BeforeCreate, func(ctx context.Context, v *int) error { calls++; return nil })

	n := 1
	assert.Error(t, reg.Run(context.Background(), BeforeCreate, &n))
	assert.Equal(t, 1, calls)
	assert.NoError(t, reg.Run(context.Background(), AfterCreate, &n))
}
