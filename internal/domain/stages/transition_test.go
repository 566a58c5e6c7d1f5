package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
)

func q(n int64) types.Quantity { return types.NewQuantity(n) }

func TestTransitions_Lifecycle(t *testing.T) {
	s := NewStage(id.New(), "  Cutting ", KindProduction, q(10))
	assert.Equal(t, "Cutting", s.Title)
	assert.Equal(t, StatusTodo, s.Status)

	require.NoError(t, Submit(q(6))(s))
	assert.Equal(t, q(6), s.Pending)
	assert.Equal(t, StatusTodo, s.Status, "submission does not start the stage")

	require.NoError(t, Approve(q(4), q(1))(s))
	assert.Equal(t, q(4), s.Completed)
	assert.Equal(t, q(2), s.Pending)
	assert.Equal(t, q(1), s.Scrap)
	assert.Equal(t, StatusInProgress, s.Status)

	require.NoError(t, Release(q(5))(s))
	assert.True(t, s.Pending.IsZero(), "pending never goes negative")

	require.NoError(t, Adjust(q(6))(s))
	assert.Equal(t, StatusDone, s.Status)

	require.NoError(t, Adjust(q(-1))(s))
	assert.Equal(t, StatusInProgress, s.Status)
}

func TestTransitions_ArchivedIsSticky(t *testing.T) {
	s := NewStage(id.New(), "Paint", KindProduction, q(2))
	require.NoError(t, Archive()(s))
	require.NoError(t, Approve(q(2), 0)(s))

	assert.Equal(t, StatusArchived, s.Status)
	assert.Equal(t, q(2), s.Completed)
	assert.True(t, s.IsArchived())
}

func TestTransitions_UnplannedStageStaysInProgress(t *testing.T) {
	s := NewStage(id.New(), "Rework", KindSimple, 0)
	require.NoError(t, Approve(0, 0)(s))
	assert.Equal(t, StatusInProgress, s.Status)
}

func TestTransitions_ShiftPending(t *testing.T) {
	s := NewStage(id.New(), "Cutting", KindProduction, q(10))
	require.NoError(t, Submit(q(3))(s))
	require.NoError(t, ShiftPending(q(2))(s))
	assert.Equal(t, q(5), s.Pending)
	require.NoError(t, ShiftPending(q(-9))(s))
	assert.True(t, s.Pending.IsZero())
}

func TestChain_StopsAtFirstError(t *testing.T) {
	s := NewStage(id.New(), "Cutting", KindProduction, q(10))
	err := Chain(Adjust(q(3)), AddScrap(q(-1)), Adjust(q(3)))(s)

	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Equal(t, q(3), s.Completed)

	err = Submit(q(-1))(s)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestStage_Validate(t *testing.T) {
	order := id.New()
	tests := []struct {
		name   string
		mutate func(s *Stage)
		ok     bool
	}{
		{"valid", func(*Stage) {}, true},
		{"missing order", func(s *Stage) { s.OrderID = id.Nil() }, false},
		{"missing title", func(s *Stage) { s.Title = "" }, false},
		{"bad kind", func(s *Stage) { s.Kind = "welding" }, false},
		{"negative plan", func(s *Stage) { s.Planned = q(-1) }, false},
		{"own output", func(s *Stage) {
			s.Inputs = []InputRequirement{{SourceStage: " assembly", Ratio: types.MustRatio("1")}}
		}, false},
		{"zero ratio", func(s *Stage) {
			s.Inputs = []InputRequirement{{SourceStage: "Cutting", Ratio: types.MustRatio("0")}}
		}, false},
		{"duplicate input", func(s *Stage) {
			s.Inputs = []InputRequirement{
				{SourceStage: "Cutting", Ratio: types.MustRatio("1")},
				{SourceStage: "CUTTING", Ratio: types.MustRatio("2")},
			}
		}, false},
		{"fractional ratio", func(s *Stage) {
			s.Inputs = []InputRequirement{{SourceStage: "Cutting", Ratio: types.MustRatio("0.5")}}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStage(order, "Assembly", KindProduction, q(5))
			tt.mutate(s)
			err := s.Validate(context.Background())
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
			}
		})
	}
}

func TestSameTitle(t *testing.T) {
	assert.True(t, SameTitle(" Cutting", "cutting "))
	assert.False(t, SameTitle("Cutting", "Cut"))
}
