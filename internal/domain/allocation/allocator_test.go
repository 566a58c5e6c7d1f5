package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
	"shopfloor/internal/domain/production"
)

func q(n int64) types.Quantity { return types.NewQuantity(n) }

func twoInputDraft(legs, seat id.ID) *Draft {
	return &Draft{
		Quantity: q(5),
		Requirements: []Requirement{
			{
				SourceStage: "Legs",
				Ratio:       types.MustRatio("4"),
				TotalNeeded: q(20),
				Available:   q(30),
				Candidates:  []Candidate{{ReportID: legs, AvailableNow: q(30)}},
			},
			{
				SourceStage: "Seat",
				Ratio:       types.MustRatio("1"),
				TotalNeeded: q(5),
				Available:   q(3),
				Candidates:  []Candidate{{ReportID: seat, AvailableNow: q(3)}},
			},
		},
	}
}

func TestAllocate_WarnsOnShortfall(t *testing.T) {
	legs, seat := id.New(), id.New()
	a := NewAllocator(nil, nil)

	got, err := a.Allocate(twoInputDraft(legs, seat), []Selection{
		{ReportID: legs, Quantity: q(12)},
		{ReportID: legs, Quantity: q(8)},
		{ReportID: seat, Quantity: q(3)},
	})
	require.NoError(t, err)

	assert.Equal(t, production.Consumption{legs: q(20), seat: q(3)}, got.SourceConsumption)
	require.Len(t, got.Warnings, 1)
	assert.Equal(t, InsufficientSupplyWarning{
		Code:        WarningInsufficientSupply,
		SourceStage: "Seat",
		Needed:      q(5),
		Allocated:   q(3),
		Missing:     q(2),
	}, got.Warnings[0])
}

func TestAllocate_EmptySelectionWarnsForEveryInput(t *testing.T) {
	got, err := NewAllocator(nil, nil).Allocate(twoInputDraft(id.New(), id.New()), nil)
	require.NoError(t, err)
	assert.Empty(t, got.SourceConsumption)
	assert.Len(t, got.Warnings, 2)
}

func TestAllocate_Rejects(t *testing.T) {
	legs, seat := id.New(), id.New()

	tests := []struct {
		name string
		sels []Selection
	}{
		{"unknown batch", []Selection{{ReportID: id.New(), Quantity: q(1)}}},
		{"zero pick", []Selection{{ReportID: legs, Quantity: 0}}},
		{"negative pick", []Selection{{ReportID: legs, Quantity: q(-1)}}},
		{"above available", []Selection{{ReportID: seat, Quantity: q(4)}}},
		{"above need", []Selection{{ReportID: legs, Quantity: q(21)}}},
		{"merged above need", []Selection{{ReportID: legs, Quantity: q(15)}, {ReportID: legs, Quantity: q(6)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAllocator(nil, nil).Allocate(twoInputDraft(legs, seat), tt.sels)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
		})
	}
}

func TestPendingReservations(t *testing.T) {
	batch := id.New()
	mk := func(n int64) *production.Report {
		r := production.NewReport(id.New(), id.New(), production.KindProduction, q(n))
		r.SourceConsumption = production.Consumption{batch: q(n)}
		return r
	}
	a, b, done := mk(4), mk(6), mk(9)
	done.Status = production.StatusApproved

	all := PendingReservations([]*production.Report{a, b, done}, nil)
	assert.Equal(t, q(10), all[batch])

	withoutA := PendingReservations([]*production.Report{a, b, done}, &a.ID)
	assert.Equal(t, q(6), withoutA[batch])
}
