package production

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
)

func q(n int64) types.Quantity { return types.NewQuantity(n) }

func approved(kind Kind, quantity types.Quantity, batch string) *Report {
	r := NewReport(id.New(), id.New(), kind, quantity)
	r.Status = StatusApproved
	r.BatchCode = NormalizeBatchCode(batch)
	return r
}

func TestReport_Consume(t *testing.T) {
	r := approved(KindProduction, q(10), "L1")

	require.NoError(t, r.Consume(q(7)))
	assert.Equal(t, q(3), r.Remaining())

	err := r.Consume(q(4))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientSupply))
	assert.Equal(t, q(7), r.UsedQuantity, "failed debit leaves usage untouched")

	require.NoError(t, r.Consume(q(3)))
	assert.True(t, r.Remaining().IsZero())

	assert.True(t, apperror.HasCode(r.Consume(0), apperror.CodeValidation))
}

func TestReport_IsConsumableSource(t *testing.T) {
	pending := NewReport(id.New(), id.New(), KindProduction, q(1))

	tests := []struct {
		name string
		r    *Report
		want bool
	}{
		{"approved production", approved(KindProduction, q(1), ""), true},
		{"approved simple", approved(KindSimpleReport, q(1), ""), true},
		{"simple with zero", approved(KindSimpleReport, 0, ""), false},
		{"pending", pending, false},
		{"stock with lot", approved(KindManualStock, q(1), "M-1"), true},
		{"stock without lot", approved(KindManualStock, q(1), ""), false},
		{"deduction", approved(KindManualAdjustment, q(-1), "L1"), false},
		{"defect", approved(KindManualDefect, q(-1), "L1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.IsConsumableSource())
		})
	}

	err := approved(KindManualAdjustment, q(-1), "L1").Consume(q(1))
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientSupply))
}

func TestReport_Decisions(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	r := NewReport(id.New(), id.New(), KindProduction, q(2))

	require.NoError(t, r.MarkApproved("boss", now))
	assert.Equal(t, now, r.ApproveTime())

	err := r.MarkApproved("boss", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeReportNotPending))
	err = r.MarkRejected("boss", "x", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeReportNotPending))
	_, err = r.EditSplit(q(1), 0, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeReportNotPending))
}

func TestReport_EditSplit(t *testing.T) {
	r := NewReport(id.New(), id.New(), KindProduction, q(5))
	note := "  recount "

	delta, err := r.EditSplit(q(3), q(2), &note)
	require.NoError(t, err)
	assert.Equal(t, q(-2), delta)
	assert.Equal(t, q(3), r.Quantity)
	assert.Equal(t, q(2), r.ScrapQuantity)
	assert.Equal(t, "recount", r.Note)

	_, err = r.EditSplit(q(4), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "recount", r.Note, "nil note keeps the old one")
}

func TestReport_Validate(t *testing.T) {
	ctx := context.Background()
	batch := id.New()

	tests := []struct {
		name string
		r    func() *Report
		ok   bool
	}{
		{"production", func() *Report { return NewReport(id.New(), id.New(), KindProduction, q(1)) }, true},
		{"production zero", func() *Report { return NewReport(id.New(), id.New(), KindProduction, 0) }, false},
		{"simple zero", func() *Report { return NewReport(id.New(), id.New(), KindSimpleReport, 0) }, true},
		{"deduction positive", func() *Report { return NewReport(id.New(), id.New(), KindManualAdjustment, q(1)) }, false},
		{"deduction negative", func() *Report { return NewReport(id.New(), id.New(), KindManualAdjustment, q(-1)) }, true},
		{"deduction with sources", func() *Report {
			r := NewReport(id.New(), id.New(), KindManualDefect, q(-1))
			r.SourceConsumption = Consumption{batch: q(1)}
			return r
		}, false},
		{"negative scrap", func() *Report {
			r := NewReport(id.New(), id.New(), KindProduction, q(1))
			r.ScrapQuantity = q(-1)
			return r
		}, false},
		{"zero consumption", func() *Report {
			r := NewReport(id.New(), id.New(), KindProduction, q(1))
			r.SourceConsumption = Consumption{batch: 0}
			return r
		}, false},
		{"missing stage", func() *Report { return NewReport(id.Nil(), id.New(), KindProduction, q(1)) }, false},
		{"unknown kind", func() *Report { return NewReport(id.New(), id.New(), "gift", q(1)) }, false},
		{"overused", func() *Report {
			r := NewReport(id.New(), id.New(), KindProduction, q(1))
			r.UsedQuantity = q(2)
			return r
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r().Validate(ctx)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("manual_stock")
	require.NoError(t, err)
	assert.Equal(t, KindManualStock, k)
	assert.True(t, k.IsManual())

	k, err = ParseKind("manual_deduction")
	require.NoError(t, err)
	assert.Equal(t, KindManualAdjustment, k)

	k, err = ParseKind(" Production ")
	require.NoError(t, err)
	assert.False(t, k.IsManual())

	_, err = ParseKind("gift")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestAggregateBatches(t *testing.T) {
	a := approved(KindProduction, q(10), "L1")
	a.UsedQuantity = q(4)
	b := approved(KindProduction, q(5), "")
	c := approved(KindManualAdjustment, q(-3), "L1")
	pending := NewReport(id.New(), id.New(), KindProduction, q(100))

	got := AggregateBatches([]*Report{a, b, c, pending})

	require.Len(t, got, 2)
	assert.Equal(t, WIPBalance{BatchCode: NoBatch, Produced: q(5), Balance: q(5)}, got[0])
	assert.Equal(t, WIPBalance{BatchCode: "L1", Produced: q(7), Used: q(4), Balance: q(3)}, got[1])

	assert.Equal(t, q(3), BalanceOf(got, " L1 "))
	assert.True(t, BalanceOf(got, "L2").IsZero())
}

func TestConsumption(t *testing.T) {
	a, b := id.New(), id.New()
	c := Consumption{a: q(2), b: q(3)}
	assert.Equal(t, q(5), c.Total())
	assert.ElementsMatch(t, []id.ID{a, b}, c.BatchIDs())
}
