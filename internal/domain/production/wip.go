package production

import (
	"slices"
	"strings"

	"shopfloor/internal/core/types"
)

// WIPBalance is the derived work-in-progress position of one batch code
// of a stage.
type WIPBalance struct {
	BatchCode string         `db:"batch_code" json:"batchCode"`
	Produced  types.Quantity `db:"produced" json:"produced"`
	Used      types.Quantity `db:"used" json:"used"`
	Balance   types.Quantity `db:"balance" json:"balance"`
}

// AggregateBatches groups approved reports by batch code. Manual deductions
// count as negative production of their batch.
func AggregateBatches(reports []*Report) []WIPBalance {
	byCode := make(map[string]*WIPBalance)
	for _, r := range reports {
		if r.Status != StatusApproved {
			continue
		}
		code := NormalizeBatchCode(r.BatchCode)
		b, ok := byCode[code]
		if !ok {
			b = &WIPBalance{BatchCode: code}
			byCode[code] = b
		}
		b.Produced += r.Quantity
		b.Used += r.UsedQuantity
	}

	out := make([]WIPBalance, 0, len(byCode))
	for _, b := range byCode {
		b.Balance = b.Produced - b.Used
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b WIPBalance) int { return strings.Compare(a.BatchCode, b.BatchCode) })
	return out
}

// BalanceOf returns the balance of code in balances, zero when absent.
func BalanceOf(balances []WIPBalance, code string) types.Quantity {
	code = NormalizeBatchCode(code)
	for _, b := range balances {
		if b.BatchCode == code {
			return b.Balance
		}
	}
	return 0
}
