package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/entity"
	"shopfloor/internal/core/id"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/registers/finishedgoods"
	"shopfloor/internal/domain/registers/scrap"
)

// FinishedGoodsRepo implements finishedgoods.Repository.
type FinishedGoodsRepo struct{ s *Store }

var _ finishedgoods.Repository = FinishedGoodsRepo{}

// FinishedGoods returns the finished-goods register repository.
func (s *Store) FinishedGoods() FinishedGoodsRepo { return FinishedGoodsRepo{s} }

func (r FinishedGoodsRepo) CreateMovement(ctx context.Context, m *finishedgoods.Movement) error {
	return r.s.view(ctx, func(st *state) error {
		for _, existing := range st.movements {
			if existing.RecorderID == m.RecorderID {
				return apperror.NewDuplicate("finished goods movement", "recorder_id", m.RecorderID.String())
			}
		}
		mv := *m
		st.movements = append(st.movements, &mv)
		return nil
	})
}

func (r FinishedGoodsRepo) ApplyMovement(ctx context.Context, m *finishedgoods.Movement) error {
	return r.s.view(ctx, func(st *state) error {
		now := time.Now().UTC()
		b, ok := st.balances[m.ProductID]
		if !ok {
			b = &finishedgoods.Balance{ProductID: m.ProductID}
			st.balances[m.ProductID] = b
		}
		b.ProductName = m.ProductName
		if m.RecordType == entity.RecordTypeExpense {
			b.Quantity -= m.Quantity
		} else {
			b.Quantity += m.Quantity
		}
		b.LastMovementAt = m.Period
		b.UpdatedAt = now
		return nil
	})
}

func (r FinishedGoodsRepo) GetBalance(ctx context.Context, productID id.ID) (*finishedgoods.Balance, error) {
	var out *finishedgoods.Balance
	err := r.s.view(ctx, func(st *state) error {
		b, ok := st.balances[productID]
		if !ok {
			return apperror.NewNotFound("finished goods", productID.String())
		}
		c := *b
		out = &c
		return nil
	})
	return out, err
}

func (r FinishedGoodsRepo) ListBalances(ctx context.Context, f finishedgoods.BalanceFilter) (domain.ListResult[*finishedgoods.Balance], error) {
	var res domain.ListResult[*finishedgoods.Balance]
	err := r.s.view(ctx, func(st *state) error {
		var items []*finishedgoods.Balance
		for _, b := range st.balances {
			if f.ExcludeZero && b.Quantity.IsZero() {
				continue
			}
			if f.BelowMin && !b.BelowMinimum() {
				continue
			}
			c := *b
			items = append(items, &c)
		}
		slices.SortFunc(items, func(a, b *finishedgoods.Balance) int {
			return strings.Compare(a.ProductName, b.ProductName)
		})
		res = domain.Paginate(items, f.ListFilter)
		return nil
	})
	return res, err
}

func (r FinishedGoodsRepo) ListMovements(ctx context.Context, productID id.ID) ([]*finishedgoods.Movement, error) {
	var out []*finishedgoods.Movement
	err := r.s.view(ctx, func(st *state) error {
		for _, m := range st.movements {
			if m.ProductID == productID {
				mv := *m
				out = append(out, &mv)
			}
		}
		return nil
	})
	return out, err
}

// ScrapRepo implements scrap.Repository.
type ScrapRepo struct{ s *Store }

var _ scrap.Repository = ScrapRepo{}

// Scrap returns the scrap ledger repository.
func (s *Store) Scrap() ScrapRepo { return ScrapRepo{s} }

func (r ScrapRepo) Create(ctx context.Context, rec *scrap.Record) error {
	return r.s.view(ctx, func(st *state) error {
		c := *rec
		st.scrap = append(st.scrap, &c)
		return nil
	})
}

func (r ScrapRepo) List(ctx context.Context, f scrap.ListFilter) (domain.ListResult[*scrap.Record], error) {
	var res domain.ListResult[*scrap.Record]
	err := r.s.view(ctx, func(st *state) error {
		var items []*scrap.Record
		for i := len(st.scrap) - 1; i >= 0; i-- {
			if f.Matches(st.scrap[i]) {
				c := *st.scrap[i]
				items = append(items, &c)
			}
		}
		res = domain.Paginate(items, f.ListFilter)
		return nil
	})
	return res, err
}
