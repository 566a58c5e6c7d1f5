// Package register_repo stores the accumulation registers fed by approvals:
// finished-goods movements and balances, and the scrap ledger.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/entity"
	"shopfloor/internal/core/id"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/registers/finishedgoods"
	"shopfloor/internal/infrastructure/storage/postgres"
)

const (
	tableMovements = "fg_movements"
	tableBalances  = "fg_balances"
)

var (
	movementCols = postgres.ExtractDBColumns[finishedgoods.Movement]()
	balanceCols  = postgres.ExtractDBColumns[finishedgoods.Balance]()
)

// FinishedGoodsRepo implements finishedgoods.Repository.
type FinishedGoodsRepo struct {
	txManager *postgres.TxManager
}

var _ finishedgoods.Repository = (*FinishedGoodsRepo)(nil)

// NewFinishedGoodsRepo creates a finished-goods register repository.
func NewFinishedGoodsRepo(txManager *postgres.TxManager) *FinishedGoodsRepo {
	return &FinishedGoodsRepo{txManager: txManager}
}

// CreateMovement relies on the unique recorder_id to refuse a second
// receipt for the same report.
func (r *FinishedGoodsRepo) CreateMovement(ctx context.Context, m *finishedgoods.Movement) error {
	sql, args, err := postgres.Builder().Insert(tableMovements).SetMap(postgres.StructToMap(m)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("finished goods movement", "recorder_id", m.RecorderID.String()).WithCause(err)
		}
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func signedQuantity(m *finishedgoods.Movement) any {
	if m.RecordType == entity.RecordTypeExpense {
		return -m.Quantity
	}
	return m.Quantity
}

func upsertBalance(m *finishedgoods.Movement) squirrel.InsertBuilder {
	delta := signedQuantity(m)
	return postgres.Builder().
		Insert(tableBalances).
		Columns("product_id", "product_name", "quantity", "min_quantity", "last_movement_at", "updated_at").
		Values(m.ProductID, m.ProductName, delta, 0, m.Period, squirrel.Expr("NOW()")).
		Suffix(`ON CONFLICT (product_id) DO UPDATE SET
			quantity = fg_balances.quantity + EXCLUDED.quantity,
			product_name = EXCLUDED.product_name,
			last_movement_at = GREATEST(fg_balances.last_movement_at, EXCLUDED.last_movement_at),
			updated_at = NOW()`)
}

func (r *FinishedGoodsRepo) ApplyMovement(ctx context.Context, m *finishedgoods.Movement) error {
	sql, args, err := upsertBalance(m).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

func (r *FinishedGoodsRepo) GetBalance(ctx context.Context, productID id.ID) (*finishedgoods.Balance, error) {
	sql, args, err := postgres.Builder().
		Select(balanceCols...).
		From(tableBalances).
		Where(squirrel.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	b := &finishedgoods.Balance{}
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("finished goods", productID.String())
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

func balanceQuery(f finishedgoods.BalanceFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(balanceCols...).From(tableBalances)
	if f.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": 0})
	}
	if f.BelowMin {
		q = q.Where("quantity < min_quantity")
	}
	return q
}

func (r *FinishedGoodsRepo) ListBalances(ctx context.Context, f finishedgoods.BalanceFilter) (domain.ListResult[*finishedgoods.Balance], error) {
	f.Normalize()
	result := domain.ListResult[*finishedgoods.Balance]{Items: []*finishedgoods.Balance{}, Limit: f.Limit, Offset: f.Offset}
	querier := r.txManager.GetQuerier(ctx)
	q := balanceQuery(f)

	countSQL, countArgs, err := postgres.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count balances: %w", err)
	}

	sql, args, err := q.OrderBy("product_name ASC").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list balances: %w", err)
	}
	return result, nil
}

func (r *FinishedGoodsRepo) ListMovements(ctx context.Context, productID id.ID) ([]*finishedgoods.Movement, error) {
	sql, args, err := postgres.Builder().
		Select(movementCols...).
		From(tableMovements).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("period ASC", "created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := []*finishedgoods.Movement{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return out, nil
}
