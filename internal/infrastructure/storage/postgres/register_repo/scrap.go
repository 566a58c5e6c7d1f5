package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"shopfloor/internal/domain"
	"shopfloor/internal/domain/registers/scrap"
	"shopfloor/internal/infrastructure/storage/postgres"
)

const tableScrap = "scrap_records"

var scrapCols = postgres.ExtractDBColumns[scrap.Record]()

// ScrapRepo implements scrap.Repository.
type ScrapRepo struct {
	txManager *postgres.TxManager
}

var _ scrap.Repository = (*ScrapRepo)(nil)

// NewScrapRepo creates a scrap ledger repository.
func NewScrapRepo(txManager *postgres.TxManager) *ScrapRepo {
	return &ScrapRepo{txManager: txManager}
}

func (r *ScrapRepo) Create(ctx context.Context, rec *scrap.Record) error {
	sql, args, err := postgres.Builder().Insert(tableScrap).SetMap(postgres.StructToMap(rec)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert scrap record: %w", err)
	}
	return nil
}

func scrapQuery(f scrap.ListFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(scrapCols...).From(tableScrap)
	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.StageID != nil {
		q = q.Where(squirrel.Eq{"stage_id": *f.StageID})
	}
	if f.OrderID != nil {
		q = q.Where(squirrel.Eq{"order_id": *f.OrderID})
	}
	if f.Source != nil {
		q = q.Where(squirrel.Eq{"source": *f.Source})
	}
	return q
}

func (r *ScrapRepo) List(ctx context.Context, f scrap.ListFilter) (domain.ListResult[*scrap.Record], error) {
	f.Normalize()
	result := domain.ListResult[*scrap.Record]{Items: []*scrap.Record{}, Limit: f.Limit, Offset: f.Offset}
	querier := r.txManager.GetQuerier(ctx)
	q := scrapQuery(f)

	countSQL, countArgs, err := postgres.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count scrap: %w", err)
	}

	sql, args, err := q.OrderBy("created_at DESC", "id DESC").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list scrap: %w", err)
	}
	return result, nil
}
