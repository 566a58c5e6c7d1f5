// Package document_repo stores production reports, the ledger's documents.
package document_repo

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/id"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/production"
	"shopfloor/internal/infrastructure/storage/postgres"
)

const tableReports = "production_reports"

// ReportRepo implements production.Repository.
type ReportRepo struct {
	txManager *postgres.TxManager
	base      *postgres.BaseRepo[*production.Report]
}

var _ production.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a report repository.
func NewReportRepo(txManager *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txManager: txManager,
		base: postgres.NewBaseRepo[*production.Report](txManager, tableReports, "report", "date DESC",
			postgres.ExtractDBColumns[production.Report]()),
	}
}

func (r *ReportRepo) Create(ctx context.Context, rep *production.Report) error {
	if rep.SourceConsumption == nil {
		rep.SourceConsumption = production.Consumption{}
	}
	if rep.SourceBatchIDs == nil {
		rep.SourceBatchIDs = []id.ID{}
	}
	return r.base.Create(ctx, rep)
}

func (r *ReportRepo) GetByID(ctx context.Context, reportID id.ID) (*production.Report, error) {
	rep := &production.Report{}
	if err := r.base.GetByID(ctx, rep, reportID); err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *ReportRepo) GetForUpdate(ctx context.Context, reportID id.ID) (*production.Report, error) {
	rep := &production.Report{}
	if err := r.base.GetForUpdate(ctx, rep, reportID); err != nil {
		return nil, err
	}
	return rep, nil
}

// GetManyForUpdate locks rows in ascending id order. UUIDs compare
// bytewise in Postgres, which matches their canonical string order.
func (r *ReportRepo) GetManyForUpdate(ctx context.Context, reportIDs []id.ID) ([]*production.Report, error) {
	ids := slices.Clone(reportIDs)
	slices.SortFunc(ids, func(a, b id.ID) int { return strings.Compare(a.String(), b.String()) })
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	list := []*production.Report{}
	if err := r.base.SelectAll(ctx, &list, lockManyQuery(r.base.Select(), ids)); err != nil {
		return nil, err
	}

	if len(list) != len(ids) {
		for _, want := range ids {
			if !slices.ContainsFunc(list, func(rep *production.Report) bool { return rep.ID == want }) {
				return nil, apperror.NewNotFound("report", want.String())
			}
		}
	}
	return list, nil
}

func lockManyQuery(q squirrel.SelectBuilder, ids []id.ID) squirrel.SelectBuilder {
	return q.Where(squirrel.Eq{"id": ids}).OrderBy("id ASC").Suffix("FOR UPDATE")
}

func (r *ReportRepo) Update(ctx context.Context, rep *production.Report) error {
	return r.base.Update(ctx, rep)
}

// UpdateUsage writes used_quantity of every report in one batch. Each row
// is version-checked like Update.
func (r *ReportRepo) UpdateUsage(ctx context.Context, reps []*production.Report) error {
	queries := make([]postgres.BatchQuery, 0, len(reps))
	for _, rep := range reps {
		queries = append(queries, postgres.BatchQuery{
			Query:      usageUpdate(rep),
			Expect:     1,
			OnMismatch: func() error { return apperror.NewConcurrentModification("report", rep.ID) },
		})
	}
	if err := r.txManager.ExecBatch(ctx, queries); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, rep := range reps {
		rep.SetVersion(rep.Version + 1)
		rep.SetUpdatedAt(now)
	}
	return nil
}

func usageUpdate(rep *production.Report) squirrel.UpdateBuilder {
	return postgres.Builder().
		Update(tableReports).
		Set("used_quantity", rep.UsedQuantity).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": rep.ID, "version": rep.Version})
}

func (r *ReportRepo) List(ctx context.Context, f production.ListFilter) (domain.ListResult[*production.Report], error) {
	return r.base.List(ctx, applyFilter(r.base.Select(), f), f.ListFilter)
}

func applyFilter(q squirrel.SelectBuilder, f production.ListFilter) squirrel.SelectBuilder {
	if f.StageID != nil {
		q = q.Where(squirrel.Eq{"stage_id": *f.StageID})
	}
	if f.OrderID != nil {
		q = q.Where(squirrel.Eq{"order_id": *f.OrderID})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *f.Kind})
	}
	if f.BatchCode != nil {
		q = q.Where(squirrel.Eq{"batch_code": production.NormalizeBatchCode(*f.BatchCode)})
	}
	if f.WorkerID != nil {
		q = q.Where(squirrel.Eq{"worker_id": *f.WorkerID})
	}
	if f.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *f.DateFrom})
	}
	if f.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *f.DateTo})
	}
	return q
}

func (r *ReportRepo) ListApprovedByStages(ctx context.Context, stageIDs []id.ID) ([]*production.Report, error) {
	list := []*production.Report{}
	if len(stageIDs) == 0 {
		return list, nil
	}
	q := r.base.Select().
		Where(squirrel.Eq{"stage_id": stageIDs, "status": production.StatusApproved}).
		OrderBy("date ASC", "number ASC")
	if err := r.base.SelectAll(ctx, &list, q); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *ReportRepo) ListPendingByOrder(ctx context.Context, orderID id.ID) ([]*production.Report, error) {
	q := r.base.Select().
		Where(squirrel.Eq{"order_id": orderID, "status": production.StatusPending}).
		OrderBy("date ASC", "number ASC")

	list := []*production.Report{}
	if err := r.base.SelectAll(ctx, &list, q); err != nil {
		return nil, err
	}
	return list, nil
}

// aggregateQuery groups approved reports of a stage by batch code.
func aggregateQuery(stageID id.ID) squirrel.SelectBuilder {
	return postgres.Builder().
		Select(
			"batch_code",
			"SUM(quantity)::BIGINT AS produced",
			"SUM(used_quantity)::BIGINT AS used",
			"SUM(quantity - used_quantity)::BIGINT AS balance",
		).
		From(tableReports).
		Where(squirrel.Eq{"stage_id": stageID, "status": production.StatusApproved}).
		GroupBy("batch_code").
		OrderBy(`batch_code COLLATE "C"`)
}

func (r *ReportRepo) AggregateByBatch(ctx context.Context, stageID id.ID) ([]production.WIPBalance, error) {
	sql, args, err := aggregateQuery(stageID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build aggregate: %w", err)
	}

	out := []production.WIPBalance{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("aggregate stage %s: %w", stageID, err)
	}
	return out, nil
}
