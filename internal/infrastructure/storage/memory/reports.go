package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/id"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/production"
)

// ReportRepo implements production.Repository.
type ReportRepo struct{ s *Store }

var _ production.Repository = ReportRepo{}

// Reports returns the report repository.
func (s *Store) Reports() ReportRepo { return ReportRepo{s} }

func (r ReportRepo) Create(ctx context.Context, rep *production.Report) error {
	return r.s.view(ctx, func(st *state) error {
		if _, ok := st.reports[rep.ID]; ok {
			return apperror.NewDuplicate("report", "id", rep.ID.String())
		}
		st.reports[rep.ID] = cloneReport(rep)
		return nil
	})
}

func (r ReportRepo) GetByID(ctx context.Context, reportID id.ID) (*production.Report, error) {
	var out *production.Report
	err := r.s.view(ctx, func(st *state) error {
		rep, ok := st.reports[reportID]
		if !ok {
			return apperror.NewNotFound("report", reportID.String())
		}
		out = cloneReport(rep)
		return nil
	})
	return out, err
}

// GetForUpdate is GetByID; the transaction already holds the store lock.
func (r ReportRepo) GetForUpdate(ctx context.Context, reportID id.ID) (*production.Report, error) {
	return r.GetByID(ctx, reportID)
}

func (r ReportRepo) GetManyForUpdate(ctx context.Context, reportIDs []id.ID) ([]*production.Report, error) {
	ids := slices.Clone(reportIDs)
	slices.SortFunc(ids, func(a, b id.ID) int { return strings.Compare(a.String(), b.String()) })

	out := make([]*production.Report, 0, len(ids))
	err := r.s.view(ctx, func(st *state) error {
		for _, reportID := range slices.Compact(ids) {
			rep, ok := st.reports[reportID]
			if !ok {
				return apperror.NewNotFound("report", reportID.String())
			}
			out = append(out, cloneReport(rep))
		}
		return nil
	})
	return out, err
}

func (r ReportRepo) Update(ctx context.Context, rep *production.Report) error {
	return r.s.view(ctx, func(st *state) error {
		return putReport(st, rep)
	})
}

func (r ReportRepo) UpdateUsage(ctx context.Context, reps []*production.Report) error {
	return r.s.view(ctx, func(st *state) error {
		for _, rep := range reps {
			if err := putReport(st, rep); err != nil {
				return err
			}
		}
		return nil
	})
}

func putReport(st *state, rep *production.Report) error {
	stored, ok := st.reports[rep.ID]
	if !ok {
		return apperror.NewNotFound("report", rep.ID.String())
	}
	if stored.Version != rep.Version {
		return apperror.NewConcurrentModification("report", rep.ID)
	}
	rep.SetVersion(rep.Version + 1)
	rep.SetUpdatedAt(time.Now().UTC())
	st.reports[rep.ID] = cloneReport(rep)
	return nil
}

func (r ReportRepo) List(ctx context.Context, f production.ListFilter) (domain.ListResult[*production.Report], error) {
	var res domain.ListResult[*production.Report]
	err := r.s.view(ctx, func(st *state) error {
		var items []*production.Report
		for _, rep := range st.reports {
			if f.Matches(rep) {
				items = append(items, cloneReport(rep))
			}
		}
		sortReports(items, true)
		res = domain.Paginate(items, f.ListFilter)
		return nil
	})
	return res, err
}

func (r ReportRepo) ListApprovedByStages(ctx context.Context, stageIDs []id.ID) ([]*production.Report, error) {
	var out []*production.Report
	err := r.s.view(ctx, func(st *state) error {
		for _, rep := range st.reports {
			if rep.Status == production.StatusApproved && slices.Contains(stageIDs, rep.StageID) {
				out = append(out, cloneReport(rep))
			}
		}
		sortReports(out, false)
		return nil
	})
	return out, err
}

func (r ReportRepo) ListPendingByOrder(ctx context.Context, orderID id.ID) ([]*production.Report, error) {
	var out []*production.Report
	err := r.s.view(ctx, func(st *state) error {
		for _, rep := range st.reports {
			if rep.Status == production.StatusPending && rep.OrderID == orderID {
				out = append(out, cloneReport(rep))
			}
		}
		sortReports(out, false)
		return nil
	})
	return out, err
}

func (r ReportRepo) AggregateByBatch(ctx context.Context, stageID id.ID) ([]production.WIPBalance, error) {
	var out []production.WIPBalance
	err := r.s.view(ctx, func(st *state) error {
		var reps []*production.Report
		for _, rep := range st.reports {
			if rep.StageID == stageID {
				reps = append(reps, rep)
			}
		}
		out = production.AggregateBatches(reps)
		return nil
	})
	return out, err
}

// sortReports orders by date, then number.
func sortReports(items []*production.Report, desc bool) {
	slices.SortFunc(items, func(a, b *production.Report) int {
		c := a.Date.Compare(b.Date)
		if c == 0 {
			c = strings.Compare(a.Number, b.Number)
		}
		if desc {
			return -c
		}
		return c
	})
}
