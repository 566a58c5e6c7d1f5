package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"shopfloor/internal/core/id"
	"shopfloor/internal/domain/stages"
	"shopfloor/internal/infrastructure/storage/postgres"
)

// StageRepo implements stages.Repository. Inputs are stored as JSONB.
type StageRepo struct {
	base *postgres.BaseRepo[*stages.Stage]
}

var _ stages.Repository = (*StageRepo)(nil)

// NewStageRepo creates a stage repository.
func NewStageRepo(txManager *postgres.TxManager) *StageRepo {
	return &StageRepo{
		base: postgres.NewBaseRepo[*stages.Stage](txManager, "stages", "stage", "created_at ASC",
			postgres.ExtractDBColumns[stages.Stage]()),
	}
}

func (r *StageRepo) Create(ctx context.Context, st *stages.Stage) error {
	if st.Inputs == nil {
		st.Inputs = []stages.InputRequirement{}
	}
	return r.base.Create(ctx, st)
}

func (r *StageRepo) GetByID(ctx context.Context, stageID id.ID) (*stages.Stage, error) {
	st := &stages.Stage{}
	if err := r.base.GetByID(ctx, st, stageID); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *StageRepo) GetForUpdate(ctx context.Context, stageID id.ID) (*stages.Stage, error) {
	st := &stages.Stage{}
	if err := r.base.GetForUpdate(ctx, st, stageID); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *StageRepo) Update(ctx context.Context, st *stages.Stage) error {
	return r.base.Update(ctx, st)
}

func (r *StageRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]*stages.Stage, error) {
	q := r.base.Select().
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("created_at ASC", "id ASC")

	list := []*stages.Stage{}
	if err := r.base.SelectAll(ctx, &list, q); err != nil {
		return nil, err
	}
	return list, nil
}
