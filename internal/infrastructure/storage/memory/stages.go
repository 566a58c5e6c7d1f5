package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/id"
	"shopfloor/internal/domain/stages"
)

// StageRepo implements stages.Repository.
type StageRepo struct{ s *Store }

var _ stages.Repository = StageRepo{}

// Stages returns the stage repository.
func (s *Store) Stages() StageRepo { return StageRepo{s} }

func (r StageRepo) Create(ctx context.Context, stage *stages.Stage) error {
	return r.s.view(ctx, func(st *state) error {
		if _, ok := st.stages[stage.ID]; ok {
			return apperror.NewDuplicate("stage", "id", stage.ID.String())
		}
		st.stages[stage.ID] = cloneStage(stage)
		return nil
	})
}

func (r StageRepo) GetByID(ctx context.Context, stageID id.ID) (*stages.Stage, error) {
	var out *stages.Stage
	err := r.s.view(ctx, func(st *state) error {
		stage, ok := st.stages[stageID]
		if !ok {
			return apperror.NewNotFound("stage", stageID.String())
		}
		out = cloneStage(stage)
		return nil
	})
	return out, err
}

// GetForUpdate is GetByID; the transaction already holds the store lock.
func (r StageRepo) GetForUpdate(ctx context.Context, stageID id.ID) (*stages.Stage, error) {
	return r.GetByID(ctx, stageID)
}

func (r StageRepo) Update(ctx context.Context, stage *stages.Stage) error {
	return r.s.view(ctx, func(st *state) error {
		stored, ok := st.stages[stage.ID]
		if !ok {
			return apperror.NewNotFound("stage", stage.ID.String())
		}
		if stored.Version != stage.Version {
			return apperror.NewConcurrentModification("stage", stage.ID)
		}
		stage.SetVersion(stage.Version + 1)
		stage.SetUpdatedAt(time.Now().UTC())
		st.stages[stage.ID] = cloneStage(stage)
		return nil
	})
}

func (r StageRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]*stages.Stage, error) {
	var out []*stages.Stage
	err := r.s.view(ctx, func(st *state) error {
		for _, stage := range st.stages {
			if stage.OrderID == orderID {
				out = append(out, cloneStage(stage))
			}
		}
		slices.SortFunc(out, func(a, b *stages.Stage) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return strings.Compare(a.ID.String(), b.ID.String())
		})
		return nil
	})
	return out, err
}
