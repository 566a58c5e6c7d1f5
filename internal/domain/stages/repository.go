package stages

import (
	"context"

	"shopfloor/internal/core/id"
)

// Repository defines persistence for stages.
type Repository interface {
	Create(ctx context.Context, stage *Stage) error
	GetByID(ctx context.Context, stageID id.ID) (*Stage, error)

	// GetForUpdate loads the stage and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, stageID id.ID) (*Stage, error)

	// Update persists counters and status. Fails with
	// CONCURRENT_MODIFICATION when the stored version differs.
	Update(ctx context.Context, stage *Stage) error

	ListByOrder(ctx context.Context, orderID id.ID) ([]*Stage, error)
}
