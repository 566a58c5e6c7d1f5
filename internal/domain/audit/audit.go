// Package audit defines the audit trail contract for ledger transitions.
package audit

import (
	"context"

	appctx "shopfloor/internal/core/context"
	"shopfloor/internal/core/id"
)

// Action names an audited ledger transition.
type Action string

const (
	ActionSubmit  Action = "submit"
	ActionEdit    Action = "edit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionAdjust  Action = "adjust"
	ActionArchive Action = "archive"
	ActionCreate  Action = "create"
	ActionDelete  Action = "delete"
)

// Entity types recorded in the trail.
const (
	EntityReport = "production_report"
	EntityStage  = "stage"
	EntityOrder  = "order"
)

// Recorder writes audit entries. Implementations join the caller's
// transaction so an entry exists only if the transition committed.
type Recorder interface {
	Record(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error
}

// Nop discards entries.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, string, id.ID, Action, map[string]any) error { return nil }

// EnrichCreatedBy sets *createdBy from the caller when it is empty.
func EnrichCreatedBy(ctx context.Context, createdBy *string) {
	if createdBy == nil || *createdBy != "" {
		return
	}
	*createdBy = appctx.GetUserID(ctx)
}
