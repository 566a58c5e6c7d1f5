package memory

import (
	"context"
	"time"

	appctx "shopfloor/internal/core/context"
	"shopfloor/internal/core/id"
	"shopfloor/internal/domain/audit"
)

// AuditEntry is one recorded transition.
type AuditEntry struct {
	EntityType string
	EntityID   id.ID
	Action     audit.Action
	UserID     string
	Changes    map[string]any
	CreatedAt  time.Time
}

// AuditRecorder implements audit.Recorder inside store transactions.
type AuditRecorder struct{ s *Store }

var _ audit.Recorder = AuditRecorder{}

// Audit returns the audit recorder.
func (s *Store) Audit() AuditRecorder { return AuditRecorder{s} }

func (a AuditRecorder) Record(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	return a.s.view(ctx, func(st *state) error {
		st.audit = append(st.audit, AuditEntry{
			EntityType: entityType,
			EntityID:   entityID,
			Action:     action,
			UserID:     appctx.GetUserID(ctx),
			Changes:    changes,
			CreatedAt:  time.Now().UTC(),
		})
		return nil
	})
}

// History returns the entries of one entity, oldest first.
func (a AuditRecorder) History(ctx context.Context, entityID id.ID) []AuditEntry {
	var out []AuditEntry
	_ = a.s.view(ctx, func(st *state) error {
		for _, e := range st.audit {
			if e.EntityID == entityID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out
}
