package stages

import (
	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/types"
)

// Transition is a pure change of stage counters. Service.Apply runs it on a
// locked copy and persists the result only if it returns nil.
type Transition func(s *Stage) error

// Submit records q units awaiting approval.
func Submit(q types.Quantity) Transition {
	return func(s *Stage) error {
		if q.IsNegative() {
			return apperror.NewValidation("submitted quantity cannot be negative").
				WithDetail("quantity", q.String())
		}
		s.Pending += q
		return nil
	}
}

// Approve moves q units from pending to completed and adds scrap.
func Approve(q, scrap types.Quantity) Transition {
	return func(s *Stage) error {
		s.Completed += q
		s.Pending = types.Max(s.Pending-q, 0)
		s.Scrap += scrap
		s.recomputeStatus()
		return nil
	}
}

// Release drops q units from pending without completing them (rejection).
func Release(q types.Quantity) Transition {
	return func(s *Stage) error {
		s.Pending = types.Max(s.Pending-q, 0)
		return nil
	}
}

// ShiftPending changes pending by delta (an edited pending report).
func ShiftPending(delta types.Quantity) Transition {
	return func(s *Stage) error {
		s.Pending = types.Max(s.Pending+delta, 0)
		return nil
	}
}

// Adjust changes completed by a signed manual quantity. Pending is untouched.
func Adjust(q types.Quantity) Transition {
	return func(s *Stage) error {
		s.Completed += q
		s.recomputeStatus()
		return nil
	}
}

// AddScrap records q scrapped units.
func AddScrap(q types.Quantity) Transition {
	return func(s *Stage) error {
		if q.IsNegative() {
			return apperror.NewValidation("scrap quantity cannot be negative").
				WithDetail("quantity", q.String())
		}
		s.Scrap += q
		return nil
	}
}

// Archive hides the stage from operative views.
func Archive() Transition {
	return func(s *Stage) error {
		s.Status = StatusArchived
		return nil
	}
}

// Chain applies transitions in order.
func Chain(ts ...Transition) Transition {
	return func(s *Stage) error {
		for _, t := range ts {
			if err := t(s); err != nil {
				return err
			}
		}
		return nil
	}
}

// recomputeStatus derives status from counters. Archived is sticky.
func (s *Stage) recomputeStatus() {
	if s.Status == StatusArchived {
		return
	}
	if s.Planned.IsPositive() && s.Completed >= s.Planned {
		s.Status = StatusDone
		return
	}
	s.Status = StatusInProgress
}
