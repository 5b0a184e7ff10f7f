package engine

import "fmt"

// Side names the collaborator on which a lifecycle operation failed, so a
// caller (or the next reconciliation pass) knows where drift lies.
type Side string

const (
	SideCalendar Side = "calendar"
	SideStore    Side = "database"
	SideBoard    Side = "board"
)

// ValidationError rejects a malformed request before any external call is
// made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// OpError reports a lifecycle operation that failed on exactly one side.
// The other side was left untouched or already rolled back, so the system
// remains repairable by retry or by the next reconciliation pass.
type OpError struct {
	Side   Side
	Op     string
	CardID string
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s for card %s: %v", e.Op, e.Side, e.CardID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// DualFailureError is the one unrecoverable-without-operator-action state:
// the persistence step failed and the compensating calendar delete failed
// too, leaving an event on the calendar that no record points at. It must
// be surfaced distinctly, since automatic repair cannot proceed without
// knowing which side is authoritative.
type DualFailureError struct {
	CardID        string
	EventID       string
	StoreErr      error
	CompensateErr error
}

func (e *DualFailureError) Error() string {
	return fmt.Sprintf("dual failure for card %s: store add failed (%v) and compensating delete of event %s failed (%v)",
		e.CardID, e.StoreErr, e.EventID, e.CompensateErr)
}
