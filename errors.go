package conveyor

import "fmt"

// OutcomeError wraps a non-success Outcome for callers that want an error
// value instead of a status code.
type OutcomeError struct {
	Op      string
	Outcome Outcome
}

func (e OutcomeError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("operation failed: %s", e.Outcome)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Outcome)
}

type UnknownTraitError struct {
	Bit uint32
}

func (e UnknownTraitError) Error() string {
	return fmt.Sprintf("trait bit %d has no registered line factory", e.Bit)
}

type LockedMechanismError struct{}

func (e LockedMechanismError) Error() string {
	return "mechanism is currently locked by open cursors"
}

type StaleHandleError struct {
	Handle SubjectHandle
}

func (e StaleHandleError) Error() string {
	return fmt.Sprintf("subject handle is stale: id=%d gen=%d", e.Handle.ID, e.Handle.Generation)
}

