package conveyor

// Outcome is the typed status returned by storage operations.
//
// Recoverable conditions (a solid-lock conflict, an already-present trait)
// surface as outcomes and must be checked by the caller. Violated invariants
// that indicate programmer error panic instead of returning an outcome.
type Outcome int

const (
	// Success means the operation was applied in full.
	Success Outcome = iota
	// Noop means the requested state already held; nothing was changed.
	Noop
	// Deferred means the mutation was queued and will be applied once the
	// blocking lock is released.
	Deferred
	// Missing means the referenced subject, trait, or detail does not exist.
	Missing
	// InvalidState means a lock or lifecycle state forbids the operation.
	InvalidState
	InvalidArgument
	// OutOfLimit means a configured capacity was reached.
	OutOfLimit
	OutOfRange
	NullArgument
	SanityCheckFailed
	// NoPermission means polite flag access attempted to touch a system bit.
	NoPermission
	NoItems
	NoMore
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case Noop:
		return "Noop"
	case Deferred:
		return "Deferred"
	case Missing:
		return "Missing"
	case InvalidState:
		return "InvalidState"
	case InvalidArgument:
		return "InvalidArgument"
	case OutOfLimit:
		return "OutOfLimit"
	case OutOfRange:
		return "OutOfRange"
	case NullArgument:
		return "NullArgument"
	case SanityCheckFailed:
		return "SanityCheckFailed"
	case NoPermission:
		return "NoPermission"
	case NoItems:
		return "NoItems"
	case NoMore:
		return "NoMore"
	}
	return "Unknown"
}

// IsOK reports whether the outcome carries no failure. Noop and Deferred are
// non-failures: the requested end state either already held or will hold.
func (o Outcome) IsOK() bool {
	return o == Success || o == Noop || o == Deferred
}

// AsError converts a failing outcome into an error, nil otherwise.
func (o Outcome) AsError() error {
	if o.IsOK() {
		return nil
	}
	return OutcomeError{Outcome: o}
}
