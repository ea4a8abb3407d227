package conveyor

// StandardSubjective is the stock Subjective: a handle, a fingerprint, a
// mutable detail bag, and the belt back-reference. Zero value is usable;
// register it with a mechanism to give it a handle and fingerprint.
type StandardSubjective struct {
	handle      SubjectHandle
	fingerprint *Fingerprint
	details     []Detail
	belt        *Belt
	beltIndex   int
}

// NewStandardSubjective returns a subjective holding the given details. It is
// inert until registered with a mechanism.
func NewStandardSubjective(details ...Detail) *StandardSubjective {
	return &StandardSubjective{details: details, beltIndex: -1}
}

// Handle returns the generational handle, zero before registration.
func (s *StandardSubjective) Handle() SubjectHandle { return s.handle }

// TakeHandle records the handle assigned at registration.
func (s *StandardSubjective) TakeHandle(h SubjectHandle) { s.handle = h }

// Fingerprint returns the subject's fingerprint, nil before registration.
func (s *StandardSubjective) Fingerprint() *Fingerprint { return s.fingerprint }

// TakeFingerprint records the fingerprint assigned at registration.
func (s *StandardSubjective) TakeFingerprint(fp *Fingerprint) { s.fingerprint = fp }

// Details returns the current detail instances. Callers must not retain the
// slice across mutations.
func (s *StandardSubjective) Details() []Detail { return s.details }

// AddDetail appends a detail instance. The caller re-registers detail
// membership with the mechanism to land in the right belt.
func (s *StandardSubjective) AddDetail(d Detail) Outcome {
	if d == nil {
		return NullArgument
	}
	s.details = append(s.details, d)
	return Success
}

// RemoveDetail removes the first instance equal to d, Missing when absent.
func (s *StandardSubjective) RemoveDetail(d Detail) Outcome {
	for i, have := range s.details {
		if have == d {
			s.details = append(s.details[:i], s.details[i+1:]...)
			return Success
		}
	}
	return Missing
}

// TakeBeltSlot records the current belt location.
func (s *StandardSubjective) TakeBeltSlot(b *Belt, index int) {
	s.belt = b
	s.beltIndex = index
}

// BeltSlot returns the last recorded belt location, (nil, -1) when unplaced.
func (s *StandardSubjective) BeltSlot() (*Belt, int) {
	if s.belt == nil {
		return nil, -1
	}
	return s.belt, s.beltIndex
}
