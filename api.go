package conveyor

// Subjective is the rich, object-shaped view of a subject: something that
// carries a handle, exposes its details, and keeps a back-reference to its
// belt slot so belt compaction can find it. StandardSubjective is the stock
// implementation; embed it or implement the interface directly.
type Subjective interface {
	// Handle returns the generational handle, zero before registration.
	Handle() SubjectHandle
	// TakeHandle is called once by the mechanism at registration.
	TakeHandle(h SubjectHandle)
	// Fingerprint returns the subject's fingerprint. Never nil after
	// registration.
	Fingerprint() *Fingerprint
	// Details returns the current detail instances. The belt re-reads this
	// on every Refresh; the slice is not retained.
	Details() []Detail
	// TakeBeltSlot records the current belt location. Called by the belt on
	// placement and on compaction moves.
	TakeBeltSlot(b *Belt, index int)
	// BeltSlot returns the last recorded belt location, (nil, -1) when the
	// subjective is in no belt.
	BeltSlot() (*Belt, int)
}

// SlotEvents receives storage-side relocation callbacks so an index layer can
// keep handle→location mappings current. The mechanism is the stock listener.
type SlotEvents interface {
	// OnChunkSlotMoved fires after a chunk slot changed index, during
	// compaction or reservation.
	OnChunkSlotMoved(h SubjectHandle, ch *Chunk, newIndex int)
	// OnBeltSlotMoved fires after a subjective's belt slot changed.
	OnBeltSlotMoved(s Subjective, b *Belt, newIndex int)
}

// AdjectiveHandler reacts to a subject gaining or losing membership in an
// adjective's filter after a structural change.
type AdjectiveHandler func(m *Mechanism, h SubjectHandle, gained bool)
