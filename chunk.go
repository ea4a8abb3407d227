package conveyor

import (
	"iter"

	iter_util "github.com/TheBitDrifter/util/iter"
)

// ChunkID identifies a chunk within its owning mechanism.
type ChunkID uint32

// chunkSlot is one subject's metadata row, index-parallel with every trait
// line. Migration swaps the vacated slot's fingerprint pointer for a private
// stale marker before release, so flagging the old slot cannot shadow the
// subject at its new location.
type chunkSlot struct {
	subject     SubjectHandle
	fingerprint *Fingerprint
}

// Chunk is dense columnar storage for every subject sharing one exact
// traitmark. One line (typed dense array) per trait, index-parallel with the
// slots: len(line) == len(slots) for every line, always.
type Chunk struct {
	iterable
	id        ChunkID
	traitmark Traitmark
	slots     []chunkSlot
	lines     []line
	lineByBit map[uint32]int
	events    SlotEvents
}

func newChunk(id ChunkID, tm Traitmark, events SlotEvents) (*Chunk, error) {
	ch := &Chunk{
		id:        id,
		traitmark: tm.Clone(),
		lineByBit: make(map[uint32]int, len(tm.bits)),
		events:    events,
	}
	for i, bit := range ch.traitmark.bits {
		ln, ok := newLineForBit(bit)
		if !ok {
			return nil, UnknownTraitError{Bit: bit}
		}
		ch.lines = append(ch.lines, ln)
		ch.lineByBit[bit] = i
	}
	ch.initIterable(ch)
	return ch, nil
}

// ID returns the chunk's mechanism-local id.
func (ch *Chunk) ID() uint32 { return uint32(ch.id) }

// Traitmark returns the chunk's immutable schema key.
func (ch *Chunk) Traitmark() Traitmark { return ch.traitmark }

// Count returns the number of slots, including stale ones awaiting
// compaction.
func (ch *Chunk) Count() int { return len(ch.slots) }

// SubjectAt returns the handle stored at the slot.
func (ch *Chunk) SubjectAt(i int) SubjectHandle {
	if i < 0 || i >= len(ch.slots) {
		return SubjectHandle{}
	}
	return ch.slots[i].subject
}

// FingerprintAt returns the fingerprint stored at the slot, nil for cleared
// slots.
func (ch *Chunk) FingerprintAt(i int) *Fingerprint {
	if i < 0 || i >= len(ch.slots) {
		return nil
	}
	return ch.slots[i].fingerprint
}

// Traits yields the registered trait types of the chunk's traitmark.
func (ch *Chunk) Traits() iter.Seq[Trait] {
	return func(yield func(Trait) bool) {
		for _, bit := range ch.traitmark.bits {
			t, ok := traitsByBit.Load(bit)
			if !ok {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// TraitList collects the chunk's trait types into a slice.
func (ch *Chunk) TraitList() []Trait {
	return iter_util.Collect(ch.Traits())
}

// ReserveSubjectSlot appends a default slot and a default cell to every
// trait line. Fails with InvalidState while solid-locked and OutOfLimit at
// the configured per-chunk cap. Slots reserved during a liquid lock are
// invisible to in-flight iteration until the next lock cycle.
func (ch *Chunk) ReserveSubjectSlot(h SubjectHandle, fp *Fingerprint) (int, Outcome) {
	if fp == nil {
		return -1, NullArgument
	}
	ch.transMu.Lock()
	defer ch.transMu.Unlock()
	if ch.IsLockedSolid() {
		return -1, InvalidState
	}
	if limit := Config.maxSlotsPerChunk; limit > 0 && len(ch.slots) >= limit {
		return -1, OutOfLimit
	}
	ch.slots = append(ch.slots, chunkSlot{subject: h, fingerprint: fp})
	for _, ln := range ch.lines {
		ln.grow(1)
	}
	return len(ch.slots) - 1, Success
}

// ReleaseSlotAt frees a slot. While locked the slot is flagged stale and its
// index queued for removal at unlock (Deferred); unlocked, the last live
// slot is swapped into the freed index immediately (Success).
func (ch *Chunk) ReleaseSlotAt(index int) Outcome {
	ch.transMu.Lock()
	defer ch.transMu.Unlock()
	if index < 0 || index >= len(ch.slots) {
		return OutOfRange
	}
	fp := ch.slots[index].fingerprint
	if fp == nil {
		return Noop
	}
	if ch.IsLocked() {
		if _, out := fp.SetFlag(FlagStale, true, AccessHarsh); out == Noop {
			// Already released during this locked window.
			return Noop
		}
		ch.enqueueRemoval(index)
		return Deferred
	}
	if fp.HasFlag(FlagStale) {
		return Noop
	}
	last := len(ch.slots) - 1
	if index != last {
		ch.moveSlot(index, last)
	} else {
		ch.clearSlot(index)
	}
	ch.setLiveCount(last)
	return Success
}

// releaseMigratedSlot frees a slot whose subject has already been placed in
// another chunk. The shared fingerprint must stay untouched, so the slot gets
// a private stale marker before the usual deferred/immediate release.
func (ch *Chunk) releaseMigratedSlot(index int) Outcome {
	ch.transMu.Lock()
	defer ch.transMu.Unlock()
	if index < 0 || index >= len(ch.slots) {
		return OutOfRange
	}
	if ch.slots[index].fingerprint == nil {
		return Noop
	}
	marker := &Fingerprint{}
	marker.SetFlag(FlagStale, true, AccessHarsh)
	ch.slots[index].fingerprint = marker
	ch.slots[index].subject = SubjectHandle{}
	if ch.IsLocked() {
		ch.enqueueRemoval(index)
		return Deferred
	}
	last := len(ch.slots) - 1
	if index != last {
		ch.moveSlot(index, last)
	} else {
		ch.clearSlot(index)
	}
	ch.setLiveCount(last)
	return Success
}

// OverwriteTraits copies the trait data of slot srcIndex into slot dstIndex
// of dst for every trait the two traitmarks share. Traits the destination
// lacks are dropped; traits it adds keep their default cells.
func (ch *Chunk) OverwriteTraits(srcIndex int, dst *Chunk, dstIndex int) Outcome {
	if dst == nil {
		return NullArgument
	}
	if srcIndex < 0 || srcIndex >= len(ch.slots) || dstIndex < 0 || dstIndex >= len(dst.slots) {
		return OutOfRange
	}
	for i, bit := range ch.traitmark.bits {
		j, ok := dst.lineByBit[bit]
		if !ok {
			continue
		}
		if !ch.lines[i].copyCellTo(srcIndex, dst.lines[j], dstIndex) {
			return SanityCheckFailed
		}
	}
	return Success
}

// lineForBit resolves a trait bit to the chunk's line for it.
func (ch *Chunk) lineForBit(bit uint32) (line, bool) {
	i, ok := ch.lineByBit[bit]
	if !ok {
		return nil, false
	}
	return ch.lines[i], true
}

// slotMatches reports whether the slot is live and its fingerprint satisfies
// the filter. Trait superset matching already happened at chunk granularity;
// this covers the per-slot detail and flag conditions.
func (ch *Chunk) slotMatches(i int, f *Filter) bool {
	if i < 0 || i >= len(ch.slots) {
		return false
	}
	s := ch.slots[i]
	if !s.subject.IsValid() || s.fingerprint == nil {
		return false
	}
	return f.Matches(s.fingerprint)
}

// compactor implementation. moveSlot/clearSlot/setLiveCount run only from
// immediate release or the unlock drain, both under the transition mutex.

func (ch *Chunk) liveCount() int { return len(ch.slots) }

func (ch *Chunk) setLiveCount(n int) {
	ch.slots = ch.slots[:n]
	for _, ln := range ch.lines {
		ln.truncate(n)
	}
}

func (ch *Chunk) slotStale(i int) bool {
	s := ch.slots[i]
	return !s.subject.IsValid() || s.fingerprint == nil || s.fingerprint.HasFlag(FlagStale)
}

func (ch *Chunk) moveSlot(dst, src int) {
	moved := ch.slots[src]
	ch.slots[dst] = moved
	for _, ln := range ch.lines {
		ln.moveCell(dst, src)
	}
	ch.clearSlot(src)
	if ch.events != nil && moved.subject.IsValid() {
		ch.events.OnChunkSlotMoved(moved.subject, ch, dst)
	}
}

func (ch *Chunk) clearSlot(i int) {
	ch.slots[i] = chunkSlot{}
	for _, ln := range ch.lines {
		ln.zero(i)
	}
}
