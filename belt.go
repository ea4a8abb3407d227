package conveyor

import "sync/atomic"

// BeltID identifies a belt within its owning mechanism.
type BeltID uint32

// Belt is sparse columnar storage for subjects grouped by decomposed
// detailmark. Every decomposed class bit gets its own column; a slot caches
// zero or more detail pointers per column. The schema only ever grows.
type Belt struct {
	iterable
	id         BeltID
	detailmark Detailmark

	// lineBits maps column index to class bit; lineIndexByBit is the
	// reverse; linesByClassBit resolves a class bit to every column whose
	// class is it or derives from it. All three rebuilt at Expand time.
	lineBits        []uint32
	lineIndexByBit  map[uint32]int
	linesByClassBit map[uint32][]int

	slots []BeltSlot
	// stales is index-parallel with slots: nonzero marks a slot logically
	// removed but not yet compacted. Accessed atomically so cursors can
	// skip-read while a release is in flight.
	stales []uint32

	events SlotEvents
}

func newBelt(id BeltID, events SlotEvents) *Belt {
	b := &Belt{
		id:              id,
		lineIndexByBit:  make(map[uint32]int),
		linesByClassBit: make(map[uint32][]int),
		events:          events,
	}
	b.initIterable(b)
	return b
}

// ID returns the belt's mechanism-local id.
func (b *Belt) ID() uint32 { return uint32(b.id) }

// Detailmark returns the belt's decomposed schema. Shared; do not mutate.
func (b *Belt) Detailmark() Detailmark { return b.detailmark }

// Count returns the number of slots, including stale ones.
func (b *Belt) Count() int { return len(b.slots) }

// SlotAt returns the slot at the index, nil when out of range.
func (b *Belt) SlotAt(i int) *BeltSlot {
	if i < 0 || i >= len(b.slots) {
		return nil
	}
	return &b.slots[i]
}

// Expand grows the belt's schema to cover the given detailmark, adding one
// column per missing decomposed class bit. Returns Noop when already
// covered, InvalidState while solid-locked. Existing slot caches are not
// refetched; they grow on their next Refresh.
func (b *Belt) Expand(dm Detailmark) Outcome {
	b.transMu.Lock()
	defer b.transMu.Unlock()
	if b.detailmark.mask.ContainsAll(dm.mask) {
		return Noop
	}
	if b.IsLockedSolid() {
		return InvalidState
	}
	for _, bit := range dm.bits {
		if _, ok := b.lineIndexByBit[bit]; ok {
			continue
		}
		b.lineIndexByBit[bit] = len(b.lineBits)
		b.lineBits = append(b.lineBits, bit)
		b.detailmark.addBit(bit)
	}
	b.rebuildClassIndex()
	return Success
}

// rebuildClassIndex recomputes the class→columns lookup. Held under the
// transition mutex by Expand.
func (b *Belt) rebuildClassIndex() {
	b.linesByClassBit = make(map[uint32][]int, len(b.lineBits))
	for j, bit := range b.lineBits {
		class, ok := detailClassByBit.Load(bit)
		if !ok {
			b.linesByClassBit[bit] = append(b.linesByClassBit[bit], j)
			continue
		}
		for _, base := range class.decomposedBits {
			b.linesByClassBit[base] = append(b.linesByClassBit[base], j)
		}
	}
}

// DetailLineIndexOf resolves a class to its own column, -1 when the belt
// lacks it.
func (b *Belt) DetailLineIndexOf(class *DetailClass) int {
	if class == nil {
		return -1
	}
	j, ok := b.lineIndexByBit[class.bit]
	if !ok {
		return -1
	}
	return j
}

// DetailLinesIndicesOf resolves a class to every column able to hold
// instances satisfying it: its own column plus the columns of derived
// classes present in the belt.
func (b *Belt) DetailLinesIndicesOf(class *DetailClass) []int {
	if class == nil {
		return nil
	}
	return b.linesByClassBit[class.bit]
}

// Refresh moves or re-caches a subjective into this belt. A subjective
// already here just refetches its detail pointers; one arriving from another
// belt secures its new slot first and releases the old one only after. A
// solid-locked rejection therefore leaves the old slot and the back-reference
// intact for the deferred replay.
func (b *Belt) Refresh(s Subjective) Outcome {
	if s == nil {
		return NullArgument
	}
	prevBelt, prevIdx := s.BeltSlot()
	if prevBelt == b && prevIdx >= 0 && prevIdx < len(b.slots) && b.slots[prevIdx].subjective == s {
		b.transMu.Lock()
		defer b.transMu.Unlock()
		b.slots[prevIdx].fetch(b)
		return Success
	}
	b.transMu.Lock()
	if b.IsLockedSolid() {
		b.transMu.Unlock()
		return InvalidState
	}
	idx := len(b.slots)
	b.slots = append(b.slots, BeltSlot{subjective: s, fingerprint: s.Fingerprint()})
	b.stales = append(b.stales, 0)
	b.slots[idx].fetch(b)
	s.TakeBeltSlot(b, idx)
	if b.events != nil {
		b.events.OnBeltSlotMoved(s, b, idx)
	}
	b.transMu.Unlock()
	if prevBelt != nil && prevBelt != b && prevIdx >= 0 {
		prevBelt.ReleaseSlotAt(prevIdx)
	}
	return Success
}

// ReleaseSlotAt frees a slot with the same locked/immediate duality as
// chunks: stale-mark and queue while locked, swap-with-last otherwise.
func (b *Belt) ReleaseSlotAt(index int) Outcome {
	b.transMu.Lock()
	defer b.transMu.Unlock()
	if index < 0 || index >= len(b.slots) {
		return OutOfRange
	}
	if atomic.LoadUint32(&b.stales[index]) != 0 {
		return Noop
	}
	if b.IsLocked() {
		atomic.StoreUint32(&b.stales[index], 1)
		b.enqueueRemoval(index)
		return Deferred
	}
	last := len(b.slots) - 1
	if index != last {
		b.moveSlot(index, last)
	} else {
		b.clearSlot(index)
	}
	b.setLiveCount(last)
	return Success
}

// slotCombos is the cursor-side match check: zero for stale slots or slots
// failing the filter, otherwise the combo count over the given lines.
func (b *Belt) slotCombos(i int, f *Filter, lineIndices []int) int {
	if i < 0 || i >= len(b.slots) {
		return 0
	}
	if atomic.LoadUint32(&b.stales[i]) != 0 {
		return 0
	}
	return b.slots[i].CalcIterableCombosCount(f, lineIndices)
}

// compactor implementation, mirroring Chunk but additionally invalidating
// per-slot detail caches on clear.

func (b *Belt) liveCount() int { return len(b.slots) }

func (b *Belt) setLiveCount(n int) {
	b.slots = b.slots[:n]
	b.stales = b.stales[:n]
}

func (b *Belt) slotStale(i int) bool {
	if atomic.LoadUint32(&b.stales[i]) != 0 {
		return true
	}
	s := b.slots[i]
	return s.subjective == nil || s.fingerprint == nil || s.fingerprint.HasFlag(FlagStale)
}

func (b *Belt) moveSlot(dst, src int) {
	moved := b.slots[src]
	b.slots[dst] = moved
	atomic.StoreUint32(&b.stales[dst], atomic.LoadUint32(&b.stales[src]))
	b.clearSlot(src)
	if moved.subjective != nil {
		moved.subjective.TakeBeltSlot(b, dst)
		if b.events != nil {
			b.events.OnBeltSlotMoved(moved.subjective, b, dst)
		}
	}
}

func (b *Belt) clearSlot(i int) {
	b.slots[i] = BeltSlot{}
	atomic.StoreUint32(&b.stales[i], 1)
}
