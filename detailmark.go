package conveyor

import "github.com/TheBitDrifter/mask"

// Detailmark is an ordered set of detail-class bits with every class
// decomposed over its base classes, so a filter for a base class matches
// marks built from derived classes. Belt schemas are Detailmarks and only
// ever grow.
type Detailmark struct {
	mask mask.Mask
	bits []uint32
}

// Add inserts a detail class and all of its transitive bases. Returns Noop
// when every bit was already present.
func (dm *Detailmark) Add(class *DetailClass) Outcome {
	if class == nil {
		return NullArgument
	}
	out := Noop
	for _, bit := range class.decomposedBits {
		if dm.addBit(bit) == Success {
			out = Success
		}
	}
	return out
}

func (dm *Detailmark) addBit(bit uint32) Outcome {
	if dm.hasBit(bit) {
		return Noop
	}
	dm.mask.Mark(bit)
	dm.bits = append(dm.bits, bit)
	sortBits(dm.bits)
	return Success
}

// Remove deletes the class's own bit. Base bits stay: another detail may
// still decompose onto them, and belts never shrink their schema anyway.
func (dm *Detailmark) Remove(class *DetailClass) Outcome {
	if class == nil {
		return NullArgument
	}
	if !dm.hasBit(class.bit) {
		return Missing
	}
	dm.mask.Unmark(class.bit)
	for i, b := range dm.bits {
		if b == class.bit {
			dm.bits = append(dm.bits[:i], dm.bits[i+1:]...)
			break
		}
	}
	return Success
}

// Contains reports whether the class's own bit is present.
func (dm Detailmark) Contains(class *DetailClass) bool {
	if class == nil {
		return false
	}
	return dm.hasBit(class.bit)
}

func (dm Detailmark) hasBit(bit uint32) bool {
	var probe mask.Mask
	probe.Mark(bit)
	return dm.mask.ContainsAll(probe)
}

// ContainsAll reports whether the mark is a superset of other.
func (dm Detailmark) ContainsAll(other Detailmark) bool {
	return dm.mask.ContainsAll(other.mask)
}

// ContainsNone reports whether the mark is disjoint from other. An empty
// other is disjoint from everything; mask.Mask.ContainsNone answers false for
// an empty argument, so that case is settled here.
func (dm Detailmark) ContainsNone(other Detailmark) bool {
	if other.IsEmpty() {
		return true
	}
	return dm.mask.ContainsNone(other.mask)
}

// Mask returns the backing bitmask; comparable, used as the belt-pool key.
func (dm Detailmark) Mask() mask.Mask { return dm.mask }

// Bits returns the decomposed class bits in ascending order. Shared; do not
// mutate.
func (dm Detailmark) Bits() []uint32 { return dm.bits }

// IsEmpty reports whether no class bits are present.
func (dm Detailmark) IsEmpty() bool { return len(dm.bits) == 0 }

// Clone returns a detached copy safe to mutate independently.
func (dm Detailmark) Clone() Detailmark {
	out := Detailmark{mask: dm.mask}
	out.bits = make([]uint32, len(dm.bits))
	copy(out.bits, dm.bits)
	return out
}
