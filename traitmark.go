package conveyor

import (
	"sort"

	"github.com/TheBitDrifter/mask"
)

// Traitmark is an ordered set of trait types: the schema key of a chunk. The
// mask backs fast superset/disjoint tests, the sorted bit slice backs
// ordered iteration and hashing.
type Traitmark struct {
	mask mask.Mask
	bits []uint32
}

func sortBits(bits []uint32) {
	sort.Slice(bits, func(i, j int) bool { return bits[i] < bits[j] })
}

// Add inserts a trait type. Returns Noop when already present, so callers
// can skip chunk-move machinery.
func (tm *Traitmark) Add(t Trait) Outcome {
	if t == nil {
		return NullArgument
	}
	return tm.addBit(traitBit(t))
}

func (tm *Traitmark) addBit(bit uint32) Outcome {
	if tm.hasBit(bit) {
		return Noop
	}
	tm.mask.Mark(bit)
	tm.bits = append(tm.bits, bit)
	sortBits(tm.bits)
	return Success
}

// Remove deletes a trait type. Returns Missing when absent.
func (tm *Traitmark) Remove(t Trait) Outcome {
	if t == nil {
		return NullArgument
	}
	bit := traitBit(t)
	if !tm.hasBit(bit) {
		return Missing
	}
	tm.mask.Unmark(bit)
	for i, b := range tm.bits {
		if b == bit {
			tm.bits = append(tm.bits[:i], tm.bits[i+1:]...)
			break
		}
	}
	return Success
}

// Contains reports whether the trait type is present.
func (tm Traitmark) Contains(t Trait) bool {
	if t == nil {
		return false
	}
	return tm.hasBit(traitBit(t))
}

func (tm Traitmark) hasBit(bit uint32) bool {
	var probe mask.Mask
	probe.Mark(bit)
	return tm.mask.ContainsAll(probe)
}

// ContainsAll reports whether the mark is a superset of other.
func (tm Traitmark) ContainsAll(other Traitmark) bool {
	return tm.mask.ContainsAll(other.mask)
}

// ContainsNone reports whether the mark is disjoint from other. An empty
// other is disjoint from everything; mask.Mask.ContainsNone answers false for
// an empty argument, so that case is settled here.
func (tm Traitmark) ContainsNone(other Traitmark) bool {
	if other.IsEmpty() {
		return true
	}
	return tm.mask.ContainsNone(other.mask)
}

// Mask returns the backing bitmask. The mask value is comparable and serves
// as the chunk-pool key.
func (tm Traitmark) Mask() mask.Mask { return tm.mask }

// Bits returns the trait bits in ascending order. The slice is shared; do
// not mutate.
func (tm Traitmark) Bits() []uint32 { return tm.bits }

// IsEmpty reports whether no trait types are present.
func (tm Traitmark) IsEmpty() bool { return len(tm.bits) == 0 }

// Clone returns a detached copy safe to mutate independently.
func (tm Traitmark) Clone() Traitmark {
	out := Traitmark{mask: tm.mask}
	out.bits = make([]uint32, len(tm.bits))
	copy(out.bits, tm.bits)
	return out
}
