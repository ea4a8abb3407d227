package conveyor

import "sync/atomic"

// Fingerprint is the full identity descriptor of a subject: its trait types,
// its (decomposed) detail classes, and its flagmark.
//
// Flag operations are lock-free and may race freely across threads. Trait
// and detail mutation is structural and belongs to the owning mechanism; it
// must not run concurrently with solid-locked iteration of the subject's
// storage.
type Fingerprint struct {
	traits  Traitmark
	details Detailmark
	flags   atomicFlagmark

	// Cached hash over traits+details. Zero means "not computed"; flag
	// changes never invalidate it, keeping flag ops branch-free.
	hash atomic.Uint64
}

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// AddTrait inserts a trait type, invalidating the cached hash. Noop when the
// trait is already present.
func (fp *Fingerprint) AddTrait(t Trait) Outcome {
	out := fp.traits.Add(t)
	if out == Success {
		fp.hash.Store(0)
	}
	return out
}

// RemoveTrait deletes a trait type. Missing when absent.
func (fp *Fingerprint) RemoveTrait(t Trait) Outcome {
	out := fp.traits.Remove(t)
	if out == Success {
		fp.hash.Store(0)
	}
	return out
}

// ContainsTrait reports whether the trait type is present.
func (fp *Fingerprint) ContainsTrait(t Trait) bool { return fp.traits.Contains(t) }

// AddDetail inserts a detail class (decomposed). Noop when fully present.
func (fp *Fingerprint) AddDetail(class *DetailClass) Outcome {
	out := fp.details.Add(class)
	if out == Success {
		fp.hash.Store(0)
	}
	return out
}

// RemoveDetail deletes a detail class's own bit. Missing when absent.
func (fp *Fingerprint) RemoveDetail(class *DetailClass) Outcome {
	out := fp.details.Remove(class)
	if out == Success {
		fp.hash.Store(0)
	}
	return out
}

// ContainsDetail reports whether the class's own bit is present.
func (fp *Fingerprint) ContainsDetail(class *DetailClass) bool {
	return fp.details.Contains(class)
}

// Traits returns the traitmark. The backing bit slice is shared: Clone
// before mutating a detached copy.
func (fp *Fingerprint) Traits() Traitmark { return fp.traits }

// Details returns the detailmark. Shared backing, same caveat as Traits.
func (fp *Fingerprint) Details() Detailmark { return fp.details }

// Flagmark returns the current flag bits.
func (fp *Fingerprint) Flagmark() Flagmark { return fp.flags.load() }

// HasFlag reports whether every bit of flag is set.
func (fp *Fingerprint) HasFlag(flag Flagmark) bool { return fp.flags.has(flag) }

// SetFlag turns the given bits on or off. See atomicFlagmark.set for the
// polite/harsh contract.
func (fp *Fingerprint) SetFlag(flag Flagmark, state bool, access FlagAccess) (Flagmark, Outcome) {
	return fp.flags.set(flag, state, access)
}

// AddToFlagmark turns on every bit of mark.
func (fp *Fingerprint) AddToFlagmark(mark Flagmark, access FlagAccess) (Flagmark, Outcome) {
	return fp.flags.add(mark, access)
}

// RemoveFromFlagmark turns off every bit of mark.
func (fp *Fingerprint) RemoveFromFlagmark(mark Flagmark, access FlagAccess) (Flagmark, Outcome) {
	return fp.flags.remove(mark, access)
}

// SetFlagmarkMasked overwrites the bits selected by mask with mark.
func (fp *Fingerprint) SetFlagmarkMasked(mark, mask Flagmark, access FlagAccess) (Flagmark, Outcome) {
	return fp.flags.setMasked(mark, mask, access)
}

// Matches reports whether the fingerprint satisfies the filter.
func (fp *Fingerprint) Matches(f *Filter) bool { return f.Matches(fp) }

// CalcHash returns the FNV-1a hash of traits and details. Flags do not
// participate. The result is cached until the next trait/detail mutation.
func (fp *Fingerprint) CalcHash() uint64 {
	if h := fp.hash.Load(); h != 0 {
		return h
	}
	h := uint64(fnvOffset64)
	mix := func(v uint32) {
		for shift := 0; shift < 32; shift += 8 {
			h ^= uint64((v >> shift) & 0xff)
			h *= fnvPrime64
		}
	}
	for _, bit := range fp.traits.bits {
		mix(bit)
	}
	mix(0xffffffff) // domain separator between traits and details
	for _, bit := range fp.details.bits {
		mix(bit)
	}
	if h == 0 {
		h = fnvOffset64
	}
	fp.hash.Store(h)
	return h
}
