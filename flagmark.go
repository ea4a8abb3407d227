package conveyor

import "sync/atomic"

// Flagmark is a 32-bit set of lifecycle and user flags carried by every
// fingerprint. Flag reads and writes are lock-free and safe to race across
// threads; marking a subject stale from a worker goroutine mid-iteration
// never takes a lock.
type Flagmark uint32

const (
	// FlagStale marks a slot as logically removed but not yet compacted.
	FlagStale Flagmark = 1 << iota
	// FlagBooted marks a subject whose boot pass has run.
	FlagBooted
	// FlagOnline marks a network-replicated subject.
	FlagOnline
	// FlagDeferredDespawn marks a subject queued for despawn at unlock.
	FlagDeferredDespawn
	// FlagEditor marks an editor-only subject.
	FlagEditor
)

// FlagmarkFirstUser is the lowest bit available to callers. Everything below
// it is reserved for the runtime.
const FlagmarkFirstUser Flagmark = 1 << 8

// SystemFlagmark covers all reserved bits.
const SystemFlagmark = FlagmarkFirstUser - 1

// FlagAccess selects between the masked public mode and the unchecked
// internal mode of flag mutation.
type FlagAccess int

const (
	// AccessPolite masks out system bits and reports NoPermission when a
	// caller tries to touch them.
	AccessPolite FlagAccess = iota
	// AccessHarsh permits setting system-reserved bits. Internal use.
	AccessHarsh
)

// atomicFlagmark is the shared mutation core behind Fingerprint flag
// operations. All methods are CAS loops over a single uint32.
type atomicFlagmark struct {
	bits atomic.Uint32
}

func (f *atomicFlagmark) load() Flagmark {
	return Flagmark(f.bits.Load())
}

func (f *atomicFlagmark) has(flag Flagmark) bool {
	return f.load()&flag == flag
}

// set turns the given bits on or off. Returns the previous mark and Success,
// Noop when nothing changed, or NoPermission when polite access touched a
// system bit (the permitted remainder, if any, is still applied).
func (f *atomicFlagmark) set(flag Flagmark, state bool, access FlagAccess) (Flagmark, Outcome) {
	out := Success
	if access == AccessPolite && flag&SystemFlagmark != 0 {
		flag &^= SystemFlagmark
		out = NoPermission
	}
	if flag == 0 {
		if out == Success {
			out = Noop
		}
		return f.load(), out
	}
	for {
		prev := f.bits.Load()
		var next uint32
		if state {
			next = prev | uint32(flag)
		} else {
			next = prev &^ uint32(flag)
		}
		if next == prev {
			if out == Success {
				out = Noop
			}
			return Flagmark(prev), out
		}
		if f.bits.CompareAndSwap(prev, next) {
			return Flagmark(prev), out
		}
	}
}

// add turns on every bit of the given mark.
func (f *atomicFlagmark) add(mark Flagmark, access FlagAccess) (Flagmark, Outcome) {
	return f.set(mark, true, access)
}

// remove turns off every bit of the given mark.
func (f *atomicFlagmark) remove(mark Flagmark, access FlagAccess) (Flagmark, Outcome) {
	return f.set(mark, false, access)
}

// setMasked overwrites the bits selected by mask with the corresponding bits
// of mark, leaving all other bits untouched.
func (f *atomicFlagmark) setMasked(mark, mask Flagmark, access FlagAccess) (Flagmark, Outcome) {
	out := Success
	if access == AccessPolite && mask&SystemFlagmark != 0 {
		mask &^= SystemFlagmark
		out = NoPermission
	}
	if mask == 0 {
		if out == Success {
			out = Noop
		}
		return f.load(), out
	}
	for {
		prev := f.bits.Load()
		next := (prev &^ uint32(mask)) | uint32(mark&mask)
		if next == prev {
			if out == Success {
				out = Noop
			}
			return Flagmark(prev), out
		}
		if f.bits.CompareAndSwap(prev, next) {
			return Flagmark(prev), out
		}
	}
}
