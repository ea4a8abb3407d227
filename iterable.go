package conveyor

import (
	"sync"
	"sync/atomic"
)

// compactor is the storage half of an iterable: the chunk or belt owning the
// slots being locked. All methods run with the transition mutex held.
type compactor interface {
	liveCount() int
	setLiveCount(n int)
	slotStale(i int) bool
	// moveSlot copies slot src over slot dst and clears src.
	moveSlot(dst, src int)
	clearSlot(i int)
}

// iterable is the shared locking behavior embedded by Chunk and Belt.
//
// The lock count is a signed atomic: >0 means N concurrent liquid (shared)
// locks, <0 means one exclusive solid lock, 0 means unlocked. Liquid locks
// permit structural additions (invisible to in-flight iteration) and defer
// removals; a solid lock forbids all structural change, which is what makes
// parallel fan-out over the slots safe.
//
// The transition mutex exists solely to make lock/unlock transitions (the
// snapshot at first lock, the drain-and-compact at last unlock) atomic with
// respect to each other. Reads of the lock state never take it.
type iterable struct {
	owner     compactor
	lockCount atomic.Int64
	// snapshot of the slot count visible to the locked generation; slots
	// appended during a lock are real but invisible until the next cycle.
	snapshot atomic.Int64
	pending  *removalQueue
	transMu  sync.Mutex
}

func (it *iterable) initIterable(owner compactor) {
	it.owner = owner
	it.pending = newRemovalQueue()
}

// IsLocked reports whether any lock is held.
func (it *iterable) IsLocked() bool { return it.lockCount.Load() != 0 }

// IsLockedLiquid reports whether shared locks are held.
func (it *iterable) IsLockedLiquid() bool { return it.lockCount.Load() > 0 }

// IsLockedSolid reports whether the exclusive lock is held.
func (it *iterable) IsLockedSolid() bool { return it.lockCount.Load() < 0 }

// IterableCount returns the slot count visible to the current locked
// generation, or the live count when unlocked.
func (it *iterable) IterableCount() int {
	if it.IsLocked() {
		return int(it.snapshot.Load())
	}
	return it.owner.liveCount()
}

// lockLiquid acquires a shared lock and returns the visible slot count.
func (it *iterable) lockLiquid() int {
	it.transMu.Lock()
	defer it.transMu.Unlock()
	if it.lockCount.Load() < 0 {
		panic("liquid lock attempted while solid-locked")
	}
	if it.lockCount.Add(1) == 1 {
		it.snapshot.Store(int64(it.owner.liveCount()))
	}
	return int(it.snapshot.Load())
}

// lockSolid acquires the exclusive lock and returns the visible slot count.
// Solid locks nest (a clone of a solid cursor re-locks solidly), but they
// never coexist with liquid locks; that conflict is a programmer error.
func (it *iterable) lockSolid() int {
	it.transMu.Lock()
	defer it.transMu.Unlock()
	c := it.lockCount.Load()
	if c > 0 {
		panic("solid lock attempted while liquid-locked")
	}
	it.lockCount.Store(c - 1)
	if c == 0 {
		it.snapshot.Store(int64(it.owner.liveCount()))
	}
	return int(it.snapshot.Load())
}

// unlock releases one lock of either kind. Dropping the count to zero drains
// the deferred-removal queue and compacts.
func (it *iterable) unlock() {
	it.transMu.Lock()
	defer it.transMu.Unlock()
	switch c := it.lockCount.Load(); {
	case c > 0:
		if it.lockCount.Add(-1) == 0 {
			it.doUnlock(false)
		}
	case c < 0:
		if it.lockCount.Add(1) == 0 {
			it.doUnlock(true)
		}
	default:
		panic("unlock of an unlocked iterable")
	}
}

// enqueueRemoval queues a slot for removal once the lock clears. The slot
// must already be flagged stale so in-flight iteration skips it.
func (it *iterable) enqueueRemoval(index int) {
	it.pending.push(index)
}

// doUnlock drains the removal queue and swap-compacts: each freed index
// receives the highest still-live slot at or below the live count, keeping
// the slot array dense without shifting. Runs with the transition mutex
// held, after the lock count has returned to zero.
func (it *iterable) doUnlock(wasSolid bool) {
	_ = wasSolid
	indices := it.pending.drain()
	if len(indices) == 0 {
		return
	}
	n := it.owner.liveCount()
	for _, idx := range indices {
		if idx >= n || !it.owner.slotStale(idx) {
			// Already compacted away, or a live slot was swapped in here by
			// an earlier drain step.
			continue
		}
		last := n - 1
		for last > idx && it.owner.slotStale(last) {
			it.owner.clearSlot(last)
			last--
		}
		if last > idx {
			it.owner.moveSlot(idx, last)
		} else {
			it.owner.clearSlot(idx)
		}
		n = last
	}
	it.owner.setLiveCount(n)
}
