package conveyor

import "iter"

// Cursor lazily walks every chunk whose traitmark satisfies a filter,
// skipping stale and non-matching slots. Each chunk is locked while the
// cursor is inside it and unlocked on the way out; exhaustion or Reset
// releases everything, so a drained cursor holds no locks and is reusable.
//
// Solid cursors take the exclusive lock instead, which forbids structural
// changes for the duration but makes parallel slot access safe.
type Cursor struct {
	filter *Filter
	mech   *Mechanism
	solid  bool

	matched    []*Chunk
	chunkIndex int
	chunk      *Chunk
	slotIndex  int
	visible    int

	locked      bool
	initialized bool
}

func newCursor(f *Filter, m *Mechanism, solid bool) *Cursor {
	return &Cursor{
		filter:     f,
		mech:       m,
		solid:      solid,
		chunkIndex: -1,
		slotIndex:  -1,
	}
}

func (c *Cursor) initialize() {
	if c.initialized {
		return
	}
	c.filter.seal()
	c.matched = c.mech.matchingChunks(c.filter)
	c.chunkIndex = -1
	c.slotIndex = -1
	c.visible = 0
	c.mech.cursorOpened()
	c.initialized = true
}

// Next advances to the next matching slot. It returns false once exhausted,
// at which point all locks are released and the cursor may be reused.
func (c *Cursor) Next() bool {
	if !c.initialized {
		c.initialize()
	}
	for {
		c.slotIndex++
		for c.slotIndex >= c.visible {
			if !c.nextChunk() {
				return false
			}
			c.slotIndex = 0
		}
		if c.chunk.slotMatches(c.slotIndex, c.filter) {
			return true
		}
	}
}

func (c *Cursor) nextChunk() bool {
	c.unlockCurrent()
	c.chunkIndex++
	if c.chunkIndex >= len(c.matched) {
		c.finish()
		return false
	}
	c.chunk = c.matched[c.chunkIndex]
	if c.solid {
		c.visible = c.chunk.lockSolid()
	} else {
		c.visible = c.chunk.lockLiquid()
	}
	c.locked = true
	return true
}

func (c *Cursor) unlockCurrent() {
	if c.locked {
		c.chunk.unlock()
		c.locked = false
	}
}

func (c *Cursor) finish() {
	c.unlockCurrent()
	if c.initialized {
		c.initialized = false
		c.mech.cursorClosed()
	}
	c.matched = nil
	c.chunk = nil
	c.chunkIndex = -1
	c.slotIndex = -1
	c.visible = 0
}

// Reset abandons iteration, releasing any held lock. Safe to call at any
// point, including on a never-advanced or already-drained cursor.
func (c *Cursor) Reset() {
	c.finish()
}

// Viable reports whether the cursor points at a concrete slot.
func (c *Cursor) Viable() bool {
	return c.locked && c.chunk != nil && c.slotIndex >= 0 && c.slotIndex < c.visible
}

// Equals compares viability first, then position. Two drained cursors are
// equal no matter where they stopped.
func (c *Cursor) Equals(other *Cursor) bool {
	if other == nil {
		return false
	}
	if !c.Viable() || !other.Viable() {
		return c.Viable() == other.Viable()
	}
	return c.chunk == other.chunk && c.slotIndex == other.slotIndex
}

// Clone returns an independent cursor at the same position, re-acquiring a
// lock of the same kind on the current chunk.
func (c *Cursor) Clone() *Cursor {
	clone := newCursor(c.filter, c.mech, c.solid)
	if !c.Viable() {
		return clone
	}
	clone.matched = c.matched
	clone.chunkIndex = c.chunkIndex
	clone.chunk = c.chunk
	clone.slotIndex = c.slotIndex
	if c.solid {
		clone.visible = c.chunk.lockSolid()
	} else {
		clone.visible = c.chunk.lockLiquid()
	}
	clone.locked = true
	clone.initialized = true
	c.mech.cursorOpened()
	return clone
}

// CurrentSubject returns the handle at the cursor position.
func (c *Cursor) CurrentSubject() SubjectHandle {
	if !c.Viable() {
		return SubjectHandle{}
	}
	return c.chunk.SubjectAt(c.slotIndex)
}

// CurrentChunk returns the chunk the cursor is inside of, nil when not
// viable.
func (c *Cursor) CurrentChunk() *Chunk {
	if !c.Viable() {
		return nil
	}
	return c.chunk
}

// CurrentFingerprint returns the fingerprint at the cursor position.
func (c *Cursor) CurrentFingerprint() *Fingerprint {
	if !c.Viable() {
		return nil
	}
	return c.chunk.FingerprintAt(c.slotIndex)
}

// SlotIndex returns the slot index within the current chunk.
func (c *Cursor) SlotIndex() int { return c.slotIndex }

// Subjects yields every matching subject handle. Breaking out of the range
// resets the cursor and releases its locks.
func (c *Cursor) Subjects() iter.Seq[SubjectHandle] {
	return func(yield func(SubjectHandle) bool) {
		for c.Next() {
			if !yield(c.CurrentSubject()) {
				c.Reset()
				return
			}
		}
	}
}

// TotalMatched drains the cursor and returns how many slots matched.
func (c *Cursor) TotalMatched() int {
	total := 0
	for c.Next() {
		total++
	}
	return total
}

// RemainingInChunk returns how many visible slots are left in the current
// chunk, matching or not.
func (c *Cursor) RemainingInChunk() int {
	if !c.Viable() {
		return 0
	}
	return c.visible - c.slotIndex
}
