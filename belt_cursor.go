package conveyor

import "iter"

// BeltCursor lazily walks every belt covering a filter's required detail
// classes, enumerating the Cartesian combinations of multi-valued detail
// lines slot by slot. Advancing first exhausts the combos of the current
// slot via mixed-radix increment, then skip-scans to the next matching slot.
//
// The combo radix order follows the filter's required-class order: the first
// required class is least significant.
type BeltCursor struct {
	filter *Filter
	mech   *Mechanism
	solid  bool

	matched     []*Belt
	beltIndex   int
	belt        *Belt
	lineIndices []int
	slotIndex   int
	visible     int
	comboIndex  int
	comboCount  int

	locked      bool
	initialized bool
}

func newBeltCursor(f *Filter, m *Mechanism, solid bool) *BeltCursor {
	return &BeltCursor{
		filter:    f,
		mech:      m,
		solid:     solid,
		beltIndex: -1,
		slotIndex: -1,
	}
}

func (c *BeltCursor) initialize() {
	if c.initialized {
		return
	}
	c.filter.seal()
	c.matched = c.mech.matchingBelts(c.filter)
	c.beltIndex = -1
	c.slotIndex = -1
	c.visible = 0
	c.comboIndex = 0
	c.comboCount = 0
	c.mech.cursorOpened()
	c.initialized = true
}

// Next advances to the next (slot, combo) pair. Returns false once
// exhausted, releasing all locks.
func (c *BeltCursor) Next() bool {
	if !c.initialized {
		c.initialize()
	}
	for {
		if c.comboIndex+1 < c.comboCount {
			c.comboIndex++
			return true
		}
		c.slotIndex++
		for c.slotIndex >= c.visible {
			if !c.nextBelt() {
				return false
			}
			c.slotIndex = 0
		}
		c.comboCount = c.belt.slotCombos(c.slotIndex, c.filter, c.lineIndices)
		c.comboIndex = 0
		if c.comboCount > 0 {
			return true
		}
	}
}

// nextBelt advances to the next belt that carries a column for every
// required class, locking it and resolving the filter's line mapping.
func (c *BeltCursor) nextBelt() bool {
	c.unlockCurrent()
	for {
		c.beltIndex++
		if c.beltIndex >= len(c.matched) {
			c.finish()
			return false
		}
		b := c.matched[c.beltIndex]
		lineIndices := make([]int, 0, len(c.filter.requireClasses))
		covered := true
		for _, class := range c.filter.requireClasses {
			j := b.DetailLineIndexOf(class)
			if j < 0 {
				covered = false
				break
			}
			lineIndices = append(lineIndices, j)
		}
		if !covered {
			continue
		}
		c.belt = b
		c.lineIndices = lineIndices
		if c.solid {
			c.visible = b.lockSolid()
		} else {
			c.visible = b.lockLiquid()
		}
		c.locked = true
		return true
	}
}

func (c *BeltCursor) unlockCurrent() {
	if c.locked {
		c.belt.unlock()
		c.locked = false
	}
}

func (c *BeltCursor) finish() {
	c.unlockCurrent()
	if c.initialized {
		c.initialized = false
		c.mech.cursorClosed()
	}
	c.matched = nil
	c.belt = nil
	c.lineIndices = nil
	c.beltIndex = -1
	c.slotIndex = -1
	c.visible = 0
	c.comboIndex = 0
	c.comboCount = 0
}

// Reset abandons iteration, releasing any held lock.
func (c *BeltCursor) Reset() {
	c.finish()
}

// Viable reports whether the cursor points at a concrete slot and combo.
func (c *BeltCursor) Viable() bool {
	return c.locked && c.belt != nil &&
		c.slotIndex >= 0 && c.slotIndex < c.visible &&
		c.comboIndex >= 0 && c.comboIndex < c.comboCount
}

// Equals compares viability first, then belt, slot, and combo.
func (c *BeltCursor) Equals(other *BeltCursor) bool {
	if other == nil {
		return false
	}
	if !c.Viable() || !other.Viable() {
		return c.Viable() == other.Viable()
	}
	return c.belt == other.belt && c.slotIndex == other.slotIndex && c.comboIndex == other.comboIndex
}

// Clone returns an independent cursor at the same position, re-acquiring a
// lock of the same kind on the current belt.
func (c *BeltCursor) Clone() *BeltCursor {
	clone := newBeltCursor(c.filter, c.mech, c.solid)
	if !c.Viable() {
		return clone
	}
	clone.matched = c.matched
	clone.beltIndex = c.beltIndex
	clone.belt = c.belt
	clone.lineIndices = c.lineIndices
	clone.slotIndex = c.slotIndex
	clone.comboIndex = c.comboIndex
	clone.comboCount = c.comboCount
	if c.solid {
		clone.visible = c.belt.lockSolid()
	} else {
		clone.visible = c.belt.lockLiquid()
	}
	clone.locked = true
	clone.initialized = true
	c.mech.cursorOpened()
	return clone
}

// CurrentSlot returns the belt slot at the cursor position.
func (c *BeltCursor) CurrentSlot() *BeltSlot {
	if !c.Viable() {
		return nil
	}
	return c.belt.SlotAt(c.slotIndex)
}

// CurrentSubjective returns the subjective at the cursor position.
func (c *BeltCursor) CurrentSubjective() Subjective {
	slot := c.CurrentSlot()
	if slot == nil {
		return nil
	}
	return slot.Subjective()
}

// CurrentBelt returns the belt the cursor is inside of.
func (c *BeltCursor) CurrentBelt() *Belt {
	if !c.Viable() {
		return nil
	}
	return c.belt
}

// Combo returns the linear combo index within the current slot.
func (c *BeltCursor) Combo() int { return c.comboIndex }

// DetailAt returns the detail selected by the current combo for the k-th
// required class of the filter.
func (c *BeltCursor) DetailAt(k int) Detail {
	slot := c.CurrentSlot()
	if slot == nil {
		return nil
	}
	return slot.DetailAtLine(c.lineIndices, k, c.comboIndex)
}

// DetailOfClass returns the detail selected by the current combo for the
// given required class, nil when the class is not part of the filter.
func (c *BeltCursor) DetailOfClass(class *DetailClass) Detail {
	if class == nil {
		return nil
	}
	for k, required := range c.filter.requireClasses {
		if required == class {
			return c.DetailAt(k)
		}
	}
	return nil
}

// Subjectives yields the subjective of every matching (slot, combo) pair.
// Breaking out of the range resets the cursor.
func (c *BeltCursor) Subjectives() iter.Seq[Subjective] {
	return func(yield func(Subjective) bool) {
		for c.Next() {
			if !yield(c.CurrentSubjective()) {
				c.Reset()
				return
			}
		}
	}
}

// TotalMatched drains the cursor and returns how many combos matched.
func (c *BeltCursor) TotalMatched() int {
	total := 0
	for c.Next() {
		total++
	}
	return total
}
