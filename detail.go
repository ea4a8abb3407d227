package conveyor

import (
	"github.com/TheBitDrifter/mask"
	"github.com/TheBitDrifter/table"
	"github.com/puzpuzpuz/xsync/v3"
)

// Detail is a polymorphic object attachable to subjects, stored by reference
// in belts. A detail reports its registered class so belts can place it in
// the right columns.
type Detail interface {
	DetailClass() *DetailClass
}

// detailSchema assigns every registered detail class a stable bit index.
var (
	detailSchema     = table.Factory.NewSchema()
	detailClassByBit = xsync.NewMapOf[uint32, *DetailClass]()
)

// DetailClass describes a registered detail type, including the base classes
// it decomposes into for inheritance-aware filter matching.
type DetailClass struct {
	iden  table.ElementType
	bit   uint32
	bases []*DetailClass

	// decomposed holds the class's own bit plus every transitive base bit,
	// computed once at registration.
	decomposedBits []uint32
	decomposedMask mask.Mask
}

// FactoryNewDetailClass registers a new detail class. Base classes must be
// registered first; a filter for any base then matches details of this class.
func FactoryNewDetailClass[T any](bases ...*DetailClass) *DetailClass {
	iden := table.FactoryNewElementType[T]()
	detailSchema.Register(iden)
	c := &DetailClass{
		iden:  iden,
		bit:   detailSchema.RowIndexFor(iden),
		bases: bases,
	}
	seen := map[uint32]struct{}{}
	var collect func(dc *DetailClass)
	collect = func(dc *DetailClass) {
		if _, dup := seen[dc.bit]; dup {
			return
		}
		seen[dc.bit] = struct{}{}
		c.decomposedBits = append(c.decomposedBits, dc.bit)
		c.decomposedMask.Mark(dc.bit)
		for _, base := range dc.bases {
			collect(base)
		}
	}
	collect(c)
	sortBits(c.decomposedBits)
	detailClassByBit.Store(c.bit, c)
	return c
}

// Bit returns the class's own schema bit.
func (c *DetailClass) Bit() uint32 { return c.bit }

// Decomposed returns the class bit plus every transitive base bit, ascending.
func (c *DetailClass) Decomposed() []uint32 {
	out := make([]uint32, len(c.decomposedBits))
	copy(out, c.decomposedBits)
	return out
}

// DerivesFrom reports whether the class is, or transitively derives from,
// the other class.
func (c *DetailClass) DerivesFrom(other *DetailClass) bool {
	if other == nil {
		return false
	}
	for _, bit := range c.decomposedBits {
		if bit == other.bit {
			return true
		}
	}
	return false
}

// AccessibleDetail provides typed access to details found under a class.
type AccessibleDetail[T any] struct {
	Class *DetailClass
}

// FactoryNewDetail wraps a registered class with a typed accessor.
func FactoryNewDetail[T any](class *DetailClass) AccessibleDetail[T] {
	return AccessibleDetail[T]{Class: class}
}

// GetFromCursor retrieves the detail selected by the current combo for the
// accessor's class line. The second result is false when the combo's detail
// is not of type T (a sibling subclass under a shared base filter).
func (d AccessibleDetail[T]) GetFromCursor(c *BeltCursor) (T, bool) {
	raw := c.DetailOfClass(d.Class)
	typed, ok := raw.(T)
	return typed, ok
}
