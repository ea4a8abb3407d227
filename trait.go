package conveyor

import (
	"github.com/TheBitDrifter/table"
	"github.com/puzpuzpuz/xsync/v3"
)

// Trait identifies a plain data record type attachable to subjects.
// Trait data is stored columnar inside chunks.
type Trait interface {
	table.ElementType
}

// traitSchema assigns every registered trait type a stable bit index.
var traitSchema = table.Factory.NewSchema()

// lineFactories builds the typed line for a trait bit when a chunk is
// created; traitsByBit is the reverse lookup used for diagnostics.
var (
	lineFactories = xsync.NewMapOf[uint32, func() line]()
	traitsByBit   = xsync.NewMapOf[uint32, Trait]()
)

func traitBit(t Trait) uint32 {
	traitSchema.Register(t)
	return traitSchema.RowIndexFor(t)
}

// AccessibleTrait extends a base Trait with typed access into chunk lines.
type AccessibleTrait[T any] struct {
	Trait
}

// FactoryNewTrait registers a new trait type and returns its accessor.
func FactoryNewTrait[T any]() AccessibleTrait[T] {
	iden := table.FactoryNewElementType[T]()
	bit := traitBit(iden)
	lineFactories.Store(bit, func() line { return &typedLine[T]{} })
	traitsByBit.Store(bit, iden)
	return AccessibleTrait[T]{Trait: iden}
}

// GetFromCursor retrieves the trait value for the subject at the cursor
// position. Panics if the current chunk lacks the trait; use
// GetFromCursorSafe when the filter does not guarantee presence.
func (t AccessibleTrait[T]) GetFromCursor(c *Cursor) *T {
	ln, ok := c.chunk.lineForBit(traitBit(t.Trait))
	if !ok {
		panic("trait not present in iterated chunk")
	}
	return &ln.(*typedLine[T]).data[c.slotIndex]
}

// GetFromCursorSafe retrieves the trait value, reporting whether the current
// chunk carries the trait at all.
func (t AccessibleTrait[T]) GetFromCursorSafe(c *Cursor) (bool, *T) {
	ln, ok := c.chunk.lineForBit(traitBit(t.Trait))
	if !ok {
		return false, nil
	}
	return true, &ln.(*typedLine[T]).data[c.slotIndex]
}

// CheckCursor reports whether the chunk at the cursor position carries the
// trait.
func (t AccessibleTrait[T]) CheckCursor(c *Cursor) bool {
	_, ok := c.chunk.lineForBit(traitBit(t.Trait))
	return ok
}

// GetFromChunk retrieves the trait value at a slot of a solid-locked chunk.
// Panics if the chunk lacks the trait. Meant for the concurrent fan-out path,
// where the callback receives (chunk, slot) instead of a cursor.
func (t AccessibleTrait[T]) GetFromChunk(ch *Chunk, slot int) *T {
	ln, ok := ch.lineForBit(traitBit(t.Trait))
	if !ok {
		panic("trait not present in chunk")
	}
	return &ln.(*typedLine[T]).data[slot]
}

// GetFromSubject retrieves the trait value for a subject by handle.
func (t AccessibleTrait[T]) GetFromSubject(m *Mechanism, h SubjectHandle) (*T, Outcome) {
	info, out := m.registry.lookup(h)
	if out != Success {
		return nil, out
	}
	if info.chunk == nil {
		return nil, Missing
	}
	ln, ok := info.chunk.lineForBit(traitBit(t.Trait))
	if !ok {
		return nil, Missing
	}
	return &ln.(*typedLine[T]).data[info.slot], Success
}
