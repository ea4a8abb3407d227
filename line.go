package conveyor

// line is one dense trait column of a chunk, index-parallel with the chunk's
// slots. Cells are moved by index only; the concrete element type is known
// solely to the typedLine that owns the backing slice.
type line interface {
	grow(n int)
	length() int
	// moveCell copies the cell at src over the cell at dst.
	moveCell(dst, src int)
	zero(i int)
	truncate(n int)
	// copyCellTo copies cell i into row dstRow of dst. Reports false when dst
	// stores a different element type.
	copyCellTo(i int, dst line, dstRow int) bool
}

type typedLine[T any] struct {
	data []T
}

func (l *typedLine[T]) grow(n int) {
	var zero T
	for i := 0; i < n; i++ {
		l.data = append(l.data, zero)
	}
}

func (l *typedLine[T]) length() int { return len(l.data) }

func (l *typedLine[T]) moveCell(dst, src int) {
	l.data[dst] = l.data[src]
}

func (l *typedLine[T]) zero(i int) {
	var zero T
	l.data[i] = zero
}

func (l *typedLine[T]) truncate(n int) {
	l.data = l.data[:n]
}

func (l *typedLine[T]) copyCellTo(i int, dst line, dstRow int) bool {
	typed, ok := dst.(*typedLine[T])
	if !ok {
		return false
	}
	typed.data[dstRow] = l.data[i]
	return true
}

func newLineForBit(bit uint32) (line, bool) {
	factory, ok := lineFactories.Load(bit)
	if !ok {
		return nil, false
	}
	return factory(), true
}
