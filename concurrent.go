package conveyor

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// OperateConcurrently fans the filter's matching slots out over worker
// goroutines. Every matching chunk is solid-locked for the duration, so the
// callback may read and write trait data freely but must not perform
// structural operations (those defer). The callback receives the chunk and
// slot index; returning an error cancels the remaining work.
func (m *Mechanism) OperateConcurrently(ctx context.Context, f *Filter, workers int, fn func(ctx context.Context, ch *Chunk, slot int) error) error {
	if fn == nil {
		return OutcomeError{Op: "operate concurrently", Outcome: NullArgument}
	}
	if workers < 1 {
		workers = 1
	}
	f.seal()
	chunks := m.matchingChunks(f)
	m.cursorOpened()
	defer m.cursorClosed()

	for _, ch := range chunks {
		// Each chunk gets its own group derived from the caller's context.
		// The group context dies when Wait returns, so it must never feed
		// the next chunk's group.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		visible := ch.lockSolid()
		for slot := 0; slot < visible; slot++ {
			if !ch.slotMatches(slot, f) {
				continue
			}
			slot := slot
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				return fn(gctx, ch, slot)
			})
		}
		// Per-chunk barrier: the chunk stays solid-locked exactly as long as
		// workers touch its slots.
		err := g.Wait()
		ch.unlock()
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
