package conveyor

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/TheBitDrifter/mask"
	"github.com/puzpuzpuz/xsync/v3"
)

// Mechanism owns the chunks, belts, and subject registry of one storage
// world. Structural operations (spawn, despawn, trait migration) serialize on
// an internal mutex; reads and flag operations are lock-free. Operations that
// collide with solid-locked storage are queued and drained when the last open
// cursor closes.
type Mechanism struct {
	mu       sync.Mutex
	registry subjectRegistry

	chunksByMask *xsync.MapOf[mask.Mask, *Chunk]
	chunkMu      sync.RWMutex
	chunks       []*Chunk
	nextChunkID  atomic.Uint32

	beltsByMask *xsync.MapOf[mask.Mask, *Belt]
	beltMu      sync.RWMutex
	belts       []*Belt
	nextBeltID  atomic.Uint32

	openCursors atomic.Int64
	deferredMu  sync.Mutex
	deferred    dopQueue

	adjectives Cache[Adjective]

	logger *slog.Logger
}

func newMechanism() *Mechanism {
	return &Mechanism{
		chunksByMask: xsync.NewMapOf[mask.Mask, *Chunk](),
		beltsByMask:  xsync.NewMapOf[mask.Mask, *Belt](),
		deferred:     newDopQueue(),
		adjectives:   FactoryNewCache[Adjective](maxAdjectives),
		logger:       slog.Default(),
	}
}

// SetLogger replaces the mechanism's logger. Not safe to call concurrently
// with operations.
func (m *Mechanism) SetLogger(l *slog.Logger) {
	if l != nil {
		m.logger = l
	}
}

// SubjectCount returns the number of live subjects.
func (m *Mechanism) SubjectCount() int { return m.registry.liveCount() }

// Locked reports whether any cursors are open. While locked, colliding
// structural operations defer.
func (m *Mechanism) Locked() bool { return m.openCursors.Load() > 0 }

// Flush drains the deferred operation queue immediately. Fails while cursors
// hold the mechanism open, since draining under a live iteration would
// invalidate its snapshot.
func (m *Mechanism) Flush() error {
	if m.Locked() {
		return LockedMechanismError{}
	}
	m.drainDeferred()
	return nil
}

// Subjective returns the subjective attached to the handle, or nil when the
// subject carries none.
func (m *Mechanism) Subjective(h SubjectHandle) (Subjective, error) {
	m.mu.Lock()
	row, out := m.registry.lookup(h)
	m.mu.Unlock()
	switch out {
	case Success:
		return row.subjective, nil
	case Missing, OutOfRange:
		return nil, StaleHandleError{Handle: h}
	default:
		return nil, OutcomeError{Op: "subjective lookup", Outcome: out}
	}
}

func (m *Mechanism) cursorOpened() { m.openCursors.Add(1) }

func (m *Mechanism) cursorClosed() {
	if m.openCursors.Add(-1) == 0 {
		m.drainDeferred()
	}
}

// ObtainChunk returns the chunk for the exact traitmark, creating it on first
// use. The only error is a traitmark bit with no registered trait type.
func (m *Mechanism) ObtainChunk(tm Traitmark) (*Chunk, error) {
	if ch, ok := m.chunksByMask.Load(tm.Mask()); ok {
		return ch, nil
	}
	m.chunkMu.Lock()
	defer m.chunkMu.Unlock()
	if ch, ok := m.chunksByMask.Load(tm.Mask()); ok {
		return ch, nil
	}
	ch, err := newChunk(ChunkID(m.nextChunkID.Add(1)), tm, m)
	if err != nil {
		return nil, err
	}
	m.chunksByMask.Store(ch.traitmark.Mask(), ch)
	m.chunks = append(m.chunks, ch)
	metricChunksCreated.Inc()
	return ch, nil
}

// ObtainBelt returns the belt for the exact decomposed detailmark, creating
// and expanding it on first use.
func (m *Mechanism) ObtainBelt(dm Detailmark) *Belt {
	if b, ok := m.beltsByMask.Load(dm.Mask()); ok {
		return b
	}
	m.beltMu.Lock()
	defer m.beltMu.Unlock()
	if b, ok := m.beltsByMask.Load(dm.Mask()); ok {
		return b
	}
	b := newBelt(BeltID(m.nextBeltID.Add(1)), m)
	b.Expand(dm)
	m.beltsByMask.Store(dm.Mask(), b)
	m.belts = append(m.belts, b)
	metricBeltsCreated.Inc()
	return b
}

// ObtainMostSpecificBelt returns the existing belt with the fewest columns
// whose schema covers the detailmark, creating an exact belt when none does.
func (m *Mechanism) ObtainMostSpecificBelt(dm Detailmark) *Belt {
	m.beltMu.RLock()
	var best *Belt
	for _, b := range m.belts {
		if !b.Detailmark().ContainsAll(dm) {
			continue
		}
		if best == nil || len(b.lineBits) < len(best.lineBits) {
			best = b
		}
	}
	m.beltMu.RUnlock()
	if best != nil {
		return best
	}
	return m.ObtainBelt(dm)
}

// Spawn registers a subject carrying the given traits with default values and
// places it in the matching chunk. A valid handle always comes back; when the
// destination chunk is solid-locked, placement defers (Deferred) and the
// subject is invisible to iteration until the drain. Subjects spawn unbooted;
// see Boot.
func (m *Mechanism) Spawn(traits ...Trait) (SubjectHandle, Outcome) {
	fp := &Fingerprint{}
	for _, t := range traits {
		if t == nil {
			return SubjectHandle{}, NullArgument
		}
		fp.AddTrait(t)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.registry.allocate(fp)
	metricSubjectsSpawned.Inc()
	out := m.placeInChunk(h, fp)
	if out == InvalidState {
		m.enqueue(func(q *dopQueue) { q.enqueuePlace(h) })
		return h, Deferred
	}
	if out != Success {
		m.registry.release(h)
		return SubjectHandle{}, out
	}
	m.applyAdjectives(h, fp)
	return h, Success
}

// placeInChunk reserves a slot for the subject in the chunk matching its
// fingerprint. Caller holds m.mu.
func (m *Mechanism) placeInChunk(h SubjectHandle, fp *Fingerprint) Outcome {
	ch, err := m.ObtainChunk(fp.Traits())
	if err != nil {
		m.logger.Error("chunk creation failed", "err", err)
		return SanityCheckFailed
	}
	idx, out := ch.ReserveSubjectSlot(h, fp)
	if out != Success {
		return out
	}
	m.registry.setChunkLocation(h, ch, idx)
	return Success
}

// Despawn removes the subject. While its chunk is locked the slot is
// stale-marked and the rest of the teardown defers (Deferred); otherwise the
// subject is gone on return (Success).
func (m *Mechanism) Despawn(h SubjectHandle) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, out := m.registry.lookup(h)
	if out != Success {
		return out
	}
	if row.fingerprint.HasFlag(FlagDeferredDespawn) {
		return Noop
	}
	if row.chunk != nil {
		switch out := row.chunk.ReleaseSlotAt(row.slot); out {
		case Deferred:
			row.fingerprint.SetFlag(FlagDeferredDespawn, true, AccessHarsh)
			m.enqueue(func(q *dopQueue) { q.enqueueDespawn(dopFinalize, h) })
			return Deferred
		case Success, Noop:
		default:
			return out
		}
	}
	return m.finalizeDespawn(h, row)
}

// EnqueueDespawn unconditionally defers the despawn to the next drain. The
// subject stays live but default filters stop matching it immediately.
func (m *Mechanism) EnqueueDespawn(h SubjectHandle) Outcome {
	m.mu.Lock()
	row, out := m.registry.lookup(h)
	if out != Success {
		m.mu.Unlock()
		return out
	}
	if _, out := row.fingerprint.SetFlag(FlagDeferredDespawn, true, AccessHarsh); out == Noop {
		m.mu.Unlock()
		return Noop
	}
	m.enqueue(func(q *dopQueue) { q.enqueueDespawn(dopDespawn, h) })
	m.mu.Unlock()
	// With no cursor holding the mechanism open there is no unlock coming to
	// trigger the drain.
	if !m.Locked() {
		m.drainDeferred()
	}
	return Deferred
}

// Boot marks the subject's boot pass as run. Flag-only, so it never collides
// with locked storage. Noop when already booted.
func (m *Mechanism) Boot(h SubjectHandle) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, out := m.registry.lookup(h)
	if out != Success {
		return out
	}
	_, out = row.fingerprint.SetFlag(FlagBooted, true, AccessHarsh)
	return out
}

// IsBooted reports whether the subject's boot pass has run.
func (m *Mechanism) IsBooted(h SubjectHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, out := m.registry.lookup(h)
	return out == Success && row.fingerprint.HasFlag(FlagBooted)
}

// finalizeDespawn releases the belt slot and registry row. The chunk slot is
// already gone. Caller holds m.mu.
func (m *Mechanism) finalizeDespawn(h SubjectHandle, row subjectInfo) Outcome {
	if row.belt != nil && row.beltSlot >= 0 {
		row.belt.ReleaseSlotAt(row.beltSlot)
	}
	out := m.registry.release(h)
	if out == Success {
		m.forgetAdjectives(h)
		metricSubjectsDespawned.Inc()
	}
	return out
}

// ObtainTrait adds a trait (default-valued) to the subject, migrating it to
// the chunk of its widened traitmark. Noop when already present; Deferred
// when either chunk is solid-locked.
func (m *Mechanism) ObtainTrait(h SubjectHandle, t Trait) Outcome {
	if t == nil {
		return NullArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.obtainTraitLocked(h, t)
}

func (m *Mechanism) obtainTraitLocked(h SubjectHandle, t Trait) Outcome {
	row, out := m.registry.lookup(h)
	if out != Success {
		return out
	}
	fp := row.fingerprint
	if fp.HasFlag(FlagDeferredDespawn) {
		return InvalidState
	}
	if fp.ContainsTrait(t) {
		return Noop
	}
	if row.chunk == nil {
		// Placement itself is still deferred; widen the fingerprint so the
		// drain lands the subject in the right chunk directly.
		fp.AddTrait(t)
		return Success
	}
	if row.chunk.IsLockedSolid() {
		m.enqueue(func(q *dopQueue) { q.enqueueTraitOp(dopAddTrait, h, t) })
		return Deferred
	}
	target := row.chunk.Traitmark().Clone()
	target.Add(t)
	return m.migrate(h, row, fp, target, func() { fp.AddTrait(t) })
}

// RemoveTrait removes a trait from the subject, migrating it to the chunk of
// its narrowed traitmark. Missing when absent.
func (m *Mechanism) RemoveTrait(h SubjectHandle, t Trait) Outcome {
	if t == nil {
		return NullArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeTraitLocked(h, t)
}

func (m *Mechanism) removeTraitLocked(h SubjectHandle, t Trait) Outcome {
	row, out := m.registry.lookup(h)
	if out != Success {
		return out
	}
	fp := row.fingerprint
	if fp.HasFlag(FlagDeferredDespawn) {
		return InvalidState
	}
	if !fp.ContainsTrait(t) {
		return Missing
	}
	if row.chunk == nil {
		fp.RemoveTrait(t)
		return Success
	}
	if row.chunk.IsLockedSolid() {
		m.enqueue(func(q *dopQueue) { q.enqueueTraitOp(dopRemoveTrait, h, t) })
		return Deferred
	}
	target := row.chunk.Traitmark().Clone()
	target.Remove(t)
	return m.migrate(h, row, fp, target, func() { fp.RemoveTrait(t) })
}

// migrate moves the subject from its current chunk to the chunk keyed by
// target, copying shared trait data. mutateFP adjusts the fingerprint only
// after the destination slot is secured, so a failed reservation leaves the
// subject untouched. Caller holds m.mu.
func (m *Mechanism) migrate(h SubjectHandle, row subjectInfo, fp *Fingerprint, target Traitmark, mutateFP func()) Outcome {
	dst, err := m.ObtainChunk(target)
	if err != nil {
		m.logger.Error("chunk creation failed", "err", err)
		return SanityCheckFailed
	}
	dstIdx, out := dst.ReserveSubjectSlot(h, fp)
	if out != Success {
		return out
	}
	if out := row.chunk.OverwriteTraits(row.slot, dst, dstIdx); out != Success {
		// The reservation must not outlive the failed copy: a populated
		// destination slot with the registry still pointing at the source
		// would iterate as a duplicate.
		dst.releaseMigratedSlot(dstIdx)
		return out
	}
	mutateFP()
	m.registry.setChunkLocation(h, dst, dstIdx)
	row.chunk.releaseMigratedSlot(row.slot)
	metricChunkMigrations.Inc()
	m.applyAdjectives(h, fp)
	return Success
}

// RegisterSubjective attaches a subjective to a freshly spawned subject: the
// fingerprint gains the traits plus the detail classes of the subjective's
// current details, and the subjective lands in its most specific belt.
func (m *Mechanism) RegisterSubjective(s Subjective, traits ...Trait) (SubjectHandle, Outcome) {
	if s == nil {
		return SubjectHandle{}, NullArgument
	}
	if s.Handle().IsValid() {
		return s.Handle(), Noop
	}
	h, out := m.Spawn(traits...)
	if !h.IsValid() {
		return SubjectHandle{}, out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, rout := m.registry.lookup(h)
	if rout != Success {
		return SubjectHandle{}, rout
	}
	fp := row.fingerprint
	s.TakeHandle(h)
	if taker, ok := s.(interface{ TakeFingerprint(*Fingerprint) }); ok {
		taker.TakeFingerprint(fp)
	}
	m.registry.setSubjective(h, s)
	for _, d := range s.Details() {
		if d != nil {
			fp.AddDetail(d.DetailClass())
		}
	}
	if !fp.Details().IsEmpty() {
		if rout := m.refreshBelt(h, s, fp); rout == Deferred {
			out = Deferred
		}
	}
	return h, out
}

// UnregisterSubjective detaches the subjective layer, freeing its belt slot.
// The subject itself stays alive.
func (m *Mechanism) UnregisterSubjective(h SubjectHandle) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, out := m.registry.lookup(h)
	if out != Success {
		return out
	}
	if row.subjective == nil {
		return Noop
	}
	if row.belt != nil && row.beltSlot >= 0 {
		row.belt.ReleaseSlotAt(row.beltSlot)
	}
	m.registry.setBeltLocation(h, nil, -1)
	return m.registry.setSubjective(h, nil)
}

// EnrichDetail adds a detail instance to the subject's subjective and
// re-places it in the belt covering its grown detailmark. Deferred when the
// target belt is solid-locked.
func (m *Mechanism) EnrichDetail(h SubjectHandle, d Detail) Outcome {
	if d == nil || d.DetailClass() == nil {
		return NullArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, out := m.registry.lookup(h)
	if out != Success {
		return out
	}
	if row.subjective == nil {
		return InvalidState
	}
	if adder, ok := row.subjective.(interface{ AddDetail(Detail) Outcome }); ok {
		if out := adder.AddDetail(d); out != Success {
			return out
		}
	} else {
		return NoPermission
	}
	row.fingerprint.AddDetail(d.DetailClass())
	return m.refreshBelt(h, row.subjective, row.fingerprint)
}

// StripDetail removes a detail instance. The class bit leaves the fingerprint
// only when no instance of the class remains.
func (m *Mechanism) StripDetail(h SubjectHandle, d Detail) Outcome {
	if d == nil || d.DetailClass() == nil {
		return NullArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, out := m.registry.lookup(h)
	if out != Success {
		return out
	}
	if row.subjective == nil {
		return InvalidState
	}
	remover, ok := row.subjective.(interface{ RemoveDetail(Detail) Outcome })
	if !ok {
		return NoPermission
	}
	if out := remover.RemoveDetail(d); out != Success {
		return out
	}
	remaining := false
	for _, have := range row.subjective.Details() {
		if have != nil && have.DetailClass() == d.DetailClass() {
			remaining = true
			break
		}
	}
	if !remaining {
		row.fingerprint.RemoveDetail(d.DetailClass())
	}
	return m.refreshBelt(h, row.subjective, row.fingerprint)
}

// refreshBelt re-caches the subjective in the most specific belt for its
// fingerprint's detailmark. Caller holds m.mu.
func (m *Mechanism) refreshBelt(h SubjectHandle, s Subjective, fp *Fingerprint) Outcome {
	b := m.ObtainMostSpecificBelt(fp.Details())
	out := b.Refresh(s)
	if out == InvalidState {
		m.enqueue(func(q *dopQueue) { q.enqueueRefresh(h) })
		return Deferred
	}
	return out
}

// matchingChunks snapshots the chunks whose traitmark satisfies the filter,
// in creation order.
func (m *Mechanism) matchingChunks(f *Filter) []*Chunk {
	m.chunkMu.RLock()
	defer m.chunkMu.RUnlock()
	var out []*Chunk
	for _, ch := range m.chunks {
		if f.matchesTraitmark(ch.traitmark) {
			out = append(out, ch)
		}
	}
	return out
}

// matchingBelts snapshots the belts whose schema covers the filter's required
// detail classes, in creation order. Per-slot detail and flag conditions are
// the cursor's job.
func (m *Mechanism) matchingBelts(f *Filter) []*Belt {
	m.beltMu.RLock()
	defer m.beltMu.RUnlock()
	var out []*Belt
	for _, b := range m.belts {
		if b.detailmark.mask.ContainsAll(f.requireDetails.mask) {
			out = append(out, b)
		}
	}
	return out
}

func (m *Mechanism) enqueue(fn func(q *dopQueue)) {
	m.deferredMu.Lock()
	fn(&m.deferred)
	m.deferredMu.Unlock()
}

// drainDeferred replays the queued structural operations now that no cursor
// holds the mechanism open. Individual failures are logged and counted, never
// fatal; a drain must always finish.
func (m *Mechanism) drainDeferred() {
	m.deferredMu.Lock()
	if m.deferred.isEmpty() {
		m.deferredMu.Unlock()
		return
	}
	ops := m.deferred.take()
	m.deferredMu.Unlock()
	metricDeferredDrains.Inc()

	for _, op := range ops {
		var out Outcome
		switch op.typ {
		case dopCancelled:
			continue
		case dopPlace:
			m.mu.Lock()
			row, rout := m.registry.lookup(op.handle)
			if rout == Success && row.chunk == nil {
				out = m.placeInChunk(op.handle, row.fingerprint)
			} else {
				out = rout
			}
			m.mu.Unlock()
		case dopAddTrait:
			m.mu.Lock()
			out = m.obtainTraitLocked(op.handle, op.trait)
			m.mu.Unlock()
		case dopRemoveTrait:
			m.mu.Lock()
			out = m.removeTraitLocked(op.handle, op.trait)
			m.mu.Unlock()
		case dopRefresh:
			m.mu.Lock()
			row, rout := m.registry.lookup(op.handle)
			if rout == Success && row.subjective != nil {
				out = m.refreshBelt(op.handle, row.subjective, row.fingerprint)
			} else {
				out = rout
			}
			m.mu.Unlock()
		case dopDespawn:
			m.mu.Lock()
			row, rout := m.registry.lookup(op.handle)
			if rout == Success {
				if row.chunk != nil {
					// Strip the deferral flag so the release path runs clean.
					row.fingerprint.SetFlag(FlagDeferredDespawn, false, AccessHarsh)
					row.chunk.ReleaseSlotAt(row.slot)
				}
				out = m.finalizeDespawn(op.handle, row)
			} else {
				out = rout
			}
			m.mu.Unlock()
		case dopFinalize:
			m.mu.Lock()
			row, rout := m.registry.lookup(op.handle)
			if rout == Success {
				out = m.finalizeDespawn(op.handle, row)
			} else {
				out = rout
			}
			m.mu.Unlock()
		}
		if !out.IsOK() {
			metricDeferredFailures.Inc()
			m.logger.Warn("deferred operation failed",
				"op", op.typ, "subject", op.handle.ID, "outcome", out)
		}
	}
}

// SlotEvents implementation: the mechanism is its own relocation listener,
// keeping the registry's handle→location mapping current through compaction.

func (m *Mechanism) OnChunkSlotMoved(h SubjectHandle, ch *Chunk, newIndex int) {
	m.registry.setChunkLocation(h, ch, newIndex)
	if ev := Config.slotEvents; ev != nil {
		ev.OnChunkSlotMoved(h, ch, newIndex)
	}
}

func (m *Mechanism) OnBeltSlotMoved(s Subjective, b *Belt, newIndex int) {
	if h := s.Handle(); h.IsValid() {
		m.registry.setBeltLocation(h, b, newIndex)
	}
	if ev := Config.slotEvents; ev != nil {
		ev.OnBeltSlotMoved(s, b, newIndex)
	}
}

var _ SlotEvents = (*Mechanism)(nil)
