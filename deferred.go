package conveyor

type deferredOpType int

const (
	// dopPlace lands an already-registered subject in its chunk.
	dopPlace deferredOpType = iota
	// dopDespawn runs the full despawn, chunk release included.
	dopDespawn
	// dopFinalize completes a despawn whose chunk slot was already
	// stale-marked and compacted away by the unlock drain.
	dopFinalize
	dopAddTrait
	dopRemoveTrait
	// dopRefresh re-places a subjective in its most specific belt.
	dopRefresh
	// dopCancelled marks an op superseded by a later despawn.
	dopCancelled deferredOpType = -1
)

type deferredOp struct {
	typ    deferredOpType
	handle SubjectHandle
	trait  Trait
}

type dopKey struct {
	handle SubjectHandle
}

// dopQueue accumulates structural operations requested while cursors hold the
// mechanism open. Drained in placement, trait, despawn order once the last
// cursor closes.
type dopQueue struct {
	placeOps       []deferredOp
	traitOps       []deferredOp
	despawnOps     []deferredOp
	pendingDespawn map[dopKey]struct{}
	pendingTraits  map[dopKey][]int
}

func newDopQueue() dopQueue {
	return dopQueue{
		pendingDespawn: make(map[dopKey]struct{}),
		pendingTraits:  make(map[dopKey][]int),
	}
}

func (q *dopQueue) enqueuePlace(h SubjectHandle) {
	q.placeOps = append(q.placeOps, deferredOp{typ: dopPlace, handle: h})
	metricDeferredOps.Inc()
}

func (q *dopQueue) enqueueTraitOp(typ deferredOpType, h SubjectHandle, t Trait) {
	key := dopKey{handle: h}
	if _, doomed := q.pendingDespawn[key]; doomed {
		return
	}
	q.pendingTraits[key] = append(q.pendingTraits[key], len(q.traitOps))
	q.traitOps = append(q.traitOps, deferredOp{typ: typ, handle: h, trait: t})
	metricDeferredOps.Inc()
}

func (q *dopQueue) enqueueRefresh(h SubjectHandle) {
	key := dopKey{handle: h}
	if _, doomed := q.pendingDespawn[key]; doomed {
		return
	}
	q.traitOps = append(q.traitOps, deferredOp{typ: dopRefresh, handle: h})
	metricDeferredOps.Inc()
}

func (q *dopQueue) enqueueDespawn(typ deferredOpType, h SubjectHandle) {
	key := dopKey{handle: h}
	if _, exists := q.pendingDespawn[key]; exists {
		return
	}
	q.pendingDespawn[key] = struct{}{}

	// A despawn voids any queued trait work for the subject.
	for _, idx := range q.pendingTraits[key] {
		q.traitOps[idx].typ = dopCancelled
	}
	delete(q.pendingTraits, key)

	q.despawnOps = append(q.despawnOps, deferredOp{typ: typ, handle: h})
	metricDeferredOps.Inc()
}

func (q *dopQueue) isEmpty() bool {
	return len(q.placeOps) == 0 && len(q.traitOps) == 0 && len(q.despawnOps) == 0
}

// take returns the queued ops in drain order and resets the queue.
func (q *dopQueue) take() []deferredOp {
	ops := make([]deferredOp, 0, len(q.placeOps)+len(q.traitOps)+len(q.despawnOps))
	ops = append(ops, q.placeOps...)
	ops = append(ops, q.traitOps...)
	ops = append(ops, q.despawnOps...)
	q.placeOps = q.placeOps[:0]
	q.traitOps = q.traitOps[:0]
	q.despawnOps = q.despawnOps[:0]
	clear(q.pendingDespawn)
	clear(q.pendingTraits)
	return ops
}
