package conveyor

import "sync"

// SubjectID identifies a subject row in a mechanism's registry. IDs are
// recycled; a handle pairs the ID with a generation to detect staleness.
type SubjectID uint32

// InvalidSubjectID is the zero, never-allocated subject ID.
const InvalidSubjectID SubjectID = 0

// SubjectHandle is the lightweight generational reference to a subject.
// Dereferencing checks the live generation, so a handle to a despawned
// subject resolves to Missing instead of dangling.
type SubjectHandle struct {
	ID         SubjectID
	Generation uint32
}

// IsValid reports whether the handle was ever allocated. It says nothing
// about whether the subject is still alive.
func (h SubjectHandle) IsValid() bool { return h.ID != InvalidSubjectID }

// subjectInfo is one registry row: the single source of truth for a
// subject's storage location. Rows are mutated only by the owning mechanism
// during obtain/move/despawn operations.
type subjectInfo struct {
	generation  uint32
	alive       bool
	fingerprint *Fingerprint
	chunk       *Chunk
	slot        int
	belt        *Belt
	beltSlot    int
	subjective  Subjective
}

// subjectRegistry is the dense id→location arena. Row index is id-1.
type subjectRegistry struct {
	mu   sync.RWMutex
	rows []subjectInfo
	free []SubjectID
}

func (r *subjectRegistry) allocate(fp *Fingerprint) SubjectHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	var id SubjectID
	if n := len(r.free); n > 0 {
		id = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.rows = append(r.rows, subjectInfo{})
		id = SubjectID(len(r.rows))
	}
	row := &r.rows[id-1]
	row.alive = true
	row.fingerprint = fp
	row.chunk = nil
	row.slot = -1
	row.belt = nil
	row.beltSlot = -1
	row.subjective = nil
	return SubjectHandle{ID: id, Generation: row.generation}
}

// lookup returns a copy of the row for a live, generation-matching handle.
func (r *subjectRegistry) lookup(h SubjectHandle) (subjectInfo, Outcome) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, out := r.rowFor(h)
	if out != Success {
		return subjectInfo{}, out
	}
	return *row, Success
}

// rowFor resolves a handle to its row. Callers must hold r.mu.
func (r *subjectRegistry) rowFor(h SubjectHandle) (*subjectInfo, Outcome) {
	if !h.IsValid() {
		return nil, NullArgument
	}
	idx := int(h.ID) - 1
	if idx >= len(r.rows) {
		return nil, OutOfRange
	}
	row := &r.rows[idx]
	if !row.alive || row.generation != h.Generation {
		return nil, Missing
	}
	return row, Success
}

// release frees the row and bumps the generation so outstanding handles go
// stale.
func (r *subjectRegistry) release(h SubjectHandle) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, out := r.rowFor(h)
	if out != Success {
		return out
	}
	row.generation++
	row.alive = false
	row.fingerprint = nil
	row.chunk = nil
	row.slot = -1
	row.belt = nil
	row.beltSlot = -1
	row.subjective = nil
	r.free = append(r.free, h.ID)
	return Success
}

func (r *subjectRegistry) setChunkLocation(h SubjectHandle, ch *Chunk, slot int) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, out := r.rowFor(h)
	if out != Success {
		return out
	}
	row.chunk = ch
	row.slot = slot
	return Success
}

func (r *subjectRegistry) setBeltLocation(h SubjectHandle, b *Belt, slot int) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, out := r.rowFor(h)
	if out != Success {
		return out
	}
	row.belt = b
	row.beltSlot = slot
	return Success
}

func (r *subjectRegistry) setSubjective(h SubjectHandle, s Subjective) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, out := r.rowFor(h)
	if out != Success {
		return out
	}
	row.subjective = s
	return Success
}

// liveCount returns the number of live rows.
func (r *subjectRegistry) liveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows) - len(r.free)
}
