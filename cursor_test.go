package conveyor

import "testing"

func spawnMovers(t *testing.T, mech *Mechanism, still, moving int) []SubjectHandle {
	t.Helper()
	var handles []SubjectHandle
	for i := 0; i < still; i++ {
		h, out := mech.Spawn(testPos)
		if out != Success {
			t.Fatalf("spawn still %d: got %v", i, out)
		}
		handles = append(handles, h)
	}
	for i := 0; i < moving; i++ {
		h, out := mech.Spawn(testPos, testVel)
		if out != Success {
			t.Fatalf("spawn moving %d: got %v", i, out)
		}
		handles = append(handles, h)
	}
	return handles
}

// TestCursorIteration tests the basic iterate-mutate-reiterate loop
func TestCursorIteration(t *testing.T) {
	mech := Factory.NewMechanism()
	spawnMovers(t, mech, 5, 3)

	filter := Factory.NewFilter().Require(testPos, testVel)

	cur := Factory.NewCursor(filter, mech)
	count := 0
	for cur.Next() {
		vel := testVel.GetFromCursor(cur)
		vel.X, vel.Y = 1, 1
		count++
	}
	if count != 3 {
		t.Fatalf("matched: got %d, want 3", count)
	}

	cur = Factory.NewCursor(filter, mech)
	for cur.Next() {
		pos := testPos.GetFromCursor(cur)
		vel := testVel.GetFromCursor(cur)
		pos.X += vel.X
		pos.Y += vel.Y
	}

	cur = Factory.NewCursor(filter, mech)
	for cur.Next() {
		pos := testPos.GetFromCursor(cur)
		if pos.X != 1 || pos.Y != 1 {
			t.Errorf("position after integration: got %+v, want {1 1}", *pos)
		}
	}
}

// TestCursorReleasesLocks tests that exhaustion and Reset free every chunk
func TestCursorReleasesLocks(t *testing.T) {
	mech := Factory.NewMechanism()
	spawnMovers(t, mech, 2, 2)

	filter := Factory.NewFilter().Require(testPos)
	cur := Factory.NewCursor(filter, mech)
	for cur.Next() {
	}
	for _, ch := range mech.matchingChunks(filter) {
		if ch.IsLocked() {
			t.Error("drained cursor left a chunk locked")
		}
	}
	if mech.Locked() {
		t.Error("drained cursor left the mechanism locked")
	}

	cur = Factory.NewCursor(filter, mech)
	cur.Next()
	if !mech.Locked() {
		t.Fatal("active cursor should hold the mechanism open")
	}
	cur.Reset()
	for _, ch := range mech.matchingChunks(filter) {
		if ch.IsLocked() {
			t.Error("reset cursor left a chunk locked")
		}
	}
	if mech.Locked() {
		t.Error("reset cursor left the mechanism locked")
	}
}

// TestCursorSubjectsRange tests the iterator form, including early break
func TestCursorSubjectsRange(t *testing.T) {
	mech := Factory.NewMechanism()
	spawnMovers(t, mech, 0, 4)

	filter := Factory.NewFilter().Require(testVel)
	cur := Factory.NewCursor(filter, mech)

	seen := 0
	for range cur.Subjects() {
		seen++
		if seen == 2 {
			break
		}
	}
	if seen != 2 {
		t.Fatalf("seen: got %d, want 2", seen)
	}
	if mech.Locked() {
		t.Error("breaking out of the range should reset the cursor")
	}
}

// TestCursorCloneAndEquals tests position comparison and cloning
func TestCursorCloneAndEquals(t *testing.T) {
	mech := Factory.NewMechanism()
	spawnMovers(t, mech, 0, 3)

	filter := Factory.NewFilter().Require(testVel)

	a := Factory.NewCursor(filter, mech)
	b := Factory.NewCursor(filter, mech)
	if !a.Equals(b) {
		t.Error("two non-viable cursors should be equal")
	}

	a.Next()
	if a.Equals(b) {
		t.Error("viable and non-viable cursors should differ")
	}
	b.Next()
	if !a.Equals(b) {
		t.Error("cursors at the same slot should be equal")
	}

	clone := a.Clone()
	if !clone.Equals(a) {
		t.Error("clone should sit at the original's position")
	}
	a.Next()
	if clone.Equals(a) {
		t.Error("advancing the original should not move the clone")
	}

	clone.Reset()
	a.Reset()
	b.Reset()
	if mech.Locked() {
		t.Error("all cursors reset, mechanism should be free")
	}
}

// TestCursorSkipsMidIterationDespawn tests deferred despawn during iteration
func TestCursorSkipsMidIterationDespawn(t *testing.T) {
	mech := Factory.NewMechanism()
	handles := spawnMovers(t, mech, 0, 4)

	filter := Factory.NewFilter().Require(testVel)
	cur := Factory.NewCursor(filter, mech)

	visited := 0
	for cur.Next() {
		visited++
		if visited == 1 {
			// Despawn a subject the cursor has not reached yet.
			if out := mech.Despawn(handles[3]); out != Deferred {
				t.Fatalf("mid-iteration despawn: got %v, want Deferred", out)
			}
		}
	}
	if visited != 3 {
		t.Errorf("visited: got %d, want 3 (stale slot skipped)", visited)
	}

	// The drain ran at cursor close; the handle is gone for good.
	if _, out := testVel.GetFromSubject(mech, handles[3]); out != Missing {
		t.Errorf("despawned lookup: got %v, want Missing", out)
	}
	if got := mech.SubjectCount(); got != 3 {
		t.Errorf("live subjects: got %d, want 3", got)
	}
}

// TestSolidCursor tests exclusive iteration
func TestSolidCursor(t *testing.T) {
	mech := Factory.NewMechanism()
	spawnMovers(t, mech, 0, 2)

	filter := Factory.NewFilter().Require(testVel)
	cur := Factory.NewSolidCursor(filter, mech)
	if !cur.Next() {
		t.Fatal("solid cursor should find a slot")
	}
	if !cur.CurrentChunk().IsLockedSolid() {
		t.Error("solid cursor should hold the exclusive lock")
	}
	// Structural additions are forbidden under the exclusive lock, so a spawn
	// into the locked chunk defers.
	h, out := mech.Spawn(testPos, testVel)
	if out != Deferred {
		t.Fatalf("spawn into solid-locked chunk: got %v, want Deferred", out)
	}
	if !h.IsValid() {
		t.Fatal("deferred spawn should still hand out a handle")
	}
	for cur.Next() {
	}

	// Cursor closed, placement drained.
	if _, out := testVel.GetFromSubject(mech, h); out != Success {
		t.Errorf("deferred subject after drain: got %v, want Success", out)
	}
}
