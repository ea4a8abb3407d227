package conveyor

import "testing"

// TestSpawnAndDespawn tests the basic subject lifecycle
func TestSpawnAndDespawn(t *testing.T) {
	mech := Factory.NewMechanism()

	h, out := mech.Spawn(testPos)
	if out != Success {
		t.Fatalf("spawn: got %v, want Success", out)
	}
	if !h.IsValid() {
		t.Fatal("spawn should return a valid handle")
	}
	if got := mech.SubjectCount(); got != 1 {
		t.Errorf("subject count: got %d, want 1", got)
	}

	if _, out := testPos.GetFromSubject(mech, h); out != Success {
		t.Errorf("trait lookup: got %v, want Success", out)
	}

	if out := mech.Despawn(h); out != Success {
		t.Fatalf("despawn: got %v, want Success", out)
	}
	if got := mech.SubjectCount(); got != 0 {
		t.Errorf("subject count after despawn: got %d, want 0", got)
	}
	if out := mech.Despawn(h); out != Missing {
		t.Errorf("double despawn: got %v, want Missing", out)
	}
}

// TestHandleGenerations tests that recycled IDs invalidate old handles
func TestHandleGenerations(t *testing.T) {
	mech := Factory.NewMechanism()

	first, _ := mech.Spawn(testPos)
	mech.Despawn(first)
	second, _ := mech.Spawn(testPos)

	if first.ID != second.ID {
		t.Fatalf("expected ID recycling, got %d then %d", first.ID, second.ID)
	}
	if first.Generation == second.Generation {
		t.Fatal("recycled ID must carry a new generation")
	}
	if _, out := testPos.GetFromSubject(mech, first); out != Missing {
		t.Errorf("stale handle lookup: got %v, want Missing", out)
	}
	if _, out := testPos.GetFromSubject(mech, second); out != Success {
		t.Errorf("fresh handle lookup: got %v, want Success", out)
	}
}

// TestObtainTraitMigration tests chunk migration with data preservation
func TestObtainTraitMigration(t *testing.T) {
	mech := Factory.NewMechanism()
	h, _ := mech.Spawn(testPos)

	pos, _ := testPos.GetFromSubject(mech, h)
	pos.X, pos.Y = 3, 4

	if out := mech.ObtainTrait(h, testVel); out != Success {
		t.Fatalf("obtain trait: got %v, want Success", out)
	}
	if out := mech.ObtainTrait(h, testVel); out != Noop {
		t.Errorf("re-obtain trait: got %v, want Noop", out)
	}

	moved, out := testPos.GetFromSubject(mech, h)
	if out != Success {
		t.Fatalf("position after migration: got %v", out)
	}
	if moved.X != 3 || moved.Y != 4 {
		t.Errorf("position survived migration: got %+v, want {3 4}", *moved)
	}
	if _, out := testVel.GetFromSubject(mech, h); out != Success {
		t.Errorf("new trait after migration: got %v", out)
	}

	// The widened subject is now visible to the wider filter.
	filter := Factory.NewFilter().Require(testPos, testVel)
	if got := Factory.NewCursor(filter, mech).TotalMatched(); got != 1 {
		t.Errorf("wide filter matches: got %d, want 1", got)
	}
}

// TestRemoveTraitMigration tests narrowing migration
func TestRemoveTraitMigration(t *testing.T) {
	mech := Factory.NewMechanism()
	h, _ := mech.Spawn(testPos, testVel)

	if out := mech.RemoveTrait(h, testHP); out != Missing {
		t.Errorf("remove absent trait: got %v, want Missing", out)
	}
	if out := mech.RemoveTrait(h, testVel); out != Success {
		t.Fatalf("remove trait: got %v, want Success", out)
	}
	if _, out := testVel.GetFromSubject(mech, h); out != Missing {
		t.Errorf("removed trait lookup: got %v, want Missing", out)
	}
	if _, out := testPos.GetFromSubject(mech, h); out != Success {
		t.Errorf("surviving trait lookup: got %v", out)
	}

	narrow := Factory.NewFilter().Require(testVel)
	if got := Factory.NewCursor(narrow, mech).TotalMatched(); got != 0 {
		t.Errorf("old filter matches: got %d, want 0", got)
	}
}

// TestEnqueueDespawn tests the always-deferred despawn path
func TestEnqueueDespawn(t *testing.T) {
	mech := Factory.NewMechanism()
	h, _ := mech.Spawn(testPos)

	// With no cursors open the queue drains immediately.
	if out := mech.EnqueueDespawn(h); out != Deferred {
		t.Fatalf("enqueue despawn: got %v, want Deferred", out)
	}
	if got := mech.SubjectCount(); got != 0 {
		t.Errorf("subject count after drain: got %d, want 0", got)
	}
}

// TestEnqueueDespawnDuringIteration tests that the drain waits for cursors
func TestEnqueueDespawnDuringIteration(t *testing.T) {
	mech := Factory.NewMechanism()
	h, _ := mech.Spawn(testPos)
	other, _ := mech.Spawn(testPos)

	filter := Factory.NewFilter().Require(testPos)
	cur := Factory.NewCursor(filter, mech)
	visited := 0
	for cur.Next() {
		if visited == 0 {
			if out := mech.EnqueueDespawn(h); out != Deferred {
				t.Fatalf("enqueue: got %v", out)
			}
			if out := mech.EnqueueDespawn(h); out != Noop {
				t.Errorf("double enqueue: got %v, want Noop", out)
			}
			// Still alive until the drain.
			if got := mech.SubjectCount(); got != 2 {
				t.Fatalf("count during iteration: got %d, want 2", got)
			}
		}
		visited++
	}
	// Default filters hide the doomed subject immediately, so only the other
	// subject (and possibly h if it was slot 0 pre-flag) shows up; the flag is
	// set while iterating, so the first visited slot may be either.
	if visited < 1 || visited > 2 {
		t.Errorf("visited: got %d", visited)
	}

	if got := mech.SubjectCount(); got != 1 {
		t.Errorf("count after drain: got %d, want 1", got)
	}
	if _, out := testPos.GetFromSubject(mech, other); out != Success {
		t.Errorf("surviving subject: got %v", out)
	}
}

// TestBoot tests that subjects spawn unbooted and boot exactly once
func TestBoot(t *testing.T) {
	mech := Factory.NewMechanism()
	h, _ := mech.Spawn(testPos)

	if mech.IsBooted(h) {
		t.Fatal("fresh subject should not be booted")
	}
	booted := Factory.NewFilter().Require(testPos).RequireFlags(FlagBooted)
	if got := Factory.NewCursor(booted, mech).TotalMatched(); got != 0 {
		t.Errorf("booted filter before boot: got %d, want 0", got)
	}

	if out := mech.Boot(h); out != Success {
		t.Fatalf("boot: got %v, want Success", out)
	}
	if out := mech.Boot(h); out != Noop {
		t.Errorf("double boot: got %v, want Noop", out)
	}
	if !mech.IsBooted(h) {
		t.Error("subject should be booted")
	}
	if got := Factory.NewCursor(booted, mech).TotalMatched(); got != 1 {
		t.Errorf("booted filter after boot: got %d, want 1", got)
	}
}

// TestFlush tests the explicit drain and its lock guard
func TestFlush(t *testing.T) {
	mech := Factory.NewMechanism()
	h, _ := mech.Spawn(testPos)

	filter := Factory.NewFilter().Require(testPos)
	cur := Factory.NewSolidCursor(filter, mech)
	if !cur.Next() {
		t.Fatal("cursor should see the subject")
	}
	if out := mech.ObtainTrait(h, testVel); out != Deferred {
		t.Fatalf("obtain under solid lock: got %v, want Deferred", out)
	}
	if err := mech.Flush(); err == nil {
		t.Error("flush with an open cursor should fail")
	}
	for cur.Next() {
	}

	if err := mech.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, out := testVel.GetFromSubject(mech, h); out != Success {
		t.Errorf("trait after flush: got %v, want Success", out)
	}
}

// TestSubjectiveAccessor tests handle resolution to the subjective layer
func TestSubjectiveAccessor(t *testing.T) {
	mech := Factory.NewMechanism()

	plain, _ := mech.Spawn(testPos)
	if s, err := mech.Subjective(plain); err != nil || s != nil {
		t.Errorf("plain subject: got (%v, %v), want (nil, nil)", s, err)
	}

	want := newCombatSubjective(1, 1)
	h, _ := mech.RegisterSubjective(want, testPos)
	if s, err := mech.Subjective(h); err != nil || s != Subjective(want) {
		t.Errorf("registered subject: got (%v, %v)", s, err)
	}

	mech.Despawn(h)
	if _, err := mech.Subjective(h); err == nil {
		t.Error("stale handle should resolve to an error")
	}
}

// TestSubjectiveLifecycle tests registration, details, and belts end to end
func TestSubjectiveLifecycle(t *testing.T) {
	mech := Factory.NewMechanism()

	s := newCombatSubjective(1, 1)
	h, out := mech.RegisterSubjective(s, testPos)
	if out != Success {
		t.Fatalf("register: got %v, want Success", out)
	}
	if s.Handle() != h {
		t.Error("subjective should carry its handle")
	}
	if s.Fingerprint() == nil {
		t.Fatal("subjective should carry the registry fingerprint")
	}
	if !s.Fingerprint().ContainsDetail(fireClass) || !s.Fingerprint().ContainsDetail(armorClass) {
		t.Error("fingerprint should reflect the subjective's detail classes")
	}
	if belt, idx := s.BeltSlot(); belt == nil || idx < 0 {
		t.Fatal("registered subjective should occupy a belt slot")
	}

	// EnrichDetail grows the combo space.
	if out := mech.EnrichDetail(h, &Armor{Rating: 9}); out != Success {
		t.Fatalf("enrich: got %v, want Success", out)
	}
	f := Factory.NewFilter().RequireDetail(fireClass, armorClass)
	if got := Factory.NewBeltCursor(f, mech).TotalMatched(); got != 2 {
		t.Errorf("combos after enrich: got %d, want 2 (1 fire x 2 armors)", got)
	}

	// StripDetail shrinks it again; stripping the last fire removes the class.
	fire := s.Details()[0].(*FireDamage)
	if out := mech.StripDetail(h, fire); out != Success {
		t.Fatalf("strip: got %v, want Success", out)
	}
	if s.Fingerprint().ContainsDetail(fireClass) {
		t.Error("last fire stripped, class bit should be gone")
	}
	if got := Factory.NewBeltCursor(f, mech).TotalMatched(); got != 0 {
		t.Errorf("combos after strip: got %d, want 0", got)
	}
}

// TestAdjectives tests named filters with membership handlers
func TestAdjectives(t *testing.T) {
	mech := Factory.NewMechanism()

	var gains, losses int
	err := mech.RegisterAdjective(Adjective{
		Name:   "mover",
		Filter: Factory.NewFilter().Require(testPos, testVel),
		Handler: func(_ *Mechanism, _ SubjectHandle, gained bool) {
			if gained {
				gains++
			} else {
				losses++
			}
		},
	})
	if err != nil {
		t.Fatalf("register adjective: %v", err)
	}
	if err := mech.RegisterAdjective(Adjective{Name: "mover"}); err == nil {
		t.Error("duplicate adjective name should fail")
	}
	if mech.AdjectiveByName("mover") == nil {
		t.Error("adjective should be retrievable by name")
	}

	h, _ := mech.Spawn(testPos, testVel)
	if gains != 1 {
		t.Errorf("gains after matching spawn: got %d, want 1", gains)
	}
	mech.Spawn(testPos)
	if gains != 1 {
		t.Errorf("gains after non-matching spawn: got %d, want 1", gains)
	}

	if out := mech.RemoveTrait(h, testVel); out != Success {
		t.Fatalf("remove trait: got %v", out)
	}
	if losses != 1 {
		t.Errorf("losses after narrowing: got %d, want 1", losses)
	}
}
