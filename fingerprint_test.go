package conveyor

import "testing"

// TestFingerprintTraitLifecycle tests trait add/remove outcome transitions
func TestFingerprintTraitLifecycle(t *testing.T) {
	fp := Factory.NewFingerprint()

	if out := fp.AddTrait(testPos); out != Success {
		t.Fatalf("first add: got %v, want Success", out)
	}
	if out := fp.AddTrait(testPos); out != Noop {
		t.Errorf("second add: got %v, want Noop", out)
	}
	if !fp.ContainsTrait(testPos) {
		t.Error("fingerprint should contain added trait")
	}
	if fp.ContainsTrait(testVel) {
		t.Error("fingerprint should not contain unrelated trait")
	}

	if out := fp.RemoveTrait(testPos); out != Success {
		t.Errorf("remove: got %v, want Success", out)
	}
	if out := fp.RemoveTrait(testPos); out != Missing {
		t.Errorf("second remove: got %v, want Missing", out)
	}
}

// TestFingerprintDetailDecomposition tests that adding a derived class also
// marks the base class bits
func TestFingerprintDetailDecomposition(t *testing.T) {
	fp := Factory.NewFingerprint()

	if out := fp.AddDetail(fireClass); out != Success {
		t.Fatalf("add detail: got %v, want Success", out)
	}
	if !fp.ContainsDetail(fireClass) {
		t.Error("fingerprint should contain the derived class")
	}
	if !fp.ContainsDetail(damageClass) {
		t.Error("fingerprint should contain the decomposed base class")
	}
	if out := fp.AddDetail(fireClass); out != Noop {
		t.Errorf("re-add detail: got %v, want Noop", out)
	}

	// Removing the derived class keeps the base bit: belts never shrink and
	// another detail may still decompose onto it.
	if out := fp.RemoveDetail(fireClass); out != Success {
		t.Errorf("remove detail: got %v, want Success", out)
	}
	if fp.ContainsDetail(fireClass) {
		t.Error("derived class bit should be gone")
	}
	if !fp.ContainsDetail(damageClass) {
		t.Error("base class bit should survive derived removal")
	}
}

// TestFingerprintHashCaching tests hash stability and invalidation
func TestFingerprintHashCaching(t *testing.T) {
	fp := Factory.NewFingerprint(testPos)

	h1 := fp.CalcHash()
	if h1 == 0 {
		t.Fatal("hash should never be zero")
	}
	if h2 := fp.CalcHash(); h2 != h1 {
		t.Errorf("cached hash changed: %d != %d", h2, h1)
	}

	// Flag changes must not invalidate the hash.
	fp.SetFlag(FlagmarkFirstUser, true, AccessPolite)
	if h3 := fp.CalcHash(); h3 != h1 {
		t.Errorf("flag change altered hash: %d != %d", h3, h1)
	}

	fp.AddTrait(testVel)
	if h4 := fp.CalcHash(); h4 == h1 {
		t.Error("trait change should alter hash")
	}

	other := Factory.NewFingerprint(testVel, testPos)
	if other.CalcHash() != fp.CalcHash() {
		t.Error("hash should be order-independent over the same trait set")
	}
}

// TestFlagAccess tests the polite/harsh flag permission split
func TestFlagAccess(t *testing.T) {
	fp := Factory.NewFingerprint()

	if _, out := fp.SetFlag(FlagStale, true, AccessPolite); out != NoPermission {
		t.Errorf("polite system set: got %v, want NoPermission", out)
	}
	if fp.HasFlag(FlagStale) {
		t.Error("polite access must not set system bits")
	}

	if _, out := fp.SetFlag(FlagStale, true, AccessHarsh); out != Success {
		t.Errorf("harsh system set: got %v, want Success", out)
	}
	if !fp.HasFlag(FlagStale) {
		t.Error("harsh access should set system bits")
	}

	user := FlagmarkFirstUser
	if _, out := fp.SetFlag(user, true, AccessPolite); out != Success {
		t.Errorf("polite user set: got %v, want Success", out)
	}
	if _, out := fp.SetFlag(user, true, AccessPolite); out != Noop {
		t.Errorf("repeated user set: got %v, want Noop", out)
	}

	// Mixed marks: the user remainder still lands, but the caller is told off.
	mixed := FlagBooted | (FlagmarkFirstUser << 1)
	if _, out := fp.AddToFlagmark(mixed, AccessPolite); out != NoPermission {
		t.Errorf("mixed polite add: got %v, want NoPermission", out)
	}
	if fp.HasFlag(FlagBooted) {
		t.Error("system half of mixed mark must not land politely")
	}
	if !fp.HasFlag(FlagmarkFirstUser << 1) {
		t.Error("user half of mixed mark should land")
	}
}

// TestFlagSetMasked tests masked overwrite semantics
func TestFlagSetMasked(t *testing.T) {
	fp := Factory.NewFingerprint()
	a := FlagmarkFirstUser
	b := FlagmarkFirstUser << 1
	c := FlagmarkFirstUser << 2

	fp.AddToFlagmark(a|b, AccessPolite)

	// Overwrite the a|c window with just c: a drops, b is untouched.
	if _, out := fp.SetFlagmarkMasked(c, a|c, AccessPolite); out != Success {
		t.Fatalf("masked set: got %v, want Success", out)
	}
	if fp.HasFlag(a) {
		t.Error("bit inside mask should have been overwritten off")
	}
	if !fp.HasFlag(b) {
		t.Error("bit outside mask should survive")
	}
	if !fp.HasFlag(c) {
		t.Error("bit inside mask should have been overwritten on")
	}
}
