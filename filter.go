package conveyor

// Filter is a query predicate over fingerprints: required and excluded
// traits, details, and flag bits. Stale and deferred-despawn subjects are
// always excluded. A filter becomes immutable once a cursor starts using it;
// mutating a sealed filter is a programmer error and panics.
type Filter struct {
	require Traitmark
	exclude Traitmark

	requireDetails Detailmark
	excludeDetails Detailmark
	// requireClasses keeps the classes themselves (not just the decomposed
	// mark) so belt cursors can resolve the exact columns to combine over.
	requireClasses []*DetailClass

	requireFlags Flagmark
	excludeFlags Flagmark

	sealed bool
}

func newFilter() *Filter {
	return &Filter{excludeFlags: FlagStale | FlagDeferredDespawn}
}

func (f *Filter) mutable() {
	if f.sealed {
		panic("filter mutated during iteration")
	}
}

func (f *Filter) seal() { f.sealed = true }

// Require adds traits every matching subject must carry.
func (f *Filter) Require(traits ...Trait) *Filter {
	f.mutable()
	for _, t := range traits {
		f.require.Add(t)
	}
	return f
}

// Exclude adds traits no matching subject may carry.
func (f *Filter) Exclude(traits ...Trait) *Filter {
	f.mutable()
	for _, t := range traits {
		f.exclude.Add(t)
	}
	return f
}

// RequireDetail adds detail classes every matching subject must carry.
// Matching respects inheritance: subjects holding a derived class satisfy a
// base-class requirement.
func (f *Filter) RequireDetail(classes ...*DetailClass) *Filter {
	f.mutable()
	for _, c := range classes {
		if c == nil {
			continue
		}
		if f.requireDetails.addBit(c.bit) == Success {
			f.requireClasses = append(f.requireClasses, c)
		}
	}
	return f
}

// ExcludeDetail adds detail classes no matching subject may carry.
func (f *Filter) ExcludeDetail(classes ...*DetailClass) *Filter {
	f.mutable()
	for _, c := range classes {
		if c == nil {
			continue
		}
		f.excludeDetails.addBit(c.bit)
	}
	return f
}

// RequireFlags adds flag bits every matching subject must have set.
func (f *Filter) RequireFlags(mark Flagmark) *Filter {
	f.mutable()
	f.requireFlags |= mark
	return f
}

// ExcludeFlags adds flag bits no matching subject may have set. The Stale
// and DeferredDespawn exclusions cannot be lifted.
func (f *Filter) ExcludeFlags(mark Flagmark) *Filter {
	f.mutable()
	f.excludeFlags |= mark
	return f
}

// Matches reports whether the fingerprint satisfies all trait, detail, and
// flag conditions.
func (f *Filter) Matches(fp *Fingerprint) bool {
	if fp == nil {
		return false
	}
	if !f.matchesTraitmark(fp.traits) {
		return false
	}
	if !fp.details.mask.ContainsAll(f.requireDetails.mask) {
		return false
	}
	if !fp.details.ContainsNone(f.excludeDetails) {
		return false
	}
	return f.MatchesFlagmark(fp.Flagmark())
}

func (f *Filter) matchesTraitmark(tm Traitmark) bool {
	return tm.mask.ContainsAll(f.require.mask) && tm.ContainsNone(f.exclude)
}

// MatchesFlagmark checks only the flag conditions.
func (f *Filter) MatchesFlagmark(mark Flagmark) bool {
	return mark&f.requireFlags == f.requireFlags && mark&f.excludeFlags == 0
}

// RequiredClasses returns the required detail classes in registration order.
// Shared; do not mutate.
func (f *Filter) RequiredClasses() []*DetailClass { return f.requireClasses }
