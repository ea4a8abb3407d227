package conveyor

// maxAdjectives caps the adjective cache. Adjectives are registered at
// startup; a program wanting hundreds is holding the tool wrong.
const maxAdjectives = 256

// Adjective is a named, reusable filter with an optional membership handler.
// After every structural change the mechanism re-evaluates the changed
// subject against all registered adjectives and reports transitions.
type Adjective struct {
	Name    string
	Filter  *Filter
	Handler AdjectiveHandler

	// members tracks current membership by handle so transitions can be
	// detected without a second evaluation pass.
	members map[SubjectHandle]struct{}
}

// RegisterAdjective registers the adjective under its name. The filter is
// sealed immediately; registering the same name twice fails.
func (m *Mechanism) RegisterAdjective(a Adjective) error {
	if a.Filter == nil {
		a.Filter = newFilter()
	}
	a.Filter.seal()
	a.members = make(map[SubjectHandle]struct{})
	_, err := m.adjectives.Register(a.Name, a)
	return err
}

// AdjectiveByName returns the registered adjective, nil when unknown.
func (m *Mechanism) AdjectiveByName(name string) *Adjective {
	idx, ok := m.adjectives.GetIndex(name)
	if !ok {
		return nil
	}
	return m.adjectives.GetItem(idx)
}

// applyAdjectives re-evaluates one subject against every adjective, firing
// handlers on membership transitions. Caller holds m.mu.
func (m *Mechanism) applyAdjectives(h SubjectHandle, fp *Fingerprint) {
	cache, ok := m.adjectives.(*SimpleCache[Adjective])
	if !ok {
		return
	}
	for i := range cache.items {
		a := &cache.items[i]
		_, was := a.members[h]
		is := a.Filter.Matches(fp)
		if is == was {
			continue
		}
		if is {
			a.members[h] = struct{}{}
		} else {
			delete(a.members, h)
		}
		if a.Handler != nil {
			a.Handler(m, h, is)
		}
	}
}

// forgetAdjectives drops a despawned subject from every membership set.
// Caller holds m.mu.
func (m *Mechanism) forgetAdjectives(h SubjectHandle) {
	cache, ok := m.adjectives.(*SimpleCache[Adjective])
	if !ok {
		return
	}
	for i := range cache.items {
		delete(cache.items[i].members, h)
	}
}
