package conveyor

type factory struct{}

var Factory factory

func (f factory) NewMechanism() *Mechanism {
	return newMechanism()
}

func (f factory) NewFilter() *Filter {
	return newFilter()
}

func (f factory) NewCursor(filter *Filter, m *Mechanism) *Cursor {
	return newCursor(filter, m, false)
}

func (f factory) NewSolidCursor(filter *Filter, m *Mechanism) *Cursor {
	return newCursor(filter, m, true)
}

func (f factory) NewBeltCursor(filter *Filter, m *Mechanism) *BeltCursor {
	return newBeltCursor(filter, m, false)
}

func (f factory) NewSolidBeltCursor(filter *Filter, m *Mechanism) *BeltCursor {
	return newBeltCursor(filter, m, true)
}

func (f factory) NewTraitmark(traits ...Trait) Traitmark {
	var tm Traitmark
	for _, t := range traits {
		tm.Add(t)
	}
	return tm
}

func (f factory) NewDetailmark(classes ...*DetailClass) Detailmark {
	var dm Detailmark
	for _, c := range classes {
		dm.Add(c)
	}
	return dm
}

func (f factory) NewFingerprint(traits ...Trait) *Fingerprint {
	fp := &Fingerprint{}
	for _, t := range traits {
		fp.AddTrait(t)
	}
	return fp
}

func FactoryNewCache[T any](cap int) Cache[T] {
	return &SimpleCache[T]{
		itemIndices: make(map[string]int),
		maxCapacity: cap,
	}
}
