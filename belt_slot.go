package conveyor

// beltSlotCache is one detail line of one slot: a small growable set of
// detail pointers, since a subject may hold zero, one, or many details
// compatible with the line's class.
type beltSlotCache struct {
	details []Detail
}

// BeltSlot is one subject's row in a belt: a subjective back-reference plus
// per-line caches of its detail pointers. Belts are sparse; a slot may lack
// any number of lines.
type BeltSlot struct {
	subjective  Subjective
	fingerprint *Fingerprint
	lines       []beltSlotCache
}

// Subjective returns the slot's back-reference.
func (s *BeltSlot) Subjective() Subjective { return s.subjective }

// Fingerprint returns the slot subject's fingerprint.
func (s *BeltSlot) Fingerprint() *Fingerprint { return s.fingerprint }

// fetch re-caches the subjective's detail pointers into the belt's lines.
// Every detail lands in the column of each decomposed (own + base) class bit
// the belt carries, which is what makes base-class filters see derived
// instances.
func (s *BeltSlot) fetch(b *Belt) {
	s.lines = make([]beltSlotCache, len(b.lineBits))
	if s.subjective == nil {
		return
	}
	for _, d := range s.subjective.Details() {
		if d == nil {
			continue
		}
		class := d.DetailClass()
		if class == nil {
			continue
		}
		for _, bit := range class.decomposedBits {
			if j, ok := b.lineIndexByBit[bit]; ok {
				s.lines[j].details = append(s.lines[j].details, d)
			}
		}
	}
}

// CountAtLine returns the cached detail cardinality of one line.
func (s *BeltSlot) CountAtLine(lineIndex int) int {
	if lineIndex < 0 || lineIndex >= len(s.lines) {
		return 0
	}
	return len(s.lines[lineIndex].details)
}

// CalcIterableCombosCount returns how many detail combinations the slot
// yields under the filter: the Cartesian product of the cardinalities of the
// given lines. Zero means skip: the fingerprint fails the filter or a
// required line is empty.
func (s *BeltSlot) CalcIterableCombosCount(f *Filter, lineIndices []int) int {
	if s.subjective == nil || s.fingerprint == nil {
		return 0
	}
	if f != nil && !f.Matches(s.fingerprint) {
		return 0
	}
	count := 1
	for _, li := range lineIndices {
		n := s.CountAtLine(li)
		if n == 0 {
			return 0
		}
		count *= n
	}
	return count
}

// IsComboValid reports whether the linear combo index decodes to a real
// combination under the filter.
func (s *BeltSlot) IsComboValid(f *Filter, lineIndices []int, combo int) bool {
	return combo >= 0 && combo < s.CalcIterableCombosCount(f, lineIndices)
}

// DetailAtLine decodes a linear combo index back to the concrete detail at
// position k of lineIndices. The radix order is fixed: the first line is
// least significant, sub_i = (combo / stride_i) % card_i with stride_0 = 1
// and stride_{i+1} = stride_i * card_i.
func (s *BeltSlot) DetailAtLine(lineIndices []int, k int, combo int) Detail {
	if k < 0 || k >= len(lineIndices) || combo < 0 {
		return nil
	}
	stride := 1
	for j := 0; j < k; j++ {
		card := s.CountAtLine(lineIndices[j])
		if card == 0 {
			return nil
		}
		stride *= card
	}
	card := s.CountAtLine(lineIndices[k])
	if card == 0 {
		return nil
	}
	return s.lines[lineIndices[k]].details[(combo/stride)%card]
}
