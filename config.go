package conveyor

// Config holds global configuration for the mechanism system
var Config config = config{}

type config struct {
	maxSlotsPerChunk int
	slotEvents       SlotEvents
}

// SetMaxSlotsPerChunk caps how many slots a single chunk may hold. Zero means
// unlimited.
func (c *config) SetMaxSlotsPerChunk(n int) {
	c.maxSlotsPerChunk = n
}

// SetSlotEvents configures an extra relocation listener layered on top of the
// mechanism's own bookkeeping.
func (c *config) SetSlotEvents(ev SlotEvents) {
	c.slotEvents = ev
}
