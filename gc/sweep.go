package gc

import "github.com/clarete/vine/value"

// isDead reports whether the object v refers to was never reached by
// this cycle's mark phase: still tagged with the white color the
// current sweep is reclaiming, and not pinned fixed.
func (c *Collector) isDead(v value.Value) bool {
	o := c.get(v)
	if o == nil || o.fixed {
		return false
	}
	return o.mark&c.otherWhite != 0
}

// atomic finishes the mark phase under one conceptual safe-point
// (spec.md §5): drains any gray queued during propagate, re-traces
// every table touched by the backward barrier, clears weak-table
// entries that point only to now-dead objects, and queues finalizers
// for dead userdata, resurrecting them for one more cycle.
func (c *Collector) atomic() {
	c.drainGray()

	for _, idx := range c.grayAgain {
		o := c.objects[idx]
		if o == nil {
			continue
		}
		c.traceObject(idx, o, func(child value.Value) { c.markValue(child) })
		o.paintBlack()
	}
	c.grayAgain = c.grayAgain[:0]
	c.drainGray()

	c.clearWeakTables()
	c.queueFinalizers()
}

func (c *Collector) drainGray() {
	for len(c.gray) > 0 {
		c.propagateStep(len(c.gray))
	}
}

// clearWeakTables removes entries from every registered weak table
// whose key or value (per its __mode) refers to a dead object. Strings
// are exempt (spec.md §5: "strings are never cleared from weak
// tables").
func (c *Collector) clearWeakTables() {
	for idx := range c.weakTables {
		h := value.Handle(idx)
		mode, ok := c.weakMode(h)
		if !ok || mode == weakNone {
			continue
		}
		t, ok := c.Table(h)
		if !ok {
			continue
		}
		t.ForEachMutable(func(k, v value.Value) bool {
			if mode == weakKey || mode == weakKeyValue {
				if c.clearableRef(k) && c.isDead(k) {
					return false
				}
			}
			if mode == weakValue || mode == weakKeyValue {
				if c.clearableRef(v) && c.isDead(v) {
					return false
				}
			}
			return true
		})
	}
}

// clearableRef reports whether v is a heap handle that participates in
// weak clearing at all (strings never do).
func (c *Collector) clearableRef(v value.Value) bool {
	if !v.IsHandle() {
		return false
	}
	o := c.get(v)
	return o != nil && o.kind != KindString
}

// queueFinalizers moves every dead, finalizer-registered userdata
// object onto the FIFO to-finalize queue and resurrects it (as fresh
// current-white, so this sweep leaves it alone) for one further cycle,
// matching spec.md §5's "kept alive for one more cycle" rule.
func (c *Collector) queueFinalizers() {
	for idx := range c.finalizable {
		h := value.Handle(idx)
		if !c.isDead(h) {
			continue
		}
		delete(c.finalizable, idx)
		c.toFinalize = append(c.toFinalize, idx)
		c.objects[idx].paintWhite(c.currentWhite)
	}
}

// RunPendingFinalizers runs every queued finalizer in FIFO order and
// drains the queue. The embedder calls this at a safe-point (spec.md
// §5 doesn't mandate exactly when, only that the order is FIFO and
// deterministic); called with an empty queue, it is a no-op.
func (c *Collector) RunPendingFinalizers() {
	for len(c.toFinalize) > 0 {
		idx := c.toFinalize[0]
		c.toFinalize = c.toFinalize[1:]
		o := c.objects[idx]
		if o == nil {
			continue
		}
		gu, ok := o.payload.(*gcUserdata)
		if !ok || gu.finalizer == nil {
			continue
		}
		gu.finalizer(value.Handle(idx))
	}
}

// sweepStep advances the sweep cursor through up to budget live-object
// slots, freeing every non-fixed object still colored with the white
// this cycle is reclaiming.
func (c *Collector) sweepStep(budget int) int {
	n := 0
	for n < budget && c.sweepCursor < len(c.objects) {
		idx := c.sweepCursor
		c.sweepCursor++
		n++
		o := c.objects[idx]
		if o == nil {
			continue
		}
		if o.fixed {
			continue
		}
		if o.mark&c.otherWhite != 0 {
			c.freeSlot(idx)
		}
	}
	return n
}

func (c *Collector) freeSlot(idx int) {
	c.objects[idx] = nil
	c.free = append(c.free, uint64(idx))
	delete(c.weakTables, uint64(idx))
	delete(c.finalizable, uint64(idx))
	if c.unitBytes <= c.bytesAllocated {
		c.bytesAllocated -= c.unitBytes
	}
}

// finishCycle resets allocation accounting for the next cycle
// (spec.md §5: "threshold is set to live * growth_ratio at the end of
// each cycle").
func (c *Collector) finishCycle() {
	live := len(c.objects) - len(c.free)
	c.threshold = int(float64(live*c.unitBytes) * c.growthRatio)
	if c.threshold < c.unitBytes*16 {
		c.threshold = c.unitBytes * 16
	}
	c.bytesAllocated = 0
}
