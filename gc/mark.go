package gc

import "github.com/clarete/vine/value"

// weakMode decodes a table's `__mode` metatable field (spec.md §5).
type weakMode int

const (
	weakNone weakMode = iota
	weakKey
	weakValue
	weakKeyValue
)

// weakMode reads h's metatable's `__mode` string, if any.
func (c *Collector) weakMode(h value.Value) (weakMode, bool) {
	meta, ok := c.Metatable(h)
	if !ok {
		return weakNone, false
	}
	mt, ok := c.Table(meta)
	if !ok {
		return weakNone, false
	}
	modeKey := c.String("__mode")
	v := mt.Get(modeKey)
	if !v.IsHandle() {
		return weakNone, false
	}
	s, ok := c.ReadString(v)
	if !ok {
		return weakNone, false
	}
	switch s {
	case "k":
		return weakKey, true
	case "v":
		return weakValue, true
	case "kv", "vk":
		return weakKeyValue, true
	}
	return weakNone, false
}

// ReadString reads back the Go string a string handle was built from.
func (c *Collector) ReadString(h value.Value) (string, bool) {
	o := c.get(h)
	if o == nil {
		return "", false
	}
	gs, ok := o.payload.(*gcString)
	if !ok {
		return "", false
	}
	return gs.s, true
}

// Barrier implements the forward write barrier (spec.md §5): if owner
// is black and ref is a white object from the generation this cycle is
// trying to reclaim, repaint owner gray and re-queue it for
// propagation, undoing the "already fully scanned" assumption that
// would otherwise let a live white object slip past the mark phase.
func (c *Collector) Barrier(owner, ref value.Value) {
	if c.state != StatePropagate && c.state != StateAtomic {
		return
	}
	oo := c.get(owner)
	ro := c.get(ref)
	if oo == nil || ro == nil {
		return
	}
	if oo.isBlack() && ro.mark&c.otherWhite != 0 {
		oo.paintGray()
		c.gray = append(c.gray, owner.AsHandle())
	}
}

// BarrierBack implements the backward write barrier used for tables
// (spec.md §5): rather than repainting the table gray (which would
// force a full re-trace of every store into it), the table handle is
// queued on grayAgain and gets one authoritative re-trace during the
// atomic phase.
func (c *Collector) BarrierBack(owner value.Value) {
	if c.state != StatePropagate && c.state != StateAtomic {
		return
	}
	oo := c.get(owner)
	if oo == nil || !oo.isBlack() {
		return
	}
	c.grayAgain = append(c.grayAgain, owner.AsHandle())
}

func (c *Collector) beginCycle() {
	c.otherWhite = c.currentWhite
	if c.currentWhite == bitWhite0 {
		c.currentWhite = bitWhite1
	} else {
		c.currentWhite = bitWhite0
	}
	c.gray = c.gray[:0]
	c.grayAgain = c.grayAgain[:0]
	if c.roots == nil {
		return
	}
	for _, v := range c.roots() {
		c.markValue(v)
	}
}

// markValue gray-queues the object v refers to, if any, and if it is
// still colored with this cycle's "old" white (otherwise it is already
// gray/black, or freshly allocated this cycle and thus already safe).
func (c *Collector) markValue(v value.Value) {
	o := c.get(v)
	if o == nil {
		return
	}
	if o.fixed {
		o.paintBlack()
		return
	}
	if o.mark&c.otherWhite != 0 {
		o.paintGray()
		c.gray = append(c.gray, v.AsHandle())
	}
}

// traceObject visits idx's outgoing references, special-casing tables
// so a weak side (per __mode) is never traced: tracing it would keep
// the weakly-held referent alive regardless of any other reference,
// defeating the whole point of a weak table (spec.md §5). Every other
// kind traces through the generic Tracer interface.
func (c *Collector) traceObject(idx uint64, o *object, visit func(value.Value)) {
	if gt, ok := o.payload.(*gcTable); ok {
		mode := weakNone
		if c.weakTables[idx] {
			if m, ok2 := c.weakMode(value.Handle(idx)); ok2 {
				mode = m
			}
		}
		gt.t.ForEachMutable(func(k, v value.Value) bool {
			if mode != weakKey && mode != weakKeyValue {
				visit(k)
			}
			if mode != weakValue && mode != weakKeyValue {
				visit(v)
			}
			return true
		})
		if !gt.meta.IsNull() {
			visit(gt.meta)
		}
		return
	}
	o.trace(visit)
}

// propagateStep pops up to budget objects off the gray queue, tracing
// each one's children and painting it black. Returns the number of
// objects actually processed.
func (c *Collector) propagateStep(budget int) int {
	n := 0
	for n < budget && len(c.gray) > 0 {
		idx := c.gray[len(c.gray)-1]
		c.gray = c.gray[:len(c.gray)-1]
		o := c.objects[idx]
		if o == nil {
			continue
		}
		c.traceObject(idx, o, func(child value.Value) { c.markValue(child) })
		o.paintBlack()
		n++
	}
	return n
}

// Step performs up to budget units of incremental collection work,
// advancing through pause -> propagate -> atomic -> sweep and back to
// pause. Each unit roughly corresponds to one object visited.
func (c *Collector) Step(budget int) {
	for budget > 0 {
		switch c.state {
		case StatePause:
			c.beginCycle()
			c.state = StatePropagate
			budget--
		case StatePropagate:
			if len(c.gray) == 0 {
				c.state = StateAtomic
				continue
			}
			n := c.propagateStep(budget)
			budget -= n
		case StateAtomic:
			c.atomic()
			c.state = StateSweep
			c.sweepCursor = 0
			budget--
		case StateSweep:
			n := c.sweepStep(budget)
			budget -= n
			if c.sweepCursor >= len(c.objects) {
				c.finishCycle()
				c.state = StatePause
				return
			}
		}
	}
}

// Collect runs one full cycle to completion regardless of the usual
// incremental budget, for the `collectgarbage()` builtin and for tests
// that need deterministic post-collection state (spec.md §8's weak-
// table reclamation scenario).
func (c *Collector) Collect() {
	if c.state == StatePause {
		c.beginCycle()
		c.state = StatePropagate
	}
	for c.state != StatePause {
		c.Step(1 << 20)
	}
}
