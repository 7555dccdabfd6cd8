// Package plic implements a minimal Platform-Level Interrupt Controller:
// priority/pending/enable registers and a claim/complete register per
// context, aggregating the UART and virtio external-interrupt sources and
// feeding a single context's "any interrupt ready" signal back to the hart
// as SEIP.
package plic

const (
	numSources = 32 // IRQ 0 unused, 1..31 usable source ids
	numContexts = 2 // 0 = machine, 1 = supervisor

	offPriorityBase = 0x0000 // 4 bytes per source, source*4
	offPending      = 0x1000 // one bitmap word, sources 0..31
	offEnableBase   = 0x2000 // 0x80 bytes per context, one bitmap word per context
	offContextBase  = 0x20_0000
	contextStride   = 0x1000
	offThreshold    = 0x0000
	offClaim        = 0x0004
)

// PLIC models the subset of the SiFive-style platform interrupt controller
// that UART and virtio need: per-source priority and level, per-context
// enable bitmap and threshold, and a claim/complete register.
type PLIC struct {
	priority [numSources]uint32
	pending  uint32 // one bit per source, level-sensitive
	enable   [numContexts]uint32
	threshold [numContexts]uint32
	claimed  uint32 // source currently claimed by context 1, 0 if none
}

func New() *PLIC { return &PLIC{} }

func (p *PLIC) Name() string { return "plic" }

// Raise sets or clears the pending bit for a source id (1..31), called by
// the system each cycle from the device's IRQ() level.
func (p *PLIC) Raise(source int, level bool) {
	if source <= 0 || source >= numSources {
		return
	}
	if level {
		p.pending |= 1 << uint(source)
	} else {
		p.pending &^= 1 << uint(source)
	}
}

func (p *PLIC) Load(offset uint64, width int) (uint64, bool) {
	if width != 4 {
		return 0, false
	}
	switch {
	case offset >= offPriorityBase && offset < offPending:
		idx := offset / 4
		if int(idx) >= numSources {
			return 0, false
		}
		return uint64(p.priority[idx]), true
	case offset == offPending:
		return uint64(p.pending), true
	case offset >= offEnableBase && offset < offContextBase:
		ctx := (offset - offEnableBase) / 0x80
		if int(ctx) >= numContexts {
			return 0, false
		}
		return uint64(p.enable[ctx]), true
	case offset >= offContextBase:
		ctx, reg := contextOffset(offset)
		if ctx < 0 {
			return 0, false
		}
		switch reg {
		case offThreshold:
			return uint64(p.threshold[ctx]), true
		case offClaim:
			return uint64(p.claim(ctx)), true
		}
	}
	return 0, false
}

func (p *PLIC) Store(offset uint64, width int, value uint64) bool {
	if width != 4 {
		return false
	}
	v := uint32(value)
	switch {
	case offset >= offPriorityBase && offset < offPending:
		idx := offset / 4
		if int(idx) >= numSources {
			return false
		}
		p.priority[idx] = v
		return true
	case offset == offPending:
		return false // pending is read-only, level-set via Raise
	case offset >= offEnableBase && offset < offContextBase:
		ctx := (offset - offEnableBase) / 0x80
		if int(ctx) >= numContexts {
			return false
		}
		p.enable[ctx] = v
		return true
	case offset >= offContextBase:
		ctx, reg := contextOffset(offset)
		if ctx < 0 {
			return false
		}
		switch reg {
		case offThreshold:
			p.threshold[ctx] = v
			return true
		case offClaim:
			p.complete(ctx, v)
			return true
		}
	}
	return false
}

func contextOffset(offset uint64) (ctx int, reg uint64) {
	rel := offset - offContextBase
	c := rel / contextStride
	if int(c) >= numContexts {
		return -1, 0
	}
	return int(c), rel % contextStride
}

// claim returns the highest-priority pending+enabled source for ctx and
// marks it claimed (removing it from pending until completed).
func (p *PLIC) claim(ctx int) uint32 {
	best := 0
	bestPrio := uint32(0)
	for s := 1; s < numSources; s++ {
		if p.pending&(1<<uint(s)) == 0 {
			continue
		}
		if p.enable[ctx]&(1<<uint(s)) == 0 {
			continue
		}
		if p.priority[s] <= p.threshold[ctx] {
			continue
		}
		if p.priority[s] > bestPrio {
			bestPrio = p.priority[s]
			best = s
		}
	}
	if best != 0 {
		p.pending &^= 1 << uint(best)
		p.claimed = uint32(best)
	}
	return uint32(best)
}

func (p *PLIC) complete(ctx int, source uint32) {
	_ = ctx
	if p.claimed == source {
		p.claimed = 0
	}
}

func (p *PLIC) Tick() {}

// IRQ reports whether the supervisor context (1) currently has a pending,
// enabled, above-threshold source — i.e. whether SEIP should be asserted.
func (p *PLIC) IRQ() bool {
	const ctx = 1
	for s := 1; s < numSources; s++ {
		if p.pending&(1<<uint(s)) == 0 {
			continue
		}
		if p.enable[ctx]&(1<<uint(s)) == 0 {
			continue
		}
		if p.priority[s] > p.threshold[ctx] {
			return true
		}
	}
	return false
}

func (p *PLIC) Reset() {
	*p = PLIC{}
}
