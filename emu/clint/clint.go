// Package clint implements the Core-Local Interruptor: mtime, mtimecmp,
// and the msip software-interrupt bit, as relocated at the bus's CLINT
// base address.
package clint

const (
	offMsip      uint64 = 0x0000
	offMtimecmp  uint64 = 0x4000
	offMtime     uint64 = 0xbff8
)

// CLINT models hart 0's timer and software-interrupt registers. Unlike the
// teacher's real-time-paced timer (a goroutine ticking against a wall
// clock, used to pace an interactive terminal session) mtime here only
// advances when Tick is called by the ISS driver, once per emulated cycle,
// per the single-threaded synchronous execution model this emulator uses.
type CLINT struct {
	mtime    uint64
	mtimecmp uint64
	msip     uint32
}

func New() *CLINT { return &CLINT{mtimecmp: ^uint64(0)} }

func (c *CLINT) Name() string { return "clint" }

func (c *CLINT) Load(offset uint64, width int) (uint64, bool) {
	switch {
	case offset == offMsip && width == 4:
		return uint64(c.msip), true
	case offset == offMtimecmp && width == 8:
		return c.mtimecmp, true
	case offset == offMtime && width == 8:
		return c.mtime, true
	default:
		return 0, false
	}
}

func (c *CLINT) Store(offset uint64, width int, value uint64) bool {
	switch {
	case offset == offMsip && width == 4:
		c.msip = uint32(value) & 1
		return true
	case offset == offMtimecmp && width == 8:
		c.mtimecmp = value
		return true
	case offset == offMtime && width == 8:
		c.mtime = value
		return true
	default:
		return false
	}
}

// Tick advances mtime by one. The ISS driver calls this once per cycle,
// before checking for a pending timer interrupt.
func (c *CLINT) Tick() { c.mtime++ }

// IRQ is unused by CLINT: MTIP and MSIP are routed directly into mip by
// MachineTimerPending/SoftwarePending rather than through the generic
// Device.IRQ/PLIC path, since they are per-hart local interrupts, not
// PLIC-aggregated external ones.
func (c *CLINT) IRQ() bool { return false }

func (c *CLINT) Reset() {
	c.mtime = 0
	c.mtimecmp = ^uint64(0)
	c.msip = 0
}

// MachineTimerPending reports whether mtime has reached mtimecmp, i.e.
// whether MTIP should be asserted in mip.
func (c *CLINT) MachineTimerPending() bool { return c.mtime >= c.mtimecmp }

// MachineSoftwarePending reports whether msip is set, i.e. whether MSIP
// should be asserted in mip.
func (c *CLINT) MachineSoftwarePending() bool { return c.msip&1 != 0 }

// Mtime returns the current timer value (used by the TIME-adjacent
// diagnostics and by tests).
func (c *CLINT) Mtime() uint64 { return c.mtime }
