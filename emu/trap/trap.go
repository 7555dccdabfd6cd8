// Package trap enumerates the RISC-V exception and interrupt causes and
// implements the pure, state-free parts of the trap engine: interrupt
// prioritization and the medeleg/mideleg delegation decision. The state
// mutation a taken trap performs (saving epc/cause/tval, pushing the
// interrupt-enable stack, changing privilege mode, redirecting the PC)
// lives on the hart itself — see emu/hart — because the trap engine has no
// data of its own to own; it only advises the hart what to do.
package trap

import "github.com/Clo91eaf/hemu/emu/csr"

// Exception causes (mcause with the interrupt bit clear).
const (
	InstructionAddressMisaligned uint64 = 0
	InstructionAccessFault       uint64 = 1
	IllegalInstruction           uint64 = 2
	Breakpoint                   uint64 = 3
	LoadAddressMisaligned        uint64 = 4
	LoadAccessFault              uint64 = 5
	StoreAMOAddressMisaligned    uint64 = 6
	StoreAMOAccessFault          uint64 = 7
	EnvironmentCallFromUMode     uint64 = 8
	EnvironmentCallFromSMode     uint64 = 9
	EnvironmentCallFromMMode     uint64 = 11
	InstructionPageFault         uint64 = 12
	LoadPageFault                uint64 = 13
	StoreAMOPageFault            uint64 = 15
)

// Interrupt causes (mcause code, interrupt bit handled separately).
const (
	SupervisorSoftwareInterrupt uint64 = 1
	MachineSoftwareInterrupt    uint64 = 3
	SupervisorTimerInterrupt    uint64 = 5
	MachineTimerInterrupt       uint64 = 7
	SupervisorExternalInterrupt uint64 = 9
	MachineExternalInterrupt    uint64 = 11
)

// InterruptBit is the MSB of a 64-bit mcause value when the trap is an
// interrupt rather than an exception.
const InterruptBit uint64 = 1 << 63

// Exception is a synchronous fault raised by the executor or the MMU.
// It is an ordinary value, never a panic: executor functions return it,
// the hart routes it to its trap-entry sequence (takeTrap).
type Exception struct {
	Code uint64
	Tval uint64
}

func (e *Exception) Error() string { return "exception" }

func NewIllegalInstruction(bits uint32) *Exception {
	return &Exception{Code: IllegalInstruction, Tval: uint64(bits)}
}

func NewBreakpoint(pc uint64) *Exception { return &Exception{Code: Breakpoint, Tval: pc} }

func NewEnvironmentCall(mode uint8) *Exception {
	switch mode {
	case csr.U:
		return &Exception{Code: EnvironmentCallFromUMode}
	case csr.S:
		return &Exception{Code: EnvironmentCallFromSMode}
	default:
		return &Exception{Code: EnvironmentCallFromMMode}
	}
}

func NewLoadAddressMisaligned(addr uint64) *Exception {
	return &Exception{Code: LoadAddressMisaligned, Tval: addr}
}

func NewStoreAMOAddressMisaligned(addr uint64) *Exception {
	return &Exception{Code: StoreAMOAddressMisaligned, Tval: addr}
}

func NewLoadAccessFault(addr uint64) *Exception {
	return &Exception{Code: LoadAccessFault, Tval: addr}
}

func NewStoreAMOAccessFault(addr uint64) *Exception {
	return &Exception{Code: StoreAMOAccessFault, Tval: addr}
}

func NewInstructionAccessFault(addr uint64) *Exception {
	return &Exception{Code: InstructionAccessFault, Tval: addr}
}

func NewInstructionAddressMisaligned(addr uint64) *Exception {
	return &Exception{Code: InstructionAddressMisaligned, Tval: addr}
}

// PageFaultKind maps an MMU access type to its matching page-fault cause.
func PageFaultKind(access Access) uint64 {
	switch access {
	case AccessInstruction:
		return InstructionPageFault
	case AccessStore:
		return StoreAMOPageFault
	default:
		return LoadPageFault
	}
}

// Access is the kind of memory access the MMU is translating, and also the
// kind an access-fault or misaligned-address exception is raised for.
type Access int

const (
	AccessInstruction Access = iota
	AccessLoad
	AccessStore
)

// interruptPriority lists the six maskable interrupt bit positions in the
// exact priority order mandated by the privileged spec: MEI, MSI, MTI,
// SEI, SSI, STI.
var interruptPriority = []struct {
	bit  uint
	code uint64
}{
	{csr.BitMEIP, MachineExternalInterrupt},
	{csr.BitMSIP, MachineSoftwareInterrupt},
	{csr.BitMTIP, MachineTimerInterrupt},
	{csr.BitSEIP, SupervisorExternalInterrupt},
	{csr.BitSSIP, SupervisorSoftwareInterrupt},
	{csr.BitSTIP, SupervisorTimerInterrupt},
}

// Pending returns the highest-priority interrupt that is both raised
// (mip) and enabled (mie), gated by the current privilege mode's global
// interrupt-enable bit, and by the rule that an interrupt targeting a
// mode strictly above the current one is always taken regardless of that
// mode's enable bit.
func Pending(c *csr.File, mode uint8) (code uint64, ok bool) {
	ready := c.Mie() & c.Mip()
	if ready == 0 {
		return 0, false
	}
	for _, p := range interruptPriority {
		if ready&(1<<p.bit) == 0 {
			continue
		}
		targetMode := targetModeOf(p.code)
		if !enabledFor(c, mode, targetMode) {
			continue
		}
		return p.code, true
	}
	return 0, false
}

func targetModeOf(code uint64) uint8 {
	switch code {
	case MachineSoftwareInterrupt, MachineTimerInterrupt, MachineExternalInterrupt:
		return csr.M
	default:
		return csr.S
	}
}

func enabledFor(c *csr.File, currentMode, targetMode uint8) bool {
	if targetMode > currentMode {
		return true
	}
	if currentMode != targetMode {
		return false
	}
	switch targetMode {
	case csr.M:
		return c.Mstatus()&(1<<csr.BitMIE) != 0
	case csr.S:
		return c.Mstatus()&(1<<csr.BitSIE) != 0
	default:
		return true
	}
}

// Delegated reports whether a trap with the given cause (exception or
// interrupt) should be handled in S-mode rather than M-mode: the current
// mode must be at or below S, and the corresponding medeleg/mideleg bit
// must be set.
func Delegated(c *csr.File, code uint64, isInterrupt bool, currentMode uint8) bool {
	if currentMode > csr.S {
		return false
	}
	if isInterrupt {
		return c.Mideleg()&(1<<code) != 0
	}
	return c.Medeleg()&(1<<code) != 0
}
