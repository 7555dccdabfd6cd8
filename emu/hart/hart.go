// Package hart ties together a register file, CSR file, bus, and MMU into
// a single RV64GC execution unit and implements its fetch-decode-execute
// cycle, following the shape of the teacher's CycleCPU/fetch/execute
// pipeline: check for a pending interrupt first, then fetch, decode, and
// execute one instruction, returning its retirement record.
package hart

import (
	"context"
	"log/slog"

	"github.com/Clo91eaf/hemu/emu/bus"
	"github.com/Clo91eaf/hemu/emu/csr"
	"github.com/Clo91eaf/hemu/emu/decode"
	"github.com/Clo91eaf/hemu/emu/disassemble"
	"github.com/Clo91eaf/hemu/emu/fpr"
	"github.com/Clo91eaf/hemu/emu/gpr"
	"github.com/Clo91eaf/hemu/emu/mmu"
	"github.com/Clo91eaf/hemu/emu/trap"
)

// Hart is one RISC-V hardware thread: its architectural state plus the bus
// it executes against. Unlike the teacher's package-global sysCPU
// singleton, Hart is an ordinary instantiable struct, so that the
// co-simulation driver can own an independent instruction-set-simulator
// hart alongside a reference DUT hart in the same process.
type Hart struct {
	GPR gpr.File
	FPR fpr.File
	CSR csr.File
	Bus *bus.Bus

	PC   uint64
	Mode uint8

	// reservation tracks the address set aside by the most recent LR, and
	// whether it is still valid, per the single-hart reservation-set model
	// (see design notes: trivially satisfied since nothing else can steal
	// the reservation between instructions).
	reservationValid bool
	reservationAddr  uint64

	// lastFetchWasCompressed records whether the most recent fetch
	// consumed a 16-bit compressed half-word or a full 32-bit word, so
	// Step can advance PC by the right amount.
	lastFetchWasCompressed bool

	// idle is set by WFI and cleared the moment an interrupt is taken. A
	// Step call while idle skips fetch/decode/execute entirely and leaves
	// PC unchanged.
	idle bool

	Retired uint64

	log *slog.Logger

	// SRAOverride, when non-nil, replaces the default arithmetic-shift
	// implementation of SRA/SRAI. Used only by dut/refdut to construct a
	// deliberately buggy reference DUT for exercising the co-simulation
	// driver's divergence-reporting path; a correct hart never sets it.
	SRAOverride func(value uint64, shamt uint64) uint64
}

// New creates a hart with memory mapped through b, in machine mode, PC at
// reset. A nil log selects slog.Default().
func New(b *bus.Bus, log *slog.Logger) *Hart {
	if log == nil {
		log = slog.Default()
	}
	h := &Hart{Bus: b, Mode: csr.M, log: log}
	h.GPR.Reset()
	h.FPR.Reset()
	h.CSR.Reset()
	return h
}

// Reset restores the hart to its power-on state: PC 0, machine mode, all
// register files cleared.
func (h *Hart) Reset() {
	h.GPR.Reset()
	h.FPR.Reset()
	h.CSR.Reset()
	h.PC = 0
	h.Mode = csr.M
	h.reservationValid = false
	h.idle = false
	h.Retired = 0
}

// Retirement is a per-instruction trace record, compared field-by-field by
// the co-simulation driver against the reference DUT's retirement record.
type Retirement struct {
	PC      uint64
	Inst    uint32
	RdIndex uint8
	RdValue uint64
	Trap    bool
	Cause   uint64
}

// Step executes exactly one instruction (first servicing any pending,
// enabled interrupt) and returns its retirement record. It returns no
// error: every fault, including a refused instruction fetch, is taken as
// a trap and reflected into Retirement.Trap/Cause.
func (h *Hart) Step() Retirement {
	h.CSR.IncrementTime()

	if code, ok := trap.Pending(&h.CSR, h.Mode); ok {
		h.takeTrap(code|trap.InterruptBit, 0)
		return Retirement{PC: h.PC, Trap: true, Cause: code | trap.InterruptBit}
	}

	if h.idle {
		return Retirement{PC: h.PC}
	}

	startPC := h.PC
	word, exc := h.fetch()
	if exc != nil {
		h.takeTrap(exc.Code, exc.Tval)
		return Retirement{PC: startPC, Trap: true, Cause: exc.Code}
	}

	d, derr := decode.Decode(word)
	if derr != nil {
		e := trap.NewIllegalInstruction(word)
		h.takeTrap(e.Code, e.Tval)
		return Retirement{PC: startPC, Inst: word, Trap: true, Cause: e.Code}
	}
	if h.log.Enabled(context.Background(), slog.LevelDebug) {
		h.log.Debug("fetch", "pc", startPC, "asm", disassemble.Instruction(d, startPC))
	}

	var nextPC uint64
	if h.lastFetchWasCompressed {
		nextPC = h.PC + 2
	} else {
		nextPC = h.PC + 4
	}
	rd, rdValue, hasRd, execErr := h.execute(d, startPC, &nextPC)
	if execErr != nil {
		h.takeTrap(execErr.Code, execErr.Tval)
		return Retirement{PC: startPC, Inst: word, Trap: true, Cause: execErr.Code}
	}

	h.PC = nextPC
	h.Retired++

	r := Retirement{PC: startPC, Inst: word}
	if hasRd {
		h.GPR.Write(rd, rdValue)
		r.RdIndex = rd
		r.RdValue = rdValue
	}
	return r
}

// fetch reads one instruction at PC, transparently expanding a compressed
// half-word via the MMU/bus and decode.ExpandCompressed, and returns the
// canonical 32-bit word or the exception the fetch raised. Whether the
// fetch was compressed is recorded in lastFetchWasCompressed.
func (h *Hart) fetch() (uint32, *trap.Exception) {
	if h.PC&1 != 0 {
		return 0, trap.NewInstructionAddressMisaligned(h.PC)
	}

	phys, err := mmu.Translate(&h.CSR, h.Bus, h.PC, trap.AccessInstruction, h.effectiveMode())
	if err != nil {
		return 0, err.(*trap.Exception)
	}
	low, ok := h.Bus.Load(phys, 2)
	if !ok {
		return 0, trap.NewInstructionAccessFault(h.PC)
	}

	if decode.IsCompressed(uint16(low)) {
		word, expandOK := decode.ExpandCompressed(uint16(low))
		if !expandOK {
			return 0, trap.NewIllegalInstruction(uint32(low))
		}
		h.lastFetchWasCompressed = true
		return word, nil
	}

	hi, ok := h.Bus.Load(phys+2, 2)
	if !ok {
		return 0, trap.NewInstructionAccessFault(h.PC)
	}
	h.lastFetchWasCompressed = false
	return uint32(low) | uint32(hi)<<16, nil
}

// effectiveMode is the privilege level instruction fetches are checked
// against: always Mode, since fetches are never affected by MPRV.
func (h *Hart) effectiveMode() uint8 { return h.Mode }

// effectiveDataMode is effectiveMode's counterpart for loads and stores:
// Mode, except when MPRV is set, in which case MPP substitutes for it.
func (h *Hart) effectiveDataMode() uint8 {
	mstatus := h.CSR.Mstatus()
	if mstatus&(1<<csr.BitMPRV) == 0 {
		return h.Mode
	}
	return uint8((mstatus >> csr.BitMPP) & 0b11)
}

// takeTrap performs the privileged-architecture trap-entry sequence:
// choose S-mode or M-mode per delegation, save epc/cause/tval, push the
// interrupt-enable/previous-privilege stack, and redirect PC to the
// handler's vector.
func (h *Hart) takeTrap(cause uint64, tval uint64) {
	isInterrupt := cause&trap.InterruptBit != 0
	code := cause &^ trap.InterruptBit

	h.log.Debug("trap taken", "pc", h.PC, "cause", code, "interrupt", isInterrupt, "tval", tval, "mode", h.Mode)

	h.reservationValid = false
	h.idle = false

	toS := trap.Delegated(&h.CSR, code, isInterrupt, h.Mode)

	mstatus := h.CSR.Mstatus()
	if toS {
		h.CSR.SetSepc(h.PC)
		h.CSR.SetScause(cause)
		h.CSR.SetStval(tval)

		sie := (mstatus >> csr.BitSIE) & 1
		mstatus = setBit(mstatus, csr.BitSPIE, sie == 1)
		mstatus = setBit(mstatus, csr.BitSIE, false)
		mstatus = setBitRange(mstatus, csr.BitSPP, 1, uint64(h.Mode))
		h.CSR.SetMstatus(mstatus)
		h.Mode = csr.S

		vec := h.CSR.Stvec()
		h.PC = trapTarget(vec, code, isInterrupt)
		return
	}

	h.CSR.SetMepc(h.PC)
	h.CSR.SetMcause(cause)
	h.CSR.SetMtval(tval)

	mie := (mstatus >> csr.BitMIE) & 1
	mstatus = setBit(mstatus, csr.BitMPIE, mie == 1)
	mstatus = setBit(mstatus, csr.BitMIE, false)
	mstatus = setBitRange(mstatus, csr.BitMPP, 2, uint64(h.Mode))
	h.CSR.SetMstatus(mstatus)
	h.Mode = csr.M

	vec := h.CSR.Mtvec()
	h.PC = trapTarget(vec, code, isInterrupt)
}

// trapTarget resolves an mtvec/stvec value: direct mode (bit 0 clear)
// always goes to BASE; vectored mode (bit 0 set) adds 4*cause for
// interrupts only, per the privileged spec. This emulator's Open Question
// decision is to support direct mode fully and vectored mode for
// interrupts only, since no observed guest software in scope used
// vectored mode for synchronous exceptions.
func trapTarget(vec uint64, code uint64, isInterrupt bool) uint64 {
	base := vec &^ 0b11
	if vec&1 == 0 || !isInterrupt {
		return base
	}
	return base + 4*code
}

func setBit(v uint64, bit uint, set bool) uint64 {
	if set {
		return v | (1 << bit)
	}
	return v &^ (1 << bit)
}

func setBitRange(v uint64, lo uint, width uint, value uint64) uint64 {
	mask := ((uint64(1) << width) - 1) << lo
	return (v &^ mask) | ((value << lo) & mask)
}

// sret and mret perform the privileged return sequence for SRET/MRET,
// restoring the previous privilege mode and interrupt-enable bit from the
// mstatus stack and redirecting PC to [sm]epc.
func (h *Hart) sret() {
	mstatus := h.CSR.Mstatus()
	spp := uint8((mstatus >> csr.BitSPP) & 1)
	spie := (mstatus >> csr.BitSPIE) & 1
	mstatus = setBit(mstatus, csr.BitSIE, spie == 1)
	mstatus = setBit(mstatus, csr.BitSPIE, true)
	mstatus = setBitRange(mstatus, csr.BitSPP, 1, 0) // SPP always reset to U
	if mstatus&(1<<csr.BitMPRV) != 0 && spp != csr.M {
		mstatus = setBit(mstatus, csr.BitMPRV, false)
	}
	h.CSR.SetMstatus(mstatus)
	h.Mode = spp
	h.PC = h.CSR.Sepc()
}

func (h *Hart) mret() {
	mstatus := h.CSR.Mstatus()
	mpp := uint8((mstatus >> csr.BitMPP) & 0b11)
	mpie := (mstatus >> csr.BitMPIE) & 1
	mstatus = setBit(mstatus, csr.BitMIE, mpie == 1)
	mstatus = setBit(mstatus, csr.BitMPIE, true)
	mstatus = setBitRange(mstatus, csr.BitMPP, 2, uint64(csr.U))
	if mpp != csr.M {
		mstatus = setBit(mstatus, csr.BitMPRV, false)
	}
	h.CSR.SetMstatus(mstatus)
	h.Mode = mpp
	h.PC = h.CSR.Mepc()
}
